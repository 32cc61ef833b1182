package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUserName(t *testing.T) {
	assert.Equal(t, "Ann", NormalizeUserName("  Ann ", "abcdef"))
	assert.Equal(t, "Userabcd", NormalizeUserName("   ", "abcdef"))
	assert.Equal(t, "Userab", NormalizeUserName("", "ab"))

	long := strings.Repeat("x", 30)
	assert.Equal(t, strings.Repeat("x", MaxUserNameLength), NormalizeUserName(long, "u1"))

	// 按字符而不是字节截断
	wide := strings.Repeat("画", 25)
	assert.Equal(t, strings.Repeat("画", MaxUserNameLength), NormalizeUserName(wide, "u1"))
}

func TestPaletteColor_RoundRobin(t *testing.T) {
	assert.Equal(t, Palette[0], PaletteColor(0))
	assert.Equal(t, Palette[1], PaletteColor(1))
	assert.Equal(t, Palette[0], PaletteColor(len(Palette)))
	assert.Equal(t, Palette[0], PaletteColor(-3))
}

func TestCursorPosition_DistanceTo(t *testing.T) {
	p := CursorPosition{X: 0, Y: 0}
	assert.InDelta(t, 5.0, p.DistanceTo(3, 4), 1e-9)
}

func TestDrawingCommand_Validate(t *testing.T) {
	cmd := DrawingCommand{ID: "c1", Kind: KindStroke}
	assert.Error(t, cmd.Validate())

	cmd.Data.Points = []Point{{X: 1, Y: 1}}
	assert.NoError(t, cmd.Validate())

	assert.Error(t, (&DrawingCommand{Kind: KindClear}).Validate())
	assert.Error(t, (&DrawingCommand{Kind: "paint", Data: StrokeData{Points: []Point{{}}}}).Validate())
	assert.Equal(t, KindErase, KindForTool("eraser"))
	assert.Equal(t, KindStroke, KindForTool("pen"))
}
