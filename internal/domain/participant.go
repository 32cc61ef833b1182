package domain

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxUserNameLength 是显示名称的最大字符数。
const MaxUserNameLength = 20

// Palette 是参与者颜色的固定调色板，按加入时的房间人数轮流分配。
var Palette = []string{
	"#448AFF", "#FF5252", "#4CAF50", "#FFB300", "#9C27B0", "#00B8D4", "#FF4081",
}

// CursorPosition 是最近一次被接受并转发的光标位置。
type CursorPosition struct {
	X  float64
	Y  float64
	At time.Time
}

// DistanceTo 返回到 (x, y) 的欧氏距离。
func (p CursorPosition) DistanceTo(x, y float64) float64 {
	return math.Hypot(x-p.X, y-p.Y)
}

// Participant 表示房间中的一个已连接身份。
type Participant struct {
	UserID     string          `json:"userId"`
	UserName   string          `json:"userName"`
	Color      string          `json:"color"`
	JoinedAt   time.Time       `json:"joinedAt"`
	LastCursor *CursorPosition `json:"-"`
}

// PaletteColor 返回在当前房间人数为 occupancy 时应分配的颜色。
func PaletteColor(occupancy int) string {
	if occupancy < 0 {
		occupancy = 0
	}
	return Palette[occupancy%len(Palette)]
}

// PlaceholderName 生成默认显示名称: "User" + 用户 ID 的前 4 个字符。
func PlaceholderName(userID string) string {
	prefix := userID
	if utf8.RuneCountInString(prefix) > 4 {
		prefix = string([]rune(prefix)[:4])
	}
	return "User" + prefix
}

// NormalizeUserName 去除首尾空白并截断到 MaxUserNameLength。
// 结果为空时回退到占位名称。
func NormalizeUserName(name, userID string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxUserNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxUserNameLength]))
	}
	if name == "" {
		return PlaceholderName(userID)
	}
	return name
}
