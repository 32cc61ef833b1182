package hub

import (
	"context"
	"sync"
	"time"

	"collaborative-whiteboard/internal/domain"
	"collaborative-whiteboard/internal/metrics"
	"collaborative-whiteboard/internal/repository"

	"github.com/sirupsen/logrus"
)

type logOp int

const (
	opAppend logOp = iota
	opClear
	opTouch
	opRead
)

func (o logOp) String() string {
	switch o {
	case opAppend:
		return "append"
	case opClear:
		return "clear"
	case opTouch:
		return "touch"
	case opRead:
		return "read"
	default:
		return "unknown"
	}
}

type readResult struct {
	commands []domain.DrawingCommand
	err      error
}

type logJob struct {
	op     logOp
	cmd    domain.DrawingCommand
	result chan readResult
}

// logWriter 以单个 goroutine 串行执行某个房间的持久化调用，
// 保证持久化顺序与房间内的操作顺序一致。
// 入队和 close 只能在持有 Room.mu 且房间未关闭时调用。
type logWriter struct {
	roomID  string
	store   repository.CommandLog
	timeout time.Duration
	jobs    chan logJob
	done    chan struct{}
	once    sync.Once
	log     *logrus.Entry
}

func newLogWriter(roomID string, store repository.CommandLog, timeout time.Duration, prev <-chan struct{}, log *logrus.Entry) *logWriter {
	w := &logWriter{
		roomID:  roomID,
		store:   store,
		timeout: timeout,
		jobs:    make(chan logJob, sendBufferSize),
		done:    make(chan struct{}),
		log:     log.WithField("room_id", roomID),
	}
	go w.run(prev)
	return w
}

func (w *logWriter) run(prev <-chan struct{}) {
	defer close(w.done)
	// 同 ID 的上一个房间还在排空时，先等它完成
	if prev != nil {
		<-prev
	}
	for job := range w.jobs {
		w.exec(job)
	}
}

func (w *logWriter) exec(job logJob) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	var err error
	switch job.op {
	case opAppend:
		err = w.store.Append(ctx, w.roomID, job.cmd)
	case opClear:
		err = w.store.Clear(ctx, w.roomID)
	case opTouch:
		err = w.store.Touch(ctx, w.roomID)
	case opRead:
		var cmds []domain.DrawingCommand
		cmds, err = w.store.ReadAll(ctx, w.roomID)
		job.result <- readResult{commands: cmds, err: err}
	}
	metrics.PersistenceLatency.WithLabelValues(job.op.String()).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.PersistenceFailures.WithLabelValues(job.op.String()).Inc()
		w.log.WithError(err).WithFields(logrus.Fields{
			"operation":  job.op.String(),
			"command_id": job.cmd.ID,
		}).Error("Persistence call failed, live state is unaffected")
	}
}

func (w *logWriter) append(cmd domain.DrawingCommand) {
	w.jobs <- logJob{op: opAppend, cmd: cmd}
}

func (w *logWriter) clear() {
	w.jobs <- logJob{op: opClear}
}

func (w *logWriter) touch() {
	w.jobs <- logJob{op: opTouch}
}

// readAll 读取房间日志。读取排在之前入队的所有写入之后执行。
func (w *logWriter) readAll(ctx context.Context) ([]domain.DrawingCommand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make(chan readResult, 1)
	select {
	case w.jobs <- logJob{op: opRead, result: result}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-result:
		return res.commands, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.done:
		return nil, errWriterClosed
	}
}

func (w *logWriter) close() {
	w.once.Do(func() { close(w.jobs) })
}
