package oit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/oit/backend"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

// devices tracks live devices so SetLogger can reach them.
var devices struct {
	sync.Mutex
	live map[loggerSetter]struct{}
}

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for oit and the devices of live contexts.
// By default oit produces no log output. Pass nil to restore silence.
//
// Log levels used by oit:
//   - [slog.LevelDebug]: pipeline state, buffer sizes, per-pass dispatch counts
//   - [slog.LevelInfo]: device selected, pipelines built
//   - [slog.LevelWarn]: dropped frames, release failures
//
// Example:
//
//	oit.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	backend.SetLogger(l)

	devices.Lock()
	defer devices.Unlock()
	for d := range devices.live {
		d.SetLogger(l)
	}
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by devices that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// trackLogger hands the current logger to dev and keeps it updated.
func trackLogger(dev any) {
	ls, ok := dev.(loggerSetter)
	if !ok {
		return
	}
	devices.Lock()
	defer devices.Unlock()
	if devices.live == nil {
		devices.live = make(map[loggerSetter]struct{})
	}
	devices.live[ls] = struct{}{}
	ls.SetLogger(Logger())
}

func untrackLogger(dev any) {
	ls, ok := dev.(loggerSetter)
	if !ok {
		return
	}
	devices.Lock()
	defer devices.Unlock()
	delete(devices.live, ls)
}
