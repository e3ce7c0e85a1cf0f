package software

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/oit/backend"
)

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(backend.NopLogger())
}

func setLogger(l *slog.Logger) {
	if l == nil {
		l = backend.NopLogger()
	}
	loggerPtr.Store(l)
}

func slogger() *slog.Logger { return loggerPtr.Load() }
