// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/oit/backend"
)

// loggerPtr stores the active logger. Accessed atomically for thread safety.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(backend.NopLogger())
}

// slogger returns the current package logger.
func slogger() *slog.Logger { return loggerPtr.Load() }

// setLogger updates the package-level logger.
// Called from Device.SetLogger when oit.SetLogger propagates.
func setLogger(l *slog.Logger) {
	if l == nil {
		l = backend.NopLogger()
	}
	loggerPtr.Store(l)
}
