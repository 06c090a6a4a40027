package utils

import (
	"io"
	"log/slog"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	SetLogger(nil)
}

// Logger returns the diagnostic logger shared by the library packages.
// It discards everything until SetLogger is called.
func Logger() *slog.Logger {
	return logger.Load()
}

// SetLogger replaces the shared logger. Passing nil mutes the library.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.Store(l)
}
