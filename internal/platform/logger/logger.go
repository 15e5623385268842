package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Handlers and services
// receive it by injection; nothing logs through the global default.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
