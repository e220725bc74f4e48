package alloc

import (
	"log/slog"
	"os"
)

// Runtime debug flag for allocation logging - controlled by MALLOCKIT_LOG_ALLOC env var.
var logAlloc = os.Getenv("MALLOCKIT_LOG_ALLOC") != ""

// stderrLogger is the logger used when MALLOCKIT_LOG_ALLOC is set and no
// Logger option was supplied.
func stderrLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})).
		With("component", "alloc")
}
