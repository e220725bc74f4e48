package alloc

import (
	"bytes"
	"log/slog"
)

// logSink captures text log output for assertions.
type logSink struct {
	buf bytes.Buffer
}

func (s *logSink) logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&s.buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (s *logSink) String() string { return s.buf.String() }
