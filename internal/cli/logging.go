package cli

import (
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the process logger. With log_file set, records go to a
// size-rotated file; otherwise to w, which is stderr outside tests.
func newLogger(s settings, w io.Writer) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", cfgKeyLogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	if s.LogFile == "" {
		return slog.New(slog.NewTextHandler(w, opts)), nil, nil
	}
	rotating := &lumberjack.Logger{
		Filename:   s.LogFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	return slog.New(slog.NewJSONHandler(rotating, opts)), rotating, nil
}
