package servecmder

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/papercomputeco/tracelens/pkg/logger"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newServeLogger builds the serve logger writing to w. With a logFile the
// records are also appended to that file as JSON. The returned closer
// releases the file.
func newServeLogger(w io.Writer, debug, logJSON bool, logFile string) (*slog.Logger, io.Closer, error) {
	console := logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(logJSON),
		logger.WithPretty(true),
		logger.WithWriter(w),
	)
	if logFile == "" {
		return console, nopCloser{}, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithSource(debug),
		logger.WithWriter(f),
	)
	return logger.Multi(console, file), f, nil
}
