// Package logging builds the process logger: a human-friendly console
// handler plus an optional decorated log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"pathwatch/pkg/utils"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup returns a logger writing tinted output to stdout and, when logFile
// is non-empty, line-numbered text output appended to that file. The
// returned closer flushes and closes the log file.
func Setup(logFile string, level slog.Level) (*slog.Logger, io.Closer, error) {
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: timeFormat,
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	if logFile == "" {
		return slog.New(stdoutHandler), nopCloser{}, nil
	}

	if err := utils.EnsureParent(logFile); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	writer := NewLineWriter(file)
	fileHandler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level: level,
		// The line writer stamps its own time on every line.
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	return slog.New(NewMultiHandler(stdoutHandler, fileHandler)), &fileCloser{writer: writer, file: file}, nil
}

type fileCloser struct {
	writer *LineWriter
	file   *os.File
}

func (c *fileCloser) Close() error {
	if err := c.writer.Close(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}
