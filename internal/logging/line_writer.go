package logging

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"time"
)

// LineWriter decorates each complete line written through it with a
// sequence number and timestamp before passing it to the target writer.
// Partial lines stay buffered until their trailing newline arrives.
type LineWriter struct {
	mu     sync.Mutex
	target io.Writer
	seq    uint64
	buf    bytes.Buffer
}

func NewLineWriter(target io.Writer) *LineWriter {
	return &LineWriter{target: target}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)

	written := 0
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Incomplete line; keep it for the next Write.
			w.buf.WriteString(line)
			break
		}
		n, err := w.writeLine(line)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Close flushes any buffered partial line to the target writer.
func (w *LineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return nil
	}
	_, err := w.writeLine(w.buf.String())
	w.buf.Reset()
	return err
}

func (w *LineWriter) writeLine(line string) (int, error) {
	w.seq++
	prefix := slog.Uint64("line", w.seq).String() + " " +
		slog.String("time", time.Now().Format(time.RFC3339)).String() + " "

	n, err := io.WriteString(w.target, prefix)
	if err != nil {
		return n, err
	}
	m, err := io.WriteString(w.target, line)
	return n + m, err
}
