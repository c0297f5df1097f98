package logging

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap/zapcore"
)

// Appender is an output for log entries. `zapcore.Core` satisfies this interface, which lets
// in-memory observers be attached to a Logger directly.
type Appender interface {
	// Write submits a structured log entry to the appender for logging.
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync is for signaling that any buffered logs to `Write` should be flushed. E.g: at shutdown.
	Sync() error
}

// ConsoleAppender writes tab separated, human readable log lines to an io.Writer.
type ConsoleAppender struct {
	mu      sync.Mutex
	writer  io.Writer
	encoder zapcore.Encoder
}

// NewStdoutAppender creates a new appender that writes to stdout.
func NewStdoutAppender() *ConsoleAppender {
	return NewWriterAppender(os.Stdout)
}

// NewWriterAppender creates a new appender that writes to the input writer.
func NewWriterAppender(writer io.Writer) *ConsoleAppender {
	return &ConsoleAppender{
		writer:  writer,
		encoder: zapcore.NewConsoleEncoder(NewEncoderConfig()),
	}
}

// Write outputs the log entry to the underlying writer.
func (appender *ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := appender.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()

	appender.mu.Lock()
	defer appender.mu.Unlock()
	_, err = appender.writer.Write(buf.Bytes())
	return err
}

// Sync flushes the writer when it supports it.
func (appender *ConsoleAppender) Sync() error {
	if syncer, ok := appender.writer.(interface{ Sync() error }); ok {
		appender.mu.Lock()
		defer appender.mu.Unlock()
		if syncer == os.Stdout || syncer == os.Stderr {
			// Syncing a terminal returns EINVAL on most platforms.
			return nil
		}
		return syncer.Sync()
	}
	return nil
}
