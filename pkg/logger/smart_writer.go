package logger

import (
	"bufio"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const smartWriterBufferSize = 256 * 1024

// SmartWriter buffers log lines and flushes them on a ticker, when the
// buffer fills, or as soon as an error level line is written.
type SmartWriter struct {
	mu        sync.Mutex
	buf       *bufio.Writer
	interval  time.Duration
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ zerolog.LevelWriter = (*SmartWriter)(nil)

func NewSmartWriter(w io.Writer, interval time.Duration) *SmartWriter {
	if interval <= 0 {
		interval = time.Second
	}
	sw := &SmartWriter{
		buf:      bufio.NewWriterSize(w, smartWriterBufferSize),
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go sw.loop()
	return sw
}

func (sw *SmartWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.buf.Write(p)
}

// WriteLevel is used by zerolog for JSON output. Error and above are
// flushed immediately so they survive a crash right after logging.
func (sw *SmartWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	n, err := sw.buf.Write(p)
	if err != nil {
		return n, err
	}
	if level >= zerolog.ErrorLevel && level != zerolog.NoLevel {
		err = sw.buf.Flush()
	}
	return n, err
}

func (sw *SmartWriter) Sync() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.buf.Flush()
}

// Close stops the flush loop and drains the buffer. Safe to call twice.
func (sw *SmartWriter) Close() error {
	sw.closeOnce.Do(func() {
		close(sw.stop)
		<-sw.done
	})
	return sw.Sync()
}

func (sw *SmartWriter) loop() {
	defer close(sw.done)
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = sw.Sync()
		case <-sw.stop:
			return
		}
	}
}
