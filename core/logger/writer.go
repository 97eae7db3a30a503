package logger

import (
	"bufio"
	"io"
	"sync"
)

// asyncWriter moves formatting output off the caller's goroutine. Lines are written
// in order; the buffer is flushed whenever the queue drains.
type asyncWriter struct {
	lines chan []byte
	flush chan chan error
	done  chan struct{}
	once  sync.Once

	mu  sync.Mutex
	err error
	buf *bufio.Writer
}

func newAsyncWriter(sinks []io.Writer, queue int) *asyncWriter {
	if queue <= 0 {
		queue = 256
	}
	var live []io.Writer
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	w := &asyncWriter{
		lines: make(chan []byte, queue),
		flush: make(chan chan error),
		done:  make(chan struct{}),
		buf:   bufio.NewWriterSize(io.MultiWriter(live...), 64*1024),
	}
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.record(w.buf.Flush())
				return
			}
			_, err := w.buf.Write(line)
			w.record(err)
			if len(w.lines) == 0 {
				w.record(w.buf.Flush())
			}
		case ack := <-w.flush:
			ack <- w.buf.Flush()
		}
	}
}

// Write queues a copy of p. It blocks when the queue is full rather than drop lines.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.Err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.lines <- append([]byte(nil), p...)
	return nil
}

// Flush waits until everything queued before the call reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.flush <- ack:
		return <-ack
	case <-w.done:
		return w.Err()
	}
}

// Close drains the queue and returns the first write error.
func (w *asyncWriter) Close() error {
	w.once.Do(func() { close(w.lines) })
	<-w.done
	return w.Err()
}

// Err returns the first write error, if any.
func (w *asyncWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *asyncWriter) record(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}
