package logger

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"
)

type entry struct {
	level slog.Level
	data  []byte
}

// sink fans lines out to its outputs from a single goroutine. Lines at
// ERROR and above also go to the error outputs. Buffers are flushed
// whenever the queue runs dry.
type sink struct {
	queue   chan entry
	flushes chan chan error
	done    chan struct{}

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error

	all    []*bufio.Writer
	errors []*bufio.Writer
}

func newSink(all, errorsOnly []io.Writer) *sink {
	s := &sink{
		queue:   make(chan entry, 512),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
		all:     buffered(all),
		errors:  buffered(errorsOnly),
	}
	go s.run()
	return s
}

func buffered(ws []io.Writer) []*bufio.Writer {
	out := make([]*bufio.Writer, 0, len(ws))
	for _, w := range ws {
		if w != nil {
			out = append(out, bufio.NewWriterSize(w, 32*1024))
		}
	}
	return out
}

// write queues a copy of p. It blocks when the queue is full rather than
// dropping lines.
func (s *sink) write(level slog.Level, p []byte) error {
	if err := s.failure(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("logger: sink closed")
	}
	s.queue <- entry{level: level, data: append([]byte(nil), p...)}
	return nil
}

// Flush waits until everything queued so far reached the outputs.
func (s *sink) Flush() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return s.failure()
	}
	ack := make(chan error, 1)
	s.flushes <- ack
	s.mu.RUnlock()
	return <-ack
}

// Close drains the queue and reports the first write error.
func (s *sink) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
	return s.failure()
}

func (s *sink) run() {
	defer close(s.done)
	for {
		select {
		case e, ok := <-s.queue:
			if !ok {
				s.record(s.flush())
				return
			}
			s.record(s.emit(e))
			if len(s.queue) == 0 {
				s.record(s.flush())
			}
		case ack := <-s.flushes:
			for len(s.queue) > 0 {
				s.record(s.emit(<-s.queue))
			}
			ack <- s.flush()
		}
	}
}

func (s *sink) emit(e entry) error {
	for _, w := range s.all {
		if _, err := w.Write(e.data); err != nil {
			return err
		}
	}
	if e.level >= slog.LevelError {
		for _, w := range s.errors {
			if _, err := w.Write(e.data); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *sink) flush() error {
	var errs []error
	for _, w := range append(s.all[:len(s.all):len(s.all)], s.errors...) {
		errs = append(errs, w.Flush())
	}
	return errors.Join(errs...)
}

func (s *sink) record(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

func (s *sink) failure() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}
