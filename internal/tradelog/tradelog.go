// Package tradelog implements the structured trading log: an append-only
// stream of tagged records describing order and risk activity. Records are
// written asynchronously so the order path never blocks on a sink.
package tradelog

import (
	"sync"
	"time"

	"github.com/yanun0323/logs"
)

// Record is one trading log entry.
type Record struct {
	Tag     string         `json:"tag"`
	Ts      int64          `json:"ts"`
	Message string         `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
}

// Sink receives trading records in write order.
type Sink interface {
	Append(Record) error
	Close() error
}

// Log is an asynchronous trading log bound to one or more sinks.
type Log struct {
	now   func() time.Time
	sinks []Sink

	mu     sync.Mutex
	ch     chan Record
	done   chan struct{}
	closed bool
}

const defaultBuffer = 4096

// New creates a trading log. now provides record timestamps (the context
// clock, possibly simulated); nil falls back to wall time.
func New(now func() time.Time, sinks ...Sink) *Log {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	l := &Log{
		now:   now,
		sinks: sinks,
		ch:    make(chan Record, defaultBuffer),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

// Write appends one record. Dropped with a warning when the buffer is full
// or the log is already closed: the trading path must not block on logging,
// and a straggling callback must not panic on a closed channel.
func (l *Log) Write(tag, message string, params map[string]any) {
	if l == nil {
		return
	}
	record := Record{
		Tag:     tag,
		Ts:      l.now().UnixNano(),
		Message: message,
		Params:  params,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		logs.Warnf("trading log is closed, record dropped: %s", tag)
		return
	}
	select {
	case l.ch <- record:
	default:
		logs.Warnf("trading log buffer is full, record dropped: %s", tag)
	}
}

// Close flushes buffered records and closes the sinks.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.ch)
	l.mu.Unlock()

	<-l.done

	var firstErr error
	for _, sink := range l.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *Log) run() {
	defer close(l.done)
	for record := range l.ch {
		for _, sink := range l.sinks {
			if err := sink.Append(record); err != nil {
				logs.Errorf("trading log sink append failed: %+v", err)
			}
		}
	}
}
