package tradelog

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink collects appended records for assertions.
type captureSink struct {
	mu      sync.Mutex
	records []Record
	closed  bool
}

func (s *captureSink) Append(record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *captureSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestWriteFlushesOnClose(t *testing.T) {
	sink := &captureSink{}
	now := time.Unix(1700000000, 0)
	log := New(func() time.Time { return now }, sink)

	log.Write("risk", "new order", map[string]any{"qty": "1"})
	log.Write("order", "send", nil)
	require.NoError(t, log.Close())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.records, 2)
	assert.Equal(t, "risk", sink.records[0].Tag)
	assert.Equal(t, "new order", sink.records[0].Message)
	assert.Equal(t, now.UnixNano(), sink.records[0].Ts)
	assert.Equal(t, "order", sink.records[1].Tag)
	assert.True(t, sink.closed)
}

func TestCloseIsIdempotent(t *testing.T) {
	log := New(nil, &captureSink{})
	require.NoError(t, log.Close())
	require.NoError(t, log.Close())
}

func TestWriteAfterCloseIsDropped(t *testing.T) {
	sink := &captureSink{}
	log := New(nil, sink)
	require.NoError(t, log.Close())

	// A callback straggling past shutdown must drop its record, not panic.
	log.Write("order", "late record", nil)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Empty(t, sink.records)
}

func TestWriteOnNilLogIsSafe(t *testing.T) {
	var log *Log
	log.Write("risk", "ignored", nil)
	assert.NoError(t, log.Close())
}
