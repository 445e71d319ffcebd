package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
)

// Snapshot captures broker positions at a point in time.
type Snapshot struct {
	Timestamp int64           `json:"timestamp"`
	Positions []PositionEntry `json:"positions"`
}

// PositionEntry is one symbol position.
type PositionEntry struct {
	Symbol string          `json:"symbol"`
	Qty    decimal.Decimal `json:"qty"`
}

// Snapshot builds a snapshot of the current book, sorted by symbol.
func (b *PositionBook) Snapshot() Snapshot {
	b.mu.RLock()
	entries := make([]PositionEntry, 0, len(b.positions))
	for symbol, qty := range b.positions {
		entries = append(entries, PositionEntry{Symbol: symbol, Qty: qty})
	}
	b.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Symbol < entries[j].Symbol
	})
	return Snapshot{
		Timestamp: time.Now().UTC().UnixNano(),
		Positions: entries,
	}
}

// ApplySnapshot replaces the book contents with a snapshot.
func (b *PositionBook) ApplySnapshot(snapshot Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions = make(map[string]decimal.Decimal, len(snapshot.Positions))
	for _, entry := range snapshot.Positions {
		b.positions[entry.Symbol] = entry.Qty
	}
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := sonic.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return snap, nil
}
