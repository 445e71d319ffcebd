package state

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/market"
	"main/internal/schema"
)

var (
	btc = schema.Symbol{Name: "BTC-USDT", Base: "BTC", Quote: "USDT"}
	eth = schema.Symbol{Name: "ETH-USDT", Base: "ETH", Quote: "USDT"}
)

func TestApplyFill(t *testing.T) {
	book := NewPositionBook()

	qty := book.ApplyFill(btc, schema.OrderSideBuy, decimal.NewFromInt(3))
	assert.True(t, qty.Equal(decimal.NewFromInt(3)))

	qty = book.ApplyFill(btc, schema.OrderSideSell, decimal.NewFromInt(5))
	assert.True(t, qty.Equal(decimal.NewFromInt(-2)))
	assert.Equal(t, 1, book.Count())
}

func TestApplyBrokerReport(t *testing.T) {
	book := NewPositionBook()
	book.ApplyFill(btc, schema.OrderSideBuy, decimal.NewFromInt(10))

	// Initial reports are authoritative and replace local bookkeeping.
	qty := book.ApplyBrokerReport(btc, market.BrokerPosition{Qty: decimal.NewFromInt(4), IsInitial: true})
	assert.True(t, qty.Equal(decimal.NewFromInt(4)))

	qty = book.ApplyBrokerReport(btc, market.BrokerPosition{Qty: decimal.NewFromInt(-1)})
	assert.True(t, qty.Equal(decimal.NewFromInt(3)))
}

func TestSnapshotRoundTrip(t *testing.T) {
	book := NewPositionBook()
	book.ApplyFill(btc, schema.OrderSideBuy, decimal.RequireFromString("1.5"))
	book.ApplyFill(eth, schema.OrderSideSell, decimal.NewFromInt(7))

	path := filepath.Join(t.TempDir(), "positions.json")
	require.NoError(t, WriteSnapshot(path, book.Snapshot()))

	snap, err := ReadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, snap.Positions, 2)
	// Entries are sorted by symbol name.
	assert.Equal(t, "BTC-USDT", snap.Positions[0].Symbol)
	assert.True(t, snap.Positions[0].Qty.Equal(decimal.RequireFromString("1.5")))

	restored := NewPositionBook()
	restored.ApplySnapshot(snap)
	assert.True(t, restored.Position(eth).Equal(decimal.NewFromInt(-7)))
}

func TestReadSnapshotMissingFile(t *testing.T) {
	_, err := ReadSnapshot(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
