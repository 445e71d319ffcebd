package broker

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/core"
	"main/internal/market"
	"main/internal/obs"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/tradelog"
	"main/pkg/exception"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testPipeline(t *testing.T) (*TradingSystem, *SimAdapter, *risk.Control, *market.SimSecurity) {
	t.Helper()
	ctx := core.NewContext(core.NewSimClock(time.Unix(1700000000, 0)), tradelog.New(nil))
	control, err := risk.NewControl(ctx, risk.ScopeConfig{
		FloodControl: risk.FloodControlConfig{PeriodMs: 1000, MaxNumber: 100},
		Commission:   d("0.001"),
		Currencies: map[schema.Currency]risk.CurrencyConfig{
			"USDT": {ShortLimit: d("10000"), LongLimit: d("10000")},
			"BTC":  {ShortLimit: d("50"), LongLimit: d("50")},
		},
	}, risk.ProfileRelax)
	require.NoError(t, err)

	symbol := schema.Symbol{Name: "BTC-USDT", Base: "BTC", Quote: "USDT"}
	symCtx, err := control.CreateSymbolContext(symbol)
	require.NoError(t, err)
	security := market.NewSimSecurity(symbol, symCtx)
	security.SetLevel1(d("99"), d("101"), d("100"))

	adapter := NewSimAdapter("sim")
	return NewTradingSystem(ctx, control, adapter, obs.NewMetrics()), adapter, control, security
}

func TestBuyFullFillSettlesLedger(t *testing.T) {
	system, _, control, security := testPipeline(t)
	global := control.GlobalScope()

	var updates []StatusUpdate
	id, err := system.Buy(nil, security, d("2"), d("100"), func(u StatusUpdate) {
		updates = append(updates, u)
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	require.Len(t, updates, 2)
	assert.Equal(t, schema.OrderStatusSubmitted, updates[0].Status)
	assert.Equal(t, schema.OrderStatusFilled, updates[1].Status)

	// Filled at the limit price: the reservation stands as the final cost.
	assert.True(t, global.Balance("BTC").Equal(d("2")), "got %s", global.Balance("BTC"))
	assert.True(t, global.Balance("USDT").Equal(d("-200.2")), "got %s", global.Balance("USDT"))
}

func TestPartialFillReleasesRemainder(t *testing.T) {
	system, adapter, control, security := testPipeline(t)
	adapter.SetScript(PartialFillThenCancel)
	global := control.GlobalScope()

	var statuses []schema.OrderStatus
	_, err := system.Sell(nil, security, d("4"), d("100"), func(u StatusUpdate) {
		statuses = append(statuses, u.Status)
	})
	require.NoError(t, err)

	// A fill with quantity still open keeps the order live: the cancel of
	// the remainder must reach the caller, not the late-update guard.
	assert.Equal(t, []schema.OrderStatus{
		schema.OrderStatusSubmitted,
		schema.OrderStatusFilled,
		schema.OrderStatusCancelled,
	}, statuses)

	// Half filled, half cancelled: only the traded base leg remains.
	assert.True(t, global.Balance("BTC").Equal(d("-2")), "got %s", global.Balance("BTC"))
	assert.True(t, global.Balance("USDT").Equal(d("200")), "got %s", global.Balance("USDT"))
}

func TestFullFillAfterPartialIsTerminal(t *testing.T) {
	system, adapter, control, security := testPipeline(t)
	adapter.SetScript(func(req OrderRequest) []StatusUpdate {
		half := req.Qty.Div(decimal.NewFromInt(2))
		return []StatusUpdate{
			{Status: schema.OrderStatusSubmitted, RemainingQty: req.Qty},
			{Status: schema.OrderStatusFilled, TradeQty: half, TradePrice: req.Price, RemainingQty: half},
			{Status: schema.OrderStatusFilled, TradeQty: half, TradePrice: req.Price, RemainingQty: decimal.Zero},
			// Finished order: this one must be dropped.
			{Status: schema.OrderStatusCancelled, RemainingQty: req.Qty},
		}
	})
	global := control.GlobalScope()

	var count int
	_, err := system.Buy(nil, security, d("2"), d("100"), func(StatusUpdate) {
		count++
	})
	require.NoError(t, err)

	assert.Equal(t, 3, count)
	assert.True(t, global.Balance("BTC").Equal(d("2")), "got %s", global.Balance("BTC"))
	assert.True(t, global.Balance("USDT").Equal(d("-200.2")), "got %s", global.Balance("USDT"))
}

func TestBrokerRejectReturnsAllFunds(t *testing.T) {
	system, adapter, control, security := testPipeline(t)
	adapter.SetScript(Reject)
	global := control.GlobalScope()

	var last StatusUpdate
	_, err := system.Buy(nil, security, d("1"), d("100"), func(u StatusUpdate) {
		last = u
	})
	require.NoError(t, err)

	assert.Equal(t, schema.OrderStatusError, last.Status)
	assert.True(t, global.Balance("BTC").IsZero())
	assert.True(t, global.Balance("USDT").IsZero())
}

func TestSendFailureSynthesizesErrorStatus(t *testing.T) {
	system, adapter, control, security := testPipeline(t)
	adapter.SetConnected(false)
	global := control.GlobalScope()

	var got []StatusUpdate
	_, err := system.Buy(nil, security, d("1"), d("100"), func(u StatusUpdate) {
		got = append(got, u)
	})
	require.ErrorIs(t, err, exception.ErrOrderSendFailed)

	// The transport failure surfaces as a terminal error transition and the
	// reservation is fully returned.
	require.Len(t, got, 1)
	assert.Equal(t, schema.OrderStatusError, got[0].Status)
	assert.True(t, got[0].RemainingQty.Equal(d("1")))
	assert.True(t, global.Balance("BTC").IsZero())
	assert.True(t, global.Balance("USDT").IsZero())
}

func TestRiskRejectNeverReachesAdapter(t *testing.T) {
	system, adapter, _, security := testPipeline(t)

	_, err := system.Buy(nil, security, d("1000"), d("100"), nil)
	require.ErrorIs(t, err, exception.ErrNotEnoughFunds)
	assert.Empty(t, adapter.Sent())
}

func TestMarketBuyReservesAtAsk(t *testing.T) {
	system, adapter, control, security := testPipeline(t)
	// Keep the reservation visible by never confirming.
	adapter.SetScript(func(req OrderRequest) []StatusUpdate { return nil })
	global := control.GlobalScope()

	_, err := system.BuyAtMarketPrice(nil, security, d("1"), nil)
	require.NoError(t, err)

	// Reserved at the ask of 101 plus commission.
	assert.True(t, global.Balance("USDT").Equal(d("-101.101")), "got %s", global.Balance("USDT"))

	sent := adapter.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, schema.OrderTypeMarket, sent[0].Type)
	assert.True(t, sent[0].Price.IsZero())
}

func TestMarketSellReservesAtBid(t *testing.T) {
	system, adapter, control, security := testPipeline(t)
	adapter.SetScript(func(req OrderRequest) []StatusUpdate { return nil })
	global := control.GlobalScope()

	_, err := system.SellAtMarketPriceImmediatelyOrCancel(nil, security, d("1"), nil)
	require.NoError(t, err)

	assert.True(t, global.Balance("USDT").Equal(d("99")), "got %s", global.Balance("USDT"))
	sent := adapter.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, schema.TimeInForceIOC, sent[0].Tif)
}

func TestMarketOrderWithoutQuoteRejected(t *testing.T) {
	system, _, _, _ := testPipeline(t)
	empty := market.NewSimSecurity(schema.Symbol{Name: "ETH-USDT", Base: "ETH", Quote: "USDT"}, nil)

	_, err := system.BuyAtMarketPrice(nil, empty, d("1"), nil)
	assert.ErrorIs(t, err, exception.ErrOrderPriceMissing)
}

func TestLimitOrderRequiresPrice(t *testing.T) {
	system, _, _, security := testPipeline(t)
	_, err := system.Sell(nil, security, d("1"), decimal.Zero, nil)
	assert.ErrorIs(t, err, exception.ErrOrderPriceMissing)
}

func TestLateUpdateAfterTerminalIsDropped(t *testing.T) {
	system, adapter, control, security := testPipeline(t)
	adapter.SetScript(func(req OrderRequest) []StatusUpdate {
		return []StatusUpdate{
			{Status: schema.OrderStatusFilled, TradeQty: req.Qty, TradePrice: req.Price},
			// A duplicate terminal transition must not touch the ledger again.
			{Status: schema.OrderStatusCancelled, RemainingQty: req.Qty},
		}
	})
	global := control.GlobalScope()

	var count int
	_, err := system.Buy(nil, security, d("1"), d("100"), func(StatusUpdate) {
		count++
	})
	require.NoError(t, err)

	assert.Equal(t, 1, count)
	assert.True(t, global.Balance("BTC").Equal(d("1")), "got %s", global.Balance("BTC"))
	assert.True(t, global.Balance("USDT").Equal(d("-100.1")), "got %s", global.Balance("USDT"))
}

func TestOrderIDsAreMonotonic(t *testing.T) {
	system, _, _, security := testPipeline(t)
	first, err := system.Buy(nil, security, d("1"), d("100"), nil)
	require.NoError(t, err)
	second, err := system.Sell(nil, security, d("1"), d("100"), nil)
	require.NoError(t, err)
	assert.Greater(t, second, first)
}
