package main

import (
	"flag"
	"os"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/broker"
	"main/internal/core"
	"main/internal/dispatch"
	"main/internal/market"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/state"
	"main/internal/tradelog"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config (empty=built-in sim config)")
	duration := flag.Duration("duration", 0, "Run time (0=until interrupted)")
	snapshotPath := flag.String("snapshot-path", "", "Broker position snapshot output (empty=disabled)")
	flag.Parse()

	loaded, err := loadConfig(*configPath)
	if err != nil {
		fail("config load failed: %+v", err)
	}

	if loaded.Profiling.Enable {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trader",
			ServerAddress:   loaded.Profiling.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			fail("pyroscope start failed: %+v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	ctx, err := buildContext(loaded)
	if err != nil {
		fail("runtime context failed: %+v", err)
	}
	defer func() {
		if err := ctx.Close(); err != nil {
			logs.Errorf("trading log close failed: %+v", err)
		}
	}()

	if err := run(ctx, loaded, *duration, *snapshotPath); err != nil {
		if closeErr := ctx.Close(); closeErr != nil {
			logs.Errorf("trading log close failed: %+v", closeErr)
		}
		fail("trader failed: %+v", err)
	}
}

func fail(format string, args ...any) {
	logs.Errorf(format, args...)
	os.Exit(1)
}

func run(ctx *core.Context, loaded ops.Loaded, duration time.Duration, snapshotPath string) error {
	metrics := obs.NewMetrics()

	riskControl, err := risk.NewControl(ctx, loaded.Global, loaded.Profile)
	if err != nil {
		return err
	}
	scope := riskControl.GlobalScope()
	for name, cfg := range loaded.Scopes {
		local, err := riskControl.CreateScope(name, cfg)
		if err != nil {
			return err
		}
		// The sample strategy trades in the first local scope.
		if scope == riskControl.GlobalScope() {
			scope = local
		}
	}

	securities := make(map[string]*market.SimSecurity, loaded.Registry.SymbolCount())
	feed := make([]*market.SimSecurity, 0, loaded.Registry.SymbolCount())
	for i := 0; i < loaded.Registry.SymbolCount(); i++ {
		symbol, _ := loaded.Registry.SymbolAt(i)
		symCtx, err := riskControl.CreateSymbolContext(symbol)
		if err != nil {
			return err
		}
		security := market.NewSimSecurity(symbol, symCtx)
		securities[symbol.Name] = security
		feed = append(feed, security)
	}

	adapter := broker.NewSimAdapter("sim")
	adapter.SetScript(func(req broker.OrderRequest) []broker.StatusUpdate {
		price := req.Price
		if req.Type == schema.OrderTypeMarket {
			if security, ok := securities[req.Symbol.Name]; ok {
				if req.Side == schema.OrderSideSell {
					price = security.BidPrice()
				} else {
					price = security.AskPrice()
				}
			}
		}
		return []broker.StatusUpdate{
			{Status: schema.OrderStatusSubmitted, RemainingQty: req.Qty},
			{Status: schema.OrderStatusFilled, TradeQty: req.Qty, TradePrice: price},
		}
	})
	system := broker.NewTradingSystem(ctx, riskControl, adapter, metrics)

	book := state.NewPositionBook()
	dispatcher := dispatch.NewDispatcher(ctx, metrics, false)
	manager := dispatch.NewSubscriptionManager(dispatcher)

	strategy := newTouchStrategy("touch", system, scope, book, loaded.Feed.TradeSize)
	observer := newBookObserver("position book", book)
	for _, security := range feed {
		if err := manager.SubscribeLevel1Updates(strategy, security); err != nil {
			return err
		}
		if err := manager.SubscribeTrades(strategy, security); err != nil {
			return err
		}
		if err := manager.SubscribeBrokerPositionUpdates(observer, security); err != nil {
			return err
		}
	}
	defer manager.UnsubscribeAll()

	if err := dispatcher.Activate(); err != nil {
		return err
	}
	defer dispatcher.Stop()

	generator, err := market.NewGenerator(feed, loaded.Feed.BasePrice, loaded.Feed.Spread, loaded.Feed.TradeSize)
	if err != nil {
		return err
	}
	feedDone := make(chan struct{})
	go runFeed(generator, loaded.Feed.StepInterval(), feedDone)
	defer close(feedDone)

	logs.Infof("trader started, %d symbols, scope %q, profile %s",
		len(feed), scope.Name(), loaded.Profile)

	var timeout <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-sys.Shutdown():
		logs.Info("shutdown signal received")
	case <-timeout:
		logs.Infof("run duration %s elapsed", duration)
	}

	dispatcher.SyncDispatching()
	if snapshotPath != "" {
		if err := state.WriteSnapshot(snapshotPath, book.Snapshot()); err != nil {
			return err
		}
	}
	snapshot := metrics.Snapshot()
	logs.Infof("metrics: events=%v dedup=%v stopped_drops=%d risk_rejects=%d dispatch=%+v order_flow=%+v",
		snapshot.EventCounts, snapshot.DedupDrops, snapshot.StoppedDrops, snapshot.RiskRejects,
		snapshot.DispatchLatency, snapshot.OrderFlowLatency)
	return nil
}

func runFeed(generator *market.Generator, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-sys.Shutdown():
			return
		case <-ticker.C:
			generator.Step()
		}
	}
}

func buildContext(loaded ops.Loaded) (*core.Context, error) {
	sinks := []tradelog.Sink{tradelog.ConsoleSink{}}
	if loaded.Journal.Enable {
		client, err := conn.New(conn.Option{
			Host:     loaded.Journal.Host,
			Port:     loaded.Journal.Port,
			User:     loaded.Journal.User,
			Password: loaded.Journal.Password,
			Database: loaded.Journal.Database,
			SSLMode:  loaded.Journal.SSLMode,
		})
		if err != nil {
			return nil, err
		}
		journal, err := tradelog.NewJournalSink(client)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, journal)
	}
	clock := core.WallClock{}
	return core.NewContext(clock, tradelog.New(clock.Now, sinks...)), nil
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.Resolve(defaultConfig())
	}
	return ops.Load(path)
}

func defaultConfig() ops.FileConfig {
	return ops.FileConfig{
		Symbols: []ops.SymbolConfig{
			{Name: "BTC-USDT", Base: "BTC", Quote: "USDT"},
			{Name: "ETH-USDT", Base: "ETH", Quote: "USDT"},
		},
		Risk: ops.RiskConfig{
			Profile: "relax",
			Global: risk.ScopeConfig{
				FloodControl: risk.FloodControlConfig{PeriodMs: 1000, MaxNumber: 200},
				Commission:   decimal.NewFromFloat(0.001),
				Currencies: map[schema.Currency]risk.CurrencyConfig{
					"USDT": {ShortLimit: decimal.NewFromInt(1_000_000), LongLimit: decimal.NewFromInt(1_000_000)},
					"BTC":  {ShortLimit: decimal.NewFromInt(100), LongLimit: decimal.NewFromInt(100)},
					"ETH":  {ShortLimit: decimal.NewFromInt(1000), LongLimit: decimal.NewFromInt(1000)},
				},
			},
			Scopes: map[string]risk.ScopeConfig{
				"Alpha": {
					FloodControl: risk.FloodControlConfig{PeriodMs: 1000, MaxNumber: 50},
					Commission:   decimal.NewFromFloat(0.001),
					Currencies: map[schema.Currency]risk.CurrencyConfig{
						"USDT": {ShortLimit: decimal.NewFromInt(100_000), LongLimit: decimal.NewFromInt(100_000)},
					},
				},
			},
		},
		Feed: ops.FeedConfig{
			BasePrice:      decimal.NewFromInt(100),
			Spread:         decimal.NewFromFloat(0.5),
			TradeSize:      decimal.NewFromInt(1),
			StepIntervalMs: 50,
		},
	}
}
