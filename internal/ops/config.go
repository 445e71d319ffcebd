// Package ops loads and resolves the runtime configuration file.
package ops

import (
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"main/internal/risk"
	"main/internal/schema"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Symbols   []SymbolConfig  `json:"symbols"`
	Risk      RiskConfig      `json:"risk"`
	Feed      FeedConfig      `json:"feed"`
	Journal   JournalConfig   `json:"journal"`
	Profiling ProfilingConfig `json:"profiling"`
}

// SymbolConfig describes one tradable symbol entry.
type SymbolConfig struct {
	Name  string `json:"name"`
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// RiskConfig holds the global scope settings, any named local scopes and the
// lock profile.
type RiskConfig struct {
	Profile string                      `json:"profile"`
	Global  risk.ScopeConfig            `json:"global"`
	Scopes  map[string]risk.ScopeConfig `json:"scopes,omitempty"`
}

// FeedConfig drives the simulated market feed.
type FeedConfig struct {
	BasePrice      decimal.Decimal `json:"basePrice"`
	Spread         decimal.Decimal `json:"spread"`
	TradeSize      decimal.Decimal `json:"tradeSize"`
	StepIntervalMs int64           `json:"stepIntervalMs"`
}

// StepInterval returns the delay between feed steps.
func (c FeedConfig) StepInterval() time.Duration {
	if c.StepIntervalMs <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.StepIntervalMs) * time.Millisecond
}

// JournalConfig enables the PostgreSQL trading journal.
type JournalConfig struct {
	Enable   bool   `json:"enable"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// ProfilingConfig enables continuous profiling.
type ProfilingConfig struct {
	Enable        bool   `json:"enable"`
	ServerAddress string `json:"serverAddress"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Registry  *schema.Registry
	Profile   risk.Profile
	Global    risk.ScopeConfig
	Scopes    map[string]risk.ScopeConfig
	Feed      FeedConfig
	Journal   JournalConfig
	Profiling ProfilingConfig
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return Resolve(cfg)
}

// Resolve validates a parsed config and builds the symbol registry.
func Resolve(cfg FileConfig) (Loaded, error) {
	registry, err := buildRegistry(cfg.Symbols)
	if err != nil {
		return Loaded{}, err
	}
	profile, err := risk.ParseProfile(cfg.Risk.Profile)
	if err != nil {
		return Loaded{}, err
	}
	if err := validateFeed(cfg.Feed); err != nil {
		return Loaded{}, err
	}
	if cfg.Journal.Enable && cfg.Journal.Database == "" {
		return Loaded{}, fmt.Errorf("journal is enabled but database name is empty")
	}
	if cfg.Profiling.Enable && cfg.Profiling.ServerAddress == "" {
		return Loaded{}, fmt.Errorf("profiling is enabled but server address is empty")
	}
	return Loaded{
		Registry:  registry,
		Profile:   profile,
		Global:    cfg.Risk.Global,
		Scopes:    cfg.Risk.Scopes,
		Feed:      cfg.Feed,
		Journal:   cfg.Journal,
		Profiling: cfg.Profiling,
	}, nil
}

func buildRegistry(symbols []SymbolConfig) (*schema.Registry, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("config has no symbols")
	}
	registry := schema.NewRegistry()
	for _, sym := range symbols {
		if _, err := registry.AddSymbol(sym.Name, schema.Currency(sym.Base), schema.Currency(sym.Quote)); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func validateFeed(cfg FeedConfig) error {
	if !cfg.BasePrice.IsPositive() {
		return fmt.Errorf("feed base price must be positive, got %s", cfg.BasePrice)
	}
	if cfg.Spread.IsNegative() {
		return fmt.Errorf("feed spread must not be negative, got %s", cfg.Spread)
	}
	return nil
}
