// Package ops loads and validates the trader's JSON configuration into
// resolved values ready for injection. No package-level state.
package ops

import (
	"encoding/json"
	"os"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/glft"
	"main/internal/risk"
	"main/internal/strategy"
	"main/pkg/exception"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Exchanges    []ExchangeConfig      `json:"exchanges"`
	Strategy     strategy.Config       `json:"strategy"`
	Model        ModelConfig           `json:"model"`
	Risk         risk.Config           `json:"risk"`
	OrderTimeout string                `json:"orderTimeout"`
	Recorder     RecorderConfig        `json:"recorder"`
}

// ExchangeConfig declares one adapter to register at startup.
type ExchangeConfig struct {
	Name    string   `json:"name"`
	Symbols []string `json:"symbols"`
}

// ModelConfig mirrors the inventory model coefficients.
type ModelConfig struct {
	RiskAversion  float64 `json:"riskAversion"`
	Volatility    float64 `json:"volatility"`
	ExecutionCost float64 `json:"executionCost"`
	MaxInventory  float64 `json:"maxInventory"`
}

// RecorderConfig configures the optional order-event sink.
type RecorderConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Exchanges    []ExchangeConfig
	Strategy     strategy.Config
	Model        glft.Params
	Risk         risk.Config
	OrderTimeout time.Duration
	Recorder     RecorderConfig
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

// Parse resolves raw JSON config bytes.
func Parse(data []byte) (Loaded, error) {
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "unmarshal config")
	}

	if err := cfg.Strategy.Validate(); err != nil {
		return Loaded{}, errors.Wrap(err, "strategy config")
	}

	if len(cfg.Exchanges) == 0 {
		return Loaded{}, errors.Wrap(exception.ErrInvalidArgument, "no exchanges configured")
	}
	seen := make(map[string]struct{}, len(cfg.Exchanges))
	quoteExchangeKnown := false
	for _, exchange := range cfg.Exchanges {
		if exchange.Name == "" {
			return Loaded{}, errors.Wrap(exception.ErrInvalidArgument, "exchange with empty name")
		}
		if _, dup := seen[exchange.Name]; dup {
			return Loaded{}, errors.Wrapf(exception.ErrInvalidArgument, "duplicate exchange %s", exchange.Name)
		}
		seen[exchange.Name] = struct{}{}
		if exchange.Name == cfg.Strategy.Exchange {
			quoteExchangeKnown = true
		}
	}
	if !quoteExchangeKnown {
		return Loaded{}, errors.Wrapf(exception.ErrInvalidArgument, "quoting exchange %s not configured", cfg.Strategy.Exchange)
	}

	timeout := 5 * time.Minute
	if cfg.OrderTimeout != "" {
		parsed, err := time.ParseDuration(cfg.OrderTimeout)
		if err != nil {
			return Loaded{}, errors.Wrap(err, "parse orderTimeout")
		}
		if parsed <= 0 {
			return Loaded{}, errors.Wrap(exception.ErrInvalidArgument, "orderTimeout must be positive")
		}
		timeout = parsed
	}

	model := glft.Params{
		RiskAversion:  cfg.Model.RiskAversion,
		Volatility:    cfg.Model.Volatility,
		ExecutionCost: cfg.Model.ExecutionCost,
		MaxInventory:  cfg.Model.MaxInventory,
	}
	if model == (glft.Params{}) {
		model = glft.DefaultParams()
	}

	return Loaded{
		Exchanges:    cfg.Exchanges,
		Strategy:     cfg.Strategy,
		Model:        model,
		Risk:         cfg.Risk,
		OrderTimeout: timeout,
		Recorder:     cfg.Recorder,
	}, nil
}
