package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"TradeSentinel/internal/logger"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/risk"
	"TradeSentinel/internal/strategy"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider        string        `yaml:"provider" default:"kraken" validate:"oneof=kraken yahoo mock"`
		BaseURL         string        `yaml:"base_url"`
		Interval        time.Duration `yaml:"interval" default:"5m" validate:"gte=1m"`
		Lookback        time.Duration `yaml:"lookback" default:"24h" validate:"gtefield=Interval"`
		BaseDelay       time.Duration `yaml:"base_delay" default:"1s" validate:"gt=0"`
		MaxDelay        time.Duration `yaml:"max_delay" default:"60s" validate:"gtefield=BaseDelay"`
		JitterMin       time.Duration `yaml:"jitter_min" default:"100ms" validate:"gte=0"`
		JitterMax       time.Duration `yaml:"jitter_max" default:"500ms" validate:"gtefield=JitterMin"`
		CacheTTL        time.Duration `yaml:"cache_ttl" default:"5s" validate:"gte=0"`
		RateLimitBuffer time.Duration `yaml:"rate_limit_buffer" default:"1s" validate:"gte=0"`
		MaxAttempts     int           `yaml:"max_attempts" default:"5" validate:"gte=1"`
		MaxTotalBackoff time.Duration `yaml:"max_total_backoff" default:"3m" validate:"gt=0"`
	} `yaml:"data_source"`
	Schedule struct {
		CycleInterval    time.Duration `yaml:"cycle_interval" default:"150s" validate:"gt=0"`
		FailureDelay     time.Duration `yaml:"failure_delay" default:"5s" validate:"gt=0"`
		BreakerThreshold int           `yaml:"breaker_threshold" default:"5" validate:"gte=1"`
		BreakerCooldown  time.Duration `yaml:"breaker_cooldown" default:"5m" validate:"gt=0"`
		MaintenanceCron  string        `yaml:"maintenance_cron" default:"0 0 * * * *"`
		SummaryCron      string        `yaml:"summary_cron" default:"0 0 8 * * *"`
		MarketRetention  time.Duration `yaml:"market_retention" default:"168h" validate:"gt=0"`
	} `yaml:"schedule"`
	Ledger struct {
		Currency       string  `yaml:"currency" default:"ZUSD" validate:"required"`
		InitialBalance float64 `yaml:"initial_balance" default:"100000" validate:"gt=0"`
	} `yaml:"ledger"`
	Database struct {
		Driver     string `yaml:"driver" default:"sqlite" validate:"oneof=sqlite json none"`
		SQLitePath string `yaml:"sqlite_path" default:"data/trade_sentinel.db"`
		StateFile  string `yaml:"state_file" default:"data/ledger.json"`
	} `yaml:"database"`
	Hint struct {
		Enabled     bool   `yaml:"enabled"`
		LibraryPath string `yaml:"library_path"`
		ModelPath   string `yaml:"model_path" validate:"required_if=Enabled true"`
	} `yaml:"hint"`
	Status struct {
		Enabled         bool          `yaml:"enabled" default:"true"`
		Addr            string        `yaml:"addr" default:":8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s" validate:"gt=0"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s" validate:"gt=0"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s" validate:"gt=0"`
	} `yaml:"status"`
	Risk    risk.Config          `yaml:"risk"`
	Guard   strategy.MarketGuard `yaml:"guard"`
	Log     logger.Config        `yaml:"log"`
	Symbols []model.SymbolConfig `yaml:"symbols" validate:"dive"`
	Proxy   string               `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		var id int64
		if _, err := fmt.Sscanf(v, "%d", &id); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("STATUS_ADDR"); v != "" {
		cfg.Status.Addr = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		cfg.DataSource.Provider = v
	}

	if len(cfg.Symbols) == 0 {
		cfg.Symbols = model.DefaultSymbols()
	}
	for i := range cfg.Symbols {
		if err := defaults.Set(&cfg.Symbols[i]); err != nil {
			return nil, fmt.Errorf("symbol defaults: %w", err)
		}
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		if seen[s.Symbol] {
			return fmt.Errorf("symbol %s configured twice", s.Symbol)
		}
		seen[s.Symbol] = true
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required when bot_token is set")
	}
	return nil
}

// Symbol returns the configuration for one symbol.
func (c *Config) Symbol(name string) (model.SymbolConfig, bool) {
	for _, s := range c.Symbols {
		if s.Symbol == name {
			return s, true
		}
	}
	return model.SymbolConfig{}, false
}
