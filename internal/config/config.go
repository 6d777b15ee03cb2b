package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level execsim configuration
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Impact    ImpactConfig    `mapstructure:"impact"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Selector  SelectorConfig  `mapstructure:"selector"`
	Predictor PredictorConfig `mapstructure:"predictor"`
	Slippage  SlippageConfig  `mapstructure:"slippage"`
	Emergency EmergencyConfig `mapstructure:"emergency"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Binance   BinanceConfig   `mapstructure:"binance"`
}

// LogConfig controls logrus output
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// ImpactConfig parameterises the square-root impact model
type ImpactConfig struct {
	Gamma        float64 `mapstructure:"gamma"`
	Beta         float64 `mapstructure:"beta"`
	MinLiquidity float64 `mapstructure:"min_liquidity"`
	MaxCost      float64 `mapstructure:"max_cost"`
}

// BatchConfig parameterises the batch sizer
type BatchConfig struct {
	MinBatch       int64   `mapstructure:"min_batch"`
	BaseFraction   float64 `mapstructure:"base_fraction"`
	DefaultRatio   float64 `mapstructure:"default_ratio"`
	MinVolatFactor float64 `mapstructure:"min_volatility_factor"`
	MaxVolatFactor float64 `mapstructure:"max_volatility_factor"`
}

// SelectorTier is one row of the method selection table
type SelectorTier struct {
	// Rows apply to order values strictly below UpperBound; 0 means unbounded.
	UpperBound    float64 `mapstructure:"upper_bound"`
	Method        string  `mapstructure:"method"`
	MaxSlices     int     `mapstructure:"max_slices"`
	WindowMinutes int     `mapstructure:"window_minutes"`
	Rationale     string  `mapstructure:"rationale"`
}

// SelectorConfig holds the ordered method selection table
type SelectorConfig struct {
	UnitsPerSlice int64          `mapstructure:"units_per_slice"`
	Tiers         []SelectorTier `mapstructure:"tiers"`
}

// PredictorConfig parameterises the slippage predictor
type PredictorConfig struct {
	Capacity        int     `mapstructure:"capacity"`
	Window          int     `mapstructure:"window"`
	DefaultMean     float64 `mapstructure:"default_mean"`
	SizeScale       float64 `mapstructure:"size_scale"`
	SizeCoefficient float64 `mapstructure:"size_coefficient"`
	VolatCoeff      float64 `mapstructure:"volatility_coefficient"`
	TimeCoefficient float64 `mapstructure:"time_coefficient"`
}

// SlippageConfig selects and parameterises the slippage model
type SlippageConfig struct {
	Model          string  `mapstructure:"model"` // fixed, realistic, dynamic
	FixedRate      float64 `mapstructure:"fixed_rate"`
	ObservationLog int     `mapstructure:"observation_log"`
	WarningBps     float64 `mapstructure:"warning_bps"` // 0 disables the threshold warning
}

// EmergencyConfig holds the crisis liquidation table
type EmergencyConfig struct {
	FlashCrashAllowance float64 `mapstructure:"flash_crash_allowance"`
	PanicAllowance      float64 `mapstructure:"panic_allowance"`
	DefaultAllowance    float64 `mapstructure:"default_allowance"`
	ClipRatio           float64 `mapstructure:"clip_ratio"`
	LimitDiscount       float64 `mapstructure:"limit_discount"`
	HistorySize         int     `mapstructure:"history_size"`
}

// PlannerConfig controls the facade
type PlannerConfig struct {
	Workers         int `mapstructure:"workers"`
	IcebergDelaySec int `mapstructure:"iceberg_delay_seconds"`
}

// NATSConfig configures the request/reply service
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"client_id"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	QueueGroup    string `mapstructure:"queue_group"`
}

// BinanceConfig configures the depth snapshot source
type BinanceConfig struct {
	APIKey     string `mapstructure:"api_key"`
	SecretKey  string `mapstructure:"secret_key"`
	TestNet    bool   `mapstructure:"test_net"`
	DepthLimit int    `mapstructure:"depth_limit"`
	LotSize    string `mapstructure:"lot_size"`
	CacheTTLMs int    `mapstructure:"cache_ttl_ms"`
	RateLimit  int    `mapstructure:"rate_limit_per_minute"`
}

// Default returns the built-in configuration without touching the filesystem
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// defaults are static; a failure here is a programming error
		panic(fmt.Sprintf("invalid default config: %v", err))
	}
	return &cfg
}

// Load reads configPath (if non-empty) on top of the defaults and applies
// EXECSIM_* environment overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("EXECSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the values that would otherwise produce nonsense plans
func (c *Config) Validate() error {
	if len(c.Selector.Tiers) == 0 {
		return fmt.Errorf("selector.tiers must not be empty")
	}
	last := len(c.Selector.Tiers) - 1
	for i, tier := range c.Selector.Tiers {
		if tier.MaxSlices < 1 {
			return fmt.Errorf("selector tier %d: max_slices must be >= 1", i)
		}
		if tier.UpperBound < 0 {
			return fmt.Errorf("selector tier %d: upper_bound must not be negative", i)
		}
		// upper_bound 0 means unbounded; later tiers could never match
		if tier.UpperBound == 0 && i != last {
			return fmt.Errorf("selector tier %d: only the last tier may be unbounded", i)
		}
		if i > 0 && tier.UpperBound != 0 && tier.UpperBound <= c.Selector.Tiers[i-1].UpperBound {
			return fmt.Errorf("selector tier %d: upper_bound must increase", i)
		}
	}
	if c.Selector.UnitsPerSlice <= 0 {
		return fmt.Errorf("selector.units_per_slice must be positive")
	}
	if c.Predictor.Capacity < c.Predictor.Window || c.Predictor.Window <= 0 {
		return fmt.Errorf("predictor.capacity (%d) must be >= window (%d) > 0", c.Predictor.Capacity, c.Predictor.Window)
	}
	if c.Impact.MaxCost <= 0 {
		return fmt.Errorf("impact.max_cost must be positive")
	}
	if c.Emergency.ClipRatio <= 0 || c.Emergency.ClipRatio > 1 {
		return fmt.Errorf("emergency.clip_ratio must be in (0, 1]")
	}
	if c.Planner.Workers <= 0 {
		c.Planner.Workers = 1
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("impact.gamma", 0.1)
	v.SetDefault("impact.beta", 0.5)
	v.SetDefault("impact.min_liquidity", 0.1)
	v.SetDefault("impact.max_cost", 0.10)

	v.SetDefault("batch.min_batch", 100)
	v.SetDefault("batch.base_fraction", 0.1)
	v.SetDefault("batch.default_ratio", 0.1)
	v.SetDefault("batch.min_volatility_factor", 0.5)
	v.SetDefault("batch.max_volatility_factor", 2.0)

	v.SetDefault("selector.units_per_slice", 100)
	v.SetDefault("selector.tiers", []map[string]interface{}{
		{"upper_bound": 100000, "method": "MARKET", "max_slices": 1, "window_minutes": 0, "rationale": "small order, execute immediately"},
		{"upper_bound": 500000, "method": "TWAP", "max_slices": 10, "window_minutes": 15, "rationale": "medium order, spread evenly over time"},
		{"upper_bound": 2000000, "method": "VWAP", "max_slices": 20, "window_minutes": 30, "rationale": "large order, follow the volume curve"},
		{"upper_bound": 0, "method": "VWAP", "max_slices": 50, "window_minutes": 60, "rationale": "block order, follow the volume curve over a long window"},
	})

	v.SetDefault("predictor.capacity", 1000)
	v.SetDefault("predictor.window", 50)
	v.SetDefault("predictor.default_mean", 0.001)
	v.SetDefault("predictor.size_scale", 10000)
	v.SetDefault("predictor.size_coefficient", 0.001)
	v.SetDefault("predictor.volatility_coefficient", 0.1)
	v.SetDefault("predictor.time_coefficient", 0.0005)

	v.SetDefault("slippage.model", "realistic")
	v.SetDefault("slippage.fixed_rate", 0.0005)
	v.SetDefault("slippage.observation_log", 1000)
	v.SetDefault("slippage.warning_bps", 50)

	v.SetDefault("emergency.flash_crash_allowance", 0.02)
	v.SetDefault("emergency.panic_allowance", 0.05)
	v.SetDefault("emergency.default_allowance", 0.01)
	v.SetDefault("emergency.clip_ratio", 0.1)
	v.SetDefault("emergency.limit_discount", 0.995)
	v.SetDefault("emergency.history_size", 100)

	v.SetDefault("planner.workers", 4)
	v.SetDefault("planner.iceberg_delay_seconds", 5)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.client_id", "execsim")
	v.SetDefault("nats.subject_prefix", "execsim")
	v.SetDefault("nats.queue_group", "execsim-workers")

	v.SetDefault("binance.test_net", false)
	v.SetDefault("binance.depth_limit", 100)
	v.SetDefault("binance.lot_size", "0.001")
	v.SetDefault("binance.cache_ttl_ms", 500)
	v.SetDefault("binance.rate_limit_per_minute", 1200)
}
