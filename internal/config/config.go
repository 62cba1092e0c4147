package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"quote-alerts/internal/logging"
	"quote-alerts/internal/storage"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Provider ProviderConfig `mapstructure:"provider"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Registry RegistryConfig `mapstructure:"registry"`
	Push     PushConfig     `mapstructure:"push"`
	Server   ServerConfig   `mapstructure:"server"`
	Database storage.Config `mapstructure:"database"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// CacheConfig sets per-payload freshness windows.
type CacheConfig struct {
	QuoteTTL         time.Duration `mapstructure:"quote_ttl"`
	IntradayChartTTL time.Duration `mapstructure:"intraday_chart_ttl"`
	HistoryChartTTL  time.Duration `mapstructure:"history_chart_ttl"`
}

// ProviderConfig covers upstream market-data access.
type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// FetchConfig governs batch fetch behaviour.
type FetchConfig struct {
	Concurrency   int    `mapstructure:"concurrency"`
	QuoteInterval string `mapstructure:"quote_interval"`
	QuoteRange    string `mapstructure:"quote_range"`
}

// MonitorConfig governs the alert check loop.
type MonitorConfig struct {
	Interval            time.Duration `mapstructure:"interval"`
	StartupDelay        time.Duration `mapstructure:"startup_delay"`
	AlignToInterval     bool          `mapstructure:"align_to_interval"`
	Cooldown            time.Duration `mapstructure:"cooldown"`
	SkipStaleQuotes     bool          `mapstructure:"skip_stale_quotes"`
	DeliveryConcurrency int           `mapstructure:"delivery_concurrency"`
}

// RegistryConfig bounds per-device state.
type RegistryConfig struct {
	MaxAlertsPerDevice int `mapstructure:"max_alerts_per_device"`
}

// PushConfig captures push gateway connectivity.
type PushConfig struct {
	GatewayURL     string        `mapstructure:"gateway_url"`
	AuthToken      string        `mapstructure:"auth_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ServerConfig sets the device-facing HTTP listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QUOTEWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "quotewatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("cache.quote_ttl", "60s")
	v.SetDefault("cache.intraday_chart_ttl", "60s")
	v.SetDefault("cache.history_chart_ttl", "300s")

	v.SetDefault("provider.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("provider.request_timeout", "10s")
	v.SetDefault("provider.user_agent", "quotewatcher/1.0")

	v.SetDefault("fetch.concurrency", 10)
	v.SetDefault("fetch.quote_interval", "5m")
	v.SetDefault("fetch.quote_range", "1d")

	v.SetDefault("monitor.interval", "5m")
	v.SetDefault("monitor.startup_delay", "10s")
	v.SetDefault("monitor.align_to_interval", false)
	v.SetDefault("monitor.cooldown", "30m")
	v.SetDefault("monitor.skip_stale_quotes", false)
	v.SetDefault("monitor.delivery_concurrency", 4)

	v.SetDefault("registry.max_alerts_per_device", 50)

	v.SetDefault("push.gateway_url", "https://exp.host/--/api/v2/push/send")
	v.SetDefault("push.request_timeout", "5s")

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be greater than zero")
	}
	if c.Monitor.Cooldown <= 0 {
		return fmt.Errorf("monitor.cooldown must be greater than zero")
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be greater than zero")
	}
	if c.Registry.MaxAlertsPerDevice <= 0 {
		return fmt.Errorf("registry.max_alerts_per_device must be greater than zero")
	}
	if c.Cache.QuoteTTL <= 0 || c.Cache.IntradayChartTTL <= 0 || c.Cache.HistoryChartTTL <= 0 {
		return fmt.Errorf("cache TTLs must be greater than zero")
	}
	if c.Provider.RequestTimeout <= 0 {
		return fmt.Errorf("provider.request_timeout must be greater than zero")
	}
	if c.Push.RequestTimeout <= 0 {
		return fmt.Errorf("push.request_timeout must be greater than zero")
	}
	return nil
}
