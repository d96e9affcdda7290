package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/paaavkata/crypto-dashboard/pkg/api"
)

var DefaultSymbols = []string{"BTC-USD", "ETH-USD", "ADA-USD", "MUSE-USD"}

type Config struct {
	API                   api.Config
	Symbols               []string
	PollInterval          time.Duration
	ThrottleDelay         time.Duration
	RecentTradesLimit     int
	SkipOverlappingCycles bool
	HTTPPort              string
}

// fileConfig is the on-disk YAML shape; every field is optional.
type fileConfig struct {
	API struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"api"`
	Symbols               []string `yaml:"symbols"`
	PollIntervalSeconds   int      `yaml:"poll_interval_seconds"`
	ThrottleDelayMS       int      `yaml:"throttle_delay_ms"`
	RecentTradesLimit     int      `yaml:"recent_trades_limit"`
	SkipOverlappingCycles bool     `yaml:"skip_overlapping_cycles"`
	HTTPPort              string   `yaml:"http_port"`
}

func Default() *Config {
	return &Config{
		API: api.Config{
			BaseURL: api.DefaultBaseURL,
			Timeout: api.DefaultTimeout,
		},
		Symbols:       append([]string(nil), DefaultSymbols...),
		PollInterval:  10 * time.Second,
		ThrottleDelay: time.Second,
		HTTPPort:      "8080",
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by DASHBOARD_CONFIG, and finally environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("DASHBOARD_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.API.BaseURL != "" {
		c.API.BaseURL = fc.API.BaseURL
	}
	if fc.API.TimeoutSeconds != 0 {
		c.API.Timeout = time.Duration(fc.API.TimeoutSeconds) * time.Second
	}
	if len(fc.Symbols) > 0 {
		c.Symbols = fc.Symbols
	}
	if fc.PollIntervalSeconds != 0 {
		c.PollInterval = time.Duration(fc.PollIntervalSeconds) * time.Second
	}
	if fc.ThrottleDelayMS != 0 {
		c.ThrottleDelay = time.Duration(fc.ThrottleDelayMS) * time.Millisecond
	}
	if fc.RecentTradesLimit != 0 {
		c.RecentTradesLimit = fc.RecentTradesLimit
	}
	if fc.SkipOverlappingCycles {
		c.SkipOverlappingCycles = true
	}
	if fc.HTTPPort != "" {
		c.HTTPPort = fc.HTTPPort
	}
	return nil
}

func (c *Config) applyEnv() {
	c.API.BaseURL = getEnv("API_BASE_URL", c.API.BaseURL)
	c.API.Timeout = time.Duration(getEnvInt("API_TIMEOUT_SECONDS", int(c.API.Timeout/time.Second))) * time.Second
	c.Symbols = getEnvList("SYMBOLS", c.Symbols)
	c.PollInterval = time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", int(c.PollInterval/time.Second))) * time.Second
	c.ThrottleDelay = time.Duration(getEnvInt("THROTTLE_DELAY_MS", int(c.ThrottleDelay/time.Millisecond))) * time.Millisecond
	c.RecentTradesLimit = getEnvInt("RECENT_TRADES_LIMIT", c.RecentTradesLimit)
	c.SkipOverlappingCycles = getEnvBool("SKIP_OVERLAPPING_CYCLES", c.SkipOverlappingCycles)
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.Symbols) == 0 {
		errs = append(errs, errors.New("at least one symbol is required"))
	}
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api base url is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api timeout must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.ThrottleDelay < 0 {
		errs = append(errs, errors.New("throttle delay must not be negative"))
	}
	if c.RecentTradesLimit < 0 {
		errs = append(errs, errors.New("recent trades limit must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
