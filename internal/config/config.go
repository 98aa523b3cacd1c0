package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	ListenAddr    string
	BearerToken   string
	LogLevel      string // "debug", "info", "warn" or "error"
	LogFormat     string // "text" or "json"
	DefaultRegion string
	SweepInterval time.Duration // how often the lifecycle sweeper runs
	NatSettle     time.Duration // how long NAT gateways stay pending
	ConfigFile    string        // Path to .env file (if loaded)
}

const (
	defaultListenAddr    = ":8080"
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
	defaultRegion        = "us-east-1"
	defaultSweepInterval = 30 * time.Second
	defaultNatSettle     = 5 * time.Second
)

// Load loads configuration with the following priority (highest to lowest):
// 1. Command-line parameters (passed as opts)
// 2. .env file (if exists)
// 3. Environment variables
// 4. Default values
func Load(opts *Config) *Config {
	cfg := &Config{}

	// First, try to load from .env file
	envFile := ".env"
	if _, err := os.Stat(envFile); err == nil {
		if err := loadFromEnvFile(cfg, envFile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to load .env file: %v\n", err)
		} else {
			cfg.ConfigFile = envFile
		}
	}

	// Then environment variables (only where .env left gaps), then defaults
	cfg.ListenAddr = coalesce(cfg.ListenAddr, os.Getenv("VPCD_LISTEN_ADDR"), defaultListenAddr)
	cfg.BearerToken = coalesce(cfg.BearerToken, os.Getenv("VPCD_BEARER_TOKEN"), "")
	cfg.LogLevel = coalesce(cfg.LogLevel, os.Getenv("VPCD_LOG_LEVEL"), defaultLogLevel)
	cfg.LogFormat = coalesce(cfg.LogFormat, os.Getenv("VPCD_LOG_FORMAT"), defaultLogFormat)
	cfg.DefaultRegion = coalesce(cfg.DefaultRegion, os.Getenv("VPCD_DEFAULT_REGION"), defaultRegion)
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = coalesceDuration(os.Getenv("VPCD_SWEEP_INTERVAL"), defaultSweepInterval)
	}
	if cfg.NatSettle == 0 {
		cfg.NatSettle = coalesceDuration(os.Getenv("VPCD_NAT_SETTLE"), defaultNatSettle)
	}

	// Finally, apply CLI opts if provided (highest priority)
	if opts != nil {
		if opts.ListenAddr != "" {
			cfg.ListenAddr = opts.ListenAddr
		}
		if opts.BearerToken != "" {
			cfg.BearerToken = opts.BearerToken
		}
		if opts.LogLevel != "" {
			cfg.LogLevel = opts.LogLevel
		}
		if opts.LogFormat != "" {
			cfg.LogFormat = opts.LogFormat
		}
		if opts.DefaultRegion != "" {
			cfg.DefaultRegion = opts.DefaultRegion
		}
		if opts.SweepInterval != 0 {
			cfg.SweepInterval = opts.SweepInterval
		}
		if opts.NatSettle != 0 {
			cfg.NatSettle = opts.NatSettle
		}
	}

	return cfg
}

// loadFromEnvFile loads configuration from a .env file
func loadFromEnvFile(cfg *Config, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE or KEY="VALUE"
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"")

		switch key {
		case "VPCD_LISTEN_ADDR":
			cfg.ListenAddr = value
		case "VPCD_BEARER_TOKEN":
			cfg.BearerToken = value
		case "VPCD_LOG_LEVEL":
			cfg.LogLevel = value
		case "VPCD_LOG_FORMAT":
			cfg.LogFormat = value
		case "VPCD_DEFAULT_REGION":
			cfg.DefaultRegion = value
		case "VPCD_SWEEP_INTERVAL":
			cfg.SweepInterval = coalesceDuration(value, 0)
		case "VPCD_NAT_SETTLE":
			cfg.NatSettle = coalesceDuration(value, 0)
		}
	}

	return scanner.Err()
}

// IsMCPEnabled checks if MCP authentication is configured
func (c *Config) IsMCPEnabled() bool {
	return c.BearerToken != ""
}

// String returns a string representation of the config source
func (c *Config) String() string {
	if c.ConfigFile != "" {
		return fmt.Sprintf(".env file (%s)", c.ConfigFile)
	}
	return "environment variables"
}

// coalesce returns the first non-empty string value
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// coalesceDuration parses raw as a duration, falling back when empty
// or invalid.
func coalesceDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
