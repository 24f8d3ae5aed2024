package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/fullres/internal/acquire/strategy"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, expanding environment variables first.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *AppConfig {
	var cfg AppConfig
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero values.
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Engine.Timeout == 0 {
		c.Engine.Timeout = 15 * time.Second
	}
	if len(c.Engine.Strategies) == 0 {
		c.Engine.Strategies = append([]string(nil), strategy.DefaultChain...)
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.MaxBodyKB == 0 {
		c.Fetch.MaxBodyKB = 32 * 1024
	}
	if c.Fetch.MaxConcurrent == 0 {
		c.Fetch.MaxConcurrent = 8
	}
	if c.Redis.URL != "" && c.Redis.TTL == 0 {
		c.Redis.TTL = 24 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks strategy names and fallback entries.
func (c *AppConfig) Validate() error {
	for _, name := range c.Engine.Strategies {
		if _, err := strategy.Builtin(name); err != nil {
			return fmt.Errorf("engine.strategies: %w", err)
		}
	}
	for i, fb := range c.Engine.FallbackURLs {
		if fb.Name == "" {
			return fmt.Errorf("engine.fallback_urls[%d]: name is required", i)
		}
		if !strategy.Transformable(fb.URL) {
			return fmt.Errorf("engine.fallback_urls[%d]: %q is not an http(s) url", i, fb.URL)
		}
	}
	if c.Engine.Timeout < 0 {
		return fmt.Errorf("engine.timeout must not be negative")
	}
	return nil
}

// BuildStrategies creates the ordered strategy registry described by the
// engine section: built-in strategies first, then fixed fallback URLs.
func (c *AppConfig) BuildStrategies() (*strategy.Registry, error) {
	reg, err := strategy.NewRegistryFromNames(c.Engine.Strategies...)
	if err != nil {
		return nil, err
	}
	for _, fb := range c.Engine.FallbackURLs {
		if err := reg.Register(strategy.NewFixed(fb.Name, fb.URL).WithTag(fb.Tag)); err != nil {
			return nil, fmt.Errorf("fallback %s: %w", fb.Name, err)
		}
	}
	return reg, nil
}
