package config

import (
	"time"

	"github.com/vietddude/fullres/internal/infra/fetch"
	redisclient "github.com/vietddude/fullres/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Engine  EngineConfig       `yaml:"engine"`
	Fetch   fetch.Config       `yaml:"fetch"`
	Redis   redisclient.Config `yaml:"redis"`
	Server  ServerConfig       `yaml:"server"`
	Logging LoggingConfig      `yaml:"logging"`
}

// EngineConfig controls the fallback chain.
type EngineConfig struct {
	Timeout       time.Duration    `yaml:"timeout"`         // per attempt; no chain-wide deadline
	Eager         bool             `yaml:"eager"`           // race the first strategy with the direct source
	Strategies    []string         `yaml:"strategies"`      // built-in names, in order
	FallbackURLs  []FallbackConfig `yaml:"fallback_urls"`   // fixed URLs appended after Strategies
	AllowDataURLs bool             `yaml:"allow_data_urls"` // data: sources are filtered unless set
}

// FallbackConfig is a caller-configured fixed fallback resource.
type FallbackConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Tag  string `yaml:"tag"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
