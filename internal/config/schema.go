// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for doppelbot.
package config

import (
	"fmt"
	"time"

	"github.com/inkonio/doppelbot/internal/ops"
	"github.com/inkonio/doppelbot/internal/provider/groq"
	"github.com/inkonio/doppelbot/internal/telegram"
)

// Config is the top-level configuration structure.
type Config struct {
	Log      LogConfig       `yaml:"log"`
	Owner    OwnerConfig     `yaml:"owner"`
	Telegram telegram.Config `yaml:"telegram"`
	Provider groq.Config     `yaml:"provider"`
	Store    StoreConfig     `yaml:"store"`
	Engine   EngineConfig    `yaml:"engine"`
	History  HistoryConfig   `yaml:"history"`
	Persona  PersonaConfig   `yaml:"persona"`
	Ops      ops.Config      `yaml:"ops"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is one of text, json.
	Format string `yaml:"format"`
}

// OwnerConfig identifies the account being impersonated.
type OwnerConfig struct {
	// Username is the Telegram username allowed to use the control keyboard.
	Username string `yaml:"username"`
}

// StoreConfig configures the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`

	// BusyTimeout is the SQLite busy_timeout in milliseconds.
	BusyTimeout int `yaml:"busy_timeout"`
}

// EngineConfig holds reply orchestration tunables.
type EngineConfig struct {
	// MinCorpus is the minimum corpus size before auto-replies can run.
	MinCorpus int `yaml:"min_corpus"`

	// HistoryLimit is how many recent turns go into each generation request.
	HistoryLimit int `yaml:"history_limit"`
}

// HistoryConfig holds conversation window tunables.
type HistoryConfig struct {
	MemoryCap    int           `yaml:"memory_cap"`
	HydrateLimit int           `yaml:"hydrate_limit"`
	Retention    time.Duration `yaml:"retention"`
}

// PersonaConfig holds persona prompt cache tunables.
type PersonaConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Defaults applies default values to all sections.
func (c *Config) Defaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.Path == "" {
		c.Store.Path = "doppelbot.db"
	}
	if c.Store.BusyTimeout <= 0 {
		c.Store.BusyTimeout = 5000
	}
	c.Telegram.Defaults()
	c.Provider.Defaults()
	c.Ops.Defaults()
}

// Validate checks all sections. Defaults must have been applied first.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Owner.Username == "" {
		return fmt.Errorf("config: owner.username is required")
	}

	if err := c.Telegram.Validate(); err != nil {
		return err
	}
	if err := c.Provider.Validate(); err != nil {
		return err
	}
	if err := c.Ops.Validate(); err != nil {
		return err
	}

	if c.Engine.MinCorpus < 0 {
		return fmt.Errorf("config: engine.min_corpus must not be negative")
	}
	if c.History.Retention < 0 {
		return fmt.Errorf("config: history.retention must not be negative")
	}
	if c.Persona.TTL < 0 {
		return fmt.Errorf("config: persona.ttl must not be negative")
	}

	return nil
}
