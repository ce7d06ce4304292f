package groq

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the configuration for the OpenAI-compatible backend.
type Config struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Defaults applies default values to unset fields.
func (c *Config) Defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.groq.com/openai/v1"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = "llama-3.3-70b-versatile"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 500
	}
	if c.Temperature == 0 {
		c.Temperature = 0.9
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Validate returns an error if required fields are missing or malformed.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("provider: api_key is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("provider: base_url must be a valid http/https URL, got %q", c.BaseURL)
	}
	if c.Model == "" {
		return fmt.Errorf("provider: model is required")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("provider: max_tokens must not be negative")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("provider: temperature must be 0-2, got %v", c.Temperature)
	}
	return nil
}
