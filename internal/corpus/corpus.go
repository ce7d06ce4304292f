// Package corpus manages the owner's style example messages and the global
// auto-reply enabled flag. Clearing the corpus always disables auto-replies:
// a bot with no examples must not impersonate anyone.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/inkonio/doppelbot/internal/store"
)

// SettingEnabled is the settings key holding the auto-reply flag.
const SettingEnabled = "enabled"

// Corpus wraps the persisted example store and the enabled setting.
type Corpus struct {
	examples store.CorpusStore
	settings store.SettingsStore
}

// New creates a Corpus over the given stores.
func New(examples store.CorpusStore, settings store.SettingsStore) *Corpus {
	return &Corpus{examples: examples, settings: settings}
}

// Append trims the given messages, drops empty ones, and persists the rest
// in one batch. It returns the number of examples actually stored.
//
// Callers that also hold the persona cache must invalidate it after a
// successful append.
func (c *Corpus) Append(ctx context.Context, messages []string) (int, error) {
	cleaned := make([]string, 0, len(messages))
	for _, msg := range messages {
		msg = strings.TrimSpace(msg)
		if msg == "" {
			continue
		}
		cleaned = append(cleaned, msg)
	}

	if len(cleaned) == 0 {
		return 0, nil
	}

	if err := c.examples.AppendExamples(ctx, cleaned); err != nil {
		return 0, fmt.Errorf("corpus: append: %w", err)
	}
	return len(cleaned), nil
}

// Count returns the number of stored examples.
func (c *Corpus) Count(ctx context.Context) (int, error) {
	count, err := c.examples.CountExamples(ctx)
	if err != nil {
		return 0, fmt.Errorf("corpus: count: %w", err)
	}
	return count, nil
}

// Examples returns up to limit examples in insertion order.
func (c *Corpus) Examples(ctx context.Context, limit int) ([]string, error) {
	examples, err := c.examples.Examples(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("corpus: examples: %w", err)
	}
	return examples, nil
}

// Clear deletes all examples and forces the enabled flag to false.
//
// Callers that also hold the persona cache must invalidate it after a
// successful clear.
func (c *Corpus) Clear(ctx context.Context) error {
	if err := c.examples.ClearExamples(ctx); err != nil {
		return fmt.Errorf("corpus: clear: %w", err)
	}
	if err := c.settings.SetSetting(ctx, SettingEnabled, "false"); err != nil {
		return fmt.Errorf("corpus: disable after clear: %w", err)
	}
	return nil
}

// Enabled reports whether auto-replies are enabled. A missing setting means
// disabled.
func (c *Corpus) Enabled(ctx context.Context) (bool, error) {
	value, err := c.settings.Setting(ctx, SettingEnabled)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("corpus: read enabled: %w", err)
	}
	return value == "true", nil
}

// SetEnabled stores the auto-reply flag.
func (c *Corpus) SetEnabled(ctx context.Context, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	if err := c.settings.SetSetting(ctx, SettingEnabled, value); err != nil {
		return fmt.Errorf("corpus: set enabled: %w", err)
	}
	return nil
}
