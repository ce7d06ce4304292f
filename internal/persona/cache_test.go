package persona

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

// fakeCorpus implements store.CorpusStore with canned examples and a read counter.
type fakeCorpus struct {
	examples []string
	reads    int
}

func (f *fakeCorpus) AppendExamples(_ context.Context, examples []string) error {
	f.examples = append(f.examples, examples...)
	return nil
}

func (f *fakeCorpus) Examples(_ context.Context, limit int) ([]string, error) {
	f.reads++
	if limit > 0 && limit < len(f.examples) {
		return f.examples[:limit], nil
	}
	return f.examples, nil
}

func (f *fakeCorpus) CountExamples(context.Context) (int, error) { return len(f.examples), nil }
func (f *fakeCorpus) ClearExamples(context.Context) error        { f.examples = nil; return nil }

func newTestCache(examples []string) (*Cache, *fakeCorpus, *time.Time) {
	fc := &fakeCorpus{examples: examples}
	c := NewCache(fc, "tester", 5*time.Minute)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, fc, &now
}

func TestPromptCachedWithinTTL(t *testing.T) {
	c, fc, now := newTestCache([]string{"yo", "what's up"})
	ctx := context.Background()

	first, err := c.Prompt(ctx)
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}

	*now = now.Add(4 * time.Minute)

	second, err := c.Prompt(ctx)
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}

	if first != second {
		t.Error("prompts within TTL differ")
	}
	if fc.reads != 1 {
		t.Errorf("corpus reads = %d, want 1 (second call must hit the cache)", fc.reads)
	}
}

func TestPromptRecomputedAfterTTL(t *testing.T) {
	c, fc, now := newTestCache([]string{"yo"})
	ctx := context.Background()

	if _, err := c.Prompt(ctx); err != nil {
		t.Fatalf("prompt: %v", err)
	}
	firstGen := c.GeneratedAt()

	*now = now.Add(6 * time.Minute)

	if _, err := c.Prompt(ctx); err != nil {
		t.Fatalf("prompt: %v", err)
	}

	if fc.reads != 2 {
		t.Errorf("corpus reads = %d, want 2 (TTL expiry must recompute)", fc.reads)
	}
	if !c.GeneratedAt().After(firstGen) {
		t.Error("GeneratedAt did not advance after recomputation")
	}
}

func TestInvalidateForcesRecompute(t *testing.T) {
	c, fc, _ := newTestCache([]string{"yo"})
	ctx := context.Background()

	if _, err := c.Prompt(ctx); err != nil {
		t.Fatalf("prompt: %v", err)
	}

	fc.examples = append(fc.examples, "new style")
	c.Invalidate()

	got, err := c.Prompt(ctx)
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}

	if fc.reads != 2 {
		t.Errorf("corpus reads = %d, want 2 (invalidate must recompute)", fc.reads)
	}
	if !strings.Contains(got, "new style") {
		t.Error("recomputed prompt does not reflect the new corpus entry")
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	examples := []string{"крч го", "норм"}

	a := BuildPrompt("tester", examples)
	b := BuildPrompt("tester", examples)
	if a != b {
		t.Error("BuildPrompt is not deterministic")
	}
	if !strings.Contains(a, "@tester") {
		t.Error("prompt does not mention the owner")
	}
	for _, example := range examples {
		if !strings.Contains(a, example) {
			t.Errorf("prompt does not embed example %q", example)
		}
	}
}

func TestBuildPromptCapsExamples(t *testing.T) {
	var examples []string
	for i := 0; i < 50; i++ {
		examples = append(examples, fmt.Sprintf("example-%d", i))
	}

	prompt := BuildPrompt("tester", examples)

	if !strings.Contains(prompt, "example-29") {
		t.Error("prompt is missing the last embeddable example")
	}
	if strings.Contains(prompt, "example-30") {
		t.Error("prompt embeds more examples than the cap allows")
	}
}

func TestBuildPromptEmptyCorpus(t *testing.T) {
	if got := BuildPrompt("tester", nil); got != fallbackPrompt {
		t.Errorf("empty corpus prompt = %q, want the fallback", got)
	}
}
