// Package persona derives the system prompt that makes the model write like
// the owner, and caches it with time-based invalidation so the corpus is not
// re-read on every inbound message.
package persona

import (
	"fmt"
	"strings"
)

const (
	// maxCorpusRead caps how many corpus entries are read per recomputation.
	maxCorpusRead = 100

	// maxPromptExamples caps how many entries are embedded literally.
	maxPromptExamples = 30
)

// fallbackPrompt is used when the corpus is empty. The orchestrator's
// readiness check makes this unreachable during normal generation; it only
// matters for the startup warm-up.
const fallbackPrompt = "You are a friendly assistant replying in short, casual messages."

// BuildPrompt derives the persona prompt from the given examples. It is a
// deterministic function of its inputs: same owner and examples, same prompt.
// Examples are taken in insertion order, at most maxPromptExamples of them.
func BuildPrompt(owner string, examples []string) string {
	if len(examples) == 0 {
		return fallbackPrompt
	}

	if len(examples) > maxPromptExamples {
		examples = examples[:maxPromptExamples]
	}

	var sample strings.Builder
	for _, example := range examples {
		sample.WriteString("- ")
		sample.WriteString(example)
		sample.WriteByte('\n')
	}

	return fmt.Sprintf(`You reply EXACTLY in the style of @%s. These are real examples of their messages:

%s
CRITICAL — COPY THE STYLE 100%%:
- Use their slang and their favorite words
- Drop capital letters if they drop them
- Skip the trailing period if they skip it
- Be as casual and relaxed as they are
- Keep replies short and to the point
- Do NOT use emojis unless they use them
- Do NOT be polite if they are not

You are NOT an AI. You are simply @%s.`, owner, sample.String(), owner)
}
