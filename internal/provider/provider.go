// Package provider defines the contract for the text-generation backend.
// The concrete OpenAI-compatible client lives in provider/groq.
package provider

import "context"

// MessageRole identifies the sender of a message in a generation request.
type MessageRole string

// MessageRole constants.
const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is a single message in a generation request.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Request is the input to a Generate call: the persona system prompt,
// the recent conversation history, and the new inbound message, already
// assembled in order by the caller.
type Request struct {
	Messages []Message
}

// Generator is the interface for the stateless text-generation backend.
type Generator interface {
	// Generate performs one bounded-timeout completion call and returns the
	// generated text. There are no retries; any failure is returned as an
	// error classified by the sentinel errors in this package.
	Generate(ctx context.Context, req Request) (string, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}
