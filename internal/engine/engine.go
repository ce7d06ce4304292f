// Package engine orchestrates auto-replies: it resolves the business session,
// checks the readiness preconditions, assembles the generation request from
// the persona prompt and the conversation window, calls the backend once, and
// records the exchange. Backend failures are absorbed here into in-persona
// fallback replies; they never propagate to the transport.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/inkonio/doppelbot/internal/corpus"
	"github.com/inkonio/doppelbot/internal/history"
	"github.com/inkonio/doppelbot/internal/persona"
	"github.com/inkonio/doppelbot/internal/provider"
	"github.com/inkonio/doppelbot/internal/session"
	"github.com/inkonio/doppelbot/internal/store"
)

// Sender delivers outbound messages over a business connection.
type Sender interface {
	// SendText sends text to a chat on behalf of the connection's owner.
	SendText(ctx context.Context, connectionID string, chatID int64, text string) error

	// SendTyping shows a typing indicator in the chat. Best-effort.
	SendTyping(ctx context.Context, connectionID string, chatID int64) error
}

// Disposition is the terminal outcome of handling one inbound message.
type Disposition string

// Disposition constants.
const (
	// DispositionReplied means a generated reply was recorded and delivered.
	DispositionReplied Disposition = "replied"

	// DispositionFallback means the backend failed and a fixed fallback
	// reply was delivered; no turns were recorded.
	DispositionFallback Disposition = "fallback"

	// DispositionOwnerRecorded means the owner's own message was recorded
	// as context; no generation happened.
	DispositionOwnerRecorded Disposition = "owner_recorded"

	// DispositionDropped means the message was silently ignored.
	DispositionDropped Disposition = "dropped"
)

// defaultFallbackReplies are delivered in persona when the backend fails,
// so a hiccup reads like the owner being briefly distracted.
var defaultFallbackReplies = []string{
	"сорян, чёт тупанул",
	"ща, туплю что-то",
	"блин, отвлекли, позже отвечу норм",
}

// Config holds the orchestrator's tunables.
type Config struct {
	// MinCorpus is the minimum number of corpus examples required before
	// any reply is generated.
	MinCorpus int

	// HistoryLimit is how many recent turns are included in a generation
	// request.
	HistoryLimit int

	// FallbackReplies overrides the default fallback reply set.
	FallbackReplies []string
}

// withDefaults returns a copy of the config with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.MinCorpus <= 0 {
		c.MinCorpus = 10
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 15
	}
	if len(c.FallbackReplies) == 0 {
		c.FallbackReplies = defaultFallbackReplies
	}
	return c
}

// Engine is the reply orchestrator.
type Engine struct {
	sessions  *session.Registry
	corpus    *corpus.Corpus
	persona   *persona.Cache
	history   *history.Manager
	generator provider.Generator
	sender    Sender
	metrics   *Metrics
	logger    *slog.Logger
	config    Config
}

// New creates an Engine. All collaborators are required except logger.
func New(
	sessions *session.Registry,
	corp *corpus.Corpus,
	personaCache *persona.Cache,
	hist *history.Manager,
	generator provider.Generator,
	sender Sender,
	metrics *Metrics,
	logger *slog.Logger,
	cfg Config,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		sessions:  sessions,
		corpus:    corp,
		persona:   personaCache,
		history:   hist,
		generator: generator,
		sender:    sender,
		metrics:   metrics,
		logger:    logger.With("component", "engine"),
		config:    cfg.withDefaults(),
	}
}

// SessionOpened registers (or re-registers, overwriting the owner) an active
// business connection.
func (e *Engine) SessionOpened(ctx context.Context, connectionID string, ownerID int64) error {
	if err := e.sessions.Upsert(ctx, connectionID, ownerID); err != nil {
		return err
	}
	e.logger.Info("business connection opened",
		"connection", connectionID,
		"owner", ownerID,
		"sessions", e.sessions.Len(),
	)
	return nil
}

// SessionClosed removes a business connection. Closing an unknown connection
// is a no-op.
func (e *Engine) SessionClosed(ctx context.Context, connectionID string) error {
	if err := e.sessions.Remove(ctx, connectionID); err != nil {
		return err
	}
	e.logger.Info("business connection closed",
		"connection", connectionID,
		"sessions", e.sessions.Len(),
	)
	return nil
}

// HandleMessage runs one inbound business message through the reply state
// machine. Every path is terminal: the message is either answered (generated
// or fallback), recorded as owner context, or dropped.
//
// Backend failures are absorbed into a fallback reply. Store failures
// propagate: the exchange is abandoned but the process stays healthy.
func (e *Engine) HandleMessage(ctx context.Context, connectionID string, senderID, chatID int64, text string) (Disposition, error) {
	ownerID, ok := e.sessions.Resolve(connectionID)
	if !ok {
		e.metrics.drops.WithLabelValues(DropUnknownSession).Inc()
		e.logger.Debug("dropping message for unknown connection", "connection", connectionID)
		return DispositionDropped, nil
	}

	// The owner's own outgoing messages are context, not reply triggers.
	// They are recorded against the counterparty's chat.
	if senderID == ownerID {
		if err := e.history.AppendTurn(ctx, chatID, store.RoleAssistant, text); err != nil {
			return DispositionDropped, err
		}
		e.metrics.ownerTurns.Inc()
		return DispositionOwnerRecorded, nil
	}

	enabled, err := e.corpus.Enabled(ctx)
	if err != nil {
		return DispositionDropped, err
	}
	if !enabled {
		e.metrics.drops.WithLabelValues(DropDisabled).Inc()
		e.logger.Debug("dropping message, auto-replies disabled", "connection", connectionID)
		return DispositionDropped, nil
	}

	count, err := e.corpus.Count(ctx)
	if err != nil {
		return DispositionDropped, err
	}
	if count < e.config.MinCorpus {
		e.metrics.drops.WithLabelValues(DropCorpusNotReady).Inc()
		e.logger.Debug("dropping message, corpus below threshold",
			"count", count,
			"required", e.config.MinCorpus,
		)
		return DispositionDropped, nil
	}

	if err := e.sender.SendTyping(ctx, connectionID, chatID); err != nil {
		e.logger.Debug("typing indicator failed", "error", err)
	}

	prompt, err := e.persona.Prompt(ctx)
	if err != nil {
		return DispositionDropped, err
	}

	recent, err := e.history.Recent(ctx, chatID, e.config.HistoryLimit)
	if err != nil {
		return DispositionDropped, err
	}

	req := buildRequest(prompt, recent, text)

	start := time.Now()
	reply, genErr := e.generator.Generate(ctx, req)
	e.metrics.backendLatency.Observe(time.Since(start).Seconds())

	if genErr != nil {
		// History is only committed on a successful round-trip so a failed
		// generation never pollutes the window with a half-formed exchange.
		e.metrics.fallbacks.Inc()
		e.logger.Warn("generation failed, sending fallback",
			"connection", connectionID,
			"counterparty", chatID,
			"error", genErr,
		)
		fallback := e.config.FallbackReplies[rand.Intn(len(e.config.FallbackReplies))]
		if err := e.sender.SendText(ctx, connectionID, chatID, fallback); err != nil {
			return DispositionFallback, fmt.Errorf("engine: deliver fallback: %w", err)
		}
		return DispositionFallback, nil
	}

	// User turn first, then the assistant turn, to keep the log ordered.
	if err := e.history.AppendTurn(ctx, chatID, store.RoleUser, text); err != nil {
		return DispositionDropped, err
	}
	if err := e.history.AppendTurn(ctx, chatID, store.RoleAssistant, reply); err != nil {
		return DispositionDropped, err
	}

	if err := e.sender.SendText(ctx, connectionID, chatID, reply); err != nil {
		return DispositionReplied, fmt.Errorf("engine: deliver reply: %w", err)
	}

	e.metrics.replies.Inc()
	e.logger.Info("reply delivered",
		"connection", connectionID,
		"counterparty", chatID,
		"model", e.generator.ModelName(),
	)
	return DispositionReplied, nil
}

// buildRequest assembles the ordered generation request:
// [system persona][recent history][new user message].
func buildRequest(prompt string, recent []store.Turn, text string) provider.Request {
	messages := make([]provider.Message, 0, len(recent)+2)
	messages = append(messages, provider.Message{
		Role:    provider.MessageRoleSystem,
		Content: prompt,
	})
	for _, turn := range recent {
		role := provider.MessageRoleUser
		if turn.Role == store.RoleAssistant {
			role = provider.MessageRoleAssistant
		}
		messages = append(messages, provider.Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, provider.Message{
		Role:    provider.MessageRoleUser,
		Content: text,
	})
	return provider.Request{Messages: messages}
}
