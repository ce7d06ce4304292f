package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/inkonio/doppelbot/internal/corpus"
	"github.com/inkonio/doppelbot/internal/engine"
	"github.com/inkonio/doppelbot/internal/history"
	"github.com/inkonio/doppelbot/internal/persona"
	"github.com/inkonio/doppelbot/internal/provider"
	"github.com/inkonio/doppelbot/internal/provider/providertest"
	"github.com/inkonio/doppelbot/internal/session"
	"github.com/inkonio/doppelbot/internal/store/sqlite"
)

// apiRecorder is a fake Bot API server that records sendMessage calls and
// serves a canned file download.
type apiRecorder struct {
	mu       sync.Mutex
	sent     []SendMessageRequest
	fileBody string
}

func (a *apiRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var req SendMessageRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode sendMessage: %v", err)
			}
			a.mu.Lock()
			a.sent = append(a.sent, req)
			a.mu.Unlock()
			writeJSON(t, w, APIResponse[Message]{OK: true, Result: Message{MessageID: 1}})
		case strings.HasSuffix(r.URL.Path, "/sendChatAction"):
			writeJSON(t, w, APIResponse[bool]{OK: true, Result: true})
		case strings.HasSuffix(r.URL.Path, "/getFile"):
			writeJSON(t, w, APIResponse[File]{OK: true, Result: File{FileID: "f1", FilePath: "documents/export.json"}})
		case strings.Contains(r.URL.Path, "/file/"):
			_, _ = w.Write([]byte(a.fileBody))
		default:
			t.Errorf("unexpected API call: %s", r.URL.Path)
		}
	}
}

func (a *apiRecorder) sentMessages() []SendMessageRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]SendMessageRequest, len(a.sent))
	copy(out, a.sent)
	return out
}

type botFixture struct {
	bot      *Bot
	api      *apiRecorder
	corpus   *corpus.Corpus
	sessions *session.Registry
	store    *sqlite.Store
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()

	api := &apiRecorder{}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "bot.db"), 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	client := NewClient("TOKEN", srv.URL)
	sessions := session.NewRegistry(st, discardLogger())
	corp := corpus.New(st, st)
	cache := persona.NewCache(st, "inkonio", 0)
	hist := history.NewManager(st, history.Config{})
	generator := &providertest.MockGenerator{
		GenerateFunc: func(context.Context, provider.Request) (string, error) {
			return "generated", nil
		},
	}
	sender := NewBusinessSender(client)
	metrics := engine.NewMetrics(prometheus.NewRegistry())
	eng := engine.New(sessions, corp, cache, hist, generator, sender, metrics, discardLogger(), engine.Config{})

	bot := NewBot(client, eng, corp, cache, sessions, discardLogger(), "inkonio", 10)

	return &botFixture{bot: bot, api: api, corpus: corp, sessions: sessions, store: st}
}

func ownerMessage(text string) *Update {
	return &Update{
		UpdateID: 1,
		Message: &Message{
			From: &User{ID: 100, Username: "Inkonio"},
			Chat: Chat{ID: 100, Type: "private"},
			Text: text,
		},
	}
}

func TestBotIgnoresStrangers(t *testing.T) {
	f := newBotFixture(t)

	f.bot.HandleUpdate(context.Background(), &Update{
		Message: &Message{
			From: &User{ID: 999, Username: "stranger"},
			Chat: Chat{ID: 999, Type: "private"},
			Text: buttonEnable,
		},
	})

	if sent := f.api.sentMessages(); len(sent) != 0 {
		t.Errorf("bot replied to a stranger: %+v", sent)
	}
}

func TestBotEnableBelowThreshold(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, ownerMessage(buttonEnable))

	sent := f.api.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if !strings.Contains(sent[0].Text, "Сначала загрузи") {
		t.Errorf("reply = %q, want the not-ready warning", sent[0].Text)
	}
	enabled, err := f.corpus.Enabled(ctx)
	if err != nil {
		t.Fatalf("enabled: %v", err)
	}
	if enabled {
		t.Error("auto-replies were enabled below the corpus threshold")
	}
}

func TestBotUploadFlow(t *testing.T) {
	f := newBotFixture(t)
	f.api.fileBody = `{"messages": [
		{"text": "раз"}, {"text": "два"}, {"text": "три"}, {"text": "четыре"}, {"text": "пять"},
		{"text": "шесть"}, {"text": "семь"}, {"text": "восемь"}, {"text": "девять"}, {"text": "десять"}
	]}`
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, ownerMessage(buttonUpload))

	upload := ownerMessage("")
	upload.Message.Document = &Document{FileID: "f1", FileName: "result.json"}
	f.bot.HandleUpdate(ctx, upload)

	count, err := f.corpus.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 10 {
		t.Errorf("corpus count = %d, want 10", count)
	}

	sent := f.api.sentMessages()
	last := sent[len(sent)-1]
	if !strings.Contains(last.Text, "Загружено 10") {
		t.Errorf("final reply = %q, want upload confirmation", last.Text)
	}
	if !strings.Contains(last.Text, "Можешь включать") {
		t.Errorf("final reply = %q, want the ready verdict", last.Text)
	}

	// Enabling now succeeds.
	f.bot.HandleUpdate(ctx, ownerMessage(buttonEnable))
	enabled, err := f.corpus.Enabled(ctx)
	if err != nil {
		t.Fatalf("enabled: %v", err)
	}
	if !enabled {
		t.Error("auto-replies were not enabled with a ready corpus")
	}
}

func TestBotUploadRejectsNonJSON(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, ownerMessage(buttonUpload))

	upload := ownerMessage("")
	upload.Message.Document = &Document{FileID: "f1", FileName: "photo.png"}
	f.bot.HandleUpdate(ctx, upload)

	sent := f.api.sentMessages()
	last := sent[len(sent)-1]
	if !strings.Contains(last.Text, "Нужен JSON") {
		t.Errorf("reply = %q, want the file type warning", last.Text)
	}
	count, err := f.corpus.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("corpus count = %d after a rejected file, want 0", count)
	}
}

func TestBotCancelResetsUploadState(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, ownerMessage(buttonUpload))
	f.bot.HandleUpdate(ctx, ownerMessage("/cancel"))

	// A document after cancel is not treated as an upload.
	upload := ownerMessage("")
	upload.Message.Document = &Document{FileID: "f1", FileName: "result.json"}
	f.bot.HandleUpdate(ctx, upload)

	count, err := f.corpus.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("corpus count = %d after cancel, want 0", count)
	}
}

func TestBotClearDisablesAutoReplies(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	if _, err := f.corpus.Append(ctx, []string{"a", "b", "c"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := f.corpus.SetEnabled(ctx, true); err != nil {
		t.Fatalf("enable: %v", err)
	}

	f.bot.HandleUpdate(ctx, ownerMessage(buttonClear))

	count, err := f.corpus.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("corpus count = %d after clear, want 0", count)
	}
	enabled, err := f.corpus.Enabled(ctx)
	if err != nil {
		t.Fatalf("enabled: %v", err)
	}
	if enabled {
		t.Error("auto-replies still enabled after clear")
	}
}

func TestBotBusinessConnectionLifecycle(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, &Update{
		BusinessConnection: &BusinessConnection{ID: "conn-1", User: User{ID: 100}, IsEnabled: true},
	})
	if _, ok := f.sessions.Resolve("conn-1"); !ok {
		t.Fatal("session not registered on connection")
	}

	f.bot.HandleUpdate(ctx, &Update{
		BusinessConnection: &BusinessConnection{ID: "conn-1", User: User{ID: 100}, IsEnabled: false},
	})
	if _, ok := f.sessions.Resolve("conn-1"); ok {
		t.Fatal("session still registered after disconnect")
	}
}

func TestBotBusinessMessageProducesReply(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, &Update{
		BusinessConnection: &BusinessConnection{ID: "conn-1", User: User{ID: 100}, IsEnabled: true},
	})
	var examples []string
	for i := 0; i < 10; i++ {
		examples = append(examples, "пример")
	}
	if _, err := f.corpus.Append(ctx, examples); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := f.corpus.SetEnabled(ctx, true); err != nil {
		t.Fatalf("enable: %v", err)
	}

	f.bot.HandleUpdate(ctx, &Update{
		BusinessMessage: &Message{
			From:                 &User{ID: 555},
			Chat:                 Chat{ID: 555, Type: "private"},
			Text:                 "привет",
			BusinessConnectionID: "conn-1",
		},
	})

	sent := f.api.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1 business reply", len(sent))
	}
	if sent[0].BusinessConnectionID != "conn-1" {
		t.Errorf("BusinessConnectionID = %q, want conn-1", sent[0].BusinessConnectionID)
	}
	if sent[0].Text != "generated" {
		t.Errorf("Text = %q, want %q", sent[0].Text, "generated")
	}
}
