package telegram

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/inkonio/doppelbot/internal/corpus"
	"github.com/inkonio/doppelbot/internal/engine"
	"github.com/inkonio/doppelbot/internal/export"
	"github.com/inkonio/doppelbot/internal/persona"
	"github.com/inkonio/doppelbot/internal/session"
)

// Owner keyboard buttons.
const (
	buttonStatus  = "📝 Статус"
	buttonUpload  = "📤 Загрузить чаты"
	buttonClear   = "🗑 Очистить чаты"
	buttonEnable  = "✅ Включить"
	buttonDisable = "❌ Выключить"
)

// Bot routes incoming updates: business events go to the reply engine,
// messages from the owner's private chat drive the control keyboard.
type Bot struct {
	client    *Client
	engine    *engine.Engine
	corpus    *corpus.Corpus
	persona   *persona.Cache
	sessions  *session.Registry
	logger    *slog.Logger
	owner     string
	minCorpus int

	mu             sync.Mutex
	awaitingUpload map[int64]bool
}

// NewBot creates a Bot. owner is the Telegram username allowed to use the
// control keyboard, compared case-insensitively.
func NewBot(client *Client, eng *engine.Engine, corp *corpus.Corpus, personaCache *persona.Cache, sessions *session.Registry, logger *slog.Logger, owner string, minCorpus int) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if minCorpus <= 0 {
		minCorpus = 10
	}
	return &Bot{
		client:         client,
		engine:         eng,
		corpus:         corp,
		persona:        personaCache,
		sessions:       sessions,
		logger:         logger.With("component", "bot"),
		owner:          owner,
		minCorpus:      minCorpus,
		awaitingUpload: make(map[int64]bool),
	}
}

// HandleUpdate dispatches a single update.
func (b *Bot) HandleUpdate(ctx context.Context, update *Update) {
	switch {
	case update.BusinessConnection != nil:
		b.handleBusinessConnection(ctx, update.BusinessConnection)
	case update.BusinessMessage != nil:
		b.handleBusinessMessage(ctx, update.BusinessMessage)
	case update.Message != nil:
		b.handleOwnerMessage(ctx, update.Message)
	}
}

func (b *Bot) handleBusinessConnection(ctx context.Context, conn *BusinessConnection) {
	var err error
	if conn.IsEnabled {
		err = b.engine.SessionOpened(ctx, conn.ID, conn.User.ID)
	} else {
		err = b.engine.SessionClosed(ctx, conn.ID)
	}
	if err != nil {
		b.logger.Error("business connection update failed",
			"connection_id", conn.ID,
			"enabled", conn.IsEnabled,
			"error", err,
		)
	}
}

func (b *Bot) handleBusinessMessage(ctx context.Context, msg *Message) {
	if msg.Text == "" || msg.From == nil {
		return
	}
	disposition, err := b.engine.HandleMessage(ctx, msg.BusinessConnectionID, msg.From.ID, msg.Chat.ID, msg.Text)
	if err != nil {
		b.logger.Error("business message failed",
			"connection_id", msg.BusinessConnectionID,
			"chat_id", msg.Chat.ID,
			"error", err,
		)
		return
	}
	b.logger.Debug("business message handled",
		"connection_id", msg.BusinessConnectionID,
		"chat_id", msg.Chat.ID,
		"disposition", disposition,
	)
}

// handleOwnerMessage processes the control keyboard in the owner's private chat.
func (b *Bot) handleOwnerMessage(ctx context.Context, msg *Message) {
	if msg.From == nil || msg.Chat.Type != "private" {
		return
	}
	if !strings.EqualFold(msg.From.Username, b.owner) {
		return
	}

	chatID := msg.Chat.ID

	if msg.Document != nil && b.awaiting(chatID) {
		b.handleUploadedDocument(ctx, chatID, msg.Document)
		return
	}

	switch msg.Text {
	case "/start":
		b.reply(ctx, chatID, fmt.Sprintf(
			"Йоу @%s! 👋\n\n"+
				"Это твой бот-дублер для Telegram Business.\n\n"+
				"📋 Что умею:\n"+
				"• Учусь на твоих чатах (JSON)\n"+
				"• Отвечаю вместо тебя в твоем стиле\n"+
				"• Сохраняю всё в базу 💾\n\n"+
				"Используй кнопки ниже ⬇️", b.owner), true)
	case "/cancel":
		b.setAwaiting(chatID, false)
		b.reply(ctx, chatID, "❌ Отменено", true)
	case buttonStatus:
		b.replyStatus(ctx, chatID)
	case buttonUpload:
		b.setAwaiting(chatID, true)
		b.reply(ctx, chatID,
			"📤 Отправь JSON файлы с экспортом твоих чатов.\n\n"+
				"Как экспортировать:\n"+
				"1. Telegram Desktop → диалог\n"+
				"2. Три точки → Export chat history\n"+
				"3. Format: JSON\n"+
				"4. Отправь файлы сюда\n\n"+
				"Отправь /cancel чтобы отменить", false)
	case buttonClear:
		b.handleClear(ctx, chatID)
	case buttonEnable:
		b.handleEnable(ctx, chatID)
	case buttonDisable:
		b.handleDisable(ctx, chatID)
	}
}

func (b *Bot) replyStatus(ctx context.Context, chatID int64) {
	count, err := b.corpus.Count(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	enabled, err := b.corpus.Enabled(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}

	enabledText := "❌ ВЫКЛ"
	if enabled {
		enabledText = "✅ ВКЛ"
	}
	readiness := "⚠️ Нужно минимум " + fmt.Sprint(b.minCorpus)
	if count >= b.minCorpus {
		readiness = "✅ Готов"
	}

	var connDetails strings.Builder
	for connID, ownerID := range b.sessions.Snapshot() {
		tail := connID
		if len(tail) > 10 {
			tail = tail[len(tail)-10:]
		}
		fmt.Fprintf(&connDetails, "\n  • ...%s → %d", tail, ownerID)
	}

	b.reply(ctx, chatID, fmt.Sprintf(
		"📊 Статус бота:\n\n"+
			"💾 Сообщений в БД: %d\n"+
			"Готовность: %s\n"+
			"Автоответы: %s\n"+
			"Бизнес-подключений: %d%s",
		count, readiness, enabledText, b.sessions.Len(), connDetails.String()), true)
}

func (b *Bot) handleUploadedDocument(ctx context.Context, chatID int64, doc *Document) {
	if !strings.HasSuffix(strings.ToLower(doc.FileName), ".json") {
		b.reply(ctx, chatID, "⚠️ Нужен JSON файл!", false)
		return
	}

	b.reply(ctx, chatID, "⏳ Обрабатываю...", false)

	file, err := b.client.GetFile(ctx, doc.FileID)
	if err != nil {
		b.setAwaiting(chatID, false)
		b.replyError(ctx, chatID, err)
		return
	}
	data, err := b.client.DownloadFile(ctx, file.FilePath)
	if err != nil {
		b.setAwaiting(chatID, false)
		b.replyError(ctx, chatID, err)
		return
	}

	texts, err := export.Parse(bytes.NewReader(data))
	if err != nil {
		b.setAwaiting(chatID, false)
		b.replyError(ctx, chatID, err)
		return
	}
	if len(texts) == 0 {
		b.setAwaiting(chatID, false)
		b.reply(ctx, chatID, "⚠️ Не нашел сообщений в файле", true)
		return
	}

	total, err := b.corpus.Append(ctx, texts)
	if err != nil {
		b.setAwaiting(chatID, false)
		b.replyError(ctx, chatID, err)
		return
	}
	b.persona.Invalidate()
	b.setAwaiting(chatID, false)

	verdict := "⚠️ Нужно еще примеров"
	if total >= b.minCorpus {
		verdict = "✅ Можешь включать автоответы!"
	}
	b.reply(ctx, chatID, fmt.Sprintf(
		"✅ Загружено %d сообщений!\n💾 Всего в БД: %d\n\n%s",
		len(texts), total, verdict), true)
}

func (b *Bot) handleClear(ctx context.Context, chatID int64) {
	if err := b.corpus.Clear(ctx); err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	b.persona.Invalidate()
	b.reply(ctx, chatID, "🗑 Все сообщения удалены!\nАвтоответы выключены.", true)
}

func (b *Bot) handleEnable(ctx context.Context, chatID int64) {
	count, err := b.corpus.Count(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	if count < b.minCorpus {
		b.reply(ctx, chatID, fmt.Sprintf(
			"⚠️ Сначала загрузи чаты!\nСейчас: %d сообщений\nНужно минимум: %d",
			count, b.minCorpus), true)
		return
	}
	if err := b.corpus.SetEnabled(ctx, true); err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	b.reply(ctx, chatID,
		"✅ Автоответы ВКЛЮЧЕНЫ!\n\n"+
			"Теперь когда тебе пишут в Telegram Business - я отвечаю за тебя 😎", true)
}

func (b *Bot) handleDisable(ctx context.Context, chatID int64) {
	if err := b.corpus.SetEnabled(ctx, false); err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	b.reply(ctx, chatID, "❌ Автоответы ВЫКЛЮЧЕНЫ", true)
}

// reply sends text to the owner chat, attaching the main keyboard when asked.
func (b *Bot) reply(ctx context.Context, chatID int64, text string, keyboard bool) {
	req := SendMessageRequest{ChatID: chatID, Text: text}
	if keyboard {
		req.ReplyMarkup = mainKeyboard()
	}
	if _, err := b.client.SendMessage(ctx, req); err != nil {
		b.logger.Error("owner reply failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) replyError(ctx context.Context, chatID int64, err error) {
	b.logger.Error("owner command failed", "chat_id", chatID, "error", err)
	b.reply(ctx, chatID, fmt.Sprintf("❌ Ошибка: %v", err), true)
}

func (b *Bot) awaiting(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.awaitingUpload[chatID]
}

func (b *Bot) setAwaiting(chatID int64, v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v {
		b.awaitingUpload[chatID] = true
	} else {
		delete(b.awaitingUpload, chatID)
	}
}

func mainKeyboard() *ReplyKeyboardMarkup {
	return &ReplyKeyboardMarkup{
		Keyboard: [][]KeyboardButton{
			{{Text: buttonStatus}},
			{{Text: buttonUpload}, {Text: buttonClear}},
			{{Text: buttonEnable}, {Text: buttonDisable}},
		},
		ResizeKeyboard: true,
	}
}
