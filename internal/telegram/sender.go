package telegram

import (
	"context"

	"github.com/inkonio/doppelbot/internal/engine"
)

// BusinessSender delivers outbound messages on behalf of a business
// connection's owner.
type BusinessSender struct {
	client *Client
}

var _ engine.Sender = (*BusinessSender)(nil)

// NewBusinessSender creates a BusinessSender backed by the given client.
func NewBusinessSender(client *Client) *BusinessSender {
	return &BusinessSender{client: client}
}

// SendText sends text to a chat through the business connection.
func (s *BusinessSender) SendText(ctx context.Context, connectionID string, chatID int64, text string) error {
	_, err := s.client.SendMessage(ctx, SendMessageRequest{
		ChatID:               chatID,
		Text:                 text,
		BusinessConnectionID: connectionID,
	})
	return err
}

// SendTyping shows a typing indicator in the chat through the business connection.
func (s *BusinessSender) SendTyping(ctx context.Context, connectionID string, chatID int64) error {
	return s.client.SendChatAction(ctx, chatID, "typing", connectionID)
}
