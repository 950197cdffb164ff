// internal/infra/telegram/client.go
package telegram

import (
	"gopkg.in/telebot.v3"
)

// Sender is the part of *telebot.Bot the adapter needs.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelebotAdapter implements the domain Client interface using gopkg.in/telebot.v3.
type TelebotAdapter struct {
	bot Sender
}

func NewTelebotAdapter(b Sender) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends a text message to a chat, group or channel.
func (tba *TelebotAdapter) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}

	_, err := tba.bot.Send(telebot.ChatID(chatID), text, options)
	return err
}
