package telegram

import "gopkg.in/telebot.v3"

// Client defines an interface for sending messages via a Telegram bot.
// Notifications, log alerts and command replies all go through one Client.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}
