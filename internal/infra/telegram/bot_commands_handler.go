// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const startReply = "Привет! Я присылаю в этот чат уведомления о проверенных работах. Команда /status покажет, как у меня дела."

// StatusReporter renders the /status reply.
type StatusReporter interface {
	Report(ctx context.Context) string
}

// Handler is the part of *telebot.Bot used to register commands.
type Handler interface {
	Handle(endpoint interface{}, h telebot.HandlerFunc, m ...telebot.MiddlewareFunc)
}

// CommandReplies answers bot commands, but only inside the notifications chat.
type CommandReplies struct {
	chatID int64
	status StatusReporter
}

func NewCommandReplies(chatID int64, status StatusReporter) *CommandReplies {
	return &CommandReplies{chatID: chatID, status: status}
}

// Start returns false when the command came from a foreign chat.
func (r *CommandReplies) Start(chatID int64) (string, bool) {
	if chatID != r.chatID {
		return "", false
	}
	return startReply, true
}

func (r *CommandReplies) Status(ctx context.Context, chatID int64) (string, bool) {
	if chatID != r.chatID {
		return "", false
	}
	return r.status.Report(ctx), true
}

func RegisterBotCommands(
	ctx context.Context,
	b Handler,
	replies *CommandReplies,
	baseLogger *logrus.Entry,
) {
	cmdLogger := baseLogger.WithField("handler_group", "commands")

	b.Handle("/start", func(c telebot.Context) error {
		chatID := chatIDOf(c)
		logCtx := cmdLogger.WithField("command", "/start").WithField("chat_id", chatID)

		text, ok := replies.Start(chatID)
		if !ok {
			logCtx.Debug("Ignoring command from a foreign chat")
			return nil
		}
		logCtx.Info("Processing /start command")
		return c.Send(text)
	})

	b.Handle("/status", func(c telebot.Context) error {
		chatID := chatIDOf(c)
		logCtx := cmdLogger.WithField("command", "/status").WithField("chat_id", chatID)

		text, ok := replies.Status(ctx, chatID)
		if !ok {
			logCtx.Debug("Ignoring command from a foreign chat")
			return nil
		}
		logCtx.Info("Processing /status command")
		return c.Send(text)
	})
}

func chatIDOf(c telebot.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	return 0
}
