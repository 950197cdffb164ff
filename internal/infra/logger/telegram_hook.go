package logger

import (
	"fmt"
	"strings"

	domainTelegram "review_notification_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

const (
	errorPrefix       = "А у бота ошибка!"
	maxTelegramLength = 4096
)

// TelegramHook mirrors log entries into a Telegram chat.
type TelegramHook struct {
	client domainTelegram.Client
	chatID int64
	levels []logrus.Level
}

// NewTelegramHook forwards entries at minLevel and more severe.
func NewTelegramHook(client domainTelegram.Client, chatID int64, minLevel logrus.Level) *TelegramHook {
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, l := range logrus.AllLevels {
		if l <= minLevel {
			levels = append(levels, l)
		}
	}
	return &TelegramHook{client: client, chatID: chatID, levels: levels}
}

func (h *TelegramHook) Levels() []logrus.Level {
	return h.levels
}

// Fire never returns an error: a failed alert must not turn into another log line.
func (h *TelegramHook) Fire(entry *logrus.Entry) error {
	_ = h.client.SendMessage(h.chatID, formatEntry(entry), nil)
	return nil
}

func formatEntry(entry *logrus.Entry) string {
	var b strings.Builder
	if entry.Level <= logrus.ErrorLevel {
		b.WriteString(errorPrefix)
		b.WriteString("\n")
	}
	b.WriteString(entry.Message)
	if err, ok := entry.Data[logrus.ErrorKey]; ok {
		fmt.Fprintf(&b, "\n%v", err)
	}

	text := b.String()
	if runes := []rune(text); len(runes) > maxTelegramLength {
		text = string(runes[:maxTelegramLength])
	}
	return text
}
