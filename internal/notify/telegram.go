package notify

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier forwards error and warning notifications to an operator
// chat. Lower severities stay local; the chat is an alert channel, not a log.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zerolog.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram notifier: %w", err)
	}
	return &TelegramNotifier{api: api, chatID: chatID, logger: logger}, nil
}

func (n *TelegramNotifier) Notify(message string, severity Severity, duration time.Duration) {
	if n == nil || n.api == nil {
		return
	}
	if severity != SeverityError && severity != SeverityWarning {
		return
	}

	prefix := "⚠️"
	if severity == SeverityError {
		prefix = "❌"
	}

	msg := tgbotapi.NewMessage(n.chatID, fmt.Sprintf("%s %s", prefix, message))
	if _, err := n.api.Send(msg); err != nil {
		n.logger.Error().Err(err).Msg("failed to send telegram notification")
	}
}
