package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"homeaura-subscription/internal/config"
	"homeaura-subscription/internal/domain/ports/adapter"
)

var _ adapter.OpsAlerter = (*OpsAlerter)(nil)

// BotSender is the slice of *tgbotapi.BotAPI the alerter needs.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// OpsAlerter fans short operator alerts out to the configured chats.
type OpsAlerter struct {
	bot     BotSender
	chatIDs []int64
	prefix  string
	log     *zerolog.Logger
}

func NewOpsAlerter(cfg config.TelegramConfig, service string, logger *zerolog.Logger) (*OpsAlerter, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return NewOpsAlerterWithBot(bot, cfg.ChatIDs, service, logger), nil
}

func NewOpsAlerterWithBot(bot BotSender, chatIDs []int64, service string, logger *zerolog.Logger) *OpsAlerter {
	l := logger.With().Str("component", "OpsAlerter").Logger()
	return &OpsAlerter{bot: bot, chatIDs: chatIDs, prefix: "[" + service + "] ", log: &l}
}

// Alert sends text to every chat and joins the per-chat errors.
func (a *OpsAlerter) Alert(ctx context.Context, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var errs []error
	for _, id := range a.chatIDs {
		msg := tgbotapi.NewMessage(id, a.prefix+strings.TrimSpace(text))
		msg.DisableWebPagePreview = true
		if _, err := a.bot.Send(msg); err != nil {
			a.log.Warn().Err(err).Int64("chat_id", id).Msg("alert not delivered")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
