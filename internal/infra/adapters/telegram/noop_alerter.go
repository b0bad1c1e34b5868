package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"homeaura-subscription/internal/domain/ports/adapter"
)

var _ adapter.OpsAlerter = (*NoopAlerter)(nil)

// NoopAlerter logs alerts when no Telegram token is configured.
type NoopAlerter struct {
	log *zerolog.Logger
}

func NewNoopAlerter(logger *zerolog.Logger) *NoopAlerter {
	l := logger.With().Str("component", "NoopAlerter").Logger()
	return &NoopAlerter{log: &l}
}

func (n *NoopAlerter) Alert(ctx context.Context, text string) error {
	n.log.Warn().Str("alert", text).Msg("ops alert")
	return nil
}
