package adapter

import "context"

// OpsAlerter pushes short operator alerts (forged callbacks, sweep failures)
// to the team's Telegram chats.
type OpsAlerter interface {
	Alert(ctx context.Context, text string) error
}
