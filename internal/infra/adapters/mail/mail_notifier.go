package mail

import (
	"context"
	"fmt"
	"html"
	"time"

	"homeaura-subscription/internal/config"
	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/domain/ports/adapter"
	"homeaura-subscription/internal/infra/logging"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

var _ adapter.Notifier = (*MailNotifier)(nil)

// Sender is satisfied by *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailNotifier sends subscription lifecycle emails over SMTP.
type MailNotifier struct {
	sender    Sender
	from      string
	publicURL string
	dev       bool
	log       *zerolog.Logger
}

func NewMailNotifier(cfg config.MailConfig, publicURL string, dev bool, logger *zerolog.Logger) *MailNotifier {
	return NewMailNotifierWithSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, publicURL, dev, logger)
}

func NewMailNotifierWithSender(sender Sender, from, publicURL string, dev bool, logger *zerolog.Logger) *MailNotifier {
	l := logger.With().Str("component", "MailNotifier").Logger()
	return &MailNotifier{sender: sender, from: from, publicURL: publicURL, dev: dev, log: &l}
}

func (n *MailNotifier) SubscriptionActivated(ctx context.Context, u *model.User) error {
	sub := u.Subscription
	if sub == nil {
		return nil
	}
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Your <b>%s</b> plan is active until %s. Owner contact details are now unlocked.</p>
<p><a href="%s/subscription">Manage your subscription</a></p>`,
		html.EscapeString(u.Name), html.EscapeString(sub.PlanName), formatDate(sub.EndDate), n.publicURL)
	return n.send(ctx, u, "Your subscription is active", body)
}

func (n *MailNotifier) SubscriptionRenewed(ctx context.Context, u *model.User) error {
	sub := u.Subscription
	if sub == nil {
		return nil
	}
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>We renewed your <b>%s</b> plan for ₹%d. It now runs until %s.</p>`,
		html.EscapeString(u.Name), html.EscapeString(sub.PlanName), sub.Price, formatDate(sub.EndDate))
	return n.send(ctx, u, "Your subscription was renewed", body)
}

func (n *MailNotifier) SubscriptionExpired(ctx context.Context, u *model.User, sub model.Subscription) error {
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Your <b>%s</b> plan expired on %s.</p>
<p><a href="%s/subscription">Choose a plan</a> to keep contacting property owners.</p>`,
		html.EscapeString(u.Name), html.EscapeString(sub.PlanName), formatDate(sub.EndDate), n.publicURL)
	return n.send(ctx, u, "Your subscription has expired", body)
}

func (n *MailNotifier) RenewalNotice(ctx context.Context, u *model.User, daysUntilRenewal int) error {
	sub := u.Subscription
	if sub == nil {
		return nil
	}
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Your <b>%s</b> plan renews automatically in %d day(s), on %s, for ₹%d.</p>
<p><a href="%s/subscription">Cancel auto-renewal</a> if you do not want to continue.</p>`,
		html.EscapeString(u.Name), html.EscapeString(sub.PlanName), daysUntilRenewal, formatDate(sub.EndDate), sub.Price, n.publicURL)
	return n.send(ctx, u, "Your subscription renews soon", body)
}

func (n *MailNotifier) send(ctx context.Context, u *model.User, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", u.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := n.sender.DialAndSend(m); err != nil {
		n.log.Error().Err(err).Str("to", logging.Redact(u.Email, n.dev)).Str("subject", subject).Msg("send failed")
		return fmt.Errorf("send %q: %w", subject, err)
	}
	n.log.Debug().Str("to", logging.Redact(u.Email, n.dev)).Str("subject", subject).Msg("sent")
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("02 Jan 2006")
}
