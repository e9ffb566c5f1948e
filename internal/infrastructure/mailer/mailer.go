package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"mealrun/internal/config"
	"mealrun/internal/notify"
)

// Mailer is the SMTP-backed delivery OTP channel.
type Mailer struct {
	client *mail.Client
	from   string
}

var _ notify.OtpNotifier = (*Mailer)(nil)

func New(cfg config.MailConfig) (*Mailer, error) {
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
			mail.WithTLSPolicy(mail.TLSMandatory),
		)
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}
	return &Mailer{client: client, from: cfg.From}, nil
}

func (m *Mailer) SendDeliveryOtp(ctx context.Context, recipient, orderID, otp string, expiresAt time.Time) error {
	msg, err := BuildOtpMessage(m.from, recipient, orderID, otp, expiresAt)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending otp mail: %w", err)
	}
	return nil
}

func BuildOtpMessage(from, to, orderID, otp string, expiresAt time.Time) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("setting sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting recipient: %w", err)
	}
	msg.Subject("Your delivery code")
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Share this code with your delivery partner to receive order %s: %s\n\nThe code is valid until %s.\n",
		shortID(orderID), otp, expiresAt.UTC().Format("15:04 MST, 02 Jan 2006"),
	))
	return msg, nil
}

func shortID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}
