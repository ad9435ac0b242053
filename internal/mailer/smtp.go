package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	mail "gopkg.in/mail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPMailer struct {
	fromEmail string
	dialer    *mail.Dialer
	backoff   time.Duration
}

func NewSMTP(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("smtp host and from address are required")
	}

	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.Timeout = 10 * time.Second

	return &SMTPMailer{fromEmail: cfg.From, dialer: d, backoff: time.Second}, nil
}

func (m *SMTPMailer) Send(templateFile, username, email string, data any) (int, error) {
	msg, err := render(templateFile, data)
	if err != nil {
		return 0, fmt.Errorf("render %s: %w", templateFile, err)
	}

	out := mail.NewMessage()
	out.SetAddressHeader("From", m.fromEmail, FromName)
	out.SetAddressHeader("To", email, username)
	out.SetHeader("Subject", msg.subject)
	out.SetBody("text/plain", msg.plain)
	out.AddAlternative("text/html", msg.html)

	attempts := 0
	backoff := retry.WithMaxRetries(maxRetries-1, retry.NewExponential(m.backoff))
	err = retry.Do(context.Background(), backoff, func(context.Context) error {
		attempts++
		if err := m.dialer.DialAndSend(out); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return attempts, fmt.Errorf("failed to send email after %d attempts: %w", attempts, err)
	}
	return attempts, nil
}
