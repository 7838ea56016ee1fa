// Package mail sends account notification emails. Delivery is best-effort:
// callers log failures and never propagate them into request results.
package mail

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// Notifier is the email collaborator consumed by the credential store.
type Notifier interface {
	PasswordChanged(to string, userAgent string) error
	AccountLocked(to string, until time.Time) error
}

// Sender delivers notifications over SMTP via gomail.
type Sender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSender constructs a Sender for the given SMTP endpoint.
func NewSender(host string, port int, username, password, from string) *Sender {
	return &Sender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *Sender) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	return s.dialer.DialAndSend(m)
}

// PasswordChanged notifies the account owner that the password (and the
// derivation parameters) were replaced.
func (s *Sender) PasswordChanged(to string, userAgent string) error {
	body := "Your account password was changed."
	if userAgent != "" {
		body = fmt.Sprintf("%s\n\nDevice: %s", body, userAgent)
	}
	return s.send(to, "Your password has been changed", body)
}

// AccountLocked notifies the account owner that repeated failed sign-in
// attempts locked the account.
func (s *Sender) AccountLocked(to string, until time.Time) error {
	body := fmt.Sprintf(
		"Too many failed sign-in attempts. Your account is locked until %s.",
		until.UTC().Format(time.RFC1123))
	return s.send(to, "Account temporarily locked", body)
}

// NopNotifier is used when no SMTP host is configured.
type NopNotifier struct{}

func (NopNotifier) PasswordChanged(string, string) error  { return nil }
func (NopNotifier) AccountLocked(string, time.Time) error { return nil }
