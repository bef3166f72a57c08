// Package mailer sends transactional email over SMTP.
package mailer

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/hntran/storefront/internal/domain/order"
)

// Config holds SMTP connection and sender settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

// SMTPMailer sends order confirmations through an SMTP relay.
type SMTPMailer struct {
	cfg    Config
	dialer *gomail.Dialer
}

// New creates an SMTPMailer from the given config.
func New(cfg Config) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// SendOrderConfirmation emails the customer a summary of their paid order.
func (s *SMTPMailer) SendOrderConfirmation(_ context.Context, o *order.Order) error {
	subject := fmt.Sprintf("Order %s confirmed", o.Code)

	var lines strings.Builder
	for _, l := range o.Lines {
		fmt.Fprintf(&lines, "<li>Product %d &times; %d at %s</li>", l.ProductID, l.Quantity, l.UnitPrice)
	}

	htmlBody := fmt.Sprintf(`
		<html>
		<body>
			<h2>Thank you for your order, %s!</h2>
			<p>Your order <b>%s</b> has been confirmed.</p>
			<ul>%s</ul>
			<p>Subtotal: %s<br>Discount: %s<br><b>Total: %s</b></p>
			<p>We will deliver to: %s</p>
		</body>
		</html>
	`, o.CustomerName, o.Code, lines.String(), o.Subtotal, o.Discount, o.Total, o.Address)

	plainBody := fmt.Sprintf(`
Thank you for your order, %s!

Your order %s has been confirmed.

Subtotal: %s
Discount: %s
Total: %s

We will deliver to: %s
	`, o.CustomerName, o.Code, o.Subtotal, o.Discount, o.Total, o.Address)

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.FromAddress, s.cfg.FromName))
	m.SetHeader("To", o.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plainBody)
	m.AddAlternative("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
