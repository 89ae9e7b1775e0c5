package infra

import (
	"fmt"
	"net/smtp"

	"vendapos/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer sends receipt copies with the rendered PDF attached.
type Mailer struct {
	host     string
	user     string
	password string
	from     string
	addr     string
}

func NewMailer(cfg *config.Config) *Mailer {
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     from,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

// SendReceipt mails one receipt. pdfPath may be empty.
func (m *Mailer) SendReceipt(to, subject, body, pdfPath string) error {
	e, err := m.compose(to, subject, body, pdfPath)
	if err != nil {
		return err
	}
	// relays on the shop network usually take mail without login
	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	if err := e.Send(m.addr, auth); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}

func (m *Mailer) compose(to, subject, body, pdfPath string) (*email.Email, error) {
	e := email.NewEmail()
	e.From = m.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	if pdfPath != "" {
		if _, err := e.AttachFile(pdfPath); err != nil {
			return nil, fmt.Errorf("mailer: attach PDF: %w", err)
		}
	}
	return e, nil
}
