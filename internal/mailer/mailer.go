// FilePath: internal/mailer/mailer.go

// Package mailer is an explicitly constructed SMTP client. It is created
// once at startup and injected into the services that send mail; there is
// no lazily initialized module-level transporter.
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/opensensemap/osem/internal/config"
)

// Mailer handles sending emails
type Mailer struct {
	cfg config.SMTPConfig
}

// New creates a new Mailer instance
func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Enabled reports whether SMTP is configured; an unconfigured mailer turns
// every send into a no-op so transfer flows still work in development.
func (m *Mailer) Enabled() bool {
	return m.cfg.Host != ""
}

// SendTransferCreated notifies the box owner that a transfer token exists.
func (m *Mailer) SendTransferCreated(toEmail, boxName, token string, validHours int) error {
	subject := fmt.Sprintf("openSenseMap - transfer token for %q created", boxName)
	body, err := renderTemplate(transferCreatedTmpl, map[string]interface{}{
		"BoxName":    boxName,
		"Token":      token,
		"ValidHours": validHours,
	})
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}
	return m.send(toEmail, subject, body)
}

// SendTransferCompleted notifies the new owner that the box is theirs.
func (m *Mailer) SendTransferCompleted(toEmail, boxName string) error {
	subject := fmt.Sprintf("openSenseMap - %q now belongs to you", boxName)
	body, err := renderTemplate(transferCompletedTmpl, map[string]interface{}{
		"BoxName": boxName,
	})
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}
	return m.send(toEmail, subject, body)
}

// send delivers an email via SMTP
func (m *Mailer) send(to, subject, htmlBody string) error {
	if !m.Enabled() {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", m.cfg.FromName, m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func renderTemplate(tmpl string, data map[string]interface{}) (string, error) {
	t, err := template.New("mail").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const transferCreatedTmpl = `<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;">
	<h2>Transfer token created</h2>
	<p>A transfer token was created for your device <strong>{{.BoxName}}</strong>.</p>
	<p>Share this token with the new owner:</p>
	<p style="font-family:monospace;font-size:20px;">{{.Token}}</p>
	<p>The token expires in {{.ValidHours}} hours. If you did not request a
	transfer, revoke the token in your device settings.</p>
</body>
</html>`

const transferCompletedTmpl = `<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;">
	<h2>Device transferred</h2>
	<p>The device <strong>{{.BoxName}}</strong> has been transferred to your
	account. Its sensors and measurement history are now managed by you.</p>
</body>
</html>`
