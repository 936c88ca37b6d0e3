package passwordreset

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"log/slog"
	texttemplate "text/template"
	"time"

	"github.com/tendant/simple-access/pkg/config"
	"github.com/wneessen/go-mail"
)

// ResetNotice is what a Notifier needs to deliver a reset link.
type ResetNotice struct {
	To        string
	Name      string
	Link      string
	ExpiresAt time.Time
}

// Notifier delivers password reset links.
type Notifier interface {
	SendPasswordReset(ctx context.Context, notice ResetNotice) error
}

const (
	resetSubject = "Password reset"

	resetText = `Hello {{.Name}},

Use the link below to choose a new password. It expires at {{.Expires}}.

{{.Link}}

If you did not ask for this, ignore this message.`

	resetHTML = `<p>Hello {{.Name}},</p>
<p>Use the link below to choose a new password. It expires at {{.Expires}}.</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>If you did not ask for this, ignore this message.</p>`
)

var (
	textTmpl = texttemplate.Must(texttemplate.New("text").Parse(resetText))
	htmlTmpl = template.Must(template.New("html").Parse(resetHTML))
)

type templateData struct {
	Name    string
	Link    string
	Expires string
}

// EmailNotifier sends reset links over SMTP.
type EmailNotifier struct {
	cfg    config.EmailConfig
	client *mail.Client
}

func NewEmailNotifier(cfg config.EmailConfig) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(30 * time.Second),
	}

	// Only add authentication if username and password are provided
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	if cfg.TLS {
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}),
			mail.WithTLSPolicy(mail.TLSMandatory),
		)
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	slog.Info("Created mail client", "host", cfg.Host, "port", cfg.Port, "tls", cfg.TLS)
	return &EmailNotifier{cfg: cfg, client: client}, nil
}

func (e *EmailNotifier) SendPasswordReset(ctx context.Context, n ResetNotice) error {
	if n.To == "" {
		return fmt.Errorf("email notification requires 'To' address")
	}

	msg, err := buildResetMessage(e.cfg.From, n)
	if err != nil {
		return err
	}
	if err := e.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	slog.Info("Password reset email sent", "host", e.cfg.Host)
	return nil
}

func buildResetMessage(from string, n ResetNotice) (*mail.Msg, error) {
	data := templateData{Name: n.Name, Link: n.Link, Expires: n.ExpiresAt.UTC().Format(time.RFC1123)}

	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("failed to render html template: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("failed to set from address: %w", err)
	}
	if err := msg.To(n.To); err != nil {
		return nil, fmt.Errorf("failed to set to address: %w", err)
	}
	msg.Subject(resetSubject)
	msg.SetBodyString(mail.TypeTextPlain, text.String())
	msg.AddAlternativeString(mail.TypeTextHTML, html.String())
	return msg, nil
}

// LogNotifier only logs that a link was issued. Used when SMTP is not configured.
type LogNotifier struct{}

func (LogNotifier) SendPasswordReset(ctx context.Context, n ResetNotice) error {
	slog.Warn("SMTP not configured, password reset link not delivered", "expires_at", n.ExpiresAt)
	return nil
}
