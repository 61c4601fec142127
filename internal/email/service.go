// Package email sends moderator notifications via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
)

// Config holds the SMTP endpoint and sender identity.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service sends mail through one configured SMTP account.
type Service struct {
	config Config
}

func NewService(config Config) *Service {
	return &Service{config: config}
}

// IsConfigured reports whether enough SMTP settings are present to send.
// Callers skip alerting entirely when it is false.
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// FlagAlert describes a post the word filters flagged for review.
type FlagAlert struct {
	PostID     int64
	AuthorName string
	Status     string
	Terms      []string
	Excerpt    string
}

// SendFlagAlert notifies the moderation address about a flagged post.
func (s *Service) SendFlagAlert(to string, alert FlagAlert) error {
	data := flagAlertData{
		AppName:    "Agora",
		PostID:     alert.PostID,
		AuthorName: alert.AuthorName,
		Status:     alert.Status,
		Terms:      strings.Join(alert.Terms, ", "),
		Excerpt:    alert.Excerpt,
	}

	html, err := renderTemplate(flagAlertEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render flag alert template: %w", err)
	}
	subject := fmt.Sprintf("Flagged post #%d awaiting review", alert.PostID)
	return s.send([]string{to}, subject, html)
}

// send delivers a multipart/alternative message with a plain-text fallback
// part ahead of the HTML body.
func (s *Service) send(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	var parts bytes.Buffer
	w := multipart.NewWriter(&parts)
	plain, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=UTF-8"}})
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	fmt.Fprint(plain, "Please view this message in an HTML-capable client.\r\n")
	htmlPart, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=UTF-8"}})
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	fmt.Fprint(htmlPart, htmlBody)
	if err := w.Close(); err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	from := mail.Address{Name: s.config.FromName, Address: s.config.From}
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from.String())
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", w.Boundary())
	msg.Write(parts.Bytes())

	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	return smtp.SendMail(s.config.Host+":"+s.config.Port, auth, s.config.From, to, msg.Bytes())
}

type flagAlertData struct {
	AppName    string
	PostID     int64
	AuthorName string
	Status     string
	Terms      string
	Excerpt    string
}

func renderTemplate(tmpl string, data any) (string, error) {
	t, err := template.New("alert").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const flagAlertEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Flagged post on {{.AppName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #b3541e; padding-bottom: 10px; margin-bottom: 20px; }
        .meta { background: #f6f6f6; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .excerpt { border-left: 3px solid #b3541e; padding-left: 12px; color: #555; font-style: italic; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Post #{{.PostID}} was flagged</h2>

    <p>A submission by <strong>{{.AuthorName}}</strong> matched one or more flag filters and is waiting in the moderation queue.</p>

    <div class="meta">
        <p><strong>Status:</strong> {{.Status}}</p>
        <p><strong>Matched terms:</strong> {{.Terms}}</p>
    </div>

    <p class="excerpt">{{.Excerpt}}</p>

    <div class="footer">
        <p>You are receiving this because your address is configured as the moderation contact for {{.AppName}}.</p>
    </div>
</body>
</html>`
