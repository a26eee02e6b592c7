// Package mail sends transactional email through Mailjet.
package mail

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"text/template"
	"time"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
	gobreaker "github.com/sony/gobreaker/v2"

	"signage-ads/internal/config/configs"
	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var _ port.Mailer = (*Mailer)(nil)

// ErrUnknownTemplate is returned for a template name with no file.
var ErrUnknownTemplate = errors.New("mail: unknown template")

// SendFunc delivers one Mailjet batch.
type SendFunc func(msgs *mailjet.MessagesV31) error

// Mailer renders embedded templates and sends them. Sends go through a
// circuit breaker so a Mailjet outage fails fast instead of stalling every
// event.
type Mailer struct {
	send      SendFunc
	from      string
	fromName  string
	templates map[string]*template.Template
	breaker   *gobreaker.CircuitBreaker[struct{}]
	logger    *slog.Logger
}

// New builds a Mailer from cfg. Without API keys it returns a mailer that
// logs and drops every message.
func New(cfg configs.Mail, logger *slog.Logger) (*Mailer, error) {
	var send SendFunc
	if cfg.PublicKey != "" && cfg.PrivateKey != "" {
		clt := mailjet.NewMailjetClient(cfg.PublicKey, cfg.PrivateKey)
		send = func(m *mailjet.MessagesV31) error {
			_, err := clt.SendMailV31(m)
			return err
		}
	}
	return NewWithSender(send, cfg, logger)
}

// NewWithSender is New with a custom delivery function.
func NewWithSender(send SendFunc, cfg configs.Mail, logger *slog.Logger) (*Mailer, error) {
	templates, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	logger = logger.With(slog.String("component", "mailer"))
	m := &Mailer{
		send:      send,
		from:      cfg.From,
		fromName:  cfg.FromName,
		templates: templates,
		logger:    logger,
	}
	m.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "mailjet",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return m, nil
}

func loadTemplates() (map[string]*template.Template, error) {
	files, err := fs.Glob(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}
	out := make(map[string]*template.Template, len(files))
	for _, f := range files {
		name := strings.TrimSuffix(path.Base(f), ".tmpl")
		t, err := template.New(name).Option("missingkey=zero").ParseFS(templateFS, f)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// Render returns the subject and text body of a template.
func (m *Mailer) Render(name string, to domain.User, data map[string]any) (subject, body string, err error) {
	t, ok := m.templates[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	vars := make(map[string]any, len(data)+2)
	for k, v := range data {
		vars[k] = v
	}
	vars["name"] = displayName(to)
	vars["email"] = to.Email

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "subject", vars); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	subject = strings.TrimSpace(buf.String())
	buf.Reset()
	if err := t.ExecuteTemplate(&buf, "body", vars); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", name, err)
	}
	return subject, strings.TrimSpace(buf.String()) + "\n", nil
}

func displayName(u domain.User) string {
	if u.Name != "" {
		return u.Name
	}
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	return "there"
}

// Send renders the template and delivers it to the user's address.
func (m *Mailer) Send(ctx context.Context, name string, to domain.User, data map[string]any) error {
	if to.Email == "" {
		return fmt.Errorf("mail %s: recipient %s has no email", name, to.ID)
	}
	subject, body, err := m.Render(name, to, data)
	if err != nil {
		return err
	}
	if m.send == nil {
		m.logger.Info("mail disabled, dropping message", slog.String("template", name), slog.String("to", to.Email))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msgs := &mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{{
		From:     &mailjet.RecipientV31{Email: m.from, Name: m.fromName},
		To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: to.Email, Name: to.Name}},
		Subject:  subject,
		TextPart: body,
		CustomID: name,
	}}}

	start := time.Now()
	_, err = m.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, m.send(msgs)
	})
	if err != nil {
		return fmt.Errorf("send %s mail: %w", name, err)
	}
	m.logger.Debug("mail sent", slog.String("template", name), slog.Duration("took", time.Since(start)))
	return nil
}
