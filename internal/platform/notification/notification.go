// Package notification sends account emails (invitations and password
// resets) rendered from templates. Delivery goes through an EmailSender:
// SMTP in production, a log-only sender when SMTP is not configured.
package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Template ids.
const (
	TemplateInvite        = "professional-invite"
	TemplatePasswordReset = "password-reset"
)

// Notification is one rendered email and its delivery outcome.
type Notification struct {
	ID         string            `json:"id"`
	Recipient  string            `json:"recipient"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	TemplateID string            `json:"template_id,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	Status     string            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	SentAt     *time.Time        `json:"sent_at,omitempty"`
	Error      string            `json:"error,omitempty"`
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine renders {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range builtIn {
		e.templates[t.ID] = t
	}
	return e
}

var builtIn = []Template{
	{
		ID:      TemplateInvite,
		Subject: "Invitación a {{clinic}}",
		Body: "Hola {{name}},\n\n" +
			"Se creó tu cuenta de profesional en {{clinic}}. Para elegir tu contraseña ingresá al siguiente enlace " +
			"(válido por {{valid_for}}):\n\n{{reset_link}}\n",
	},
	{
		ID:      TemplatePasswordReset,
		Subject: "Restablecer contraseña - {{clinic}}",
		Body: "Hola {{name}},\n\n" +
			"Para restablecer tu contraseña ingresá al siguiente enlace (válido por {{valid_for}}):\n\n" +
			"{{reset_link}}\n\nSi no lo pediste, ignorá este mensaje.\n",
	},
}

func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render replaces every {{key}} found in data. Unknown placeholders are left
// as they are.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// ---------------------------------------------------------------------------
// Senders
// ---------------------------------------------------------------------------

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

type SMTPSender struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

var ErrNoRecipient = errors.New("email recipient is empty")

func (s *SMTPSender) SendEmail(_ context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}
	var msg bytes.Buffer
	msg.WriteString("From: " + s.cfg.From + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(body)

	// No AUTH when no user is configured (local relays, MailHog).
	var a smtp.Auth
	if s.cfg.User != "" {
		a = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	if err := s.send(addr, a, s.cfg.From, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// LogSender only logs. It stands in for SMTP in development.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("email not sent: smtp not configured")
	return nil
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender records calls. Tests elsewhere use it as a double.
type MockEmailSender struct {
	mu    sync.Mutex
	calls []EmailCall
	Err   error
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	return m.Err
}

func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// ---------------------------------------------------------------------------
// Mailer
// ---------------------------------------------------------------------------

// Mailer renders templates and hands them to the sender. It keeps the most
// recent notifications for diagnostics.
type Mailer struct {
	sender    EmailSender
	templates *TemplateEngine
	logger    zerolog.Logger
	keep      int

	mu     sync.Mutex
	recent []*Notification
}

func NewMailer(sender EmailSender, tpl *TemplateEngine, logger zerolog.Logger) *Mailer {
	if tpl == nil {
		tpl = NewTemplateEngine()
	}
	return &Mailer{sender: sender, templates: tpl, logger: logger, keep: 100}
}

// SendTemplate renders templateID with data and sends it to recipient. The
// returned notification carries the outcome even when err is non-nil.
func (m *Mailer) SendTemplate(ctx context.Context, templateID, recipient string, data map[string]string) (*Notification, error) {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	n := &Notification{
		ID:         uuid.NewString(),
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
		Data:       data,
		Status:     "pending",
		CreatedAt:  time.Now().UTC(),
	}

	sendErr := m.sender.SendEmail(ctx, recipient, subject, body)
	if sendErr != nil {
		n.Status = "failed"
		n.Error = sendErr.Error()
		m.logger.Error().Err(sendErr).Str("template", templateID).Str("to", recipient).Msg("send email")
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
		m.logger.Info().Str("template", templateID).Str("to", recipient).Msg("email sent")
	}

	m.mu.Lock()
	m.recent = append(m.recent, n)
	if len(m.recent) > m.keep {
		m.recent = m.recent[len(m.recent)-m.keep:]
	}
	m.mu.Unlock()

	return n, sendErr
}

// Recent returns up to limit notifications, newest first.
func (m *Mailer) Recent(limit int) []*Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.recent) {
		limit = len(m.recent)
	}
	out := make([]*Notification, 0, limit)
	for i := len(m.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.recent[i])
	}
	return out
}
