package notification

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Invite(t *testing.T) {
	e := NewTemplateEngine()

	subject, body, err := e.Render(TemplateInvite, map[string]string{
		"name": "Ana Gómez", "clinic": "Clínica Central", "reset_link": "http://x/reset?token=abc", "valid_for": "1 hora",
	})
	require.NoError(t, err)

	assert.Equal(t, "Invitación a Clínica Central", subject)
	assert.Contains(t, body, "Hola Ana Gómez")
	assert.Contains(t, body, "http://x/reset?token=abc")
	assert.Contains(t, body, "1 hora")
}

func TestRender_LeavesUnknownPlaceholders(t *testing.T) {
	e := NewTemplateEngine()
	e.RegisterTemplate(Template{ID: "t", Subject: "{{a}}", Body: "{{a}} {{b}}"})

	subject, body, err := e.Render("t", map[string]string{"a": "1"})
	require.NoError(t, err)
	assert.Equal(t, "1", subject)
	assert.Equal(t, "1 {{b}}", body)
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, _, err := NewTemplateEngine().Render("nope", nil)
	assert.Error(t, err)
}

func TestSMTPSender_BuildsMessage(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mail.local", User: "u", Pass: "p", From: "desk@clinica.test"})
	var gotAddr string
	var gotAuth smtp.Auth
	var gotMsg []byte
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotMsg = addr, a, msg
		assert.Equal(t, "desk@clinica.test", from)
		assert.Equal(t, []string{"ana@clinica.test"}, to)
		return nil
	}

	require.NoError(t, s.SendEmail(context.Background(), "ana@clinica.test", "Hola", "cuerpo"))

	assert.Equal(t, "mail.local:25", gotAddr)
	assert.NotNil(t, gotAuth)
	msg := string(gotMsg)
	assert.True(t, strings.HasPrefix(msg, "From: desk@clinica.test\r\n"))
	assert.Contains(t, msg, "Subject: Hola\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\ncuerpo"))
}

func TestSMTPSender_NoAuthWithoutUser(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "localhost", Port: 1025, From: "a@b"})
	s.send = func(addr string, a smtp.Auth, _ string, _ []string, _ []byte) error {
		assert.Equal(t, "localhost:1025", addr)
		assert.Nil(t, a)
		return nil
	}
	require.NoError(t, s.SendEmail(context.Background(), "x@y", "s", "b"))

	assert.ErrorIs(t, s.SendEmail(context.Background(), " ", "s", "b"), ErrNoRecipient)
}

func TestMailer_RecordsOutcome(t *testing.T) {
	sender := &MockEmailSender{}
	m := NewMailer(sender, nil, zerolog.Nop())
	ctx := context.Background()

	n, err := m.SendTemplate(ctx, TemplatePasswordReset, "ana@clinica.test", map[string]string{"name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "sent", n.Status)
	require.Len(t, sender.Calls(), 1)
	assert.Contains(t, sender.Calls()[0].Body, "Hola Ana")

	sender.Err = errors.New("connection refused")
	n, err = m.SendTemplate(ctx, TemplatePasswordReset, "luis@clinica.test", nil)
	require.Error(t, err)
	assert.Equal(t, "failed", n.Status)
	assert.Equal(t, "connection refused", n.Error)

	recent := m.Recent(10)
	require.Len(t, recent, 2)
	assert.Equal(t, "luis@clinica.test", recent[0].Recipient)
}

func TestMailer_KeepsBoundedHistory(t *testing.T) {
	m := NewMailer(&MockEmailSender{}, nil, zerolog.Nop())
	m.keep = 3
	for i := 0; i < 5; i++ {
		_, err := m.SendTemplate(context.Background(), TemplateInvite, "a@b", nil)
		require.NoError(t, err)
	}
	assert.Len(t, m.Recent(0), 3)
}
