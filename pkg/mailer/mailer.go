// Package mailer delivers transactional email. The default sender writes
// rendered messages to the structured log, which suits development setups.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoRecipients is returned for messages without a To address.
var ErrNoRecipients = errors.New("message has no recipients")

// Message is a plain-text email.
type Message struct {
	To      []mail.Address
	Subject string
	Text    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, messages ...Message) error
}

// LogSender renders messages and logs them instead of talking to an SMTP relay.
type LogSender struct {
	from       mail.Address
	subjPrefix string
	logger     zerolog.Logger

	mu   sync.Mutex
	sent []Message
}

// NewLogSender constructs a LogSender. from is parsed as an RFC 5322 address.
func NewLogSender(appName, from string, logger zerolog.Logger) (*LogSender, error) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("parse sender address: %w", err)
	}
	return &LogSender{
		from:       *addr,
		subjPrefix: "[" + appName + "] ",
		logger:     logger.With().Str("component", "mailer").Logger(),
	}, nil
}

// Send logs every message. It stops at the first message without recipients.
func (s *LogSender) Send(ctx context.Context, messages ...Message) error {
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(msg.To) == 0 {
			return ErrNoRecipients
		}

		s.logger.Info().
			Str("to", joinAddresses(msg.To)).
			Str("subject", s.subjPrefix+msg.Subject).
			Msg(s.render(msg))

		s.mu.Lock()
		s.sent = append(s.sent, msg)
		s.mu.Unlock()
	}
	return nil
}

// Sent returns a copy of every message delivered so far.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func (s *LogSender) render(msg Message) string {
	body := new(strings.Builder)
	fmt.Fprintf(body, "From: %s\r\n", s.from.String())
	fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(body, "Subject: %s\r\n", s.subjPrefix+msg.Subject)
	fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	fmt.Fprint(body, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(body, "%s\r\n", msg.Text)
	return body.String()
}

func joinAddresses(addrs []mail.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}
