// Package mail delivers verification codes out of band.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

const ResendEndpoint = "https://api.resend.com/emails"

type Message struct {
	To      string
	Subject string
	Text    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them. It is used in
// development so codes can be read from the console.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail not sent (development)", "to", msg.To, "subject", msg.Subject, "body", msg.Text)
	return nil
}

type ResendMailer struct {
	apiKey   string
	from     string
	endpoint string
	client   *http.Client
}

func NewResendMailer(apiKey string, from string) *ResendMailer {
	return &ResendMailer{
		apiKey:   apiKey,
		from:     from,
		endpoint: ResendEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// WithEndpoint points the mailer at a different API base, used by tests.
func (m *ResendMailer) WithEndpoint(endpoint string, client *http.Client) *ResendMailer {
	m.endpoint = endpoint
	if client != nil {
		m.client = client
	}
	return m
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(map[string]any{
		"from":    m.from,
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"text":    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= http.StatusBadRequest {
		reason := gjson.GetBytes(body, "message").String()
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("send mail: provider returned %d: %s", resp.StatusCode, reason)
	}

	return nil
}

func VerificationMessage(to string, code string, purpose string) Message {
	return Message{
		To:      to,
		Subject: "Your Compass verification code",
		Text: fmt.Sprintf("Your verification code to %s is %s. It expires in 30 minutes. "+
			"If you did not request this, you can ignore this email.", purpose, code),
	}
}
