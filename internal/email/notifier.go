package email

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/recordvault/access-api/internal/model"
)

// Notifier delivers workflow notifications. Delivery is best effort and never
// feeds back into workflow correctness.
type Notifier interface {
	Notify(ctx context.Context, eventType string, payload []byte) error
}

type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

type mailNotifier struct {
	dialer     *gomail.Dialer
	from       string
	recipients []string
}

func NewNotifier(cfg Config) Notifier {
	return &mailNotifier{
		dialer:     gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:       cfg.From,
		recipients: cfg.Recipients,
	}
}

func (n *mailNotifier) Notify(ctx context.Context, eventType string, payload []byte) error {
	if len(n.recipients) == 0 {
		return nil
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return fmt.Errorf("failed to decode notification payload: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.recipients...)
	m.SetHeader("Subject", subjectFor(eventType))
	m.SetBody("text/plain", bodyFor(eventType, fields))

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}
	return nil
}

func subjectFor(eventType string) string {
	switch eventType {
	case model.EventRequestCreated:
		return "New access request"
	case model.EventRequestResponded:
		return "Access request answered"
	case model.EventAccessGranted:
		return "Record access granted"
	case model.EventAccessRevoked:
		return "Record access revoked"
	default:
		return "Record access notification"
	}
}

func bodyFor(eventType string, fields map[string]interface{}) string {
	body := fmt.Sprintf("Event: %s\n", eventType)
	for key, value := range fields {
		body += fmt.Sprintf("%s: %v\n", key, value)
	}
	return body
}
