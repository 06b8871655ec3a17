package kafka

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

var ErrEmptyMessage = errors.New("empty message")

// IncomingMessage is a raw message read from the ARN topic.
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string
}

// ParsePayloads decodes the message value. ARN delivers either a single
// event or a JSON array of events.
func (m *IncomingMessage) ParsePayloads() ([]models.NotificationPayload, error) {
	value := bytes.TrimSpace(m.Value)
	if len(value) == 0 {
		return nil, ErrEmptyMessage
	}

	if value[0] == '[' {
		var payloads []models.NotificationPayload
		if err := json.Unmarshal(value, &payloads); err != nil {
			return nil, fmt.Errorf("failed to parse notification batch: %w", err)
		}
		return payloads, nil
	}

	var payload models.NotificationPayload
	if err := json.Unmarshal(value, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse notification: %w", err)
	}
	return []models.NotificationPayload{payload}, nil
}

// Notifications flattens every payload in the message.
func (m *IncomingMessage) Notifications() ([]models.DiagnosticSettingsNotification, error) {
	payloads, err := m.ParsePayloads()
	if err != nil {
		return nil, err
	}

	var out []models.DiagnosticSettingsNotification
	for _, p := range payloads {
		out = append(out, p.Notifications()...)
	}
	return out, nil
}

// Fields returns the message coordinates as log fields.
func (m *IncomingMessage) Fields() map[string]any {
	return map[string]any{
		"topic":     m.Topic,
		"partition": m.Partition,
		"offset":    m.Offset,
		"key":       m.Key,
	}
}
