// Package notify pushes operator alerts through ntfy.sh. The bridge uses it
// to flag sustained communication outages with the appliance.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Pusher sends notifications to one ntfy topic. It satisfies the engine's
// Notifier interface. A nil Pusher is valid and drops everything.
type Pusher struct {
	client *http.Client
	topic  string
}

// New returns a Pusher for the topic, or nil when no topic is configured so
// callers can wire it through unconditionally.
func New(topic string) *Pusher {
	if topic == "" {
		log.Warn().Msg("Ntfy topic not configured - notifications disabled")
		return nil
	}

	log.Info().Str("topic", topic).Msg("Ntfy notifications initialized")
	return &Pusher{
		client: &http.Client{Timeout: 10 * time.Second},
		topic:  topic,
	}
}

func (p *Pusher) Send(title, message string) error {
	if p == nil {
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"topic":   p.topic,
		"title":   title,
		"message": message,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	url := fmt.Sprintf("https://ntfy.sh/%s", p.topic)
	resp, err := p.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned non-success status: %d", resp.StatusCode)
	}

	log.Debug().Str("title", title).Int("status", resp.StatusCode).Msg("Notification sent")
	return nil
}
