// Package notifications pushes heat-safety events to an ntfy topic.
package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/telemetry"
)

const DefaultServer = "https://ntfy.sh"

// Message is ntfy's JSON publish body.
type Message struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

type Notifier struct {
	server string
	topic  string
	client *http.Client
}

// New returns nil when no topic is configured; a nil Notifier drops events.
func New(server, topic string) *Notifier {
	if topic == "" {
		log.Warn().Msg("Ntfy topic not configured, heat-safety alerts disabled")
		return nil
	}
	log.Info().Str("topic", topic).Msg("Ntfy heat-safety alerts enabled")
	return &Notifier{server: server, topic: topic, client: &http.Client{Timeout: 10 * time.Second}}
}

// EventMessage renders a trip as an urgent alert and a clear as a low
// priority follow-up.
func EventMessage(topic string, e model.SafetyEvent) Message {
	if e.Kind == model.SafetyEventClear {
		return Message{
			Topic:    topic,
			Title:    "Heat-safety cleared",
			Message:  fmt.Sprintf("Triple %d released at %s, furnace back under mode control", e.Triple, e.At.Format("15:04:05")),
			Priority: 3,
			Tags:     []string{"white_check_mark"},
		}
	}
	return Message{
		Topic: topic,
		Title: "Heat-safety shutdown",
		Message: fmt.Sprintf("Inlet reached %sC on triple %d, outputs 0x%02x held off until %s",
			telemetry.FormatTenths(int(e.InletCx10)), e.Triple, uint8(e.ToClear), e.Until.Format("15:04:05")),
		Priority: 5,
		Tags:     []string{"fire"},
	}
}

func (n *Notifier) Publish(e model.SafetyEvent) error {
	if n == nil {
		return nil
	}
	body, err := json.Marshal(EventMessage(n.topic, e))
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	resp, err := n.client.Post(n.server, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned non-success status: %d", resp.StatusCode)
	}
	log.Debug().Str("kind", e.Kind).Int("status", resp.StatusCode).Msg("Heat-safety alert sent")
	return nil
}
