package notifications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

var tripAt = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

func trip() model.SafetyEvent {
	return model.SafetyEvent{
		At:        tripAt,
		Kind:      model.SafetyEventTrip,
		Triple:    1,
		InletCx10: 335,
		ToClear:   signal.Mask(0x2a),
		Until:     tripAt.Add(5 * time.Minute),
	}
}

func TestEventMessage(t *testing.T) {
	tests := []struct {
		name     string
		event    model.SafetyEvent
		title    string
		message  string
		priority int
	}{
		{"trip", trip(), "Heat-safety shutdown", "Inlet reached 33.5C on triple 1, outputs 0x2a held off until 08:05:00", 5},
		{"clear", model.SafetyEvent{At: tripAt.Add(5 * time.Minute), Kind: model.SafetyEventClear, Triple: 1},
			"Heat-safety cleared", "Triple 1 released at 08:05:00, furnace back under mode control", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := EventMessage("furnace", tt.event)
			assert.Equal(t, "furnace", m.Topic)
			assert.Equal(t, tt.title, m.Title)
			assert.Equal(t, tt.message, m.Message)
			assert.Equal(t, tt.priority, m.Priority)
		})
	}
}

func TestPublish(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := New(srv.URL, "furnace")
	require.NotNil(t, n)
	require.NoError(t, n.Publish(trip()))
	assert.Equal(t, EventMessage("furnace", trip()), got)
}

func TestPublishFailures(t *testing.T) {
	var disabled *Notifier = New(DefaultServer, "")
	assert.Nil(t, disabled)
	assert.NoError(t, disabled.Publish(trip()), "disabled notifier drops events")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := New(srv.URL, "furnace").Publish(trip())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
