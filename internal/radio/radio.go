package radio

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/protocol"
)

// PayloadSize is the largest payload one radio packet carries.
const PayloadSize = 61

// Packet is the JSON form the gateway uses on the broker.
type Packet struct {
	Sender  uint8  `json:"sender"`
	Target  uint8  `json:"target"`
	Payload string `json:"payload"`
}

// Client is the part of the paho client the bridge uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Bridge exchanges packets with a radio gateway over MQTT. Received packets
// are queued for the control loop; telemetry lines go out as packets to
// the gateway node.
type Bridge struct {
	client Client
	prefix string

	mu  sync.RWMutex
	cfg model.RadioConfig

	inbox *protocol.Queue
}

func NewBridge(client Client, prefix string, cfg model.RadioConfig) *Bridge {
	return &Bridge{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		cfg:    cfg,
		inbox:  protocol.NewQueue(32),
	}
}

func (b *Bridge) rxTopic() string { return b.prefix + "/rx" }

func (b *Bridge) TxTopic() string { return b.prefix + "/tx" }

// Subscribe registers for inbound packets. Call it from the connect
// handler so it is redone after a reconnect.
func (b *Bridge) Subscribe() {
	if t := b.client.Subscribe(b.rxTopic(), 0, b.handle); t.Wait() && t.Error() != nil {
		log.Error().Err(t.Error()).Str("topic", b.rxTopic()).Msg("MQTT subscribe failed")
		return
	}
	log.Info().Str("topic", b.rxTopic()).Msg("Listening for radio packets")
}

func (b *Bridge) handle(_ mqtt.Client, msg mqtt.Message) {
	var p Packet
	if err := json.Unmarshal(msg.Payload(), &p); err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("Malformed radio packet")
		return
	}
	b.Deliver(p)
}

// Deliver queues a received packet. Packets are dropped when the loop has
// fallen behind.
func (b *Bridge) Deliver(p Packet) {
	payload := p.Payload
	if len(payload) > PayloadSize {
		payload = payload[:PayloadSize]
	}
	if i := strings.IndexByte(payload, 0); i >= 0 {
		payload = payload[:i]
	}

	b.mu.RLock()
	node := b.cfg.NodeID
	b.mu.RUnlock()

	cmd := protocol.Command{
		Text:     payload,
		SenderID: p.Sender,
		ToMe:     p.Target == node,
		Source:   protocol.SourceRadio,
	}
	if !b.inbox.Enqueue(cmd) {
		log.Warn().Uint8("sender", p.Sender).Msg("Radio inbox full, packet dropped")
	}
}

// Poll returns the next received packet without waiting.
func (b *Bridge) Poll() (protocol.Command, bool) {
	return b.inbox.Poll()
}

func (b *Bridge) Reconfigure(cfg model.RadioConfig) {
	b.mu.Lock()
	b.cfg = cfg
	b.mu.Unlock()
}

func (b *Bridge) Config() model.RadioConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg
}

// Send transmits line to the gateway, split across packets if needed.
func (b *Bridge) Send(line string) error {
	cfg := b.Config()
	if !cfg.Configured() {
		return nil
	}
	for len(line) > 0 {
		chunk := line
		if len(chunk) > PayloadSize {
			chunk = chunk[:PayloadSize]
		}
		line = line[len(chunk):]

		body, err := json.Marshal(Packet{Sender: cfg.NodeID, Target: cfg.GatewayID, Payload: chunk})
		if err != nil {
			return fmt.Errorf("encode packet: %w", err)
		}
		if t := b.client.Publish(b.TxTopic(), 0, false, body); t.Wait() && t.Error() != nil {
			return fmt.Errorf("publish packet: %w", t.Error())
		}
	}
	return nil
}

// ClientOptions builds paho options for the broker.
func ClientOptions(broker, clientID, username, password string) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetUsername(username).
		SetPassword(password).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(client mqtt.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		}).
		SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
			log.Info().Msg("MQTT reconnecting")
		})
}
