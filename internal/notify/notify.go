// Package notify forwards journal events to an MQTT broker so home
// automation can react to pours and low reservoirs.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"smart_bartender/internal/config"
	"smart_bartender/internal/logger"
	"smart_bartender/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	qosAtLeastOnce  = 1
	connectTimeout  = 5 * time.Second
	publishTimeout  = 2 * time.Second
	disconnectQuiet = 250 // ms
)

var ErrPublishTimeout = errors.New("mqtt publish timed out")

// Publisher sends events somewhere outside the process.
type Publisher interface {
	Publish(ev models.BarEvent) error
	Close()
}

// New returns an MQTT publisher when a broker is configured and a no-op
// publisher otherwise.
func New(cfg config.MQTTConfig, log *logger.Logger) (Publisher, error) {
	if cfg.Broker == "" {
		return Nop{}, nil
	}
	return NewMQTT(cfg, log)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(models.BarEvent) error { return nil }
func (Nop) Close() {}

// client is the part of mqtt.Client used here.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type MQTT struct {
	client client
	topic  string
	log    *logger.Logger
}

// NewMQTT connects to the broker. The client keeps reconnecting in the
// background, so an unreachable broker at startup is logged, not fatal.
func NewMQTT(cfg config.MQTTConfig, log *logger.Logger) (*MQTT, error) {
	if log == nil {
		log = logger.NewNop()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Infow("mqtt_connected", "broker", cfg.Broker)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnw("mqtt_connection_lost", "broker", cfg.Broker, "err", err)
		})

	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if tok.WaitTimeout(connectTimeout) {
		if err := tok.Error(); err != nil {
			return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
		}
	} else {
		log.Warnw("mqtt_connect_pending", "broker", cfg.Broker)
	}
	return newMQTT(c, cfg.Topic, log), nil
}

func newMQTT(c client, topic string, log *logger.Logger) *MQTT {
	return &MQTT{client: c, topic: strings.TrimSuffix(topic, "/"), log: log}
}

// Publish sends ev as JSON to <topic>/<event type in lower case>.
func (m *MQTT) Publish(ev models.BarEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	topic := Topic(m.topic, ev.Type)
	tok := m.client.Publish(topic, qosAtLeastOnce, false, payload)
	if !tok.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (m *MQTT) Close() {
	m.client.Disconnect(disconnectQuiet)
}

// Topic builds the per-type topic for an event.
func Topic(base, eventType string) string {
	return base + "/" + strings.ToLower(eventType)
}
