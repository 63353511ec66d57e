package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultTopic is the topic prefix events are published under.
const DefaultTopic = "facegate/events"

// MQTTConfig configures the MQTT notifier.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTNotifier publishes events as JSON to <topic>/<kind>.
type MQTTNotifier struct {
	cfg    MQTTConfig
	client mqtt.Client
	pub    publisher

	mu        sync.Mutex
	published uint64
	errors    uint64
}

// NewMQTTNotifier creates a notifier; call Connect before use.
func NewMQTTNotifier(cfg MQTTConfig) *MQTTNotifier {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "facegate"
	}
	return &MQTTNotifier{cfg: cfg}
}

// Connect establishes the broker connection.
func (n *MQTTNotifier) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", n.cfg.Broker))
	opts.SetClientID(n.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.Printf("mqtt connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)

	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	n.client = client
	n.pub = client
	log.Printf("connected to mqtt broker %s", n.cfg.Broker)
	return nil
}

// Topic returns the topic an event kind is published to.
func (n *MQTTNotifier) Topic(kind Kind) string {
	return fmt.Sprintf("%s/%s", n.cfg.Topic, kind)
}

// Publish sends e and waits briefly for the broker to acknowledge it.
func (n *MQTTNotifier) Publish(e Event) error {
	if n.pub == nil {
		n.countError()
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(e)
	if err != nil {
		n.countError()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	token := n.pub.Publish(n.Topic(e.Kind), n.cfg.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		n.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		n.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	n.mu.Lock()
	n.published++
	n.mu.Unlock()
	return nil
}

// Notify publishes e, logging failures.
func (n *MQTTNotifier) Notify(e Event) {
	if err := n.Publish(e); err != nil {
		log.Printf("mqtt publish %s: %v", e.Kind, err)
	}
}

// Stats returns the number of published and failed events.
func (n *MQTTNotifier) Stats() (published, errors uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.published, n.errors
}

func (n *MQTTNotifier) countError() {
	n.mu.Lock()
	n.errors++
	n.mu.Unlock()
}

// Disconnect closes the broker connection.
func (n *MQTTNotifier) Disconnect() {
	if n.client != nil && n.client.IsConnected() {
		n.client.Disconnect(250)
	}
}
