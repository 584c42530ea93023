package telemetry

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// PahoPublisher publishes to a real MQTT broker.
type PahoPublisher struct {
	client paho.Client
}

// NewPahoPublisher connects to the broker and returns a publisher.
func NewPahoPublisher(brokerURL, clientID string) (*PahoPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &PahoPublisher{client: client}, nil
}

// Publish sends a payload with QoS 0, not retained.
func (p *PahoPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *PahoPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
