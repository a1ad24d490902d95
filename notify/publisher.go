// Package notify announces finished transfers on an MQTT topic.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"getfile-lab/domain"
	"log/slog"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	DefaultTopic   = "getfile/transfers"
	connectTimeout = 10 * time.Second
	disconnectWait = 250
)

type MQTTPublisher struct {
	log    *slog.Logger
	client MQTT.Client
	topic  string
}

// NewMQTTPublisher connects to broker (for example tcp://localhost:1883).
func NewMQTTPublisher(log *slog.Logger, broker, topic string) (*MQTTPublisher, error) {
	opts := MQTT.NewClientOptions().AddBroker(broker)
	opts.SetClientID("getfile-" + uuid.NewString())
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	opts.OnConnectionLost = func(_ MQTT.Client, err error) {
		log.Warn("Lost connection to MQTT broker", "broker", broker, "error", err)
	}

	client := MQTT.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, token.Error())
	}
	log.Info("Connected to MQTT broker", "broker", broker, "topic", topic)
	return NewMQTTPublisherWithClient(log, client, topic), nil
}

func NewMQTTPublisherWithClient(log *slog.Logger, client MQTT.Client, topic string) *MQTTPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &MQTTPublisher{log: log, client: client, topic: topic}
}

// Publish sends evt as JSON with QoS 1 and waits for the broker ack or ctx.
func (p *MQTTPublisher) Publish(ctx context.Context, evt domain.TransferEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode transfer event: %w", err)
	}
	token := p.client.Publish(p.topic, 1, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to publish on %s: %w", p.topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(disconnectWait)
}
