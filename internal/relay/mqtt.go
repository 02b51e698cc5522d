package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"trackgate/internal/event"
)

// MQTT publishes every event as JSON on <topic>/<device>/<kind>. Events
// without a device go to <topic>/gateway/<kind>.
type MQTT struct {
	sink
	topic   string
	client  mqtt.Client
	publish func(topic string, payload []byte) error
}

func NewMQTT(broker, topic string, logger *log.Logger) *MQTT {
	m := &MQTT{sink: newSink("mqtt", logger, nil), topic: topic}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("trackgate-%d", time.Now().UnixNano())).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	opts.OnConnect = func(mqtt.Client) { m.logger.Printf("connected to MQTT broker: %s", broker) }
	opts.OnConnectionLost = func(_ mqtt.Client, err error) { m.logger.Printf("mqtt connection lost: %v", err) }

	m.client = mqtt.NewClient(opts)
	m.publish = func(topic string, payload []byte) error {
		token := m.client.Publish(topic, 0, false, payload)
		if !token.WaitTimeout(5 * time.Second) {
			return fmt.Errorf("publish to %s timed out", topic)
		}
		return token.Error()
	}
	return m
}

func (m *MQTT) Run(ctx context.Context) error {
	if m.client != nil {
		// with connect retry the token only completes once the broker answers
		token := m.client.Connect()
		go func() {
			if token.Wait() && token.Error() != nil {
				m.logger.Printf("mqtt connect error: %v", token.Error())
			}
		}()
		defer m.client.Disconnect(250)
	}
	return m.drain(ctx, m.write)
}

func (m *MQTT) write(ctx context.Context, e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return m.publish(m.topicOf(e), payload)
}

func (m *MQTT) topicOf(e event.Event) string {
	dev := e.DevID
	if dev == "" {
		dev = "gateway"
	}
	return fmt.Sprintf("%s/%s/%s", m.topic, dev, e.Kind)
}
