// Package publish forwards tracking results to an MQTT broker.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/lune/internal/log"
	"github.com/ayusman/lune/internal/overlay"
	"github.com/ayusman/lune/internal/ringsize"
	"github.com/ayusman/lune/internal/session"
	"github.com/ayusman/lune/internal/stabilizer"
)

// Publisher receives every processed frame.
type Publisher interface {
	Publish(res session.Result) error
	Close()
}

// Nop discards results. It stands in when no broker is configured.
type Nop struct{}

func (Nop) Publish(session.Result) error { return nil }
func (Nop) Close()                       {}

// MeasurementMessage is the payload of <topic>/measurement.
type MeasurementMessage struct {
	SessionID   string                 `json:"session_id"`
	Seq         uint64                 `json:"seq"`
	TimestampMs int64                  `json:"timestamp_ms"`
	Measurement stabilizer.Measurement `json:"measurement"`
	Size        *ringsize.Entry        `json:"size,omitempty"`
}

// OverlayMessage is the payload of <topic>/overlay.
type OverlayMessage struct {
	SessionID   string            `json:"session_id"`
	Seq         uint64            `json:"seq"`
	TimestampMs int64             `json:"timestamp_ms"`
	Transform   overlay.Transform `json:"transform"`
}

// Topics returns the measurement and overlay topics under base.
func Topics(base string) (measurement, overlay string) {
	return base + "/measurement", base + "/overlay"
}

// Messages splits a result into its two payloads.
func Messages(res session.Result) (MeasurementMessage, OverlayMessage) {
	return MeasurementMessage{
			SessionID:   res.SessionID,
			Seq:         res.Seq,
			TimestampMs: res.TimestampMs,
			Measurement: res.Measurement,
			Size:        res.Size,
		}, OverlayMessage{
			SessionID:   res.SessionID,
			Seq:         res.Seq,
			TimestampMs: res.TimestampMs,
			Transform:   res.Transform,
		}
}

// MQTTPublisher publishes results at QoS 0.
type MQTTPublisher struct {
	client           mqtt.Client
	measurementTopic string
	overlayTopic     string
	timeout          time.Duration
}

// NewMQTT connects to broker and returns a publisher rooted at topic.
func NewMQTT(broker, clientID, topic string) (*MQTTPublisher, error) {
	logger := log.Named("mqtt")
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warnw("connection lost", "broker", broker, "error", err)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	logger.Infow("connected", "broker", broker, "topic", topic)

	m, o := Topics(topic)
	return &MQTTPublisher{
		client:           client,
		measurementTopic: m,
		overlayTopic:     o,
		timeout:          2 * time.Second,
	}, nil
}

// Publish sends both payloads for res.
func (p *MQTTPublisher) Publish(res session.Result) error {
	mm, om := Messages(res)
	if err := p.send(p.measurementTopic, mm); err != nil {
		return err
	}
	return p.send(p.overlayTopic, om)
}

func (p *MQTTPublisher) send(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
