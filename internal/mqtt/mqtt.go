package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Mavwarf/waveforge/internal/config"
)

const timeout = 5 * time.Second

// Rendered is the payload announced after a WAV file is written.
type Rendered struct {
	Path       string  `json:"path"`
	Source     string  `json:"source"` // command or score that produced it
	SampleRate int     `json:"sample_rate"`
	Samples    int     `json:"samples"`
	Duration   float64 `json:"duration_seconds"`
	Bytes      int     `json:"bytes"`
	Time       string  `json:"time"`
}

// Payload encodes r as JSON, stamping Time if it is empty.
func (r Rendered) Payload() ([]byte, error) {
	if r.Time == "" {
		r.Time = time.Now().Format(time.RFC3339)
	}
	return json.Marshal(r)
}

// Announce publishes r to the configured topic. It is a no-op when MQTT
// is not configured.
func Announce(cfg config.MQTT, r Rendered) error {
	if !cfg.Enabled() {
		return nil
	}
	payload, err := r.Payload()
	if err != nil {
		return fmt.Errorf("mqtt: encode: %w", err)
	}
	return Publish(cfg.Broker, cfg.ClientID, cfg.Topic, payload, cfg.QoS, cfg.Retain, cfg.Username, cfg.Password)
}

// Publish connects to an MQTT broker, publishes a message to the given
// topic, and disconnects. Each invocation creates a fresh connection.
func Publish(broker, clientID, topic string, message []byte, qos byte, retain bool, username, password string) error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(timeout)

	if username != "" {
		opts.SetUsername(username)
	}
	if password != "" {
		opts.SetPassword(password)
	}

	client := pahomqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt: connect timeout")
	}
	if tok.Error() != nil {
		return fmt.Errorf("mqtt: connect: %w", tok.Error())
	}
	defer client.Disconnect(250)

	pub := client.Publish(topic, qos, retain, message)
	if !pub.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt: publish timeout")
	}
	if pub.Error() != nil {
		return fmt.Errorf("mqtt: publish: %w", pub.Error())
	}
	return nil
}
