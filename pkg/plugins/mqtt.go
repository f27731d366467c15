package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MQTTConfig configures the MQTT event sink
type MQTTConfig struct {
	Enabled     bool   `toml:"enabled"`
	Broker      string `toml:"broker"`
	ClientID    string `toml:"client_id"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	TopicPrefix string `toml:"topic_prefix"`
	QoS         byte   `toml:"qos"`
}

// DefaultMQTTConfig returns a disabled sink pointed at a local broker
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:      "tcp://127.0.0.1:1883",
		TopicPrefix: "medius",
		QoS:         1,
	}
}

// mqttClient is the part of mqtt.Client the publisher uses
type mqttClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher forwards every bus event to an MQTT topic as JSON
type MQTTPublisher struct {
	cfg      MQTTConfig
	bus      *Bus
	client   mqttClient
	log      zerolog.Logger
	metadata map[string]interface{}
}

// NewMQTTPublisher builds a publisher for bus. It does not connect until
// Start.
func NewMQTTPublisher(cfg MQTTConfig, bus *Bus, logger zerolog.Logger) (*MQTTPublisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("mqtt sink is disabled")
	}

	hostname, _ := os.Hostname()
	p := &MQTTPublisher{
		cfg:      cfg,
		bus:      bus,
		log:      logger,
		metadata: map[string]interface{}{"hostname": hostname},
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("medius-%s", hostname))
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info().Str("broker", cfg.Broker).Msg("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	p.client = mqtt.NewClient(opts)
	return p, nil
}

// Start connects, subscribes to every event and blocks until ctx is done
func (p *MQTTPublisher) Start(ctx context.Context) error {
	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect failed: %w", token.Error())
	}

	p.subscribe()

	<-ctx.Done()

	for _, t := range AllEvents {
		p.bus.Unsubscribe(t, "mqtt")
	}
	p.client.Disconnect(250)
	p.log.Info().Msg("mqtt disconnected")
	return nil
}

func (p *MQTTPublisher) subscribe() {
	for _, t := range AllEvents {
		p.bus.Subscribe(t, "mqtt", p.handle)
	}
}

// Topic returns the topic an event type is published on
func (p *MQTTPublisher) Topic(t EventType) string {
	prefix := strings.TrimSuffix(p.cfg.TopicPrefix, "/")
	if prefix == "" {
		return string(t)
	}
	return prefix + "/" + string(t)
}

func (p *MQTTPublisher) handle(_ context.Context, event Event) error {
	p.publish(p.Topic(event.Type), event)
	return nil
}

// publish sends payload wrapped with the host metadata. Delivery failures
// are logged from a separate goroutine.
func (p *MQTTPublisher) publish(topic string, payload interface{}) {
	if !p.client.IsConnected() {
		return
	}

	msg := make(map[string]interface{}, len(p.metadata)+2)
	for k, v := range p.metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(msg)
	if err != nil {
		p.log.Warn().Err(err).Str("topic", topic).Msg("failed to marshal mqtt message")
		return
	}

	token := p.client.Publish(topic, p.cfg.QoS, false, data)
	go func() {
		token.Wait()
		if token.Error() != nil {
			p.log.Warn().Err(token.Error()).Str("topic", topic).Msg("mqtt publish failed")
		}
	}()
}
