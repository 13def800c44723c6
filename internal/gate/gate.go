// Package gate publishes barrier commands to the boom-gate controllers of a
// society over MQTT.
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gatehouse/internal/models"
	"gatehouse/internal/observability"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Barrier commands.
const (
	CommandOpen  = "open"
	CommandClose = "close"
)

const (
	defaultTopicPrefix = "gatehouse"
	publishTimeout     = 5 * time.Second
	qosAtLeastOnce     = byte(1)
)

// Command is the JSON document a barrier controller receives.
type Command struct {
	ID         string    `json:"command_id"`
	Command    string    `json:"command"`
	VisitorID  uint      `json:"visitor_id"`
	FlatNumber string    `json:"flat_number"`
	Society    string    `json:"society"`
	IssuedAt   time.Time `json:"issued_at"`
}

// NewCommand builds a command for rec.
func NewCommand(command string, rec *models.VisitorRecord, now time.Time) Command {
	return Command{
		ID:         uuid.NewString(),
		Command:    command,
		VisitorID:  rec.ID,
		FlatNumber: rec.FlatNumber,
		Society:    rec.SocietyName,
		IssuedAt:   now.UTC(),
	}
}

// Topic is where a society's barrier listens: <prefix>/<society>/barrier.
func Topic(prefix, society string) string {
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	society = strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(society)
	return fmt.Sprintf("%s/%s/barrier", strings.TrimSuffix(prefix, "/"), society)
}

// Publisher delivers barrier commands.
type Publisher interface {
	Publish(ctx context.Context, cmd Command) error
	Close()
}

// Nop discards commands. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Command) error { return nil }
func (Nop) Close()                                 {}

// Config holds the broker connection settings.
type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// publishClient is the part of mqtt.Client the publisher uses.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher sends commands with QoS 1.
type MQTTPublisher struct {
	client publishClient
	prefix string
}

// Connect dials the broker. An empty broker yields Nop.
func Connect(cfg Config) (Publisher, error) {
	if strings.TrimSpace(cfg.Broker) == "" {
		return Nop{}, nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "gatehouse-" + uuid.NewString()[:8]
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(publishTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return nil, fmt.Errorf("connect to MQTT broker %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", err)
	}

	observability.GlobalLogger.Info("gate publisher connected", "broker", cfg.Broker, "client_id", clientID)
	return newMQTTPublisher(client, cfg.TopicPrefix), nil
}

func newMQTTPublisher(client publishClient, prefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: prefix}
}

// Publish sends cmd to its society's barrier topic and waits for the
// broker acknowledgement or ctx.
func (p *MQTTPublisher) Publish(ctx context.Context, cmd Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal gate command: %w", err)
	}

	topic := Topic(p.prefix, cmd.Society)
	token := p.client.Publish(topic, qosAtLeastOnce, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		observability.GateCommands.WithLabelValues(cmd.Command, "timeout").Inc()
		return ctx.Err()
	case <-time.After(publishTimeout):
		observability.GateCommands.WithLabelValues(cmd.Command, "timeout").Inc()
		return fmt.Errorf("publish to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		observability.GateCommands.WithLabelValues(cmd.Command, "error").Inc()
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	observability.GateCommands.WithLabelValues(cmd.Command, "ok").Inc()
	return nil
}

// Close disconnects from the broker, allowing in-flight publishes 250ms.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
