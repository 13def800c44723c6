package gate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gatehouse/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeClient struct {
	topic        string
	qos          byte
	payload      []byte
	token        mqtt.Token
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.topic = topic
	c.qos = qos
	c.payload = payload.([]byte)
	return c.token
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestTopic(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "gatehouse/GreenValley/barrier", Topic("", "GreenValley"))
	assert.Equal(t, "estate/GreenValley/barrier", Topic("estate/", "GreenValley"))
	assert.Equal(t, "gatehouse/Block_A_/barrier", Topic("", "Block/A#"))
}

func TestConnect_EmptyBrokerIsNop(t *testing.T) {
	p, err := Connect(Config{})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.Publish(context.Background(), Command{Command: CommandOpen}))
	p.Close()
}

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeClient{token: completedToken(nil)}
	p := newMQTTPublisher(client, "estate")

	rec := &models.VisitorRecord{ID: 12, SocietyName: "GreenValley", FlatNumber: "A-101"}
	cmd := NewCommand(CommandOpen, rec, time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	require.NoError(t, p.Publish(context.Background(), cmd))

	assert.Equal(t, "estate/GreenValley/barrier", client.topic)
	assert.Equal(t, byte(1), client.qos)

	var got Command
	require.NoError(t, json.Unmarshal(client.payload, &got))
	assert.Equal(t, CommandOpen, got.Command)
	assert.Equal(t, uint(12), got.VisitorID)
	assert.Equal(t, "A-101", got.FlatNumber)
	assert.NotEmpty(t, got.ID)

	p.Close()
	assert.True(t, client.disconnected)
}

func TestMQTTPublisher_PublishError(t *testing.T) {
	client := &fakeClient{token: completedToken(errors.New("not connected"))}
	p := newMQTTPublisher(client, "")

	err := p.Publish(context.Background(), Command{Command: CommandClose, Society: "GreenValley"})
	assert.ErrorContains(t, err, "not connected")
}

func TestMQTTPublisher_ContextCancelled(t *testing.T) {
	client := &fakeClient{token: &fakeToken{done: make(chan struct{})}}
	p := newMQTTPublisher(client, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Publish(ctx, Command{Command: CommandOpen, Society: "GreenValley"})
	assert.ErrorIs(t, err, context.Canceled)
}
