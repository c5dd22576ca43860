package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/larsks/gpiocdev/internal/cdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	connected    bool
	publishErr   error
	messages     []published
	disconnected bool
}

func (p *fakePublisher) IsConnected() bool { return p.connected }

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.messages = append(p.messages, published{topic: topic, payload: payload.([]byte)})
	return &fakeToken{err: p.publishErr}
}

func (p *fakePublisher) Disconnect(quiesce uint) { p.disconnected = true }

func TestNewClient_InvalidURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"tcp scheme", "tcp://localhost:1883"},
		{"no scheme", "localhost:1883"},
		{"unparseable", "mqtt://[::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(Config{ServerURL: tt.url})
			assert.ErrorIs(t, err, ErrInvalidServerURL)
		})
	}
}

func TestEventTopic(t *testing.T) {
	assert.Equal(t, "gpiocdev/gpiochip0/17/rising", newClient(nil, "").EventTopic("/dev/gpiochip0", 17, "rising"))
	assert.Equal(t, "home/pi/gpiochip1/4/falling", newClient(nil, "home/pi/").EventTopic("/dev/gpiochip1", 4, "falling"))
}

func TestNewLineEvent(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	ev := cdev.LineEvent{Offset: 5, Timestamp: 1500 * time.Millisecond, Type: cdev.FallingEdgeEvent}

	got := NewLineEvent("/dev/gpiochip0", ev, now)
	assert.Equal(t, LineEvent{
		Chip:        "gpiochip0",
		Offset:      5,
		Edge:        "falling",
		TimestampNS: 1500000000,
		Time:        "2025-01-02T03:04:05Z",
	}, got)
}

func TestPublishLineEvent(t *testing.T) {
	p := &fakePublisher{connected: true}
	c := newClient(p, "gpio")

	ev := cdev.LineEvent{Offset: 3, Timestamp: time.Second, Type: cdev.RisingEdgeEvent}
	require.NoError(t, c.PublishLineEvent("/dev/gpiochip2", ev))
	require.Len(t, p.messages, 1)
	assert.Equal(t, "gpio/gpiochip2/3/rising", p.messages[0].topic)

	var payload LineEvent
	require.NoError(t, json.Unmarshal(p.messages[0].payload, &payload))
	assert.Equal(t, "gpiochip2", payload.Chip)
	assert.Equal(t, uint32(3), payload.Offset)
	assert.Equal(t, "rising", payload.Edge)
	assert.Equal(t, int64(time.Second), payload.TimestampNS)
}

func TestPublish_Errors(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		c := newClient(&fakePublisher{}, "")
		assert.ErrorIs(t, c.Publish("t", 0, false, []byte("x")), ErrNotConnected)
	})

	t.Run("nil client", func(t *testing.T) {
		c := newClient(nil, "")
		assert.ErrorIs(t, c.Publish("t", 0, false, []byte("x")), ErrNotConnected)
		assert.False(t, c.IsConnected())
	})

	t.Run("broker rejects", func(t *testing.T) {
		c := newClient(&fakePublisher{connected: true, publishErr: errors.New("boom")}, "")
		err := c.Publish("t", 0, false, []byte("x"))
		assert.ErrorIs(t, err, ErrPublish)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestDisconnect(t *testing.T) {
	p := &fakePublisher{connected: true}
	newClient(p, "").Disconnect(250)
	assert.True(t, p.disconnected)

	idle := &fakePublisher{}
	newClient(idle, "").Disconnect(250)
	assert.False(t, idle.disconnected)
}
