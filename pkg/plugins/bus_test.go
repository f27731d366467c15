package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitReachesEverySubscriber(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var wg sync.WaitGroup
	var calls atomic.Int32

	wg.Add(2)
	for _, name := range []string{"a", "b"} {
		bus.Subscribe(EventGameCreated, name, func(_ context.Context, ev Event) error {
			defer wg.Done()
			assert.Equal(t, "Arena1", ev.GameName)
			assert.False(t, ev.Time.IsZero())
			calls.Add(1)
			return nil
		})
	}

	bus.Emit(context.Background(), Event{Type: EventGameCreated, GameName: "Arena1"})
	wg.Wait()
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmitSyncReturnsFirstError(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	boom := errors.New("boom")
	bus.Subscribe(EventGameEnded, "fails", func(context.Context, Event) error { return boom })
	bus.Subscribe(EventGameEnded, "panics", func(context.Context, Event) error { panic("bad plugin") })

	err := bus.EmitSync(context.Background(), Event{Type: EventGameEnded})
	assert.ErrorIs(t, err, boom)
}

func TestUnsubscribeAndStop(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	bus.Subscribe(EventPlayerLoggedIn, "x", func(context.Context, Event) error { return nil })
	bus.Subscribe(EventPlayerLoggedIn, "y", func(context.Context, Event) error { return nil })
	require.Equal(t, 2, bus.HandlerCount(EventPlayerLoggedIn))

	bus.Unsubscribe(EventPlayerLoggedIn, "x")
	assert.Equal(t, 1, bus.HandlerCount(EventPlayerLoggedIn))

	var called atomic.Bool
	bus.Subscribe(EventPlayerLoggedOut, "late", func(context.Context, Event) error {
		called.Store(true)
		return nil
	})
	bus.Stop()
	bus.Stop()

	select {
	case <-bus.StopCh():
	default:
		t.Fatal("stop channel not closed")
	}
	bus.Emit(context.Background(), Event{Type: EventPlayerLoggedOut})
	assert.NoError(t, bus.EmitSync(context.Background(), Event{Type: EventPlayerLoggedOut}))
	assert.False(t, called.Load())
}

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type publish struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	mu        sync.Mutex
	connected bool
	published []publish
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return doneToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	c.published = append(c.published, publish{topic: topic, payload: payload.([]byte)})
	c.mu.Unlock()
	return doneToken{}
}

func TestMQTTPublisherForwardsEvents(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	cfg := DefaultMQTTConfig()
	cfg.Enabled = true
	cfg.TopicPrefix = "medius/"

	p, err := NewMQTTPublisher(cfg, bus, zerolog.Nop())
	require.NoError(t, err)
	client := &fakeClient{}
	p.client = client

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()

	require.Eventually(t, func() bool { return bus.HandlerCount(EventGameCreated) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, bus.EmitSync(ctx, Event{Type: EventGameCreated, GameID: 7, GameName: "Arena1"}))

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 0, bus.HandlerCount(EventGameCreated))

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.published, 1)
	assert.Equal(t, "medius/game_created", client.published[0].topic)

	var msg struct {
		Payload Event `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(client.published[0].payload, &msg))
	assert.Equal(t, int32(7), msg.Payload.GameID)
	assert.Equal(t, "Arena1", msg.Payload.GameName)
}

func TestMQTTPublisherDisabled(t *testing.T) {
	_, err := NewMQTTPublisher(DefaultMQTTConfig(), NewBus(zerolog.Nop()), zerolog.Nop())
	assert.Error(t, err)
}
