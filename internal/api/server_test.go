package api

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/larsks/gpiocdev/internal/cdev"
	"github.com/larsks/gpiocdev/internal/lineops"
	"github.com/larsks/gpiocdev/internal/linespec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	chip string
	ev   cdev.LineEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) PublishLineEvent(chipPath string, ev cdev.LineEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{chip: chipPath, ev: ev})
	return p.err
}

func TestNewServer_InvalidWatch(t *testing.T) {
	tests := []struct {
		name  string
		watch []string
		edge  string
	}{
		{"bad line", []string{"GPIOx"}, "both"},
		{"bad parameter", []string{"4:sideways"}, "both"},
		{"bad edge", []string{"4"}, "sideways"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.Watch = tt.watch
			cfg.WatchEdge = tt.edge
			_, err := newServer(cfg, newFakeLines(), nil, false)
			assert.ErrorIs(t, err, ErrWatchConfig)
		})
	}
}

func TestNewServer_InvalidMQTTURL(t *testing.T) {
	cfg := NewConfig()
	cfg.Watch = []string{"4"}
	cfg.MQTT.ServerURL = "http://broker"
	_, err := NewServer(cfg)
	assert.ErrorIs(t, err, ErrMQTTInitFailed)
}

func TestStartWatchers_Publishes(t *testing.T) {
	lines := newFakeLines()
	lines.events = []cdev.LineEvent{
		{Offset: 4, Timestamp: time.Second, Type: cdev.RisingEdgeEvent},
		{Offset: 5, Timestamp: 2 * time.Second, Type: cdev.RisingEdgeEvent},
		{Offset: 4, Timestamp: 3 * time.Second, Type: cdev.FallingEdgeEvent},
	}
	publisher := &fakePublisher{err: errors.New("not connected")}

	cfg := NewConfig()
	cfg.Watch = []string{"GPIO4:active-low"}
	server := createTestServer(t, cfg, lines, publisher)

	var wg sync.WaitGroup
	server.startWatchers(context.Background(), &wg)
	wg.Wait()

	// publish failures are logged, not fatal
	require.Len(t, publisher.events, 2)
	assert.Equal(t, "/dev/gpiochip0", publisher.events[0].chip)
	assert.Equal(t, cdev.RisingEdgeEvent, publisher.events[0].ev.Type)
	assert.Equal(t, cdev.FallingEdgeEvent, publisher.events[1].ev.Type)
}

func TestStartWatchers_MissingChip(t *testing.T) {
	cfg := NewConfig()
	cfg.Chip = "gpiochip9"
	cfg.Watch = []string{"4"}
	publisher := &fakePublisher{}
	server := createTestServer(t, cfg, newFakeLines(), publisher)

	var wg sync.WaitGroup
	server.startWatchers(context.Background(), &wg)
	wg.Wait()

	assert.Empty(t, publisher.events)
}

func TestStartWatchers_NoPublisher(t *testing.T) {
	cfg := NewConfig()
	cfg.Watch = []string{"4"}
	server := createTestServer(t, cfg, newFakeLines(), nil)

	var wg sync.WaitGroup
	server.startWatchers(context.Background(), &wg)
	wg.Wait()
}

func TestAPIHandler_InvalidConfig(t *testing.T) {
	err := NewAPIHandler().Start(context.Background(), nil)
	assert.ErrorContains(t, err, "invalid config type")
}

// blockingLines watches until the context is cancelled.
type blockingLines struct {
	*fakeLines
	started chan struct{}
}

func (b *blockingLines) Watch(ctx context.Context, chip string, spec *linespec.LineSpec, edges cdev.EdgeFlags, fn lineops.EventHandler) error {
	close(b.started)
	<-ctx.Done()
	return ctx.Err()
}

func startBlockingServer(t *testing.T, port int) (*Server, *blockingLines) {
	t.Helper()
	lines := &blockingLines{fakeLines: newFakeLines(), started: make(chan struct{})}
	cfg := NewConfig()
	cfg.Watch = []string{"4"}
	cfg.ListenAddress = "127.0.0.1"
	cfg.ListenPort = port
	return createTestServer(t, cfg, lines, &fakePublisher{}), lines
}

func runStart(ctx context.Context, server *Server) <-chan error {
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()
	return done
}

func TestStart_StopsWatchersOnListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close() //nolint:errcheck

	server, lines := startBlockingServer(t, ln.Addr().(*net.TCPAddr).Port)
	done := runStart(context.Background(), server)

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after listen failure")
	}

	select {
	case <-lines.started:
	default:
		t.Fatal("watcher was never started")
	}
}

func TestStart_StopsWatchersOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	server, lines := startBlockingServer(t, port)
	ctx, cancel := context.WithCancel(context.Background())
	done := runStart(ctx, server)

	select {
	case <-lines.started:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher was never started")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(7 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
