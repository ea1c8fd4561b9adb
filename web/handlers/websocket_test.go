package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/tether/internal/pipeline"
	"github.com/scrypster/tether/pkg/types"
)

func TestHubBroadcastsEventsToClients(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	client := &MockClient{SendChan: make(chan []byte, 4)}
	hub.Register(client)

	event := pipeline.Event{
		EntityID:   types.NewEntityID(),
		Merged:     true,
		BestScore:  1.45,
		Attributes: 3,
	}
	hub.Broadcast(event)

	select {
	case data := <-client.SendChan:
		var got pipeline.Event
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, event.EntityID, got.EntityID)
		assert.True(t, got.Merged)
		assert.InDelta(t, 1.45, got.BestScore, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestOriginPatternsFollowConfiguredPort(t *testing.T) {
	assert.Equal(t,
		[]string{"localhost:9191", "127.0.0.1:9191"},
		OriginPatterns("127.0.0.1", 9191))

	// A non-loopback host is added alongside the loopback patterns.
	assert.Equal(t,
		[]string{"localhost:6464", "127.0.0.1:6464", "tether.internal:6464"},
		OriginPatterns("tether.internal", 6464))
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	// Unbuffered channel that nothing reads: the client is saturated
	// immediately and must be disconnected rather than block the hub.
	slow := &MockClient{SendChan: make(chan []byte)}
	hub.Register(slow)

	hub.Broadcast(pipeline.Event{EntityID: types.NewEntityID()})

	assert.Eventually(t, func() bool {
		select {
		case _, open := <-slow.SendChan:
			return !open
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "slow client's channel should be closed")
}
