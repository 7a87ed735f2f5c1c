package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusSubscribe(t *testing.T) {
	bus := NewEventBus()

	var received []Event
	handle := bus.Subscribe(func(evt Event) {
		received = append(received, evt)
	})
	require.NotEqual(t, -1, handle)

	bus.Publish(NewEvent(EventPieceSpawned, "game-1", "alice"))
	bus.Publish(NewEventWithAmount(EventRowsCleared, "game-1", "alice", 2))

	require.Len(t, received, 2)
	assert.Equal(t, EventPieceSpawned, received[0].Type)
	assert.Equal(t, EventRowsCleared, received[1].Type)
	assert.Equal(t, 2, received[1].Amount)
}

func TestEventBusSubscribeTyped(t *testing.T) {
	bus := NewEventBus()

	var cleared int
	bus.SubscribeTyped(EventRowsCleared, func(evt Event) {
		cleared += evt.Amount
	})

	bus.Publish(NewEventWithAmount(EventRowsCleared, "game-1", "alice", 3))
	bus.Publish(NewEvent(EventPieceLocked, "game-1", "alice"))
	bus.Publish(NewEventWithAmount(EventRowsCleared, "game-1", "bob", 1))

	assert.Equal(t, 4, cleared, "typed listener only sees its event type")
}

func TestEventBusUnsubscribe(t *testing.T) {
	t.Run("all-events listener", func(t *testing.T) {
		bus := NewEventBus()

		count := 0
		handle := bus.Subscribe(func(Event) { count++ })

		bus.Publish(NewEvent(EventStateChanged, "game-1", ""))
		bus.Unsubscribe(handle)
		bus.Publish(NewEvent(EventStateChanged, "game-1", ""))

		assert.Equal(t, 1, count)
	})

	t.Run("typed listener", func(t *testing.T) {
		bus := NewEventBus()

		count := 0
		handle := bus.SubscribeTyped(EventPaused, func(Event) { count++ })

		bus.Publish(NewEvent(EventPaused, "game-1", ""))
		bus.Unsubscribe(handle)
		bus.Publish(NewEvent(EventPaused, "game-1", ""))

		assert.Equal(t, 1, count)
	})
}

func TestEventBusNilListener(t *testing.T) {
	bus := NewEventBus()
	assert.Equal(t, -1, bus.Subscribe(nil))
	assert.Equal(t, -1, bus.SubscribeTyped(EventPaused, nil))

	// Publishing with no listeners must not panic.
	bus.Publish(NewEvent(EventStateChanged, "game-1", ""))
}

func TestNewEventPopulatesCommonFields(t *testing.T) {
	evt := NewEvent(EventPieceCaptured, "game-1", "bob")

	assert.Equal(t, EventPieceCaptured, evt.Type)
	assert.Equal(t, "game-1", evt.GameID)
	assert.Equal(t, "bob", evt.PlayerID)
	assert.False(t, evt.Timestamp.IsZero())
	assert.NotNil(t, evt.Metadata)
}
