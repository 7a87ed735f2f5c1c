package rules

import (
	"sync"
	"time"
)

// EventType indicates the category of a rules event.
type EventType string

const (
	// Board/tetromino events
	EventStateChanged EventType = "STATE_CHANGED"
	EventPieceSpawned EventType = "PIECE_SPAWNED"
	EventPieceLocked  EventType = "PIECE_LOCKED"
	EventRowsCleared  EventType = "ROWS_CLEARED"
	EventToppedOut    EventType = "TOPPED_OUT"

	// Chess events
	EventPieceSelected EventType = "PIECE_SELECTED"
	EventPieceMoved    EventType = "PIECE_MOVED"
	EventPieceCaptured EventType = "PIECE_CAPTURED"

	// Turn events
	EventPhaseChanged     EventType = "PHASE_CHANGED"
	EventPlayerEliminated EventType = "PLAYER_ELIMINATED"
	EventGameFinished     EventType = "GAME_FINISHED"

	// Ledger events
	EventScoreChanged     EventType = "SCORE_CHANGED"
	EventLevelChanged     EventType = "LEVEL_CHANGED"
	EventResourcesChanged EventType = "RESOURCES_CHANGED"

	// Session events
	EventPaused        EventType = "PAUSED"
	EventResumed       EventType = "RESUMED"
	EventStateReplaced EventType = "STATE_REPLACED"
)

// Event represents a state change that other subsystems may react to.
type Event struct {
	Type      EventType
	GameID    string
	PlayerID  string            // player the event concerns, when applicable
	TargetID  string            // ID of the target (piece, zone, ...)
	Amount    int               // numeric value (rows, points, resources, ...)
	Data      string            // additional string data
	Timestamp time.Time
	Metadata  map[string]string
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type
// filtering. Delivery happens on the publisher's goroutine.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle,
// whether it was registered for all events or for a single type.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	if typed, ok := bus.typedListeners[event.Type]; ok {
		for _, listener := range typed {
			listener.Callback(event)
		}
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, gameID, playerID string) Event {
	return Event{
		Type:      eventType,
		GameID:    gameID,
		PlayerID:  playerID,
		Timestamp: time.Now(),
		Metadata:  make(map[string]string),
	}
}

// NewEventWithAmount creates a new event with an amount value.
func NewEventWithAmount(eventType EventType, gameID, playerID string, amount int) Event {
	evt := NewEvent(eventType, gameID, playerID)
	evt.Amount = amount
	return evt
}
