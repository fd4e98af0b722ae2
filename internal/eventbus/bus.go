package eventbus

import (
	"errors"
	"sync"
	"time"

	"github.com/Rorical/ragchat/internal/models"
)

// UIEvent represents events sent from UI to Core
type UIEvent interface {
	UIEvent()
}

// CoreEvent represents events sent from Core to UI
type CoreEvent interface {
	CoreEvent()
}

// SendMessageEvent - UI requests core to send a message
type SendMessageEvent struct {
	Message string
}

func (e SendMessageEvent) UIEvent() {}

// UploadEvent - UI requests an archive upload followed by ingestion
type UploadEvent struct {
	Path string
}

func (e UploadEvent) UIEvent() {}

// StateUpdateEvent - Core pushes the full conversation snapshot to UI
type StateUpdateEvent struct {
	Messages     models.ConversationLog
	IsProcessing bool
}

func (e StateUpdateEvent) CoreEvent() {}

// StatusUpdateEvent - Core pushes the latest backend status snapshot
type StatusUpdateEvent struct {
	Snapshot models.StatusSnapshot
}

func (e StatusUpdateEvent) CoreEvent() {}

// UploadResultEvent - Core reports how an upload went
type UploadResultEvent struct {
	Message string
}

func (e UploadResultEvent) CoreEvent() {}

// EventBusError represents errors in event processing
type EventBusError struct {
	Operation string
	Err       error
	Timestamp time.Time
}

func (e EventBusError) Error() string {
	return e.Operation + ": " + e.Err.Error()
}

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	ErrUIToCore    = errors.New("UI to Core channel is full")
	ErrCoreToUI    = errors.New("Core to UI channel is full")
	ErrClosed      = errors.New("event bus is closed")
)

// CircuitBreakerState represents the state of circuit breaker
type CircuitBreakerState int

const (
	CircuitClosed CircuitBreakerState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreaker implements circuit breaker pattern
type CircuitBreaker struct {
	mu              sync.Mutex
	maxFailures     int
	resetTimeout    time.Duration
	failureCount    int
	lastFailureTime time.Time
	state           CircuitBreakerState
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        CircuitClosed,
	}
}

func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen {
		// Check if we should transition to half-open
		if time.Since(cb.lastFailureTime) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
		}
	}
	return cb.state == CircuitOpen
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount = 0
	cb.state = CircuitClosed
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount++
	cb.lastFailureTime = time.Now()

	if cb.failureCount >= cb.maxFailures {
		cb.state = CircuitOpen
	}
}

func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// EventBus handles communication between UI and Core with circuit breaker.
//
// Conversation state does not go through the Core to UI queue: it is kept in
// a single slot that each PublishState overwrites, so a slow UI skips
// intermediate snapshots but always receives the newest one.
type EventBus struct {
	mu             sync.RWMutex
	closed         bool
	uiToCore       chan UIEvent
	coreToUI       chan CoreEvent
	errorCallback  func(EventBusError)
	circuitBreaker *CircuitBreaker

	stateMu    sync.Mutex
	state      *StateUpdateEvent
	stateReady chan struct{}
}

func NewEventBus() *EventBus {
	return &EventBus{
		uiToCore:       make(chan UIEvent, 100),
		coreToUI:       make(chan CoreEvent, 256),
		circuitBreaker: NewCircuitBreaker(5, 30*time.Second),
		stateReady:     make(chan struct{}, 1),
	}
}

func (eb *EventBus) SetErrorCallback(callback func(EventBusError)) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.errorCallback = callback
}

func (eb *EventBus) reportError(operation string, err error) {
	busError := EventBusError{
		Operation: operation,
		Err:       err,
		Timestamp: time.Now(),
	}

	eb.circuitBreaker.RecordFailure()

	if eb.errorCallback != nil {
		eb.errorCallback(busError)
	}
}

func (eb *EventBus) SendToCore(event UIEvent) error {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return ErrClosed
	}
	if eb.circuitBreaker.IsOpen() {
		eb.reportError("SendToCore", ErrCircuitOpen)
		return ErrCircuitOpen
	}

	select {
	case eb.uiToCore <- event:
		eb.circuitBreaker.RecordSuccess()
		return nil
	default:
		eb.reportError("SendToCore", ErrUIToCore)
		return ErrUIToCore
	}
}

func (eb *EventBus) SendToUI(event CoreEvent) error {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return ErrClosed
	}
	if eb.circuitBreaker.IsOpen() {
		eb.reportError("SendToUI", ErrCircuitOpen)
		return ErrCircuitOpen
	}

	select {
	case eb.coreToUI <- event:
		eb.circuitBreaker.RecordSuccess()
		return nil
	default:
		eb.reportError("SendToUI", ErrCoreToUI)
		return ErrCoreToUI
	}
}

// PublishState replaces the pending conversation state. It never blocks and
// never trips the circuit breaker.
func (eb *EventBus) PublishState(event StateUpdateEvent) error {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return ErrClosed
	}

	eb.stateMu.Lock()
	eb.state = &event
	eb.stateMu.Unlock()

	select {
	case eb.stateReady <- struct{}{}:
	default:
		// A wakeup is already pending; it will pick up this state.
	}
	return nil
}

// StateReady is signalled when a state is pending. It is closed by Close.
func (eb *EventBus) StateReady() <-chan struct{} {
	return eb.stateReady
}

// TakeState returns the pending state and clears the slot.
func (eb *EventBus) TakeState() (StateUpdateEvent, bool) {
	eb.stateMu.Lock()
	defer eb.stateMu.Unlock()
	if eb.state == nil {
		return StateUpdateEvent{}, false
	}
	event := *eb.state
	eb.state = nil
	return event, true
}

func (eb *EventBus) UIToCore() <-chan UIEvent {
	return eb.uiToCore
}

func (eb *EventBus) CoreToUI() <-chan CoreEvent {
	return eb.coreToUI
}

func (eb *EventBus) GetCircuitBreakerState() CircuitBreakerState {
	return eb.circuitBreaker.State()
}

// Close closes the channels. Sends after Close return ErrClosed.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return
	}
	eb.closed = true
	close(eb.uiToCore)
	close(eb.coreToUI)
	close(eb.stateReady)
}
