package dispatcher

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rorical/ragchat/internal/eventbus"
	"github.com/Rorical/ragchat/internal/update"
)

// EventDispatcher handles routing events between core and UI
type EventDispatcher struct {
	eventBus *eventbus.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewEventDispatcher(eventBus *eventbus.EventBus) *EventDispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventDispatcher{
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ListenForUIEvents returns a command that waits for the next core event and
// delivers it to the UI. The model re-issues it after every delivery.
func (ed *EventDispatcher) ListenForUIEvents() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case <-ed.ctx.Done():
				return nil
			case _, ok := <-ed.eventBus.StateReady():
				if !ok {
					return nil
				}
				if state, ok := ed.eventBus.TakeState(); ok {
					return update.CoreEventMsg{Event: state}
				}
			case event, ok := <-ed.eventBus.CoreToUI():
				if !ok {
					return nil
				}
				return update.CoreEventMsg{Event: event}
			}
		}
	}
}

func (ed *EventDispatcher) Stop() {
	ed.cancel()
}

func (ed *EventDispatcher) GetEventBus() *eventbus.EventBus {
	return ed.eventBus
}
