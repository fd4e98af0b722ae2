package update

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rorical/ragchat/internal/eventbus"
	"github.com/Rorical/ragchat/internal/models"
)

const (
	uploadCommand = "/upload"
	uploadUsage   = "Usage: /upload <path/to/source-data.zip>"
)

// HandleKeyMsgWithEventBus handles keyboard input using event bus
func HandleKeyMsgWithEventBus(appModel *models.AppModel, keyMsg tea.KeyMsg, eb *eventbus.EventBus, chatReady bool) tea.Cmd {
	switch keyMsg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return tea.Quit
	case tea.KeyEnter:
		return handleEnter(appModel, eb, chatReady)
	}

	var cmd tea.Cmd
	appModel.Input, cmd = appModel.Input.Update(keyMsg)
	return cmd
}

func handleEnter(appModel *models.AppModel, eb *eventbus.EventBus, chatReady bool) tea.Cmd {
	// One exchange at a time; keep the draft until the reply lands.
	if appModel.Loading {
		return nil
	}

	text := appModel.Input.Value()
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if trimmed == uploadCommand || strings.HasPrefix(trimmed, uploadCommand+" ") {
		path := strings.TrimSpace(strings.TrimPrefix(trimmed, uploadCommand))
		if path == "" {
			appModel.Notice = uploadUsage
			return nil
		}
		if err := eb.SendToCore(eventbus.UploadEvent{Path: path}); err != nil {
			appModel.Status = "Error sending upload: " + err.Error()
			return nil
		}
		appModel.Input.Reset()
		return nil
	}

	if !chatReady {
		appModel.Input.Reset()
		appModel.Status = "Chat service not available"
		return nil
	}

	// Send event to core via event bus with error handling
	if err := eb.SendToCore(eventbus.SendMessageEvent{Message: text}); err != nil {
		appModel.Status = "Error sending message: " + err.Error()
		return nil
	}
	appModel.Input.Reset()
	return nil
}

// CoreEventMsg wraps core events for Bubble Tea
type CoreEventMsg struct {
	Event eventbus.CoreEvent
}

// HandleCoreEvent processes events from the core
func HandleCoreEvent(appModel *models.AppModel, coreEventMsg CoreEventMsg) tea.Cmd {
	switch event := coreEventMsg.Event.(type) {
	case eventbus.StateUpdateEvent:
		wasLoading := appModel.Loading
		appModel.Messages = event.Messages
		appModel.Loading = event.IsProcessing

		if event.IsProcessing {
			appModel.Status = "Processing"
			appModel.Input.Blur()
			if !wasLoading {
				return appModel.Spinner.Tick
			}
			return nil
		}
		appModel.Status = "Ready"
		return appModel.Input.Focus()

	case eventbus.StatusUpdateEvent:
		snap := event.Snapshot
		appModel.Backend = &snap

	case eventbus.UploadResultEvent:
		appModel.Notice = event.Message
	}

	return nil
}

// HandleSpinnerTick keeps the spinner running only while an exchange is
// outstanding.
func HandleSpinnerTick(appModel *models.AppModel, msg spinner.TickMsg) tea.Cmd {
	if !appModel.Loading {
		return nil
	}
	var cmd tea.Cmd
	appModel.Spinner, cmd = appModel.Spinner.Update(msg)
	return cmd
}

func HandleWindowSizeMsg(appModel *models.AppModel, sizeMsg tea.WindowSizeMsg) {
	appModel.Width = sizeMsg.Width
	appModel.Height = sizeMsg.Height
	appModel.Input.Width = max(sizeMsg.Width-8, 10)
}
