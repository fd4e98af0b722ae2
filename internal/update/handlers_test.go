package update

import (
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rorical/ragchat/internal/eventbus"
	"github.com/Rorical/ragchat/internal/models"
)

func newAppModel(input string) *models.AppModel {
	ti := textinput.New()
	ti.Focus()
	ti.SetValue(input)
	return &models.AppModel{Input: ti, Spinner: spinner.New()}
}

func enter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }

func nextUIEvent(t *testing.T, eb *eventbus.EventBus) eventbus.UIEvent {
	t.Helper()
	select {
	case e := <-eb.UIToCore():
		return e
	default:
		t.Fatal("expected a UI event")
		return nil
	}
}

func assertNoUIEvent(t *testing.T, eb *eventbus.EventBus) {
	t.Helper()
	select {
	case e := <-eb.UIToCore():
		t.Fatalf("unexpected UI event %#v", e)
	default:
	}
}

func TestEnter_SendsMessage(t *testing.T) {
	eb := eventbus.NewEventBus()
	m := newAppModel("  hello there ")

	HandleKeyMsgWithEventBus(m, enter(), eb, true)

	event := nextUIEvent(t, eb)
	assert.Equal(t, eventbus.SendMessageEvent{Message: "  hello there "}, event)
	assert.Empty(t, m.Input.Value())
}

func TestEnter_IgnoresBlankInput(t *testing.T) {
	eb := eventbus.NewEventBus()
	m := newAppModel("   ")

	HandleKeyMsgWithEventBus(m, enter(), eb, true)
	assertNoUIEvent(t, eb)
}

func TestEnter_IgnoredWhileLoading(t *testing.T) {
	eb := eventbus.NewEventBus()
	m := newAppModel("second question")
	m.Loading = true

	HandleKeyMsgWithEventBus(m, enter(), eb, true)

	assertNoUIEvent(t, eb)
	assert.Equal(t, "second question", m.Input.Value())
}

func TestEnter_NotReady(t *testing.T) {
	eb := eventbus.NewEventBus()
	m := newAppModel("hi")

	HandleKeyMsgWithEventBus(m, enter(), eb, false)

	assertNoUIEvent(t, eb)
	assert.Equal(t, "Chat service not available", m.Status)
}

func TestEnter_UploadCommand(t *testing.T) {
	eb := eventbus.NewEventBus()
	m := newAppModel("/upload ./data/export.zip")

	HandleKeyMsgWithEventBus(m, enter(), eb, true)

	assert.Equal(t, eventbus.UploadEvent{Path: "./data/export.zip"}, nextUIEvent(t, eb))
	assert.Empty(t, m.Input.Value())

	m.Input.SetValue("/upload")
	HandleKeyMsgWithEventBus(m, enter(), eb, true)
	assertNoUIEvent(t, eb)
	assert.Equal(t, uploadUsage, m.Notice)
}

func TestEnter_UploadPrefixIsOnlyACommandWhenSeparated(t *testing.T) {
	eb := eventbus.NewEventBus()
	m := newAppModel("/uploads are broken?")

	HandleKeyMsgWithEventBus(m, enter(), eb, true)
	assert.Equal(t, eventbus.SendMessageEvent{Message: "/uploads are broken?"}, nextUIEvent(t, eb))
}

func TestQuitKeys(t *testing.T) {
	eb := eventbus.NewEventBus()
	for _, key := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc} {
		cmd := HandleKeyMsgWithEventBus(newAppModel(""), tea.KeyMsg{Type: key}, eb, true)
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}
}

func TestTypingGoesToInput(t *testing.T) {
	eb := eventbus.NewEventBus()
	m := newAppModel("")

	HandleKeyMsgWithEventBus(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hé")}, eb, true)
	assert.Equal(t, "hé", m.Input.Value())
}

func TestHandleCoreEvent_StateUpdate(t *testing.T) {
	m := newAppModel("")
	log := models.ConversationLog{
		models.NewUserMessage("q"),
		{Role: models.Assistant, Content: "par", InProgress: true},
	}

	cmd := HandleCoreEvent(m, CoreEventMsg{Event: eventbus.StateUpdateEvent{Messages: log, IsProcessing: true}})
	assert.NotNil(t, cmd, "spinner starts")
	assert.True(t, m.Loading)
	assert.Equal(t, "Processing", m.Status)
	assert.False(t, m.Input.Focused())
	assert.Equal(t, log, m.Messages)

	// Further streaming updates don't restart the spinner.
	assert.Nil(t, HandleCoreEvent(m, CoreEventMsg{Event: eventbus.StateUpdateEvent{Messages: log, IsProcessing: true}}))

	HandleCoreEvent(m, CoreEventMsg{Event: eventbus.StateUpdateEvent{Messages: log, IsProcessing: false}})
	assert.False(t, m.Loading)
	assert.Equal(t, "Ready", m.Status)
	assert.True(t, m.Input.Focused())
}

func TestHandleCoreEvent_StatusAndUpload(t *testing.T) {
	m := newAppModel("")

	HandleCoreEvent(m, CoreEventMsg{Event: eventbus.StatusUpdateEvent{
		Snapshot: models.StatusSnapshot{IngestionStatus: models.IngestionRunning},
	}})
	require.NotNil(t, m.Backend)
	assert.Equal(t, models.IngestionRunning, m.Backend.IngestionStatus)

	HandleCoreEvent(m, CoreEventMsg{Event: eventbus.UploadResultEvent{Message: "Error uploading file."}})
	assert.Equal(t, "Error uploading file.", m.Notice)
}

func TestHandleSpinnerTick_StopsWhenIdle(t *testing.T) {
	m := newAppModel("")
	assert.Nil(t, HandleSpinnerTick(m, spinner.TickMsg{}))
}

func TestHandleWindowSize(t *testing.T) {
	m := newAppModel("")
	HandleUpdateWithEventBus(m, tea.WindowSizeMsg{Width: 100, Height: 40}, eventbus.NewEventBus(), true)
	assert.Equal(t, 100, m.Width)
	assert.Equal(t, 40, m.Height)
	assert.Equal(t, 92, m.Input.Width)
}
