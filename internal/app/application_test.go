package app

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rorical/ragchat/internal/config"
	"github.com/Rorical/ragchat/internal/dispatcher"
	"github.com/Rorical/ragchat/internal/eventbus"
	"github.com/Rorical/ragchat/internal/mockbackend"
	"github.com/Rorical/ragchat/internal/models"
	"github.com/Rorical/ragchat/internal/update"
)

func loadConfig(t *testing.T, file string, env map[string]string) *config.Config {
	t.Helper()
	home := t.TempDir()
	t.Setenv("RAGCHAT_HOME", home)
	for _, key := range []string{"RAGCHAT_PROFILE", "RAGCHAT_BASE_URL", "RAGCHAT_API_KEY", "RAGCHAT_MODEL", "RAGCHAT_POLL_INTERVAL"} {
		t.Setenv(key, env[key])
	}
	if file != "" {
		dir := filepath.Join(home, ".ragchat")
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(file), 0600))
	}
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	return cfg
}

func TestNewChatService_RAGBackendPolls(t *testing.T) {
	cfg := loadConfig(t, "", nil)

	service := NewChatService(cfg, eventbus.NewEventBus(), zap.NewNop())
	defer service.Stop()

	assert.True(t, service.IsReady())
	assert.True(t, service.PollingEnabled())
	assert.Contains(t, service.Banner(), "Upload data: /upload <path/to/source-data.zip>")
}

func TestNewChatService_OpenAIBackendHasNoStatus(t *testing.T) {
	cfg := loadConfig(t, `{"active_profile":"ai","profiles":{"ai":{"backend":"openai"}}}`,
		map[string]string{"RAGCHAT_API_KEY": "sk-test"})

	service := NewChatService(cfg, eventbus.NewEventBus(), zap.NewNop())
	defer service.Stop()

	assert.True(t, service.IsReady())
	assert.False(t, service.PollingEnabled())
}

func TestNewChatService_NotReadyProfile(t *testing.T) {
	cfg := loadConfig(t, `{"active_profile":"ai","profiles":{"ai":{"backend":"openai"}}}`, nil)

	service := NewChatService(cfg, eventbus.NewEventBus(), zap.NewNop())
	defer service.Stop()

	assert.False(t, service.IsReady())
	assert.Contains(t, service.Banner(), "Active Profile: ai [NOT CONFIGURED]")
}

// Drives the model the way the Bubble Tea runtime would, against the mock
// backend.
func TestAppModel_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(mockbackend.NewServer(mockbackend.Options{ChunkSize: 4}, nil).Router())
	defer srv.Close()

	cfg := loadConfig(t, "", map[string]string{
		"RAGCHAT_BASE_URL":      srv.URL + "/api",
		"RAGCHAT_POLL_INTERVAL": "50ms",
	})

	eb := eventbus.NewEventBus()
	disp := dispatcher.NewEventDispatcher(eb)
	service := NewChatService(cfg, eb, zap.NewNop())
	model := &AppModel{appModel: createInitialAppModel(service), dispatcher: disp}
	require.NoError(t, service.Start())
	defer func() {
		service.Stop()
		disp.Stop()
		eb.Close()
	}()

	model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	model.appModel.Input.SetValue("hello")
	model.Update(tea.KeyMsg{Type: tea.KeyEnter})

	want := mockbackend.Reply("hello")
	deadline := time.After(5 * time.Second)
	for {
		msg := model.dispatcher.ListenForUIEvents()()
		if msg != nil {
			model.Update(msg.(update.CoreEventMsg))
		}
		last, ok := model.appModel.Messages.Last()
		if ok && last.Role == models.Assistant && !last.InProgress && model.appModel.Backend != nil {
			assert.Equal(t, want, last.Content)
			break
		}
		select {
		case <-deadline:
			t.Fatal("exchange did not complete")
		default:
		}
	}

	assert.False(t, model.appModel.Loading)
	view := model.View()
	assert.Contains(t, view, "You: hello")
	assert.Contains(t, view, "Status: IDLE")
}
