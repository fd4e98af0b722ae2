package app

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/Rorical/ragchat/internal/backend"
	"github.com/Rorical/ragchat/internal/config"
	"github.com/Rorical/ragchat/internal/core"
	"github.com/Rorical/ragchat/internal/dispatcher"
	"github.com/Rorical/ragchat/internal/eventbus"
	"github.com/Rorical/ragchat/internal/logger"
	"github.com/Rorical/ragchat/internal/models"
)

// Application manages the complete application lifecycle
type Application struct {
	config     *config.Config
	logger     *zap.Logger
	eventBus   *eventbus.EventBus
	dispatcher *dispatcher.EventDispatcher
	service    *core.ChatService
	model      *AppModel
}

type AppModel struct {
	appModel   models.AppModel
	dispatcher *dispatcher.EventDispatcher
}

func NewApplication() (*Application, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogFile(), cfg.GetLogLevel())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	eb := eventbus.NewEventBus()
	eb.SetErrorCallback(func(e eventbus.EventBusError) {
		log.Warn("event bus error", zap.String("op", e.Operation), zap.Error(e.Err))
	})

	disp := dispatcher.NewEventDispatcher(eb)
	chatService := NewChatService(cfg, eb, log)

	model := &AppModel{
		appModel:   createInitialAppModel(chatService),
		dispatcher: disp,
	}

	return &Application{
		config:     cfg,
		logger:     log,
		eventBus:   eb,
		dispatcher: disp,
		service:    chatService,
		model:      model,
	}, nil
}

// NewChatService builds the service for the configured backend kind. A
// profile that is not ready still gets a service so the UI can explain what
// is missing.
func NewChatService(cfg *config.Config, eb *eventbus.EventBus, log *zap.Logger) *core.ChatService {
	profile := cfg.Current()
	svcCfg := core.ServiceConfig{
		ProfileName:  cfg.CurrentName(),
		BackendLabel: profile.Backend,
		Ready:        cfg.IsValid(),
		PollInterval: cfg.PollInterval(),
	}
	if !svcCfg.Ready {
		return core.NewChatService(svcCfg, nil, nil, nil, eb, log)
	}

	switch profile.Backend {
	case config.BackendOpenAI:
		transport := backend.NewOpenAIChat(profile.APIKey, profile.BaseURL, profile.Model, log)
		return core.NewChatService(svcCfg, transport, nil, nil, eb, log)
	default:
		client := NewBackendClient(cfg, log)
		return core.NewChatService(svcCfg, client, client, client, eb, log)
	}
}

// NewBackendClient returns an HTTP client for the RAG backend of the current
// profile.
func NewBackendClient(cfg *config.Config, log *zap.Logger) *backend.Client {
	return backend.NewClient(backend.ClientConfig{
		BaseURL:        cfg.GetBaseURL(),
		RequestTimeout: cfg.RequestTimeout(),
		HeaderTimeout:  cfg.RequestTimeout(),
	}, log)
}

func (app *Application) Start() error {
	if err := app.service.Start(); err != nil {
		return fmt.Errorf("start chat service: %w", err)
	}
	app.logger.Info("application started",
		zap.String("profile", app.config.CurrentName()),
		zap.String("backend", app.config.GetBackend()))

	p := tea.NewProgram(app.model)
	_, err := p.Run()
	return err
}

// Stop tears down in dependency order: the service stops publishing before
// the bus it publishes on is closed.
func (app *Application) Stop() {
	app.service.Stop()
	app.dispatcher.Stop()
	app.eventBus.Close()
	_ = app.logger.Sync()
}

func createInitialAppModel(chatService *core.ChatService) models.AppModel {
	input := textinput.New()
	input.Placeholder = "Ask about your data, or /upload <file.zip>"
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	// No initial messages in UI - they come from core as single source of truth
	return models.AppModel{
		Banner:           chatService.Banner(),
		Messages:         make(models.ConversationLog, 0),
		Input:            input,
		Spinner:          spin,
		Status:           "Ready",
		PollingEnabled:   chatService.PollingEnabled(),
		ChatServiceReady: chatService.IsReady(),
	}
}
