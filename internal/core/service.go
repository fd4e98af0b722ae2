package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Rorical/ragchat/internal/eventbus"
	"github.com/Rorical/ragchat/internal/models"
)

// Uploader is the upload/ingest collaborator.
type Uploader interface {
	UploadAndIngest(ctx context.Context, path string) string
}

type ServiceConfig struct {
	ProfileName  string
	BackendLabel string
	Ready        bool
	PollInterval time.Duration
}

type ChatService struct {
	cfg      ServiceConfig
	store    *ConversationStore
	session  *ChatSession
	poller   *StatusPoller // nil when the backend has no status endpoint
	uploader Uploader      // nil when uploads are unsupported
	eventBus *eventbus.EventBus
	logger   *zap.Logger
	banner   []string
	busy     atomic.Bool

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	unsubs   []func()
}

// NewChatService wires a session, an optional status poller and an optional
// uploader to the event bus.
func NewChatService(cfg ServiceConfig, transport ChatTransport, fetcher StatusFetcher, uploader Uploader, eb *eventbus.EventBus, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := NewConversationStore()
	session := NewChatSession(store, transport, logger)

	var poller *StatusPoller
	if fetcher != nil {
		poller = NewStatusPoller(fetcher, DefaultMaxInFlight, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	service := &ChatService{
		cfg:      cfg,
		store:    store,
		session:  session,
		poller:   poller,
		uploader: uploader,
		eventBus: eb,
		logger:   logger.Named("service"),
		ctx:      ctx,
		cancel:   cancel,
	}
	service.banner = welcomeMessages(cfg, poller != nil, uploader != nil)

	service.unsubs = append(service.unsubs, store.Subscribe(func(log models.ConversationLog) {
		service.pushState(log, service.busy.Load() || log.InProgress())
	}))
	session.OnStateChange(func(state SessionState) {
		service.busy.Store(state != Idle)
		service.pushState(service.store.Snapshot(), state != Idle)
	})
	if poller != nil {
		service.unsubs = append(service.unsubs, poller.Subscribe(func(snap models.StatusSnapshot) {
			service.send(eventbus.StatusUpdateEvent{Snapshot: snap})
		}))
	}

	return service
}

// Start runs the core logic in a goroutine and starts status polling.
func (cs *ChatService) Start() error {
	cs.pushState(cs.store.Snapshot(), false)

	if cs.poller != nil {
		if err := cs.poller.Start(cs.cfg.PollInterval); err != nil {
			return fmt.Errorf("start status poller: %w", err)
		}
	}

	cs.wg.Add(1)
	go cs.eventLoop()
	return nil
}

// Stop stops polling and cancels any in-flight exchange. Safe to call more
// than once.
func (cs *ChatService) Stop() {
	cs.stopOnce.Do(func() {
		if cs.poller != nil {
			cs.poller.Stop()
		}
		cs.cancel()
		cs.wg.Wait()
		for _, unsub := range cs.unsubs {
			unsub()
		}
	})
}

func (cs *ChatService) eventLoop() {
	defer cs.wg.Done()
	for {
		select {
		case <-cs.ctx.Done():
			return
		case event, ok := <-cs.eventBus.UIToCore():
			if !ok {
				return
			}
			cs.handleUIEvent(event)
		}
	}
}

func (cs *ChatService) handleUIEvent(event eventbus.UIEvent) {
	switch e := event.(type) {
	case eventbus.SendMessageEvent:
		// The session's guard decides; a busy session rejects rather than queues.
		cs.wg.Add(1)
		go func() {
			defer cs.wg.Done()
			cs.processMessage(e.Message)
		}()
	case eventbus.UploadEvent:
		cs.wg.Add(1)
		go func() {
			defer cs.wg.Done()
			cs.processUpload(e.Path)
		}()
	}
}

func (cs *ChatService) processMessage(message string) {
	err := cs.session.Submit(cs.ctx, message)
	if errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrSessionBusy) {
		cs.logger.Debug("submission ignored", zap.Error(err))
	}
}

func (cs *ChatService) processUpload(path string) {
	if cs.uploader == nil {
		cs.send(eventbus.UploadResultEvent{Message: "Uploads are not supported by this backend."})
		return
	}
	cs.send(eventbus.UploadResultEvent{Message: "Uploading " + path + "..."})
	cs.send(eventbus.UploadResultEvent{Message: cs.uploader.UploadAndIngest(cs.ctx, path)})
}

// pushState goes through the bus's latest-state slot rather than the event
// queue, so the final snapshot of an exchange is never dropped.
func (cs *ChatService) pushState(log models.ConversationLog, processing bool) {
	err := cs.eventBus.PublishState(eventbus.StateUpdateEvent{
		Messages:     log,
		IsProcessing: processing,
	})
	if err != nil {
		cs.logger.Warn("error publishing state to UI", zap.Error(err))
	}
}

func (cs *ChatService) send(event eventbus.CoreEvent) {
	if err := cs.eventBus.SendToUI(event); err != nil {
		cs.logger.Warn("error sending event to UI", zap.Error(err))
	}
}

func (cs *ChatService) IsReady() bool {
	return cs.cfg.Ready
}

func (cs *ChatService) PollingEnabled() bool {
	return cs.poller != nil
}

// Banner returns the welcome lines shown above the conversation.
func (cs *ChatService) Banner() []string {
	return cs.banner
}

// Session exposes the chat session, mainly for tests and one-shot commands.
func (cs *ChatService) Session() *ChatSession {
	return cs.session
}

func (cs *ChatService) Store() *ConversationStore {
	return cs.store
}

func welcomeMessages(cfg ServiceConfig, polling, uploads bool) []string {
	lines := []string{"-- RAGCHAT --"}

	if cfg.Ready {
		lines = append(lines, fmt.Sprintf("Active Profile: %s (%s) [OK]", cfg.ProfileName, cfg.BackendLabel))
		lines = append(lines, "Ready to chat! Type your message and press Enter")
	} else {
		lines = append(lines, fmt.Sprintf("Active Profile: %s [NOT CONFIGURED]", cfg.ProfileName))
		lines = append(lines, "Configure your profile to start chatting:")
		lines = append(lines, "• Run: ragchat profile add <name>")
		lines = append(lines, "• Or edit: ~/.ragchat/config.json")
	}
	if uploads {
		lines = append(lines, "Upload data: /upload <path/to/source-data.zip>")
	}
	if !polling {
		lines = append(lines, "Backend status is not available for this profile")
	}

	lines = append(lines, "Controls: Ctrl+C or Esc to exit")
	return lines
}
