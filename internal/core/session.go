package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Rorical/ragchat/internal/models"
	"github.com/Rorical/ragchat/internal/stream"
)

// ErrorMarker replaces the assistant reply when an exchange fails.
const ErrorMarker = "Error: Could not get response."

var (
	ErrEmptyMessage  = errors.New("message is empty")
	ErrSessionBusy   = errors.New("an exchange is already in progress")
	ErrNotConfigured = errors.New("chat backend not configured")
)

type SessionState int

const (
	Idle SessionState = iota
	Sending
	Streaming
	Failed
)

func (s SessionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case Streaming:
		return "streaming"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// ChatTransport opens the streamed reply for one user message. A returned
// error means the reply was never accepted.
type ChatTransport interface {
	OpenStream(ctx context.Context, message string) (stream.Source, error)
}

type unconfiguredTransport struct{}

func (unconfiguredTransport) OpenStream(context.Context, string) (stream.Source, error) {
	return nil, ErrNotConfigured
}

// ChatSession runs one request/response exchange at a time against a
// ConversationStore.
type ChatSession struct {
	mu        sync.Mutex
	state     SessionState
	store     *ConversationStore
	transport ChatTransport
	logger    *zap.Logger
	onState   func(SessionState)
}

func NewChatSession(store *ConversationStore, transport ChatTransport, logger *zap.Logger) *ChatSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	if transport == nil {
		transport = unconfiguredTransport{}
	}
	return &ChatSession{
		state:     Idle,
		store:     store,
		transport: transport,
		logger:    logger.Named("session"),
	}
}

// OnStateChange registers a callback for state transitions. Call before the
// first Submit. fn runs on the submitting goroutine without the session lock
// held, so it may call State.
func (s *ChatSession) OnStateChange(fn func(SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

func (s *ChatSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit runs a full exchange for text and blocks until the reply has been
// streamed into the store or replaced by ErrorMarker.
//
// The only errors returned are the guard rejections ErrEmptyMessage and
// ErrSessionBusy, in which case the store is untouched. Transport and HTTP
// failures are turned into the error marker message and never returned.
func (s *ChatSession) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrSessionBusy
	}
	s.state = Sending
	notify := s.onState
	s.mu.Unlock()

	// Other submitters already see Sending, so the store writes below
	// need not hold the session lock.
	if notify != nil {
		notify(Sending)
	}
	s.store.Append(models.NewUserMessage(text))
	s.store.Begin(models.Assistant)

	defer s.setState(Idle)

	src, err := s.transport.OpenStream(ctx, text)
	if err != nil {
		s.fail(err)
		return nil
	}
	defer src.Close()

	s.setState(Streaming)
	asm := stream.NewAssembler(src)
	for {
		snap, err := asm.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.fail(err)
			return nil
		}
		s.store.UpdateLast(snap)
	}

	s.store.Complete()
	if n := asm.Replacements(); n > 0 {
		s.logger.Warn("reply contained malformed UTF-8", zap.Int("replacements", n))
	}
	s.logger.Debug("exchange complete",
		zap.Int("chunks", asm.Chunks()),
		zap.Int("bytes", len(asm.Content())))
	return nil
}

func (s *ChatSession) fail(err error) {
	s.setState(Failed)
	s.logger.Error("exchange failed", zap.Error(err))
	s.store.Fail(ErrorMarker)
}

func (s *ChatSession) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	notify := s.onState
	s.mu.Unlock()

	if notify != nil {
		notify(state)
	}
}
