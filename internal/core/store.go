package core

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Rorical/ragchat/internal/models"
)

// ConversationStore is the ordered, append-only conversation log. At most
// one message is in progress at a time and it is always the last one.
//
// Every mutation publishes a fresh snapshot to subscribers while the store
// lock is held, so observers see mutations one at a time and in order.
// Subscribers must not call back into the store.
type ConversationStore struct {
	mu         sync.RWMutex
	messages   []models.Message
	inProgress uuid.UUID // uuid.Nil when no message is streaming
	index      map[uuid.UUID]int
	nextSub    int
	subs       map[int]func(models.ConversationLog)
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		messages: make([]models.Message, 0),
		index:    make(map[uuid.UUID]int),
		subs:     make(map[int]func(models.ConversationLog)),
	}
}

// Subscribe registers fn for every published snapshot and returns a func that
// removes it.
func (cs *ConversationStore) Subscribe(fn func(models.ConversationLog)) func() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	id := cs.nextSub
	cs.nextSub++
	cs.subs[id] = fn
	return func() {
		cs.mu.Lock()
		defer cs.mu.Unlock()
		delete(cs.subs, id)
	}
}

// Append adds a completed message. Appending while a message is in progress
// would break the in-progress-is-last invariant and panics.
func (cs *ConversationStore) Append(msg models.Message) uuid.UUID {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.mustBeIdle("Append")
	msg.InProgress = false
	cs.push(msg)
	return msg.ID
}

// Begin appends an empty in-progress message for role and returns its ID.
func (cs *ConversationStore) Begin(role models.Role) uuid.UUID {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.mustBeIdle("Begin")

	msg := models.NewMessage(role, "")
	msg.InProgress = true
	cs.push(msg)
	cs.inProgress = msg.ID
	return msg.ID
}

// UpdateLast replaces the content of the in-progress message.
func (cs *ConversationStore) UpdateLast(content string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	i := cs.mustBeStreaming("UpdateLast")
	cs.messages[i].Content = content
	cs.publish()
}

// Complete freezes the in-progress message.
func (cs *ConversationStore) Complete() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	i := cs.mustBeStreaming("Complete")
	cs.messages[i].InProgress = false
	cs.inProgress = uuid.Nil
	cs.publish()
}

// Fail ends the current turn with a single assistant message carrying
// content. The in-progress message is overwritten if one exists; otherwise
// a new message is appended.
func (cs *ConversationStore) Fail(content string) uuid.UUID {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.inProgress == uuid.Nil {
		msg := models.NewAssistantMessage(content)
		cs.push(msg)
		return msg.ID
	}

	i := cs.index[cs.inProgress]
	cs.messages[i].Content = content
	cs.messages[i].InProgress = false
	id := cs.inProgress
	cs.inProgress = uuid.Nil
	cs.publish()
	return id
}

// InProgress returns the ID of the streaming message, if any.
func (cs *ConversationStore) InProgress() (uuid.UUID, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.inProgress, cs.inProgress != uuid.Nil
}

// Snapshot returns a read-only copy of the log.
func (cs *ConversationStore) Snapshot() models.ConversationLog {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.snapshot()
}

func (cs *ConversationStore) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.messages)
}

func (cs *ConversationStore) push(msg models.Message) {
	cs.index[msg.ID] = len(cs.messages)
	cs.messages = append(cs.messages, msg)
	cs.publish()
}

func (cs *ConversationStore) snapshot() models.ConversationLog {
	result := make(models.ConversationLog, len(cs.messages))
	copy(result, cs.messages)
	return result
}

func (cs *ConversationStore) publish() {
	if len(cs.subs) == 0 {
		return
	}
	snap := cs.snapshot()
	for _, fn := range cs.subs {
		fn(snap)
	}
}

func (cs *ConversationStore) mustBeIdle(op string) {
	if cs.inProgress != uuid.Nil {
		panic("core: " + op + " while a message is in progress")
	}
}

func (cs *ConversationStore) mustBeStreaming(op string) int {
	if cs.inProgress == uuid.Nil {
		panic("core: " + op + " without an in-progress message")
	}
	return cs.index[cs.inProgress]
}
