package models

import (
	"time"

	"github.com/google/uuid"
)

type Role int

const (
	User Role = iota
	Assistant
)

func (r Role) String() string {
	switch r {
	case User:
		return "user"
	case Assistant:
		return "assistant"
	}
	return "unknown"
}

// Message is one entry of the conversation log. Only the entry flagged
// InProgress may still change, and only its Content grows.
type Message struct {
	ID         uuid.UUID
	Role       Role
	Content    string
	InProgress bool
	CreatedAt  time.Time
}

// NewMessage returns a finished message with a fresh ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func NewUserMessage(content string) Message {
	return NewMessage(User, content)
}

func NewAssistantMessage(content string) Message {
	return NewMessage(Assistant, content)
}

// ConversationLog is an ordered read-only copy of the conversation,
// oldest first.
type ConversationLog []Message

// Last returns the newest message, if any.
func (l ConversationLog) Last() (Message, bool) {
	if len(l) == 0 {
		return Message{}, false
	}
	return l[len(l)-1], true
}

// InProgress reports whether the log ends with a message that is still streaming.
func (l ConversationLog) InProgress() bool {
	last, ok := l.Last()
	return ok && last.InProgress
}
