package models

import "strings"

type IngestionStatus string

const (
	IngestionIdle    IngestionStatus = "idle"
	IngestionRunning IngestionStatus = "running"
	IngestionDone    IngestionStatus = "done"
	IngestionError   IngestionStatus = "error"
)

func (s IngestionStatus) Valid() bool {
	switch s {
	case IngestionIdle, IngestionRunning, IngestionDone, IngestionError:
		return true
	}
	return false
}

func (s IngestionStatus) Label() string {
	return strings.ToUpper(string(s))
}

// StatusSnapshot is one backend status report. A snapshot is replaced
// wholesale by the next one; fields are never merged.
type StatusSnapshot struct {
	IngestionStatus   IngestionStatus `json:"ingestion_status"`
	AgentInitialized  bool            `json:"agent_initialized"`
	IngestionMessage  *string         `json:"ingestion_message,omitempty"`
	IngestionProgress *float64        `json:"ingestion_progress,omitempty"`
}

// Message returns the ingestion message or "" when the backend sent none.
func (s StatusSnapshot) Message() string {
	if s.IngestionMessage == nil {
		return ""
	}
	return *s.IngestionMessage
}
