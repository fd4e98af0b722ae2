package models

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
)

// AppModel represents the UI state - only local UI concerns
type AppModel struct {
	Banner           []string        // Program messages shown above the conversation
	Messages         ConversationLog // Latest conversation snapshot from core
	Input            textinput.Model // Prompt field
	Spinner          spinner.Model   // Shown while an exchange is outstanding
	Status           string          // Status bar text
	Backend          *StatusSnapshot // Latest backend status, nil until the first poll lands
	PollingEnabled   bool            // False when the backend has no status endpoint
	Notice           string          // Result of the last upload
	Loading          bool            // Loading state from core
	Width            int             // Terminal width
	Height           int             // Terminal height
	ChatServiceReady bool            // Whether chat service is available
}
