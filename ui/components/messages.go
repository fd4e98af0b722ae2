package components

import (
	"strings"

	"github.com/Rorical/ragchat/internal/core"
	"github.com/Rorical/ragchat/internal/models"
	"github.com/Rorical/ragchat/ui/styles"
)

// RenderMessages draws the banner followed by the conversation. The
// in-progress reply gets spinnerView appended.
func RenderMessages(banner []string, messages models.ConversationLog, spinnerView string) string {
	var b strings.Builder

	programStyle := styles.ProgramStyle()
	userStyle := styles.UserStyle()
	assistantStyle := styles.AssistantStyle()
	errorStyle := styles.ErrorStyle()

	for _, line := range banner {
		b.WriteString(programStyle.Render(line) + "\n")
	}
	if len(banner) > 0 {
		b.WriteString("\n")
	}

	for _, msg := range messages {
		switch msg.Role {
		case models.User:
			b.WriteString(userStyle.Render("You: "+msg.Content) + "\n\n")
		case models.Assistant:
			if msg.Content == core.ErrorMarker {
				b.WriteString(errorStyle.Render("Assistant: "+msg.Content) + "\n\n")
				continue
			}
			content := msg.Content
			if msg.InProgress {
				content += " " + spinnerView
			}
			b.WriteString(assistantStyle.Render("Assistant: "+content) + "\n\n")
		}
	}

	return b.String()
}
