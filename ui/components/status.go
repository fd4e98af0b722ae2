package components

import (
	"fmt"
	"strings"

	"github.com/Rorical/ragchat/internal/models"
	"github.com/Rorical/ragchat/ui/styles"
)

// StatusLine formats a backend snapshot as
// "Status: RUNNING | Ingesting... 50% | Agent Ready [x] | message".
func StatusLine(snap *models.StatusSnapshot, polling bool) string {
	if !polling {
		return "Status: N/A"
	}
	if snap == nil {
		return "Status: connecting..."
	}

	parts := []string{"Status: " + snap.IngestionStatus.Label()}
	if snap.IngestionStatus == models.IngestionRunning {
		ingesting := "Ingesting..."
		if snap.IngestionProgress != nil {
			ingesting += fmt.Sprintf(" %.0f%%", *snap.IngestionProgress*100)
		}
		parts = append(parts, ingesting)
	}

	ready := "[ ]"
	if snap.AgentInitialized {
		ready = "[x]"
	}
	parts = append(parts, "Agent Ready "+ready)

	if msg := snap.Message(); msg != "" {
		parts = append(parts, msg)
	}
	return strings.Join(parts, " | ")
}

func RenderStatus(snap *models.StatusSnapshot, polling bool, local string, width int) string {
	line := StatusLine(snap, polling)
	if local != "" {
		line += " | " + local
	}

	style := styles.StatusStyle(width)
	switch {
	case snap != nil && snap.IngestionStatus == models.IngestionRunning:
		style = styles.RunningStatusStyle(width)
	case snap != nil && snap.AgentInitialized:
		style = styles.ReadyStatusStyle(width)
	}
	return style.Render(line)
}

func RenderNotice(notice string) string {
	if notice == "" {
		return ""
	}
	return styles.NoticeStyle().Render(notice) + "\n"
}
