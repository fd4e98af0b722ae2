package components

import (
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/Rorical/ragchat/ui/styles"
)

func RenderInput(input textinput.Model, loading bool, width int) string {
	if loading {
		return styles.BusyInputStyle(width).Render(input.View())
	}
	return styles.InputStyle(width).Render(input.View())
}
