package output

import (
	"fmt"
	"strings"
)

// StatusBadge returns a styled rendering of a session status.
func StatusBadge(status string) string {
	switch status {
	case "completed":
		return StyleSuccess.Render(status)
	case "failed":
		return StyleError.Render(status)
	case "running":
		return StyleWarning.Render(status)
	default:
		return StyleMuted.Render(status)
	}
}

// EventGlyph returns a short styled marker for a monitor event type.
func EventGlyph(eventType string) string {
	switch eventType {
	case "message":
		return StyleBold.Render("●")
	case "tool_start":
		return StyleWarning.Render("▶")
	case "tool_end":
		return StyleSuccess.Render("■")
	case "subagent_start":
		return StyleHeader.Render("⇒")
	case "subagent_end":
		return StyleHeader.Render("⇐")
	default:
		return StyleMuted.Render("·")
	}
}

// Section prints a styled section header with a horizontal rule.
func Section(title string) string {
	header := StyleHeader.Render(title)
	rule := StyleMuted.Render(strings.Repeat("─", 66))
	return fmt.Sprintf("\n %s\n %s", header, rule)
}
