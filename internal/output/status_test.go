package output

import (
	"strings"
	"testing"
)

func TestStatusBadge_NoColor(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	for _, status := range []string{"pending", "running", "completed", "failed", "weird"} {
		got := StatusBadge(status)
		if got != status {
			t.Errorf("StatusBadge(%q) = %q, want bare status with color disabled", status, got)
		}
	}
}

func TestEventGlyph_KnownTypes(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	seen := map[string]bool{}
	for _, et := range []string{"message", "tool_start", "tool_end", "subagent_start", "subagent_end", "other"} {
		g := EventGlyph(et)
		if g == "" {
			t.Errorf("EventGlyph(%q) returned empty string", et)
		}
		seen[g] = true
	}
	if len(seen) < 6 {
		t.Errorf("expected distinct glyphs per event type, got %d unique", len(seen))
	}
}

func TestSection_ContainsTitle(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	s := Section("Active Sessions")
	if !strings.Contains(s, "Active Sessions") {
		t.Errorf("Section output missing title: %q", s)
	}
	if !strings.Contains(s, "─") {
		t.Error("Section output missing rule")
	}
}
