package monitor

import (
	"testing"

	"github.com/blackwell-systems/sessionwatch/internal/stream"
)

func TestReplay_ReconstructsState(t *testing.T) {
	p := stream.NewParser()
	recs := p.Feed(`{"type":"user","message":{"content":"start"},"timestamp":"2026-03-01T10:00:00Z"}
{"type":"tool_use","name":"Bash","timestamp":"2026-03-01T10:00:01Z"}
{"type":"tool_use","name":"Read","timestamp":"2026-03-01T10:00:02Z"}
{"type":"tool_result","name":"Bash","timestamp":"2026-03-01T10:00:03Z"}
{"type":"task","task_id":"t1","subagent_type":"reviewer","prompt":"check it","timestamp":"2026-03-01T10:00:04Z"}
{"type":"assistant","message":{"content":"done"},"timestamp":"2026-03-01T10:00:05Z"}
`)

	st := Replay("s1", recs)
	if st == nil {
		t.Fatal("expected non-nil state")
	}
	if st.SessionID != "s1" {
		t.Errorf("SessionID = %q, want s1", st.SessionID)
	}
	if st.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", st.MessageCount)
	}
	if len(st.ActiveTools) != 1 || !st.ActiveTools["Read"] {
		t.Errorf("ActiveTools = %v, want only Read", st.ActiveTools)
	}
	sub, ok := st.Subagents["t1"]
	if !ok || sub.SubagentType != "reviewer" {
		t.Errorf("Subagents = %v, want t1 reviewer", st.Subagents)
	}
	if st.LastUpdated.IsZero() {
		t.Error("LastUpdated should be set from record timestamps")
	}
}

func TestReplay_NoClassifiableRecords(t *testing.T) {
	p := stream.NewParser()
	recs := p.Feed(`{"type":"progress","timestamp":"2026-03-01T10:00:00Z"}
{"type":"summary"}
`)

	if st := Replay("s1", recs); st != nil {
		t.Errorf("expected nil state, got %+v", st)
	}
}
