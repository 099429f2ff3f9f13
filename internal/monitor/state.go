package monitor

import (
	"time"

	"github.com/blackwell-systems/sessionwatch/internal/stream"
)

// SubagentInfo tracks one running subagent task.
type SubagentInfo struct {
	SubagentType string `json:"subagent_type"`
	Status       string `json:"status"`
}

// SessionState is the reconstructed semantic state of one session. It is
// owned and mutated exclusively by the SessionMonitor that created it;
// callers receive snapshot copies.
//
// Invariants: ActiveTools contains a tool name iff a tool_start for it has
// been seen with no matching tool_end; Subagents contains a task id iff it
// has been seen with no terminal status.
type SessionState struct {
	SessionID    string                  `json:"session_id"`
	MessageCount int                     `json:"message_count"`
	ActiveTools  map[string]bool         `json:"active_tools"`
	Subagents    map[string]SubagentInfo `json:"subagents"`
	LastUpdated  time.Time               `json:"last_updated"`
}

func newSessionState(sessionID string) *SessionState {
	return &SessionState{
		SessionID:   sessionID,
		ActiveTools: make(map[string]bool),
		Subagents:   make(map[string]SubagentInfo),
	}
}

// apply folds one classified event into the state.
func (s *SessionState) apply(ev Event) {
	switch ev.Type {
	case EventMessage:
		s.MessageCount++
	case EventToolStart:
		s.ActiveTools[ev.Tool] = true
	case EventToolEnd:
		delete(s.ActiveTools, ev.Tool)
	case EventSubagentStart:
		s.Subagents[ev.TaskID] = SubagentInfo{SubagentType: ev.SubagentType, Status: "running"}
	case EventSubagentEnd:
		delete(s.Subagents, ev.TaskID)
	}
	s.touch(ev.Timestamp)
}

// touch updates LastUpdated from a record timestamp, when one is present and
// parseable.
func (s *SessionState) touch(timestamp string) {
	if timestamp == "" {
		return
	}
	if t := stream.ParseTimestamp(timestamp); !t.IsZero() {
		s.LastUpdated = t
	}
}

// clone returns an independent snapshot of the state.
func (s *SessionState) clone() *SessionState {
	c := &SessionState{
		SessionID:    s.SessionID,
		MessageCount: s.MessageCount,
		ActiveTools:  make(map[string]bool, len(s.ActiveTools)),
		Subagents:    make(map[string]SubagentInfo, len(s.Subagents)),
		LastUpdated:  s.LastUpdated,
	}
	for k, v := range s.ActiveTools {
		c.ActiveTools[k] = v
	}
	for k, v := range s.Subagents {
		c.Subagents[k] = v
	}
	return c
}
