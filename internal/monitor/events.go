// Package monitor reconstructs live session state from transcript files. A
// SessionMonitor tails one session's transcript, classifies decoded records
// into lifecycle events, and maintains the session's semantic state; a
// GroupMonitor does the same for every active member of a session group and
// merges their event streams.
package monitor

import "github.com/blackwell-systems/sessionwatch/internal/stream"

// EventType identifies a session lifecycle event.
type EventType string

const (
	EventMessage       EventType = "message"
	EventToolStart     EventType = "tool_start"
	EventToolEnd       EventType = "tool_end"
	EventSubagentStart EventType = "subagent_start"
	EventSubagentEnd   EventType = "subagent_end"
)

// Event is one semantic lifecycle event derived from a transcript record.
// A record yields at most one event; record types outside the classification
// rules yield none.
type Event struct {
	Type      EventType
	SessionID string

	// Tool is set for tool_start and tool_end events.
	Tool string

	// TaskID, SubagentType, Prompt, and Status describe subagent events.
	TaskID       string
	SubagentType string
	Prompt       string
	Status       string

	// Timestamp is the raw timestamp string from the record, if any.
	Timestamp string

	// Record is the transcript record the event was derived from.
	Record stream.Record
}

// Classify maps a transcript record to its lifecycle event. It reports false
// for records that produce no event.
func Classify(rec stream.Record) (Event, bool) {
	ev := Event{Timestamp: rec.Timestamp, Record: rec}

	switch rec.Type {
	case "user", "assistant":
		ev.Type = EventMessage
		return ev, true

	case "tool_use":
		name := stringField(rec, "name")
		if name == "" {
			return Event{}, false
		}
		ev.Type = EventToolStart
		ev.Tool = name
		return ev, true

	case "tool_result":
		name := stringField(rec, "name")
		if name == "" {
			return Event{}, false
		}
		ev.Type = EventToolEnd
		ev.Tool = name
		return ev, true

	case "task":
		taskID := stringField(rec, "task_id")
		status := stringField(rec, "status")
		// A status always means the task ended, even when the record also
		// carries the launch fields.
		if taskID != "" && status != "" {
			ev.Type = EventSubagentEnd
			ev.TaskID = taskID
			ev.Status = status
			return ev, true
		}
		subagentType := stringField(rec, "subagent_type")
		prompt := stringField(rec, "prompt")
		if taskID != "" && subagentType != "" && prompt != "" {
			ev.Type = EventSubagentStart
			ev.TaskID = taskID
			ev.SubagentType = subagentType
			ev.Prompt = prompt
			return ev, true
		}
		return Event{}, false
	}

	return Event{}, false
}

// stringField looks key up in the record's content object, falling back to
// the top-level object.
func stringField(rec stream.Record, key string) string {
	if m, ok := rec.Content.(map[string]any); ok {
		if s, ok := m[key].(string); ok {
			return s
		}
	}
	if m, ok := rec.Raw.(map[string]any); ok {
		if s, ok := m[key].(string); ok {
			return s
		}
	}
	return ""
}
