package monitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTranscript writes lines to the legacy transcript location for a
// session and returns the path.
func writeTranscript(t *testing.T, root, sessionID string, lines ...string) string {
	t.Helper()
	path := filepath.Join(root, "sessions", sessionID+".jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	for _, line := range lines {
		_, err := f.WriteString(line + "\n")
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())
	return path
}

// recvEvent waits for the next event or fails the test.
func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed early")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// recvEventsClosed waits for the event channel to close.
func recvEventsClosed(t *testing.T, ch <-chan Event) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for event channel close")
		}
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Debounce = 5 * time.Millisecond
	return opts
}

func TestSessionMonitor_EndToEnd(t *testing.T) {
	root := t.TempDir()
	writeTranscript(t, root, "s1",
		`{"type":"tool_use","content":{"name":"Read"}}`,
		`{"type":"user","content":"hi"}`,
		`{"type":"tool_result","content":{"name":"Read"}}`,
	)

	m := NewSessionMonitor(root, testOptions())
	defer m.Stop()

	events, err := m.Watch(context.Background(), "s1")
	require.NoError(t, err)

	want := []EventType{EventToolStart, EventMessage, EventToolEnd}
	for i, wt := range want {
		ev := recvEvent(t, events)
		assert.Equalf(t, wt, ev.Type, "event %d", i)
		assert.Equal(t, "s1", ev.SessionID)
	}

	state := m.State()
	require.NotNil(t, state)
	assert.Equal(t, 1, state.MessageCount)
	assert.Empty(t, state.ActiveTools)
}

func TestSessionMonitor_LiveAppends(t *testing.T) {
	root := t.TempDir()
	path := writeTranscript(t, root, "s1", `{"type":"user","content":"first"}`)

	m := NewSessionMonitor(root, testOptions())
	defer m.Stop()

	events, err := m.Watch(context.Background(), "s1")
	require.NoError(t, err)

	ev := recvEvent(t, events)
	require.Equal(t, EventMessage, ev.Type)

	// Append a record split across two writes: the monitor's parser must
	// hold the fragment until the newline lands.
	line := `{"type":"tool_use","content":{"name":"Bash"},"timestamp":"2026-02-01T08:30:00Z"}` + "\n"
	half := len(line) / 2
	appendString(t, path, line[:half])
	time.Sleep(100 * time.Millisecond)
	appendString(t, path, line[half:])

	ev = recvEvent(t, events)
	assert.Equal(t, EventToolStart, ev.Type)
	assert.Equal(t, "Bash", ev.Tool)

	state := m.State()
	require.NotNil(t, state)
	assert.True(t, state.ActiveTools["Bash"])
	assert.Equal(t,
		time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC),
		state.LastUpdated.UTC())
}

func appendString(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(s)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestSessionMonitor_MalformedLinesSkipped(t *testing.T) {
	root := t.TempDir()
	writeTranscript(t, root, "s1",
		`{"type":"user","content":"ok"}`,
		`{bad json}`,
		`{"type":"assistant","content":"also ok"}`,
	)

	m := NewSessionMonitor(root, testOptions())
	defer m.Stop()

	events, err := m.Watch(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, EventMessage, recvEvent(t, events).Type)
	assert.Equal(t, EventMessage, recvEvent(t, events).Type)

	state := m.State()
	require.NotNil(t, state)
	assert.Equal(t, 2, state.MessageCount)
}

func TestSessionMonitor_StateNilUntilFirstEvent(t *testing.T) {
	root := t.TempDir()

	m := NewSessionMonitor(root, testOptions())
	defer m.Stop()

	_, err := m.Watch(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, m.State(), "state is undefined before the first event")
}

func TestSessionMonitor_StopClearsState(t *testing.T) {
	root := t.TempDir()
	writeTranscript(t, root, "s1", `{"type":"user","content":"hi"}`)

	m := NewSessionMonitor(root, testOptions())
	events, err := m.Watch(context.Background(), "s1")
	require.NoError(t, err)

	recvEvent(t, events)
	require.NotNil(t, m.State())

	m.Stop()
	recvEventsClosed(t, events)
	assert.Nil(t, m.State(), "state is undefined again after stop")

	// Idempotent.
	m.Stop()
}

func TestSessionMonitor_WatchTwice(t *testing.T) {
	root := t.TempDir()
	m := NewSessionMonitor(root, testOptions())
	defer m.Stop()

	_, err := m.Watch(context.Background(), "s1")
	require.NoError(t, err)

	_, err = m.Watch(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrAlreadyWatching)
}

func TestSessionMonitor_TranscriptCreatedLater(t *testing.T) {
	root := t.TempDir()

	m := NewSessionMonitor(root, testOptions())
	defer m.Stop()

	events, err := m.Watch(context.Background(), "late")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	writeTranscript(t, root, "late", `{"type":"user","content":"finally"}`)

	ev := recvEvent(t, events)
	assert.Equal(t, EventMessage, ev.Type)
}
