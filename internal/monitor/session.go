package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/blackwell-systems/sessionwatch/internal/stream"
	"github.com/blackwell-systems/sessionwatch/internal/tailer"
)

// ErrAlreadyWatching is returned when Watch is called on a monitor whose
// watch was already started. Watches are not restartable; create a fresh
// monitor instead.
var ErrAlreadyWatching = errors.New("monitor already watching")

// Options configures transcript delivery for a monitor.
type Options struct {
	// IncludeExisting replays the transcript's current content before
	// steady-state watching, rebuilding state from scratch.
	IncludeExisting bool

	// Debounce is the coalescing window for file-change bursts.
	Debounce time.Duration

	// SearchDepth bounds the directory search used to locate a session's
	// transcript. Zero means tailer.DefaultSearchDepth.
	SearchDepth int

	// Clock is injected into the underlying tailer. Nil means the real
	// clock.
	Clock clock.Clock
}

// DefaultOptions returns the options used when callers have no preference.
func DefaultOptions() Options {
	return Options{
		IncludeExisting: true,
		Debounce:        25 * time.Millisecond,
		SearchDepth:     tailer.DefaultSearchDepth,
	}
}

// SessionMonitor tails one session's transcript and reconstructs its
// semantic state. Events stream over the channel returned by Watch; the
// current state snapshot is available from State.
type SessionMonitor struct {
	root string
	opts Options
	tail *tailer.Tailer

	mu       sync.Mutex
	state    *SessionState
	watching bool

	stopOnce sync.Once
}

// NewSessionMonitor creates a monitor for transcripts stored under root.
func NewSessionMonitor(root string, opts Options) *SessionMonitor {
	return &SessionMonitor{
		root: root,
		opts: opts,
		tail: tailer.New(tailer.Options{
			IncludeExisting: opts.IncludeExisting,
			Debounce:        opts.Debounce,
			Clock:           opts.Clock,
		}),
	}
}

// Watch resolves the session's transcript and begins streaming lifecycle
// events. The returned channel closes when ctx is cancelled or Stop is
// called. A monitor watches at most once.
func (m *SessionMonitor) Watch(ctx context.Context, sessionID string) (<-chan Event, error) {
	m.mu.Lock()
	if m.watching {
		m.mu.Unlock()
		return nil, ErrAlreadyWatching
	}
	m.watching = true
	m.mu.Unlock()

	path, ok := tailer.FindSessionFile(m.root, sessionID, m.opts.SearchDepth)
	if !ok {
		// No transcript yet: watch the legacy location so the monitor
		// picks the file up once the session starts writing.
		path = tailer.LegacySessionPath(m.root, sessionID)
	}

	deltas := m.tail.Watch(ctx, path)
	out := make(chan Event, 16)

	go func() {
		defer close(out)
		parser := stream.NewParser()
		for d := range deltas {
			for _, rec := range parser.Feed(d.Content) {
				ev, ok := m.apply(sessionID, rec)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// apply classifies one record and folds it into the session state. State is
// created lazily on the first classified event; records that classify to
// nothing only refresh the last-updated timestamp of existing state.
func (m *SessionMonitor) apply(sessionID string, rec stream.Record) (Event, bool) {
	ev, ok := Classify(rec)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !ok {
		if m.state != nil {
			m.state.touch(rec.Timestamp)
		}
		return Event{}, false
	}

	if m.state == nil {
		m.state = newSessionState(sessionID)
	}
	ev.SessionID = sessionID
	m.state.apply(ev)
	return ev, true
}

// State returns a snapshot of the session state, or nil before the first
// event has been processed and again after Stop.
func (m *SessionMonitor) State() *SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil
	}
	return m.state.clone()
}

// Stop tears down the underlying tailer; the event channel closes cleanly.
// Stop is idempotent.
func (m *SessionMonitor) Stop() {
	m.stopOnce.Do(func() {
		m.tail.Stop()
		m.mu.Lock()
		m.state = nil
		m.mu.Unlock()
	})
}
