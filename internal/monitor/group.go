package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrGroupNotFound is returned by GroupMonitor.Watch for an unknown group.
// The error is fatal to the call; nothing is retried.
var ErrGroupNotFound = errors.New("group not found")

// GroupSession is one member of a session group. Members without an assigned
// transcript session id are not yet active and are ignored until added.
type GroupSession struct {
	ID                  string `json:"id"`
	TranscriptSessionID string `json:"transcript_session_id"`
	Status              string `json:"status"`
}

// Group is a named set of sessions tracked together.
type Group struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Sessions []GroupSession `json:"sessions"`
}

// GroupResolver resolves group membership. It is the external collaborator
// boundary: the monitor only performs read-only lookups against it.
// Implementations return a nil Group (with nil error) for unknown groups.
type GroupResolver interface {
	FindByID(groupID string) (*Group, error)
}

// GroupMonitor owns one SessionMonitor per active member of a group and
// merges their event streams into a single channel. Members can be added and
// removed while the watch runs.
type GroupMonitor struct {
	root     string
	opts     Options
	resolver GroupResolver

	mu       sync.Mutex
	members  map[string]*memberMonitor
	out      chan Event
	ctx      context.Context
	watching bool
	stopped  bool

	stopCh   chan struct{}
	stopOnce sync.Once
	fwd      sync.WaitGroup
}

// memberMonitor pairs a group member with its running session monitor.
type memberMonitor struct {
	transcriptID string
	mon          *SessionMonitor
	cancel       context.CancelFunc
}

// NewGroupMonitor creates a monitor for groups resolved through resolver,
// with transcripts stored under root.
func NewGroupMonitor(root string, resolver GroupResolver, opts Options) *GroupMonitor {
	return &GroupMonitor{
		root:     root,
		opts:     opts,
		resolver: resolver,
		members:  make(map[string]*memberMonitor),
		stopCh:   make(chan struct{}),
	}
}

// Watch resolves the group and begins streaming the merged event stream of
// every member that has an assigned transcript session id. Each event
// carries the transcript session id it originated from. An unknown group
// fails with ErrGroupNotFound. A group with no active members yields a
// channel that completes immediately with zero events.
func (m *GroupMonitor) Watch(ctx context.Context, groupID string) (<-chan Event, error) {
	group, err := m.resolver.FindByID(groupID)
	if err != nil {
		return nil, fmt.Errorf("resolving group %q: %w", groupID, err)
	}
	if group == nil {
		return nil, fmt.Errorf("%w: %q", ErrGroupNotFound, groupID)
	}

	m.mu.Lock()
	if m.watching {
		m.mu.Unlock()
		return nil, ErrAlreadyWatching
	}
	m.watching = true
	out := make(chan Event, 32)
	m.out = out
	m.ctx = ctx
	m.mu.Unlock()

	active := 0
	for _, s := range group.Sessions {
		if s.TranscriptSessionID == "" {
			continue
		}
		active++
		m.AddSession(s.ID, s.TranscriptSessionID)
	}

	if active == 0 {
		m.mu.Lock()
		m.out = nil
		m.mu.Unlock()
		close(out)
		return out, nil
	}

	go func() {
		select {
		case <-m.stopCh:
		case <-ctx.Done():
		}
		m.stopMembers()
		m.fwd.Wait()
		close(out)
	}()

	return out, nil
}

// AddSession starts tracking a group member under the given transcript
// session id. Re-adding an already-tracked member is a no-op.
func (m *GroupMonitor) AddSession(id, transcriptSessionID string) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if _, ok := m.members[id]; ok {
		m.mu.Unlock()
		return
	}

	parent := m.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	mm := &memberMonitor{
		transcriptID: transcriptSessionID,
		mon:          NewSessionMonitor(m.root, m.opts),
		cancel:       cancel,
	}
	m.members[id] = mm
	out := m.out
	m.fwd.Add(1)
	m.mu.Unlock()

	events, err := mm.mon.Watch(ctx, transcriptSessionID)
	if err != nil {
		m.fwd.Done()
		cancel()
		m.mu.Lock()
		delete(m.members, id)
		m.mu.Unlock()
		return
	}

	go func() {
		defer m.fwd.Done()
		for ev := range events {
			if out == nil {
				// The watch sequence already completed (empty group at
				// watch time); state is still tracked but there is no
				// consumer to deliver to.
				continue
			}
			select {
			case out <- ev:
			case <-m.stopCh:
				return
			}
		}
	}()
}

// RemoveSession stops tracking a member. Removing an unknown member is a
// no-op.
func (m *GroupMonitor) RemoveSession(id string) {
	m.mu.Lock()
	mm, ok := m.members[id]
	if ok {
		delete(m.members, id)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	mm.cancel()
	mm.mon.Stop()
}

// States returns a snapshot of every tracked member's state, keyed by
// transcript session id. Members that have produced no events yet are
// omitted.
func (m *GroupMonitor) States() map[string]*SessionState {
	m.mu.Lock()
	members := make([]*memberMonitor, 0, len(m.members))
	for _, mm := range m.members {
		members = append(members, mm)
	}
	m.mu.Unlock()

	states := make(map[string]*SessionState, len(members))
	for _, mm := range members {
		if st := mm.mon.State(); st != nil {
			states[mm.transcriptID] = st
		}
	}
	return states
}

// Stop stops every owned session monitor and clears States to empty. Stop is
// idempotent.
func (m *GroupMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.stopMembers()
}

// stopMembers tears down all member monitors; safe to call more than once.
func (m *GroupMonitor) stopMembers() {
	m.mu.Lock()
	m.stopped = true
	members := m.members
	m.members = make(map[string]*memberMonitor)
	m.mu.Unlock()

	for _, mm := range members {
		mm.cancel()
		mm.mon.Stop()
	}
}
