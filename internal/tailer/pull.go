package tailer

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ErrClosed is returned by Receive once the tailer has been closed. It is
// the pull-mode equivalent of a push channel closing.
var ErrClosed = errors.New("pull tailer closed")

// ErrReceiveBusy is returned when a second Receive is attempted while one is
// already outstanding. At most one call may be pending at a time.
var ErrReceiveBusy = errors.New("receive already pending")

// pathRevalidateInterval bounds how often a cached transcript path is
// re-checked against the filesystem, so repeated directory scans stay cheap.
const pathRevalidateInterval = time.Second

// PullOptions configures a PullTailer.
type PullOptions struct {
	// Interval is the polling period. Zero means 250ms.
	Interval time.Duration

	// SearchDepth bounds the fallback directory search for the session's
	// transcript. Zero means DefaultSearchDepth.
	SearchDepth int

	// Clock supplies the poll timer. Nil means the real clock.
	Clock clock.Clock
}

// PullTailer delivers a session transcript's content deltas one Receive call
// at a time. It polls on a fixed interval rather than relying on native
// change notification, reading only the new byte range each cycle. Deltas
// produced between Receive calls are buffered FIFO; a pending Receive
// resolves as soon as content lands.
type PullTailer struct {
	root      string
	sessionID string
	interval  time.Duration
	depth     int
	clk       clock.Clock

	mu     sync.Mutex
	queue  []Delta
	waiter chan pullResult
	closed bool

	done      chan struct{}
	closeOnce sync.Once

	// Poll-loop state, touched only by the polling goroutine.
	path        string
	offset      int64
	lastResolve time.Time
	resolvedYet bool
}

type pullResult struct {
	delta Delta
	ok    bool
}

// NewPullTailer starts polling for the session's transcript under root.
func NewPullTailer(root, sessionID string, opts PullOptions) *PullTailer {
	if opts.Interval <= 0 {
		opts.Interval = 250 * time.Millisecond
	}
	if opts.SearchDepth <= 0 {
		opts.SearchDepth = DefaultSearchDepth
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	p := &PullTailer{
		root:      root,
		sessionID: sessionID,
		interval:  opts.Interval,
		depth:     opts.SearchDepth,
		clk:       opts.Clock,
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

// Receive returns the next content delta, suspending until one arrives, the
// tailer is closed (ErrClosed), or ctx is cancelled. Only one call may be
// outstanding; a concurrent second call fails with ErrReceiveBusy.
func (p *PullTailer) Receive(ctx context.Context) (Delta, error) {
	p.mu.Lock()
	if len(p.queue) > 0 {
		d := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()
		return d, nil
	}
	if p.closed {
		p.mu.Unlock()
		return Delta{}, ErrClosed
	}
	if p.waiter != nil {
		p.mu.Unlock()
		return Delta{}, ErrReceiveBusy
	}
	ch := make(chan pullResult, 1)
	p.waiter = ch
	p.mu.Unlock()

	select {
	case r := <-ch:
		if !r.ok {
			return Delta{}, ErrClosed
		}
		return r.delta, nil
	case <-ctx.Done():
		p.mu.Lock()
		if p.waiter == ch {
			p.waiter = nil
		}
		p.mu.Unlock()
		// The poller may have delivered concurrently with cancellation;
		// don't lose that delta.
		select {
		case r := <-ch:
			if r.ok {
				return r.delta, nil
			}
			return Delta{}, ErrClosed
		default:
			return Delta{}, ctx.Err()
		}
	}
}

// Close stops polling, resolves any pending Receive with ErrClosed, and
// drops queued-but-undelivered deltas. Closing again is a no-op.
func (p *PullTailer) Close() {
	p.closeOnce.Do(func() {
		close(p.done)

		p.mu.Lock()
		p.closed = true
		p.queue = nil
		if p.waiter != nil {
			p.waiter <- pullResult{}
			p.waiter = nil
		}
		p.mu.Unlock()
	})
}

// run is the polling loop.
func (p *PullTailer) run() {
	ticker := p.clk.Ticker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll resolves the transcript path and delivers any newly appended bytes.
func (p *PullTailer) poll() {
	path, ok := p.locate()
	if !ok {
		// Not present yet (or vanished): start over when it appears.
		p.path = ""
		p.offset = 0
		return
	}
	if path != p.path {
		p.path = path
		p.offset = 0
	}

	if d, ok := readRange(path, &p.offset, p.clk.Now()); ok {
		p.deliver(d)
	}
}

// locate returns the transcript path, using the cached resolution when it
// was validated within the last pathRevalidateInterval.
func (p *PullTailer) locate() (string, bool) {
	now := p.clk.Now()
	if p.resolvedYet && p.path != "" && now.Sub(p.lastResolve) < pathRevalidateInterval {
		return p.path, true
	}
	p.lastResolve = now
	p.resolvedYet = true

	if p.path != "" {
		if _, err := os.Stat(p.path); err == nil {
			return p.path, true
		}
	}
	return FindSessionFile(p.root, p.sessionID, p.depth)
}

// deliver hands the delta to a pending Receive, or queues it.
func (p *PullTailer) deliver(d Delta) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	if p.waiter != nil {
		p.waiter <- pullResult{delta: d, ok: true}
		p.waiter = nil
		return
	}
	p.queue = append(p.queue, d)
}
