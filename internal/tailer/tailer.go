// Package tailer delivers the newly appended bytes of transcript files as
// they grow. Two delivery modes are provided: Tailer pushes content deltas
// over a channel driven by file-change notifications, and PullTailer exposes
// a polled request/response surface for callers that prefer to ask for the
// next delta themselves.
package tailer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// rescanInterval bounds how long a change can go unnoticed when the
// notification backend misses an event or the watched directory does not
// exist yet.
const rescanInterval = 250 * time.Millisecond

// Delta carries the bytes appended to a file since the previous delta for
// that path. Deltas for one path never overlap: the underlying offset only
// moves forward, except on truncation where it resets and the whole new
// content is redelivered.
type Delta struct {
	Path      string
	Content   string
	Timestamp time.Time
}

// Options configures delta delivery.
type Options struct {
	// IncludeExisting delivers the file's pre-existing content as one
	// initial delta before steady-state watching begins. When false, bytes
	// already present when watching starts are skipped and never delivered.
	IncludeExisting bool

	// Debounce is the coalescing window: change notifications arriving
	// within it after the first are folded into a single delta covering
	// all bytes appended during the window.
	Debounce time.Duration

	// Clock supplies timers and timestamps. Tests inject a mock clock to
	// advance debounce windows deterministically. Nil means the real clock.
	Clock clock.Clock
}

// DefaultOptions returns the options used when callers have no preference.
func DefaultOptions() Options {
	return Options{
		IncludeExisting: true,
		Debounce:        25 * time.Millisecond,
	}
}

// Tailer watches files for byte-range growth and pushes content deltas to
// channels returned by Watch and WatchMultiple. It does not interpret
// content. Stop terminates every watch; the returned channels close rather
// than erroring.
type Tailer struct {
	opts Options
	clk  clock.Clock

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Tailer with the given options.
func New(opts Options) *Tailer {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Tailer{
		opts: opts,
		clk:  clk,
		stop: make(chan struct{}),
	}
}

// Watch begins tailing path and returns the delta channel. The path may not
// exist yet; watching starts dormant and the first delta fires once the file
// appears with content. The channel closes when ctx is cancelled or Stop is
// called.
func (t *Tailer) Watch(ctx context.Context, path string) <-chan Delta {
	out := make(chan Delta, 16)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(out)
		t.tail(ctx, path, out)
	}()
	return out
}

// WatchMultiple fans N independent per-path watchers into one channel.
// Deltas appear in the order their underlying per-path change was detected;
// no cross-file ordering beyond that is imposed.
func (t *Tailer) WatchMultiple(ctx context.Context, paths []string) <-chan Delta {
	out := make(chan Delta, 16)
	var g errgroup.Group
	for _, path := range paths {
		g.Go(func() error {
			t.tail(ctx, path, out)
			return nil
		})
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(out)
		_ = g.Wait()
	}()
	return out
}

// Stop terminates all watches and blocks until every delta channel has been
// closed. Calling Stop again is a no-op.
func (t *Tailer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	t.wg.Wait()
}

// tail is the per-path watch loop. One loop owns the path's offset; no other
// reader shares it.
func (t *Tailer) tail(ctx context.Context, path string, out chan<- Delta) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	defer fsw.Close()

	// Watch the parent directory so creation of a not-yet-existing file is
	// seen. If the directory itself is missing, the rescan ticker retries.
	dir := filepath.Dir(path)
	dirWatched := fsw.Add(dir) == nil

	var offset int64
	if t.opts.IncludeExisting {
		if d, ok := readRange(path, &offset, t.clk.Now()); ok {
			if !t.send(ctx, out, d) {
				return
			}
		}
	} else if info, err := os.Stat(path); err == nil {
		offset = info.Size()
	}

	ticker := t.clk.Ticker(rescanInterval)
	defer ticker.Stop()

	// debounceC is non-nil while a coalescing window is open. Notifications
	// during the window are dropped; the read when the timer fires covers
	// everything appended since the window opened.
	var debounceC <-chan time.Time
	schedule := func() {
		if debounceC == nil {
			debounceC = t.clk.Timer(t.opts.Debounce).C
		}
	}

	for {
		select {
		case <-t.stop:
			return
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == filepath.Clean(path) {
				schedule()
			}

		case <-fsw.Errors:
			// Notification errors are non-fatal; the rescan ticker covers
			// anything missed.

		case <-ticker.C:
			if !dirWatched {
				dirWatched = fsw.Add(dir) == nil
			}
			if changed(path, offset) {
				schedule()
			}

		case <-debounceC:
			debounceC = nil
			if d, ok := readRange(path, &offset, t.clk.Now()); ok {
				if !t.send(ctx, out, d) {
					return
				}
			}
		}
	}
}

// send delivers d unless the tailer stops first.
func (t *Tailer) send(ctx context.Context, out chan<- Delta, d Delta) bool {
	select {
	case out <- d:
		return true
	case <-t.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

// changed reports whether the file's size no longer matches the consumed
// offset. A missing file counts as changed only if bytes were already
// delivered, so the offset gets reset for the eventual recreate.
func changed(path string, offset int64) bool {
	info, err := os.Stat(path)
	if err != nil {
		return offset > 0
	}
	return info.Size() != offset
}

// readRange reads the byte range [offset, size) of path and advances the
// offset. A file smaller than the offset is treated as truncated or rotated:
// the offset resets to zero and the entire new content is delivered fresh.
// A missing file resets the offset and yields nothing; the caller keeps
// trying.
func readRange(path string, offset *int64, now time.Time) (Delta, bool) {
	info, err := os.Stat(path)
	if err != nil {
		*offset = 0
		return Delta{}, false
	}

	size := info.Size()
	if size < *offset {
		*offset = 0
	}
	if size == *offset {
		return Delta{}, false
	}

	f, err := os.Open(path)
	if err != nil {
		*offset = 0
		return Delta{}, false
	}
	defer f.Close()

	if _, err := f.Seek(*offset, io.SeekStart); err != nil {
		return Delta{}, false
	}

	buf := make([]byte, size-*offset)
	n, err := io.ReadFull(f, buf)
	if n == 0 {
		return Delta{}, false
	}
	// A short read means the file shrank mid-read; deliver what we got and
	// let the next cycle handle the rest.
	_ = err

	*offset += int64(n)
	return Delta{Path: path, Content: string(buf[:n]), Timestamp: now}, true
}
