package tailer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeLegacyTranscript places content at the legacy fixed-layout path.
func writeLegacyTranscript(t *testing.T, root, sessionID, content string) string {
	t.Helper()
	path := LegacySessionPath(root, sessionID)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPullReceive_DeliversAppends(t *testing.T) {
	root := t.TempDir()
	path := writeLegacyTranscript(t, root, "s1", "hello\n")

	p := NewPullTailer(root, "s1", PullOptions{Interval: 20 * time.Millisecond})
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	d, err := p.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", d.Content)

	appendFile(t, path, "world\n")
	d, err = p.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "world\n", d.Content, "only the new byte range is read")
}

func TestPullReceive_FIFOQueue(t *testing.T) {
	root := t.TempDir()
	path := writeLegacyTranscript(t, root, "s1", "")

	mock := clock.NewMock()
	p := NewPullTailer(root, "s1", PullOptions{Interval: 50 * time.Millisecond, Clock: mock})
	defer p.Close()

	time.Sleep(50 * time.Millisecond) // let the poll loop install its ticker

	appendFile(t, path, "first\n")
	mock.Add(50 * time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	appendFile(t, path, "second\n")
	mock.Add(50 * time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// Both deltas were produced with no Receive outstanding: they queue in
	// order and pop without blocking.
	ctx := context.Background()
	d, err := p.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first\n", d.Content)

	d, err = p.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second\n", d.Content)
}

func TestPullReceive_PendingResolvedByContent(t *testing.T) {
	root := t.TempDir()
	path := writeLegacyTranscript(t, root, "s1", "")

	p := NewPullTailer(root, "s1", PullOptions{Interval: 20 * time.Millisecond})
	defer p.Close()

	type result struct {
		d   Delta
		err error
	}
	got := make(chan result, 1)
	go func() {
		d, err := p.Receive(context.Background())
		got <- result{d, err}
	}()

	time.Sleep(100 * time.Millisecond) // Receive is now pending
	appendFile(t, path, "wakes the waiter\n")

	select {
	case r := <-got:
		require.NoError(t, r.err)
		assert.Equal(t, "wakes the waiter\n", r.d.Content)
	case <-time.After(3 * time.Second):
		t.Fatal("pending receive never resolved")
	}
}

func TestPullReceive_SecondCallBusy(t *testing.T) {
	root := t.TempDir()
	writeLegacyTranscript(t, root, "s1", "")

	p := NewPullTailer(root, "s1", PullOptions{Interval: time.Hour})
	defer p.Close()

	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = p.Receive(context.Background())
	}()
	<-started
	time.Sleep(50 * time.Millisecond)

	_, err := p.Receive(context.Background())
	assert.ErrorIs(t, err, ErrReceiveBusy)
}

func TestPullClose_ResolvesPendingAndDropsQueue(t *testing.T) {
	root := t.TempDir()
	writeLegacyTranscript(t, root, "s1", "")

	p := NewPullTailer(root, "s1", PullOptions{Interval: time.Hour})

	errs := make(chan error, 1)
	go func() {
		_, err := p.Receive(context.Background())
		errs <- err
	}()
	time.Sleep(50 * time.Millisecond)

	p.Close()
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(3 * time.Second):
		t.Fatal("pending receive not resolved by close")
	}

	// After close everything reports the closed sentinel; close again is a
	// no-op.
	_, err := p.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	p.Close()
}

func TestPullReceive_ContextCancel(t *testing.T) {
	root := t.TempDir()
	writeLegacyTranscript(t, root, "s1", "")

	p := NewPullTailer(root, "s1", PullOptions{Interval: time.Hour})
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := p.Receive(ctx)
		errs <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("receive did not observe cancellation")
	}

	// A fresh Receive may be issued after the cancelled one returned.
	_, err := p.Receive(canceledContext())
	assert.Error(t, err)
}

func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestPull_DiscoversNestedLayout(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "projects", "-home-user-proj")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "s9.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("found me\n"), 0o644))

	p := NewPullTailer(root, "s9", PullOptions{Interval: 20 * time.Millisecond})
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	d, err := p.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "found me\n", d.Content)
	assert.Equal(t, path, d.Path)
}

func TestPull_Truncation(t *testing.T) {
	root := t.TempDir()
	path := writeLegacyTranscript(t, root, "s1", "generation one content\n")

	p := NewPullTailer(root, "s1", PullOptions{Interval: 20 * time.Millisecond})
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	d, err := p.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, "generation one content\n", d.Content)

	require.NoError(t, os.WriteFile(path, []byte("gen2\n"), 0o644))
	d, err = p.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gen2\n", d.Content, "truncated file is redelivered in full")
}
