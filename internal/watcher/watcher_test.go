package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/linkwatcher/internal/config"
	"github.com/standardbeagle/linkwatcher/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	w, err := New(Options{
		Root:     root,
		Filter:   config.NewFilter(config.Default()),
		Debounce: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

// waitFor reads events until one satisfies match.
func waitFor(t *testing.T, w *Watcher, match func(types.RawEvent) bool) types.RawEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-w.Events():
			require.True(t, ok, "event channel closed")
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
			return types.RawEvent{}
		}
	}
}

func is(op types.EventOp, path string) func(types.RawEvent) bool {
	return func(ev types.RawEvent) bool { return ev.Op == op && ev.Path == path }
}

func TestWatcher_CreateWriteRemove(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)
	file := filepath.Join(root, "doc.md")

	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))
	created := waitFor(t, w, is(types.EventCreated, file))
	assert.False(t, created.IsDir)

	require.NoError(t, os.WriteFile(file, []byte("hello again"), 0o644))
	waitFor(t, w, is(types.EventModified, file))

	require.NoError(t, os.Remove(file))
	deleted := waitFor(t, w, is(types.EventDeleted, file))
	assert.False(t, deleted.IsDir)
}

func TestWatcher_DirectoryMovedInAnnouncesChildren(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(outside, "docs", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "docs", "sub", "guide.md"), []byte("# g"), 0o644))

	w := startWatcher(t, root)
	require.NoError(t, os.Rename(filepath.Join(outside, "docs"), filepath.Join(root, "docs")))

	dir := waitFor(t, w, is(types.EventCreated, filepath.Join(root, "docs")))
	assert.True(t, dir.IsDir)
	child := waitFor(t, w, is(types.EventCreated, filepath.Join(root, "docs", "sub", "guide.md")))
	assert.Equal(t, int64(3), child.Size)

	// the new tree is watched
	extra := filepath.Join(root, "docs", "sub", "api.md")
	require.NoError(t, os.WriteFile(extra, nil, 0o644))
	waitFor(t, w, is(types.EventCreated, extra))
}

func TestWatcher_RenamePairsIntoMove(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "x.txt"), []byte("hello"), 0o644))
	w := startWatcher(t, root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "b"), 0o755))
	waitFor(t, w, is(types.EventCreated, filepath.Join(root, "b")))
	require.NoError(t, os.Rename(filepath.Join(root, "a", "x.txt"), filepath.Join(root, "b", "y.txt")))

	ev := waitFor(t, w, func(ev types.RawEvent) bool { return ev.Op != types.EventModified })
	assert.Equal(t, types.EventMoved, ev.Op)
	assert.Equal(t, filepath.Join(root, "a", "x.txt"), ev.Path)
	assert.Equal(t, filepath.Join(root, "b", "y.txt"), ev.Dest)
	assert.Equal(t, int64(5), ev.Size)
}

func TestWatcher_DirectoryRenameIsDirMove(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs", "sub"), 0o755))
	w := startWatcher(t, root)

	require.NoError(t, os.Rename(filepath.Join(root, "docs"), filepath.Join(root, "documentation")))
	ev := waitFor(t, w, func(ev types.RawEvent) bool { return ev.Op == types.EventDirMoved })
	assert.Equal(t, filepath.Join(root, "docs"), ev.Path)
	assert.Equal(t, filepath.Join(root, "documentation"), ev.Dest)
	assert.True(t, ev.IsDir)

	// watches follow the new location
	moved := filepath.Join(root, "documentation", "sub", "new.md")
	require.NoError(t, os.WriteFile(moved, nil, 0o644))
	waitFor(t, w, is(types.EventCreated, moved))
}

func TestWatcher_FileRenameNotPairedWithDirectoryCreate(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "notes.md")
	require.NoError(t, os.WriteFile(file, []byte("# notes"), 0o644))
	w := startWatcher(t, root)

	require.NoError(t, os.Rename(file, filepath.Join(t.TempDir(), "notes.md")))
	archive := filepath.Join(root, "archive")
	require.NoError(t, os.Mkdir(archive, 0o755))

	var seen []types.RawEvent
	waitFor(t, w, func(ev types.RawEvent) bool {
		seen = append(seen, ev)
		return ev.Op == types.EventCreated && ev.Path == archive
	})
	for _, ev := range seen {
		assert.NotEqual(t, types.EventDirMoved, ev.Op, "file rename paired with %s", ev.Dest)
		assert.NotEqual(t, types.EventMoved, ev.Op, "file rename paired with %s", ev.Dest)
	}
	deleted := seen[0]
	assert.Equal(t, types.EventDeleted, deleted.Op)
	assert.Equal(t, file, deleted.Path)
	assert.False(t, deleted.IsDir)
}

func TestWatcher_DirectoryRenameNotPairedWithFileCreate(t *testing.T) {
	root := t.TempDir()
	docs := filepath.Join(root, "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	w := startWatcher(t, root)

	require.NoError(t, os.Rename(docs, filepath.Join(t.TempDir(), "docs")))
	file := filepath.Join(root, "todo.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	deleted := waitFor(t, w, func(ev types.RawEvent) bool { return ev.Op != types.EventModified })
	assert.Equal(t, types.EventDeleted, deleted.Op)
	assert.Equal(t, docs, deleted.Path)
	assert.True(t, deleted.IsDir)
	waitFor(t, w, is(types.EventCreated, file))
}

func TestWatcher_DirectoryRemoveReportsDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	w := startWatcher(t, root)

	require.NoError(t, os.Rename(filepath.Join(root, "docs"), filepath.Join(t.TempDir(), "docs")))
	ev := waitFor(t, w, is(types.EventDeleted, filepath.Join(root, "docs")))
	assert.True(t, ev.IsDir)
}

func TestWatcher_IgnoredPathsProduceNoEvents(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "x.md"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "image.bin"), nil, 0o644))
	sentinel := filepath.Join(root, "z.md")
	require.NoError(t, os.WriteFile(sentinel, nil, 0o644))

	ev := waitFor(t, w, func(types.RawEvent) bool { return true })
	assert.Equal(t, sentinel, ev.Path)
}

func TestWatcher_StatsCountDeliveredEvents(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)
	assert.Zero(t, w.Stats().EventsProcessed)

	file := filepath.Join(root, "doc.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	waitFor(t, w, is(types.EventCreated, file))

	stats := w.Stats()
	assert.GreaterOrEqual(t, stats.EventsProcessed, int64(1))
	assert.Zero(t, stats.ErrorCount)
}

func TestWatcher_StopClosesEvents(t *testing.T) {
	w, err := New(Options{Root: t.TempDir(), Filter: config.NewFilter(config.Default())})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	assert.True(t, w.Stats().IsActive)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	_, ok := <-w.Events()
	assert.False(t, ok)
	assert.False(t, w.Stats().IsActive)
}

func TestWatcher_StartFailsForMissingRoot(t *testing.T) {
	w, err := New(Options{Root: filepath.Join(t.TempDir(), "missing"), Filter: config.NewFilter(config.Default())})
	require.NoError(t, err)
	assert.Error(t, w.Start())
	require.NoError(t, w.Stop())
}

func TestDebouncer(t *testing.T) {
	d := newDebouncer(100 * time.Millisecond)
	start := time.Now()
	d.add("b", start)
	d.add("a", start.Add(50*time.Millisecond))

	next, ok := d.next()
	require.True(t, ok)
	assert.Equal(t, start.Add(100*time.Millisecond), next)

	assert.Empty(t, d.due(start.Add(99*time.Millisecond)))
	assert.Equal(t, []string{"b"}, d.due(start.Add(100*time.Millisecond)))

	d.add("a", start.Add(120*time.Millisecond))
	assert.Empty(t, d.due(start.Add(200*time.Millisecond)))
	d.remove("a")
	_, ok = d.next()
	assert.False(t, ok)
}
