package interpreter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/linkwatcher/internal/config"
	"github.com/standardbeagle/linkwatcher/internal/index"
	"github.com/standardbeagle/linkwatcher/internal/links"
	"github.com/standardbeagle/linkwatcher/internal/parser"
	"github.com/standardbeagle/linkwatcher/internal/types"
	"github.com/standardbeagle/linkwatcher/internal/updater"
)

type fixture struct {
	root   string
	index  *index.ReferenceIndex
	interp *Interpreter
}

func newFixture(t *testing.T, files map[string]string, mutate func(*config.Config)) *fixture {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		writeFile(t, root, name, content)
	}

	cfg := config.Default()
	cfg.ProjectRoot = root
	cfg.MoveDetectTimeoutMs = 60_000
	cfg.DirMoveTimeoutMs = 60_000
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, config.NewValidator().ValidateAndSetDefaults(cfg))

	reg, err := parser.NewRegistry(parser.Options{
		CustomParsers: cfg.CustomParsers,
		MaxFileSize:   cfg.MaxFileSizeBytes(),
	})
	require.NoError(t, err)
	resolver := links.NewResolver(root)
	idx := index.New(resolver)
	upd := updater.New(root, resolver, updater.Options{
		DryRun: cfg.DryRunMode,
		Atomic: true,
	})
	in := New(Options{
		Root:              root,
		Index:             idx,
		Registry:          reg,
		Updater:           upd,
		Resolver:          resolver,
		Filter:            config.NewFilter(cfg),
		MoveDetectTimeout: cfg.MoveDetectTimeout(),
		DirMoveTimeout:    cfg.DirMoveTimeout(),
	})
	t.Cleanup(in.Close)

	in.mu.Lock()
	for name := range files {
		in.rescan(name)
	}
	in.mu.Unlock()

	return &fixture{root: root, index: idx, interp: in}
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func (f *fixture) abs(name string) string {
	return filepath.Join(f.root, filepath.FromSlash(name))
}

func (f *fixture) read(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(f.abs(name))
	require.NoError(t, err)
	return string(b)
}

func (f *fixture) rename(t *testing.T, oldName, newName string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(f.abs(newName)), 0o755))
	require.NoError(t, os.Rename(f.abs(oldName), f.abs(newName)))
}

func (f *fixture) move(t *testing.T, oldName, newName string) {
	t.Helper()
	f.rename(t, oldName, newName)
	f.interp.Handle(types.RawEvent{Op: types.EventMoved, Path: f.abs(oldName), Dest: f.abs(newName), Size: -1})
}

func (f *fixture) moveDir(t *testing.T, oldName, newName string) {
	t.Helper()
	f.rename(t, oldName, newName)
	f.interp.Handle(types.RawEvent{Op: types.EventDirMoved, Path: f.abs(oldName), Dest: f.abs(newName), IsDir: true, Size: -1})
}

func (f *fixture) event(op types.EventOp, name string, size int64) {
	f.interp.Handle(types.RawEvent{Op: op, Path: f.abs(name), Size: size})
}

func TestSingleRename(t *testing.T) {
	f := newFixture(t, map[string]string{
		"target.txt": "target\n",
		"doc.md":     "See [link](target.txt).\n",
	}, nil)

	f.move(t, "target.txt", "renamed.txt")

	assert.Equal(t, "See [link](renamed.txt).\n", f.read(t, "doc.md"))
	assert.Empty(t, f.index.LookupTo("target.txt"))
	assert.Len(t, f.index.LookupTo("renamed.txt"), 1)
	assert.True(t, f.index.HasFile("renamed.txt"))
	assert.False(t, f.index.HasFile("target.txt"))

	stats := f.interp.Stats()
	assert.Equal(t, int64(1), stats.FilesMoved)
	assert.Equal(t, int64(1), stats.LinksUpdated)
	assert.Zero(t, stats.Errors)
}

func TestDirectoryMove_Native(t *testing.T) {
	f := newFixture(t, map[string]string{
		"docs/guide.md": "# Guide\n",
		"docs/api.md":   "# API\n",
		"README.md":     "- [Guide](docs/guide.md)\n- [API](docs/api.md)\n",
		"index.md":      "See the [guide](docs/guide.md) and [API](docs/api.md).\n",
	}, nil)

	f.moveDir(t, "docs", "documentation")

	assert.Equal(t, "- [Guide](documentation/guide.md)\n- [API](documentation/api.md)\n", f.read(t, "README.md"))
	assert.Equal(t, "See the [guide](documentation/guide.md) and [API](documentation/api.md).\n", f.read(t, "index.md"))
	assert.Empty(t, f.index.LookupTree("docs"))
	assert.Len(t, f.index.LookupTo("documentation/guide.md"), 2)
	assert.Equal(t, []string{"documentation/api.md", "documentation/guide.md"}, f.index.FilesUnder("documentation"))
	assert.Equal(t, int64(2), f.interp.Stats().FilesMoved)
}

func TestDirectoryMove_DeleteThenChildCreates(t *testing.T) {
	f := newFixture(t, map[string]string{
		"docs/guide.md": "# Guide\n",
		"docs/api.md":   "# API\n",
		"README.md":     "- [Guide](docs/guide.md)\n- [API](docs/api.md)\n",
	}, nil)

	f.rename(t, "docs", "documentation")
	f.event(types.EventDeleted, "docs", -1)
	require.Equal(t, []string{"docs"}, f.interp.PendingDirMoves())

	f.event(types.EventCreated, "documentation/api.md", -1)
	assert.Equal(t, "- [Guide](docs/guide.md)\n- [API](docs/api.md)\n", f.read(t, "README.md"), "flush waits for every child")

	f.event(types.EventCreated, "documentation/guide.md", -1)
	assert.Empty(t, f.interp.PendingDirMoves())
	assert.Equal(t, "- [Guide](documentation/guide.md)\n- [API](documentation/api.md)\n", f.read(t, "README.md"))
	assert.Zero(t, f.interp.Stats().FilesCreated)
}

func TestDirectoryMove_SiblingLinksInsideTreeUntouched(t *testing.T) {
	f := newFixture(t, map[string]string{
		"docs/guide.md": "See [api](api.md).\n",
		"docs/api.md":   "# API\n",
	}, nil)

	f.moveDir(t, "docs", "documentation")

	assert.Equal(t, "See [api](api.md).\n", f.read(t, "documentation/guide.md"))
	assert.Len(t, f.index.LookupTo("documentation/api.md"), 1)
}

func TestDirectoryMove_TimerFlushesPartialBatch(t *testing.T) {
	f := newFixture(t, map[string]string{
		"docs/guide.md": "# Guide\n",
		"docs/api.md":   "# API\n",
		"README.md":     "- [Guide](docs/guide.md)\n- [API](docs/api.md)\n",
	}, func(c *config.Config) { c.DirMoveTimeoutMs = 250 })

	f.rename(t, "docs", "documentation")
	require.NoError(t, os.Remove(f.abs("documentation/api.md")))
	f.event(types.EventDeleted, "docs", -1)
	f.event(types.EventCreated, "documentation/guide.md", -1)

	assert.Eventually(t, func() bool { return len(f.interp.PendingDirMoves()) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "- [Guide](documentation/guide.md)\n- [API](docs/api.md)\n", f.read(t, "README.md"))
	stats := f.interp.Stats()
	assert.Equal(t, int64(1), stats.FilesMoved)
	assert.Equal(t, int64(1), stats.FilesDeleted)
	assert.False(t, f.index.HasFile("docs/api.md"))
}

func TestDeleteThenCreate_CoalescedAsMove(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a/x.txt": "hello",
		"r.md":    "[x](a/x.txt)\n",
	}, nil)

	f.rename(t, "a/x.txt", "b/x.txt")
	f.event(types.EventDeleted, "a/x.txt", -1)
	assert.Equal(t, []string{"a/x.txt"}, f.interp.PendingDeletes())
	f.event(types.EventCreated, "b/x.txt", 5)

	assert.Equal(t, "[x](b/x.txt)\n", f.read(t, "r.md"))
	assert.Empty(t, f.interp.PendingDeletes())
	stats := f.interp.Stats()
	assert.Equal(t, int64(1), stats.FilesMoved)
	assert.Zero(t, stats.FilesCreated)
	assert.Zero(t, stats.FilesDeleted)
}

func TestDeleteThenCreate_NotAMove(t *testing.T) {
	tests := []struct {
		name    string
		newName string
		content string
	}{
		{name: "different basename", newName: "b/y.txt", content: "hello"},
		{name: "size mismatch", newName: "b/x.txt", content: "hello world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]string{
				"a/x.txt": "hello",
				"r.md":    "[x](a/x.txt)\n",
			}, nil)

			require.NoError(t, os.Remove(f.abs("a/x.txt")))
			f.event(types.EventDeleted, "a/x.txt", -1)
			writeFile(t, f.root, tt.newName, tt.content)
			f.event(types.EventCreated, tt.newName, int64(len(tt.content)))

			assert.Equal(t, "[x](a/x.txt)\n", f.read(t, "r.md"))
			assert.Equal(t, []string{"a/x.txt"}, f.interp.PendingDeletes())

			f.interp.FlushPending()
			stats := f.interp.Stats()
			assert.Zero(t, stats.FilesMoved)
			assert.Equal(t, int64(1), stats.FilesCreated)
			assert.Equal(t, int64(1), stats.FilesDeleted)
			assert.Len(t, f.index.LookupTo("a/x.txt"), 1, "dangling references stay visible")
		})
	}
}

func TestFileDelete_NeverStartsDirectoryMove(t *testing.T) {
	f := newFixture(t, map[string]string{
		"docs/guide.md": "See [api](api.md).\n",
		"docs/api.md":   "# API\n",
	}, nil)

	require.NoError(t, os.Remove(f.abs("docs/guide.md")))
	f.event(types.EventDeleted, "docs/guide.md", -1)

	assert.Equal(t, []string{"docs/guide.md"}, f.interp.PendingDeletes())
	assert.Empty(t, f.interp.PendingDirMoves())
}

func TestPendingDelete_TimerFinalizes(t *testing.T) {
	f := newFixture(t, map[string]string{
		"target.txt": "x",
		"doc.md":     "[t](target.txt)\n",
	}, func(c *config.Config) { c.MoveDetectTimeoutMs = 20 })

	require.NoError(t, os.Remove(f.abs("target.txt")))
	f.event(types.EventDeleted, "target.txt", -1)

	assert.Eventually(t, func() bool { return f.interp.Stats().FilesDeleted == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, f.interp.PendingDeletes())
	assert.False(t, f.index.HasFile("target.txt"))
	assert.Equal(t, "[t](target.txt)\n", f.read(t, "doc.md"))
}

func TestPythonImportRewriteOnNestedDirectoryMove(t *testing.T) {
	f := newFixture(t, map[string]string{
		"src/utils/helper.py": "def f():\n    return 1\n",
		"main.py":             "from src.utils.helper import f\n",
		"readme.mdd":          "[helper](src/utils/helper.py)\n",
	}, func(c *config.Config) {
		c.MonitoredExtensions = append(c.MonitoredExtensions, ".mdd")
		c.CustomParsers = map[string]string{".mdd": "markdown"}
	})

	f.moveDir(t, "src/utils", "src/helpers")

	assert.Equal(t, "from src.helpers.helper import f\n", f.read(t, "main.py"))
	assert.Equal(t, "[helper](src/helpers/helper.py)\n", f.read(t, "readme.mdd"))
}

func TestPythonModuleMove_LeavesSamePrefixPackageAlone(t *testing.T) {
	f := newFixture(t, map[string]string{
		"src/utils.py":        "X = 1\n",
		"src/utils/helper.py": "def f():\n    return 1\n",
		"main.py":             "from src.utils.helper import f\n",
	}, nil)

	f.move(t, "src/utils.py", "src/tools.py")

	assert.Equal(t, "from src.utils.helper import f\n", f.read(t, "main.py"))
	require.Len(t, f.index.LookupTo("src/utils/helper.py"), 1)
	assert.Empty(t, f.index.LookupTo("src/tools/helper.py"))

	// the index still finds main.py when the helper itself moves
	f.move(t, "src/utils/helper.py", "src/utils/aid.py")
	assert.Equal(t, "from src.utils.aid import f\n", f.read(t, "main.py"))
}

func TestAnchorPreserved(t *testing.T) {
	f := newFixture(t, map[string]string{
		"guide.md": "# Setup\n",
		"doc.md":   "[sec](guide.md#setup)\n",
	}, nil)

	f.move(t, "guide.md", "manual.md")

	assert.Equal(t, "[sec](manual.md#setup)\n", f.read(t, "doc.md"))
}

func TestSameBasenameDifferentDirIsolation(t *testing.T) {
	f := newFixture(t, map[string]string{
		"docs/file.txt": "d",
		"src/file.txt":  "s",
		"R.md":          "[D](docs/file.txt)\n[S](src/file.txt)\n",
	}, nil)

	f.move(t, "docs/file.txt", "documentation/manual.txt")

	assert.Equal(t, "[D](documentation/manual.txt)\n[S](src/file.txt)\n", f.read(t, "R.md"))
	assert.Len(t, f.index.LookupTo("src/file.txt"), 1)
}

func TestDryRun_LeavesDiskAndIndex(t *testing.T) {
	f := newFixture(t, map[string]string{
		"target.txt": "target\n",
		"doc.md":     "See [link](target.txt).\n",
	}, func(c *config.Config) { c.DryRunMode = true })

	f.move(t, "target.txt", "renamed.txt")

	assert.Equal(t, "See [link](target.txt).\n", f.read(t, "doc.md"))
	assert.Len(t, f.index.LookupTo("target.txt"), 1)
	assert.Equal(t, int64(1), f.interp.Stats().FilesMoved)
}

func TestCreateModifyAndRecreate(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.md": "[b](b.md)\n",
		"b.md": "# B\n",
	}, nil)
	before := f.index.Fingerprint()

	// create event for an already indexed file is a rescan
	f.event(types.EventCreated, "a.md", -1)
	assert.Equal(t, before, f.index.Fingerprint())
	assert.Zero(t, f.interp.Stats().FilesCreated)

	writeFile(t, f.root, "c.md", "[a](a.md)\n")
	f.event(types.EventCreated, "c.md", -1)
	assert.Equal(t, int64(1), f.interp.Stats().FilesCreated)
	assert.Len(t, f.index.LookupTo("a.md"), 1)

	writeFile(t, f.root, "c.md", "[a](a.md) and [b](b.md)\n")
	f.event(types.EventModified, "c.md", -1)
	assert.Len(t, f.index.LookupTo("b.md"), 2)
	assert.Equal(t, int64(1), f.interp.Stats().FilesCreated)
}

func TestReplaceInPlace(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.md": "[b](b.md)\n",
		"b.md": "# B\n",
	}, nil)

	f.event(types.EventDeleted, "a.md", -1)
	writeFile(t, f.root, "a.md", "[b](b.md) again [b](b.md)\n")
	f.event(types.EventCreated, "a.md", -1)

	assert.Empty(t, f.interp.PendingDeletes())
	assert.Len(t, f.index.LookupTo("b.md"), 2)
	stats := f.interp.Stats()
	assert.Zero(t, stats.FilesMoved)
	assert.Zero(t, stats.FilesCreated)
	assert.Zero(t, stats.FilesDeleted)
}

func TestMoveOutOfScope(t *testing.T) {
	f := newFixture(t, map[string]string{
		"notes.txt": "n",
		"doc.md":    "[n](notes.txt)\n",
	}, nil)

	f.move(t, "notes.txt", "notes.bin")

	assert.Equal(t, "[n](notes.txt)\n", f.read(t, "doc.md"))
	assert.False(t, f.index.HasFile("notes.txt"))
	assert.Equal(t, int64(1), f.interp.Stats().FilesDeleted)
}

func TestMovedEvent_SizeMismatchIsDeleteAndCreate(t *testing.T) {
	f := newFixture(t, map[string]string{
		"notes.md": "# Notes\n\nsome text\n",
		"doc.md":   "See [n](notes.md).\n",
	}, nil)

	// notes.md left the tree and an unrelated file appeared
	require.NoError(t, os.Remove(f.abs("notes.md")))
	writeFile(t, f.root, "todo.txt", "x")
	f.interp.Handle(types.RawEvent{Op: types.EventMoved, Path: f.abs("notes.md"), Dest: f.abs("todo.txt"), Size: 1})

	assert.Equal(t, "See [n](notes.md).\n", f.read(t, "doc.md"))
	assert.Equal(t, []string{"notes.md"}, f.interp.PendingDeletes())
	assert.True(t, f.index.HasFile("todo.txt"))

	f.interp.FlushPending()
	stats := f.interp.Stats()
	assert.Zero(t, stats.FilesMoved)
	assert.Equal(t, int64(1), stats.FilesCreated)
	assert.Equal(t, int64(1), stats.FilesDeleted)
	assert.Len(t, f.index.LookupTo("notes.md"), 1)
	assert.Empty(t, f.index.LookupTo("todo.txt"))
}

func TestDirMovedEvent_FromFilePathIsDelete(t *testing.T) {
	f := newFixture(t, map[string]string{
		"notes.md": "# Notes\n",
		"doc.md":   "See [n](notes.md).\n",
	}, nil)

	require.NoError(t, os.Remove(f.abs("notes.md")))
	require.NoError(t, os.Mkdir(f.abs("archive"), 0o755))
	f.interp.Handle(types.RawEvent{Op: types.EventDirMoved, Path: f.abs("notes.md"), Dest: f.abs("archive"), IsDir: true, Size: -1})

	assert.Equal(t, "See [n](notes.md).\n", f.read(t, "doc.md"))
	assert.Equal(t, []string{"notes.md"}, f.interp.PendingDeletes())
	assert.Zero(t, f.interp.Stats().FilesMoved)
}

func TestIgnoredAndOutsidePathsDropped(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": "[b](b.md)\n"}, nil)
	before := f.index.Stats()

	writeFile(t, f.root, "node_modules/x.md", "[a](../a.md)\n")
	f.event(types.EventCreated, "node_modules/x.md", -1)
	f.interp.Handle(types.RawEvent{Op: types.EventCreated, Path: filepath.Join(filepath.Dir(f.root), "elsewhere.md"), Size: -1})
	f.interp.Handle(types.RawEvent{Op: types.EventDeleted, Path: f.root, IsDir: true, Size: -1})

	assert.Equal(t, before, f.index.Stats())
	assert.Empty(t, f.interp.PendingDirMoves())
	assert.Zero(t, f.interp.Stats().FilesCreated)
}

func TestClose_RejectsEvents(t *testing.T) {
	f := newFixture(t, map[string]string{"target.txt": "t", "doc.md": "[t](target.txt)\n"}, nil)

	f.interp.Close()
	f.move(t, "target.txt", "renamed.txt")

	assert.Equal(t, "[t](target.txt)\n", f.read(t, "doc.md"))
	assert.Zero(t, f.interp.Stats().FilesMoved)
}

func TestAlternateModule(t *testing.T) {
	assert.Equal(t, "pkg/mod/__init__.py", alternateModule("pkg/mod.py"))
	assert.Equal(t, "pkg/mod.py", alternateModule("pkg/mod/__init__.py"))
	assert.Equal(t, "", alternateModule("__init__.py"))
	assert.Equal(t, "", alternateModule("doc.md"))
}
