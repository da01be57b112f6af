package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/linkwatcher/internal/types"
)

func ref(source, target string, kind types.LinkKind) types.Reference {
	return types.Reference{SourceFile: source, LinkTarget: target, Kind: kind}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		target    string
		style     Style
		backslash bool
		dir       bool
		anchor    string
	}{
		{"guide.md", StyleFilenameOnly, false, false, ""},
		{"docs/guide.md", StyleImplicitRelative, false, false, ""},
		{"./guide.md", StyleExplicitRelative, false, false, ""},
		{"../guide.md", StyleExplicitRelative, false, false, ""},
		{"/docs/guide.md", StyleAbsolute, false, false, ""},
		{`C:\proj\guide.md`, StyleAbsolute, true, false, ""},
		{`docs\guide.md`, StyleImplicitRelative, true, false, ""},
		{"docs/", StyleFilenameOnly, false, true, ""},
		{"docs/api/", StyleImplicitRelative, false, true, ""},
		{"guide.md#setup", StyleFilenameOnly, false, false, "setup"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			f := Classify(tt.target)
			assert.Equal(t, tt.style, f.Style, f.Style.String())
			assert.Equal(t, tt.backslash, f.Backslash)
			assert.Equal(t, tt.dir, f.Dir)
			assert.Equal(t, tt.anchor, f.Anchor)
		})
	}
}

func TestBucketKey(t *testing.T) {
	assert.Equal(t, "docs/a.md", BucketKey("./docs/a.md"))
	assert.Equal(t, "docs/a.md", BucketKey(`docs\a.md`))
	assert.Equal(t, "docs/a.md", BucketKey("/docs/a.md"))
	assert.Equal(t, "a.md#top", BucketKey("./a.md#top"))
	assert.Equal(t, "../a.md", BucketKey("../a.md"))
}

func TestModulePath(t *testing.T) {
	assert.Equal(t, "src/utils/helper", ModulePath("src/utils/helper.py"))
	assert.Equal(t, "src/utils", ModulePath("src/utils/__init__.py"))
	assert.Equal(t, "src/utils", ModulePath("src/utils"))
}

func TestResolve(t *testing.T) {
	r := NewResolver("/home/u/proj")

	tests := []struct {
		source, target string
		want           string
		ok             bool
	}{
		{"doc.md", "target.txt", "target.txt", true},
		{"docs/index.md", "guide.md", "docs/guide.md", true},
		{"docs/index.md", "./guide.md#x", "docs/guide.md", true},
		{"docs/index.md", "../README.md", "README.md", true},
		{"docs/index.md", "/src/main.py", "src/main.py", true},
		{"docs/index.md", "/home/u/proj/src/main.py", "src/main.py", true},
		{"docs/index.md", `..\src\main.py`, "src/main.py", true},
		{"docs/index.md", "api/", "docs/api", true},
		{"index.md", "../outside.md", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.source+"->"+tt.target, func(t *testing.T) {
			got, ok := r.Resolve(ref(tt.source, tt.target, types.KindMarkdownInline))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestMatches_SameBasenameDifferentDir(t *testing.T) {
	r := NewResolver("/p")
	d := ref("R.md", "docs/file.txt", types.KindMarkdownInline)
	s := ref("R.md", "src/file.txt", types.KindMarkdownInline)

	assert.True(t, r.Matches(d, "docs/file.txt"))
	assert.False(t, r.Matches(s, "docs/file.txt"))
}

func TestMatches_PythonImport(t *testing.T) {
	r := NewResolver("/p")
	imp := ref("main.py", "src/utils/helper", types.KindPythonImport)

	assert.True(t, r.Matches(imp, "src/utils/helper.py"))
	assert.False(t, r.Matches(imp, "src/utils/helper2.py"))

	pkg := ref("main.py", "src/utils", types.KindPythonImport)
	assert.True(t, r.Matches(pkg, "src/utils/__init__.py"))
	assert.True(t, r.MatchesTree(imp, "src/utils"))
}

func TestRetarget_StylePreserved(t *testing.T) {
	r := NewResolver("/home/u/proj")

	tests := []struct {
		name           string
		source, target string
		old, new       string
		want           string
	}{
		{"filename stays filename", "doc.md", "target.txt", "target.txt", "renamed.txt", "renamed.txt"},
		{"filename becomes relative", "doc.md", "target.txt", "target.txt", "sub/target.txt", "sub/target.txt"},
		{"implicit relative", "README.md", "docs/guide.md", "docs/guide.md", "documentation/guide.md", "documentation/guide.md"},
		{"explicit relative keeps dot", "docs/a.md", "./b.md", "docs/b.md", "docs/c.md", "./c.md"},
		{"explicit relative climbs", "docs/a.md", "./b.md", "docs/b.md", "other/b.md", "../other/b.md"},
		{"parent relative", "docs/a.md", "../x.md", "x.md", "y/x.md", "../y/x.md"},
		{"project absolute", "docs/a.md", "/src/m.py", "src/m.py", "lib/m.py", "/lib/m.py"},
		{"filesystem absolute", "docs/a.md", "/home/u/proj/src/m.py", "src/m.py", "lib/m.py", "/home/u/proj/lib/m.py"},
		{"anchor preserved", "doc.md", "guide.md#setup", "guide.md", "manual.md", "manual.md#setup"},
		{"backslashes preserved", "docs/a.md", `..\src\m.py`, "src/m.py", "lib/m.py", `..\lib\m.py`},
		{"directory link", "README.md", "docs/", "docs", "documentation", "documentation/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Retarget(ref(tt.source, tt.target, types.KindMarkdownInline), tt.old, tt.new)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRetarget_NoMatch(t *testing.T) {
	r := NewResolver("/p")
	_, ok := r.Retarget(ref("R.md", "src/file.txt", types.KindMarkdownInline), "docs/file.txt", "x/file.txt")
	assert.False(t, ok)
}

func TestRetarget_Python(t *testing.T) {
	r := NewResolver("/p")

	got, ok := r.Retarget(ref("main.py", "src/utils/helper", types.KindPythonImport), "src/utils/helper.py", "src/helpers/helper.py")
	require.True(t, ok)
	assert.Equal(t, "src/helpers/helper", got)

	got, ok = r.Retarget(ref("main.py", "src/utils/helper", types.KindPythonImport), "src/utils/helper/__init__.py", "lib/helper/__init__.py")
	require.True(t, ok)
	assert.Equal(t, "lib/helper", got)

	// a submodule does not move with its package's __init__.py
	_, ok = r.Retarget(ref("main.py", "src/utils/helper/sub", types.KindPythonImport), "src/utils/helper/__init__.py", "lib/helper/__init__.py")
	assert.False(t, ok)

	// nor with a sibling module of the same name
	_, ok = r.Retarget(ref("main.py", "src/utils/helper", types.KindPythonImport), "src/utils.py", "src/tools.py")
	assert.False(t, ok)

	_, ok = r.Retarget(ref("main.py", "src/utils_extra", types.KindPythonImport), "src/utils.py", "x.py")
	assert.False(t, ok)
}

func TestRetargetTree(t *testing.T) {
	r := NewResolver("/p")

	got, ok := r.RetargetTree(ref("README.md", "docs/sub/", types.KindMarkdownInline), "docs", "documentation")
	require.True(t, ok)
	assert.Equal(t, "documentation/sub/", got)

	got, ok = r.RetargetTree(ref("main.py", "src/utils", types.KindPythonImport), "src/utils", "src/helpers")
	require.True(t, ok)
	assert.Equal(t, "src/helpers", got)

	_, ok = r.RetargetTree(ref("README.md", "docs-other/a.md", types.KindMarkdownInline), "docs", "documentation")
	assert.False(t, ok)
}
