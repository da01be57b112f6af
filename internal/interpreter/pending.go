package interpreter

import (
	"time"

	"github.com/standardbeagle/linkwatcher/pkg/pathutil"
)

// PendingDelete holds a deleted file for a short while in case a create with the
// same basename turns the pair into a move.
type PendingDelete struct {
	Path      string
	DeletedAt time.Time
	Size      int64 // bytes before deletion; 0 or less means unknown
	timer     *time.Timer
}

// MovePair is one file of a directory move.
type MovePair struct {
	Old string
	New string
}

// PendingDirMove collects the per-child creates that follow a directory delete.
// Expected is always Unmatched plus the Old side of Matched.
type PendingDirMove struct {
	OldDirPrefix string // always ends with "/"
	NewDir       string
	HasNewDir    bool
	Expected     map[string]struct{}
	Unmatched    map[string]struct{}
	Matched      []MovePair
	StartedAt    time.Time
	timer        *time.Timer
}

func newPendingDirMove(oldDir string, children []string, now time.Time) *PendingDirMove {
	p := &PendingDirMove{
		OldDirPrefix: pathutil.PrefixWithSlash(oldDir),
		Expected:     make(map[string]struct{}, len(children)),
		Unmatched:    make(map[string]struct{}, len(children)),
		StartedAt:    now,
	}
	for _, c := range children {
		p.Expected[c] = struct{}{}
		p.Unmatched[c] = struct{}{}
	}
	return p
}

// OldDir is the moved directory without its trailing slash.
func (p *PendingDirMove) OldDir() string {
	return p.OldDirPrefix[:len(p.OldDirPrefix)-1]
}

// match pairs a created path with an unmatched child. The new directory is
// inferred from the first child seen: the child's path inside the old directory
// is stripped from the created path.
func (p *PendingDirMove) match(created string) (string, bool) {
	if p.HasNewDir {
		newPrefix := pathutil.PrefixWithSlash(p.NewDir)
		if !pathutil.IsUnder(created, p.NewDir) {
			return "", false
		}
		old := p.OldDirPrefix + created[len(newPrefix):]
		if _, ok := p.Unmatched[old]; ok {
			p.accept(old, created)
			return old, true
		}
		return "", false
	}

	best := ""
	for old := range p.Unmatched {
		rel := old[len(p.OldDirPrefix):]
		if created == old || !hasPathSuffix(created, rel) {
			continue
		}
		if len(old) > len(best) {
			best = old
		}
	}
	if best == "" {
		return "", false
	}
	rel := best[len(p.OldDirPrefix):]
	p.NewDir = created[:len(created)-len(rel)-1]
	p.HasNewDir = true
	p.accept(best, created)
	return best, true
}

func (p *PendingDirMove) accept(old, created string) {
	delete(p.Unmatched, old)
	p.Matched = append(p.Matched, MovePair{Old: old, New: created})
}

// Complete reports whether every expected child has been seen.
func (p *PendingDirMove) Complete() bool {
	return len(p.Unmatched) == 0
}

// hasPathSuffix reports whether p ends with "/"+rel, so rel matches whole segments.
func hasPathSuffix(p, rel string) bool {
	return len(p) > len(rel) && p[len(p)-len(rel)-1] == '/' && p[len(p)-len(rel):] == rel
}
