package service

import (
	"os"
	"sort"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/linkwatcher/internal/links"
	"github.com/standardbeagle/linkwatcher/internal/types"
	"github.com/standardbeagle/linkwatcher/pkg/pathutil"
)

// suggestionThreshold is the minimum Levenshtein similarity for a "did you mean".
const suggestionThreshold = 0.6

// BrokenLink is a reference whose target does not exist.
type BrokenLink struct {
	Reference  types.Reference
	Resolved   string // canonical path the reference points at
	Suggestion string // most similar tracked file, if any
}

// LinkReport is the result of CheckLinks.
type LinkReport struct {
	Targets    int
	References int
	Broken     []BrokenLink
}

// OK reports whether no broken links were found.
func (r LinkReport) OK() bool { return len(r.Broken) == 0 }

// CheckLinks resolves every indexed reference and reports those whose target
// is missing on disk. It never modifies anything. References that point outside
// the project are not checked.
func (s *Service) CheckLinks() LinkReport {
	buckets := s.index.Buckets()
	tracked := s.index.TrackedFiles()
	exists := make(map[string]bool)

	report := LinkReport{Targets: len(buckets)}
	for _, bucket := range buckets {
		for _, ref := range bucket {
			report.References++
			resolved, ok := s.resolver.Resolve(ref)
			if !ok {
				continue
			}
			if s.targetExists(ref, resolved, exists) {
				continue
			}
			report.Broken = append(report.Broken, BrokenLink{
				Reference:  ref,
				Resolved:   resolved,
				Suggestion: suggest(resolved, tracked),
			})
		}
	}

	sort.Slice(report.Broken, func(i, j int) bool {
		a, b := report.Broken[i].Reference, report.Broken[j].Reference
		if a.SourceFile != b.SourceFile {
			return a.SourceFile < b.SourceFile
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.ColStart < b.ColStart
	})
	return report
}

func (s *Service) targetExists(ref types.Reference, resolved string, cache map[string]bool) bool {
	candidates := []string{resolved}
	if ref.Kind.IsPythonImport() {
		candidates = []string{resolved + ".py", resolved + "/__init__.py", resolved}
	}
	for _, c := range candidates {
		ok, seen := cache[c]
		if !seen {
			_, err := os.Stat(pathutil.Abs(s.root, c))
			ok = err == nil
			cache[c] = ok
		}
		if ok {
			return true
		}
	}
	return false
}

// suggest returns the tracked file most similar to target.
func suggest(target string, tracked []string) string {
	best, bestScore := "", float32(0)
	for _, candidate := range tracked {
		score, err := edlib.StringsSimilarity(links.ModulePath(target), links.ModulePath(candidate), edlib.Levenshtein)
		if err != nil {
			continue
		}
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if bestScore < suggestionThreshold {
		return ""
	}
	return best
}
