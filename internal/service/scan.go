package service

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/linkwatcher/pkg/pathutil"
)

// ScanResult summarizes one full scan.
type ScanResult struct {
	Files      int
	References int
	Duration   time.Duration
}

// Scan walks the project, tracks every monitored file and indexes its
// references. Files are parsed in parallel; unreadable files are skipped.
func (s *Service) Scan(ctx context.Context) error {
	_, err := s.scan(ctx)
	return err
}

func (s *Service) scan(ctx context.Context) (ScanResult, error) {
	start := time.Now()
	s.logger.Info("starting initial scan", "root", s.root, "workers", s.cfg.Workers())

	files, err := s.collectFiles()
	if err != nil {
		return ScanResult{}, err
	}

	var scanned, found atomic.Int64
	interval := int64(s.cfg.ScanProgressInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers())
	for _, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found.Add(int64(s.indexFile(file)))
			if n := scanned.Add(1); interval > 0 && n%interval == 0 {
				s.logger.Info("scan progress", "files", n, "total", len(files))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ScanResult{}, fmt.Errorf("scan interrupted: %w", err)
	}

	res := ScanResult{
		Files:      int(scanned.Load()),
		References: int(found.Load()),
		Duration:   time.Since(start),
	}
	s.filesScanned.Add(int64(res.Files))
	s.referencesFound.Add(int64(res.References))
	s.logger.Info("initial scan complete", "files", res.Files, "references", res.References,
		"duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

// collectFiles returns the canonical paths of all monitored files.
func (s *Service) collectFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return err
			}
			s.logger.Warn("cannot read path during scan", "path", path, "error", err)
			return nil
		}
		canon, ok := pathutil.Canonicalize(path, s.root, s.root)
		if !ok {
			return nil
		}
		if d.IsDir() {
			if canon != "" && s.filter.IsIgnoredDir(canon) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && s.filter.IsMonitored(canon) {
			files = append(files, canon)
		}
		return nil
	})
	return files, err
}

// indexFile tracks and parses one canonical path, returning the number of
// references stored.
func (s *Service) indexFile(canon string) int {
	abs := pathutil.Abs(s.root, canon)
	info, err := os.Stat(abs)
	if err != nil {
		return 0
	}
	s.index.TrackFile(canon, info.Size())

	refs := s.registry.ParseFile(abs)
	for i := range refs {
		refs[i].SourceFile = canon
	}
	return s.index.ReplaceSource(canon, refs)
}

// RescanResult reports a full rebuild.
type RescanResult struct {
	ScanResult
	Unchanged bool // the rebuilt index equals the previous one
}

// ForceRescan drops every pending buffer and all index contents and scans the
// project again.
func (s *Service) ForceRescan(ctx context.Context) (RescanResult, error) {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	before := s.index.Fingerprint()
	s.interp.Reset()
	s.index.Clear()

	res, err := s.scan(ctx)
	if err != nil {
		return RescanResult{}, err
	}
	out := RescanResult{ScanResult: res, Unchanged: s.index.Fingerprint() == before}
	s.logger.Info("forced rescan complete", "unchanged", out.Unchanged)
	return out, nil
}
