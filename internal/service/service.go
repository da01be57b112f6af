// Package service wires configuration, parsers, index, updater, interpreter and
// watcher into the running link maintenance engine.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/standardbeagle/linkwatcher/internal/config"
	"github.com/standardbeagle/linkwatcher/internal/index"
	"github.com/standardbeagle/linkwatcher/internal/interpreter"
	"github.com/standardbeagle/linkwatcher/internal/links"
	"github.com/standardbeagle/linkwatcher/internal/logging"
	"github.com/standardbeagle/linkwatcher/internal/parser"
	"github.com/standardbeagle/linkwatcher/internal/types"
	"github.com/standardbeagle/linkwatcher/internal/updater"
	"github.com/standardbeagle/linkwatcher/internal/watcher"
)

// Service owns one project root.
type Service struct {
	cfg    *config.Config
	root   string
	base   *slog.Logger
	logger *slog.Logger

	filter   *config.Filter
	registry *parser.Registry
	resolver *links.Resolver
	index    *index.ReferenceIndex
	updater  *updater.Updater
	interp   *interpreter.Interpreter

	// eventMu serializes event handling with full rescans
	eventMu sync.Mutex

	mu       sync.Mutex
	watcher  *watcher.Watcher
	loopDone chan struct{}
	started  bool
	stopped  bool

	filesScanned    atomic.Int64
	referencesFound atomic.Int64

	beforeScan func() // test hook, runs once watches are in place
}

// New validates cfg and its project root and builds the engine. The returned
// errors match errors.ErrConfigInvalid or errors.ErrRootInvalid.
func New(cfg *config.Config, logger *slog.Logger) (*Service, error) {
	cfg = cfg.Clone()
	v := config.NewValidator()
	if err := v.ValidateAndSetDefaults(cfg); err != nil {
		return nil, err
	}
	root, err := v.ValidateRoot(cfg.ProjectRoot)
	if err != nil {
		return nil, err
	}
	cfg.ProjectRoot = root

	if logger == nil {
		logger = logging.Discard()
	}

	registry, err := parser.NewRegistry(parser.Options{
		CustomParsers: cfg.CustomParsers,
		MaxFileSize:   cfg.MaxFileSizeBytes(),
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	resolver := links.NewResolver(root)
	idx := index.New(resolver)
	upd := updater.New(root, resolver, updater.Options{
		DryRun:        cfg.DryRunMode,
		CreateBackups: cfg.CreateBackups,
		BackupTag:     cfg.BackupTag,
		Atomic:        cfg.AtomicUpdates,
		Fsync:         cfg.FsyncWrites,
		Logger:        logger,
	})
	filter := config.NewFilter(cfg)

	s := &Service{
		cfg:      cfg,
		root:     root,
		base:     logger,
		logger:   logging.Component(logger, "service"),
		filter:   filter,
		registry: registry,
		resolver: resolver,
		index:    idx,
		updater:  upd,
	}
	s.interp = interpreter.New(interpreter.Options{
		Root:              root,
		Index:             idx,
		Registry:          registry,
		Updater:           upd,
		Resolver:          resolver,
		Filter:            filter,
		MoveDetectTimeout: cfg.MoveDetectTimeout(),
		DirMoveTimeout:    cfg.DirMoveTimeout(),
		Logger:            logger,
	})
	return s, nil
}

// Root is the absolute project root.
func (s *Service) Root() string { return s.root }

// Config returns the validated configuration in use.
func (s *Service) Config() *config.Config { return s.cfg }

// Index exposes the reference index for read-only inspection.
func (s *Service) Index() *index.ReferenceIndex { return s.index }

// Start attaches the watcher, runs the initial scan when enabled and returns.
// Changes made while the scan runs queue up in the watcher and are processed
// once it finishes. Events are processed in the background until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("service already started")
	}

	w, err := watcher.New(watcher.Options{
		Root:     s.root,
		Filter:   s.filter,
		Debounce: s.cfg.WriteDebounce(),
		Logger:   s.base,
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		_ = w.Stop()
		return err
	}

	if s.beforeScan != nil {
		s.beforeScan()
	}
	if s.cfg.InitialScanEnabled {
		if err := s.Scan(ctx); err != nil {
			_ = w.Stop()
			return err
		}
	}

	s.watcher = w
	s.loopDone = make(chan struct{})
	s.started = true
	go s.loop(w.Events(), s.loopDone)

	s.logger.Info("watching project", "root", s.root, "dry_run", s.cfg.DryRunMode)
	return nil
}

// Run starts the service and blocks until ctx is cancelled, then stops it.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// loop delivers watcher events to the interpreter in arrival order.
func (s *Service) loop(events <-chan types.RawEvent, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		s.HandleEvent(ev)
	}
}

// HandleEvent processes one raw event synchronously.
func (s *Service) HandleEvent(ev types.RawEvent) {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()
	s.interp.Handle(ev)
}

// FlushPending resolves pending delete and directory-move buffers immediately.
func (s *Service) FlushPending() {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()
	s.interp.FlushPending()
}

// Stop detaches the watcher, drains pending buffers and returns the final
// statistics. It is safe to call more than once.
func (s *Service) Stop() types.Stats {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return s.Stats()
	}
	s.stopped = true
	w, done := s.watcher, s.loopDone
	s.mu.Unlock()

	if w != nil {
		if err := w.Stop(); err != nil {
			s.logger.Warn("error stopping watcher", "error", err)
		}
		<-done
	}

	s.eventMu.Lock()
	s.interp.Close()
	s.eventMu.Unlock()

	stats := s.Stats()
	s.logger.Info("final statistics",
		"files_moved", stats.FilesMoved,
		"files_deleted", stats.FilesDeleted,
		"files_created", stats.FilesCreated,
		"links_updated", stats.LinksUpdated,
		"errors", stats.Errors,
		"files_scanned", stats.FilesScanned,
		"references_found", stats.ReferencesFound,
		"watch_events", stats.WatchEvents,
		"watch_errors", stats.WatchErrors)
	return stats
}

// Stats combines scan, watcher and event counters.
func (s *Service) Stats() types.Stats {
	stats := s.interp.Stats()
	stats.FilesScanned = s.filesScanned.Load()
	stats.ReferencesFound = s.referencesFound.Load()

	s.mu.Lock()
	w := s.watcher
	s.mu.Unlock()
	if w != nil {
		ws := w.Stats()
		stats.WatchEvents = ws.EventsProcessed
		stats.WatchErrors = ws.ErrorCount
	}
	return stats
}
