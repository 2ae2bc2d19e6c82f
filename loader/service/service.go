// Package service ingests documents dropped into a watched directory.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"assistant/loader"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

type fileState int

const (
	stateDone fileState = iota
	stateBad
)

// Ingester stores the text of one source, replacing what was there.
type Ingester interface {
	Ingest(ctx context.Context, source, text string) (int, error)
}

type Config struct {
	WatchDir   string
	ArchiveDir string
	BadDir     string
	SettleTime time.Duration
	Workers    int
	Logger     *slog.Logger
}

type Service struct {
	cfg      Config
	logger   *slog.Logger
	registry *loader.Registry
	indexer  Ingester

	mu         sync.Mutex
	lastChange map[string]time.Time
	processing map[string]bool
}

func New(cfg Config, registry *loader.Registry, indexer Ingester) (*Service, error) {
	if cfg.WatchDir == "" {
		return nil, errors.New("watch directory is not set")
	}
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = filepath.Join(cfg.WatchDir, "..", "archive")
	}
	if cfg.BadDir == "" {
		cfg.BadDir = filepath.Join(cfg.WatchDir, "..", "bad")
	}
	if cfg.SettleTime <= 0 {
		cfg.SettleTime = 5 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if err := createDirectories(cfg.WatchDir, cfg.ArchiveDir, cfg.BadDir); err != nil {
		return nil, err
	}

	return &Service{
		cfg:        cfg,
		logger:     cfg.Logger.With("component", "watcher"),
		registry:   registry,
		indexer:    indexer,
		lastChange: make(map[string]time.Time),
		processing: make(map[string]bool),
	}, nil
}

// Run watches the directory until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.cfg.WatchDir); err != nil {
		return fmt.Errorf("watch %s: %w", s.cfg.WatchDir, err)
	}
	s.logger.Info("watching directory", "dir", s.cfg.WatchDir, "settle", s.cfg.SettleTime)

	files := make(chan string, 10)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(files)
		return s.WatchFile(gctx, watcher, files)
	})
	g.Go(func() error {
		return s.ProcessFiles(gctx, files)
	})

	err = g.Wait()
	s.logger.Info("watcher stopped")
	return err
}

// WatchFile tracks changes in the directory and emits a path once it has
// been quiet for the settle time.
func (s *Service) WatchFile(ctx context.Context, watcher *fsnotify.Watcher, out chan<- string) error {
	s.scanExisting()

	tick := s.cfg.SettleTime / 2
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.track(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", "error", err)
		case <-ticker.C:
			for _, path := range s.settled() {
				select {
				case out <- path:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// ProcessFiles ingests paths with at most Workers files in flight.
func (s *Service) ProcessFiles(ctx context.Context, in <-chan string) error {
	pool, pctx := errgroup.WithContext(ctx)
	pool.SetLimit(s.cfg.Workers)

	for path := range in {
		pool.Go(func() error {
			s.processFile(pctx, path)
			return nil
		})
	}
	return pool.Wait()
}

func (s *Service) processFile(ctx context.Context, path string) {
	defer s.forget(path)

	name := filepath.Base(path)
	logger := s.logger.With("file", name)

	n, err := s.ingestFile(ctx, path)
	if ctx.Err() != nil {
		// leave the file in place so the next run picks it up
		logger.Info("file processing interrupted")
		return
	}
	if err != nil {
		logger.Error("failed to ingest file", "error", err)
		s.MoveToArchive(path, stateBad)
		return
	}

	logger.Info("file ingested", "chunks", n)
	s.MoveToArchive(path, stateDone)
}

func (s *Service) ingestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	name := filepath.Base(path)

	contentType, err := s.registry.ResolveType(name, "", data)
	if err != nil {
		return 0, err
	}
	doc, err := s.registry.Load(ctx, name, contentType, data)
	if err != nil {
		return 0, err
	}
	return s.indexer.Ingest(ctx, doc.Source, doc.Text)
}

func (s *Service) scanExisting() {
	entries, err := os.ReadDir(s.cfg.WatchDir)
	if err != nil {
		s.logger.Warn("failed to read watch directory", "error", err)
		return
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.IsDir() || ignored(e.Name()) {
			continue
		}
		s.lastChange[filepath.Join(s.cfg.WatchDir, e.Name())] = now
	}
}

func (s *Service) track(event fsnotify.Event) {
	if ignored(filepath.Base(event.Name)) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if !s.processing[event.Name] {
			delete(s.lastChange, event.Name)
		}
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
			return
		}
		if !s.processing[event.Name] {
			s.lastChange[event.Name] = time.Now()
		}
	}
}

// settled marks every file that stopped changing as processing and
// returns it.
func (s *Service) settled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []string
	for path, last := range s.lastChange {
		if s.processing[path] || time.Since(last) < s.cfg.SettleTime {
			continue
		}
		s.processing[path] = true
		ready = append(ready, path)
	}
	return ready
}

func (s *Service) forget(path string) {
	s.mu.Lock()
	delete(s.processing, path)
	delete(s.lastChange, path)
	s.mu.Unlock()
}

// MoveToArchive moves a processed file into a dated folder under the
// archive or bad directory. Name clashes get a numeric suffix.
func (s *Service) MoveToArchive(path string, state fileState) string {
	root := s.cfg.ArchiveDir
	if state == stateBad {
		root = s.cfg.BadDir
	}

	destDir := filepath.Join(root, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		s.logger.Error("failed to create archive directory", "dir", destDir, "error", err)
		return ""
	}

	destPath := filepath.Join(destDir, filepath.Base(path))
	ext := filepath.Ext(destPath)
	base := strings.TrimSuffix(filepath.Base(destPath), ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(destPath); errors.Is(err, os.ErrNotExist) {
			break
		}
		destPath = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", base, i, ext))
	}

	if err := moveFile(path, destPath); err != nil {
		s.logger.Error("failed to move file", "from", path, "to", destPath, "error", err)
		return ""
	}
	s.logger.Debug("file moved", "to", destPath)
	return destPath
}

func moveFile(from, to string) error {
	if err := os.Rename(from, to); err == nil {
		return nil
	}

	// rename fails across filesystems
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(to)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	in.Close()
	return os.Remove(from)
}

func ignored(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}

func createDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
