package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"profitcruiser/internal/metrics"
)

// Store owns the state document. A single mutex serializes every reader
// and writer, reproducing the no-torn-mutation property the storefront
// depends on: all mutation for a request happens inside one critical
// section, and the whole document is persisted before the lock is
// released.
type Store struct {
	mu      sync.Mutex
	path    string
	logger  *slog.Logger
	doc     *Document
	metrics *metrics.Metrics
}

// SetMetrics attaches the collector set. Called once at startup, before
// the store is shared.
func (s *Store) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Open reads the state file at path, or synthesizes and persists the
// default document when none exists.
func Open(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger.With("component", "state"),
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		doc := &Document{}
		if err := json.Unmarshal(raw, doc); err != nil {
			return nil, fmt.Errorf("parse state file %s: %w", path, err)
		}
		s.doc = doc
	case errors.Is(err, fs.ErrNotExist):
		s.doc = NewDefaultDocument()
		if err := s.save(); err != nil {
			return nil, err
		}
		s.logger.Info("state file not found, wrote default document", "path", path)
	default:
		return nil, fmt.Errorf("read state file %s: %w", path, err)
	}

	if s.doc.Views == nil {
		s.doc.Views = map[string]int{}
	}
	if s.doc.ScriptVisibility == nil {
		s.doc.ScriptVisibility = map[string]bool{}
	}

	return s, nil
}

// View runs fn with shared access to the document. fn must not retain
// references past its return.
func (s *Store) View(fn func(*Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
}

// Update runs fn with exclusive access and persists the whole document
// afterwards. When fn returns an error nothing is written. A failed save
// leaves the in-memory mutation applied; the caller must treat the
// operation's effect as unknown.
func (s *Store) Update(fn func(*Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.doc); err != nil {
		return err
	}
	return s.save()
}

// save serializes the document and overwrites the state file. Callers
// hold the mutex.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state file %s: %w", s.path, err)
	}
	if s.metrics != nil {
		s.metrics.StateSaves.Inc()
	}
	return nil
}
