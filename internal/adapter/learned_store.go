package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	m "mender.dev/pkg/mender/internal/model"
)

// File names of the persisted learned state.
const (
	PatternsFileName = "patterns.yaml"
	FixTypesFileName = "fix_types.yaml"
	HistoryFileName  = "history.yaml"
)

const (
	maxPatternExamples = 5
	maxFixTypeContexts = 20
	maxHistory         = 100
)

// LearnedStore holds the fingerprint and fix-type tables the ranking engine learns from.
// Reads may run concurrently; Record and Save are serialized.
type LearnedStore interface {
	Load() error
	Save() error
	Record(outcome m.FixOutcome)
	Pattern(fingerprint string) (m.PatternStats, bool)
	FixTypeStats(fixType m.FixType) (m.FixTypeStats, bool)
	FixTypes() map[m.FixType]m.FixTypeStats
	History() []m.FixOutcome
}

type yamlLearnedStore struct {
	dir string

	mu       sync.RWMutex
	patterns map[string]m.PatternStats
	fixTypes map[m.FixType]m.FixTypeStats
	history  []m.FixOutcome
}

// NewLearnedStore returns a LearnedStore persisted as YAML files under dir.
// An empty dir keeps the state in memory only.
func NewLearnedStore(dir string) LearnedStore {
	return &yamlLearnedStore{
		dir:      dir,
		patterns: make(map[string]m.PatternStats),
		fixTypes: make(map[m.FixType]m.FixTypeStats),
	}
}

// Load replaces the in-memory tables with the persisted ones. Missing or
// unreadable tables are replaced by empty ones and logged.
func (s *yamlLearnedStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.patterns = make(map[string]m.PatternStats)
	s.fixTypes = make(map[m.FixType]m.FixTypeStats)
	s.history = nil

	if s.dir == "" {
		return nil
	}

	var errs []error

	if err := s.readTable(PatternsFileName, &s.patterns); err != nil {
		s.patterns = make(map[string]m.PatternStats)

		errs = append(errs, err)
	}

	if err := s.readTable(FixTypesFileName, &s.fixTypes); err != nil {
		s.fixTypes = make(map[m.FixType]m.FixTypeStats)

		errs = append(errs, err)
	}

	if err := s.readTable(HistoryFileName, &s.history); err != nil {
		s.history = nil

		errs = append(errs, err)
	}

	if s.patterns == nil {
		s.patterns = make(map[string]m.PatternStats)
	}

	if s.fixTypes == nil {
		s.fixTypes = make(map[m.FixType]m.FixTypeStats)
	}

	slog.Debug("loaded learned state", "dir", s.dir, "patterns", len(s.patterns), "fixTypes", len(s.fixTypes))

	return errors.Join(errs...)
}

func (s *yamlLearnedStore) readTable(name string, out any) error {
	path := filepath.Join(s.dir, name)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		slog.Warn("failed to read learned state, starting empty", "path", path, "error", err)
		return fmt.Errorf("read %s: %w", name, err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		slog.Warn("corrupt learned state, starting empty", "path", path, "error", err)
		return fmt.Errorf("decode %s: %w", name, err)
	}

	return nil
}

// Save writes all tables.
func (s *yamlLearnedStore) Save() error {
	if s.dir == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		slog.Error("failed to create state dir", "dir", s.dir, "error", err)
		return fmt.Errorf("create state dir: %w", err)
	}

	tables := []struct {
		name  string
		value any
	}{
		{PatternsFileName, s.patterns},
		{FixTypesFileName, s.fixTypes},
		{HistoryFileName, s.history},
	}

	for _, table := range tables {
		if err := s.writeTable(table.name, table.value); err != nil {
			return err
		}
	}

	slog.Debug("saved learned state", "dir", s.dir, "patterns", len(s.patterns), "fixTypes", len(s.fixTypes))

	return nil
}

func (s *yamlLearnedStore) writeTable(name string, value any) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		slog.Error("failed to encode learned state", "table", name, "error", err)
		return fmt.Errorf("encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		slog.Error("failed to write learned state", "path", tmp, "error", err)
		return fmt.Errorf("write %s: %w", name, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		slog.Error("failed to replace learned state", "path", path, "error", err)
		return fmt.Errorf("replace %s: %w", name, err)
	}

	return nil
}

// Record folds one outcome into both tables and the bounded history.
func (s *yamlLearnedStore) Record(outcome m.FixOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if outcome.Fingerprint != "" {
		p := s.patterns[outcome.Fingerprint]
		if p.FixTypes == nil {
			p.FixTypes = make(map[m.FixType]int)
		}

		p.Attempts++
		if outcome.Success {
			p.Successes++
		}

		p.FixTypes[outcome.FixType]++

		if outcome.Example != "" && len(p.Examples) < maxPatternExamples && !contains(p.Examples, outcome.Example) {
			p.Examples = append(p.Examples, outcome.Example)
		}

		s.patterns[outcome.Fingerprint] = p
	}

	ft := s.fixTypes[outcome.FixType]

	ft.Attempts++
	if outcome.Success {
		ft.Successes++
	}

	if key := contextKey(outcome); key != "" && len(ft.Contexts) < maxFixTypeContexts && !contains(ft.Contexts, key) {
		ft.Contexts = append(ft.Contexts, key)
	}

	s.fixTypes[outcome.FixType] = ft

	outcome.Example = ""
	s.history = append(s.history, outcome)

	if len(s.history) > maxHistory {
		s.history = append([]m.FixOutcome(nil), s.history[len(s.history)-maxHistory:]...)
	}
}

func (s *yamlLearnedStore) Pattern(fingerprint string) (m.PatternStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patterns[fingerprint]
	if !ok {
		return m.PatternStats{}, false
	}

	fixTypes := make(map[m.FixType]int, len(p.FixTypes))
	for k, v := range p.FixTypes {
		fixTypes[k] = v
	}

	p.FixTypes = fixTypes
	p.Examples = append([]string(nil), p.Examples...)

	return p, true
}

func (s *yamlLearnedStore) FixTypeStats(fixType m.FixType) (m.FixTypeStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ft, ok := s.fixTypes[fixType]
	ft.Contexts = append([]string(nil), ft.Contexts...)

	return ft, ok
}

func (s *yamlLearnedStore) FixTypes() map[m.FixType]m.FixTypeStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[m.FixType]m.FixTypeStats, len(s.fixTypes))
	for k, v := range s.fixTypes {
		v.Contexts = append([]string(nil), v.Contexts...)
		out[k] = v
	}

	return out
}

func (s *yamlLearnedStore) History() []m.FixOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]m.FixOutcome(nil), s.history...)
}

func contextKey(o m.FixOutcome) string {
	if o.Framework == "" && o.TestType == "" {
		return ""
	}

	return o.Framework + "/" + o.TestType
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}

	return false
}
