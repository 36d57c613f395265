package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DiskRuleStore persists rule definitions to disk for recovery after restart.
type DiskRuleStore struct {
	mu       sync.RWMutex
	defs     map[string]RuleDefinition
	dataDir  string
	filePath string
	fs       FileSystem // injected filesystem for testing
}

// NewDiskRuleStore creates a rule store backed by disk persistence.
func NewDiskRuleStore(dataDir string) (*DiskRuleStore, error) {
	return NewDiskRuleStoreWithFS(dataDir, &RealFileSystem{})
}

// NewDiskRuleStoreWithFS creates a rule store with injectable filesystem (for testing).
func NewDiskRuleStoreWithFS(dataDir string, fs FileSystem) (*DiskRuleStore, error) {
	if err := fs.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &DiskRuleStore{
		defs:     make(map[string]RuleDefinition),
		dataDir:  dataDir,
		filePath: filepath.Join(dataDir, "rules.yaml"),
		fs:       fs,
	}

	if err := store.load(); err != nil {
		if _, statErr := fs.Stat(store.filePath); os.IsNotExist(statErr) {
			return store, nil
		}
		return nil, fmt.Errorf("failed to load rule definitions: %w", err)
	}

	return store, nil
}

// Create adds a new rule definition and persists to disk.
func (s *DiskRuleStore) Create(def RuleDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[def.ID()]; exists {
		return fmt.Errorf("rule %s already exists", def.ID())
	}

	s.defs[def.ID()] = def
	return s.persist()
}

// Update modifies an existing rule definition and persists to disk.
func (s *DiskRuleStore) Update(def RuleDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[def.ID()]; !exists {
		return fmt.Errorf("rule %s not found", def.ID())
	}

	s.defs[def.ID()] = def
	return s.persist()
}

// Delete removes a rule definition and persists to disk.
func (s *DiskRuleStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[id]; !exists {
		return fmt.Errorf("rule %s not found", id)
	}

	delete(s.defs, id)
	return s.persist()
}

// Get retrieves a single rule definition.
func (s *DiskRuleStore) Get(id string) (RuleDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, exists := s.defs[id]
	if !exists {
		return RuleDefinition{}, fmt.Errorf("rule %s not found", id)
	}

	return def, nil
}

// List returns all rule definitions.
func (s *DiskRuleStore) List() ([]RuleDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]RuleDefinition, 0, len(s.defs))
	for _, def := range s.defs {
		defs = append(defs, def)
	}

	return defs, nil
}

// Count returns the number of rule definitions.
func (s *DiskRuleStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.defs)
}

// persist writes all rule definitions to disk atomically.
func (s *DiskRuleStore) persist() error {
	data, err := yaml.Marshal(s.defs)
	if err != nil {
		return fmt.Errorf("failed to marshal rule definitions: %w", err)
	}

	tmpPath := s.filePath + ".tmp"
	if err := s.fs.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write rule definitions: %w", err)
	}

	if err := s.fs.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("failed to rename rule definitions file: %w", err)
	}

	return nil
}

// load reads rule definitions from disk.
func (s *DiskRuleStore) load() error {
	data, err := s.fs.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		s.defs = make(map[string]RuleDefinition)
		return nil
	}

	defs := make(map[string]RuleDefinition)
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return fmt.Errorf("failed to unmarshal rule definitions: %w", err)
	}

	s.defs = defs
	return nil
}
