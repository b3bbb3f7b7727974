// Package store implements the persistence layer (spec §4.B): durable
// JSON/JSONL formats for observations, the id counter, sessions, the
// archive, and the one-shot subdirectory-flattening migration. Every
// mutation is wrapped by the caller in lockfile.WithLock and written with
// atomicio.WriteFile; this package never locks or does partial writes on
// its own.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/memorix-dev/memorix-core/internal/atomicio"
	"github.com/memorix-dev/memorix-core/internal/jsonl"
	"github.com/memorix-dev/memorix-core/internal/types"
)

const (
	ObservationsFile = "observations.json"
	CounterFile      = "counter.json"
	GraphFile        = "graph.jsonl"
	SessionsFile     = "sessions.json"
	ArchiveFile      = "observations.archived.json"
	AliasFile        = ".project-aliases.json"
	LockFile         = ".memorix.lock"
	MigratedSubdirs  = ".migrated-subdirs"
)

// Counter is the on-disk shape of counter.json.
type Counter struct {
	NextID int64 `json:"nextId"`
}

// Store reads and writes the flat data root. It holds no in-memory state of
// its own beyond the base path: every read re-parses from disk, matching
// the reconcile-on-write contract described in spec §4.G.
type Store struct {
	baseDir string
}

// New returns a Store rooted at baseDir. baseDir is created if missing.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data root %s: %w", baseDir, err)
	}
	return &Store{baseDir: baseDir}, nil
}

// BaseDir returns the store's data root.
func (s *Store) BaseDir() string { return s.baseDir }

// LockPath returns the path withLock should acquire for this store.
func (s *Store) LockPath() string { return filepath.Join(s.baseDir, LockFile) }

func (s *Store) path(name string) string { return filepath.Join(s.baseDir, name) }

// ReadObservations loads observations.json. A missing file is an empty
// slice, not an error; a syntactically invalid file is an IntegrityError.
func (s *Store) ReadObservations() ([]*types.Observation, error) {
	var obs []*types.Observation
	if err := readJSON(s.path(ObservationsFile), &obs); err != nil {
		return nil, types.NewError(types.KindIntegrityError, "ReadObservations", err)
	}
	if obs == nil {
		obs = []*types.Observation{}
	}
	return obs, nil
}

// WriteObservations atomically replaces observations.json.
func (s *Store) WriteObservations(obs []*types.Observation) error {
	return writeJSON(s.path(ObservationsFile), obs)
}

// ReadCounter loads counter.json, defaulting to {NextID: 1} when absent.
func (s *Store) ReadCounter() (Counter, error) {
	c := Counter{NextID: 1}
	found, err := readJSONIfExists(s.path(CounterFile), &c)
	if err != nil {
		return Counter{}, types.NewError(types.KindIntegrityError, "ReadCounter", err)
	}
	if !found {
		return Counter{NextID: 1}, nil
	}
	return c, nil
}

// WriteCounter atomically replaces counter.json.
func (s *Store) WriteCounter(c Counter) error {
	return writeJSON(s.path(CounterFile), c)
}

// ReadSessions loads sessions.json.
func (s *Store) ReadSessions() ([]*types.Session, error) {
	var sessions []*types.Session
	if err := readJSON(s.path(SessionsFile), &sessions); err != nil {
		return nil, types.NewError(types.KindIntegrityError, "ReadSessions", err)
	}
	if sessions == nil {
		sessions = []*types.Session{}
	}
	return sessions, nil
}

// WriteSessions atomically replaces sessions.json.
func (s *Store) WriteSessions(sessions []*types.Session) error {
	return writeJSON(s.path(SessionsFile), sessions)
}

// ReadArchive loads observations.archived.json.
func (s *Store) ReadArchive() ([]*types.Observation, error) {
	var archived []*types.Observation
	if err := readJSON(s.path(ArchiveFile), &archived); err != nil {
		return nil, types.NewError(types.KindIntegrityError, "ReadArchive", err)
	}
	if archived == nil {
		archived = []*types.Observation{}
	}
	return archived, nil
}

// WriteArchive atomically replaces observations.archived.json.
func (s *Store) WriteArchive(archived []*types.Observation) error {
	return writeJSON(s.path(ArchiveFile), archived)
}

// ReadGraph loads graph.jsonl.
func (s *Store) ReadGraph() ([]*types.Entity, []*types.Relation, error) {
	entities, relations, err := jsonl.ReadGraphFile(s.path(GraphFile))
	if err != nil {
		return nil, nil, types.NewError(types.KindIntegrityError, "ReadGraph", err)
	}
	return entities, relations, nil
}

// WriteGraph atomically replaces graph.jsonl.
func (s *Store) WriteGraph(entities []*types.Entity, relations []*types.Relation) error {
	data, err := jsonl.EncodeGraph(entities, relations)
	if err != nil {
		return err
	}
	return atomicio.WriteFile(s.path(GraphFile), data, 0o644)
}

// ReadAliasRegistry loads .project-aliases.json.
func (s *Store) ReadAliasRegistry() (*types.AliasRegistryFile, error) {
	reg := &types.AliasRegistryFile{Version: types.CurrentAliasRegistryVersion}
	found, err := readJSONIfExists(s.path(AliasFile), reg)
	if err != nil {
		return nil, types.NewError(types.KindIntegrityError, "ReadAliasRegistry", err)
	}
	if !found {
		return &types.AliasRegistryFile{Version: types.CurrentAliasRegistryVersion}, nil
	}
	if reg.Version != types.CurrentAliasRegistryVersion {
		return nil, types.NewError(types.KindIntegrityError, "ReadAliasRegistry",
			fmt.Errorf("unknown alias registry version %d", reg.Version))
	}
	return reg, nil
}

// WriteAliasRegistry atomically replaces .project-aliases.json.
func (s *Store) WriteAliasRegistry(reg *types.AliasRegistryFile) error {
	return writeJSON(s.path(AliasFile), reg)
}

// readJSON parses path into v; a missing file leaves v at its zero value.
func readJSON(path string, v interface{}) error {
	_, err := readJSONIfExists(path, v)
	return err
}

// readJSONIfExists parses path into v, reporting whether the file existed.
func readJSONIfExists(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is derived from the engine's own data root
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return true, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return atomicio.WriteFile(path, data, 0o644)
}

// FindFlattenableSubdirs returns immediate subdirectories of baseDir that
// contain their own observations.json, per the one-shot migration trigger
// in spec §4.B.
func FindFlattenableSubdirs(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: list %s: %w", baseDir, err)
	}

	var subdirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		candidate := filepath.Join(baseDir, e.Name(), ObservationsFile)
		if _, err := os.Stat(candidate); err == nil {
			subdirs = append(subdirs, e.Name())
		}
	}
	sort.Strings(subdirs)
	return subdirs, nil
}
