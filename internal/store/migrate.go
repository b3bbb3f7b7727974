package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/memorix-dev/memorix-core/internal/types"
)

// FlattenResult reports what the one-shot subdirectory-flattening migration
// did, for the administrative CLI's `migrate` command to print.
type FlattenResult struct {
	SubdirsMigrated  []string
	ObservationCount int
	EntityCount      int
	RelationCount    int
	SessionCount     int
}

// FlattenSubdirs implements spec §4.B's one-shot migration: any subdirectory
// of the base that contains its own observations.json is merged into the
// base-level flat layout and renamed under .migrated-subdirs/. Called under
// the project lock; a nil result with no error means there was nothing to
// migrate.
func (s *Store) FlattenSubdirs() (*FlattenResult, error) {
	subdirs, err := FindFlattenableSubdirs(s.baseDir)
	if err != nil {
		return nil, err
	}
	if len(subdirs) == 0 {
		return nil, nil
	}

	baseObs, err := s.ReadObservations()
	if err != nil {
		return nil, err
	}
	baseEntities, baseRelations, err := s.ReadGraph()
	if err != nil {
		return nil, err
	}
	baseSessions, err := s.ReadSessions()
	if err != nil {
		return nil, err
	}

	allObs := append([]*types.Observation(nil), baseObs...)
	allEntities := append([]*types.Entity(nil), baseEntities...)
	allRelations := append([]*types.Relation(nil), baseRelations...)
	allSessions := append([]*types.Session(nil), baseSessions...)

	for _, name := range subdirs {
		sub := &Store{baseDir: filepath.Join(s.baseDir, name)}

		subObs, err := sub.ReadObservations()
		if err != nil {
			return nil, err
		}
		allObs = append(allObs, subObs...)

		subEntities, subRelations, err := sub.ReadGraph()
		if err != nil {
			return nil, err
		}
		allEntities = append(allEntities, subEntities...)
		allRelations = append(allRelations, subRelations...)

		subSessions, err := sub.ReadSessions()
		if err != nil {
			return nil, err
		}
		allSessions = append(allSessions, subSessions...)
	}

	dedupedObs := dedupeByTitleAndCreatedAt(allObs)
	sort.Slice(dedupedObs, func(i, j int) bool {
		return dedupedObs[i].CreatedAt.Before(dedupedObs[j].CreatedAt)
	})
	for i, o := range dedupedObs {
		o.ID = int64(i + 1)
	}

	mergedEntities := mergeEntitiesByName(allEntities)
	mergedRelations := mergeRelationsByKey(allRelations)

	if err := s.WriteObservations(dedupedObs); err != nil {
		return nil, err
	}
	if err := s.WriteCounter(Counter{NextID: int64(len(dedupedObs) + 1)}); err != nil {
		return nil, err
	}
	if err := s.WriteGraph(mergedEntities, mergedRelations); err != nil {
		return nil, err
	}
	if err := s.WriteSessions(allSessions); err != nil {
		return nil, err
	}

	migratedRoot := filepath.Join(s.baseDir, MigratedSubdirs)
	if err := os.MkdirAll(migratedRoot, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", migratedRoot, err)
	}
	for _, name := range subdirs {
		oldPath := filepath.Join(s.baseDir, name)
		newPath := filepath.Join(migratedRoot, name)
		if err := os.Rename(oldPath, newPath); err != nil {
			return nil, fmt.Errorf("store: rename %s to %s: %w", oldPath, newPath, err)
		}
	}

	return &FlattenResult{
		SubdirsMigrated:  subdirs,
		ObservationCount: len(dedupedObs),
		EntityCount:      len(mergedEntities),
		RelationCount:    len(mergedRelations),
		SessionCount:     len(allSessions),
	}, nil
}

func dedupeByTitleAndCreatedAt(obs []*types.Observation) []*types.Observation {
	type key struct {
		title     string
		createdAt int64
	}
	seen := make(map[key]bool, len(obs))
	out := make([]*types.Observation, 0, len(obs))
	for _, o := range obs {
		k := key{title: o.Title, createdAt: o.CreatedAt.UnixNano()}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, o)
	}
	return out
}

func mergeEntitiesByName(entities []*types.Entity) []*types.Entity {
	byName := make(map[string]*types.Entity, len(entities))
	var order []string
	for _, e := range entities {
		existing, ok := byName[e.Name]
		if !ok {
			clone := &types.Entity{Name: e.Name, EntityType: e.EntityType}
			byName[e.Name] = clone
			order = append(order, e.Name)
			existing = clone
		}
		for _, line := range e.Observations {
			if !existing.HasObservation(line) {
				existing.Observations = append(existing.Observations, line)
			}
		}
	}
	out := make([]*types.Entity, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

func mergeRelationsByKey(relations []*types.Relation) []*types.Relation {
	seen := make(map[[3]string]bool, len(relations))
	out := make([]*types.Relation, 0, len(relations))
	for _, r := range relations {
		k := r.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}
