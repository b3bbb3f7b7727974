// Package graph implements the Knowledge Graph component (spec §4.H):
// create_entities, create_relations, add_observations, search_nodes,
// open_nodes, and read_graph, persisted as graph.jsonl (internal/jsonl)
// under the store's project lock. The on-disk line format is
// compatible with the "official memory server" convention (spec §6),
// so an existing graph.jsonl from that tool can be dropped in unchanged.
package graph

import (
	"strings"

	"github.com/memorix-dev/memorix-core/internal/lockfile"
	"github.com/memorix-dev/memorix-core/internal/store"
	"github.com/memorix-dev/memorix-core/internal/types"
)

// Manager reads and writes one store's knowledge graph.
type Manager struct {
	store *store.Store
}

// New returns a Manager backed by st.
func New(st *store.Store) *Manager {
	return &Manager{store: st}
}

// CreateEntities adds entities that don't already exist by name, returning
// only the ones actually created (spec §4.H: creation is idempotent on
// name).
func (m *Manager) CreateEntities(newEntities []*types.Entity) ([]*types.Entity, error) {
	var created []*types.Entity
	err := lockfile.WithLock(m.store.LockPath(), func() error {
		entities, relations, err := m.store.ReadGraph()
		if err != nil {
			return err
		}
		byName := map[string]bool{}
		for _, e := range entities {
			byName[e.Name] = true
		}
		for _, e := range newEntities {
			if byName[e.Name] {
				continue
			}
			entities = append(entities, e)
			byName[e.Name] = true
			created = append(created, e)
		}
		if len(created) == 0 {
			return nil
		}
		return m.store.WriteGraph(entities, relations)
	})
	return created, err
}

// CreateRelations adds relations that don't already exist by (from, to,
// relationType), returning only the ones actually created.
func (m *Manager) CreateRelations(newRelations []*types.Relation) ([]*types.Relation, error) {
	var created []*types.Relation
	err := lockfile.WithLock(m.store.LockPath(), func() error {
		entities, relations, err := m.store.ReadGraph()
		if err != nil {
			return err
		}
		existing := map[[3]string]bool{}
		for _, r := range relations {
			existing[r.Key()] = true
		}
		for _, r := range newRelations {
			if existing[r.Key()] {
				continue
			}
			relations = append(relations, r)
			existing[r.Key()] = true
			created = append(created, r)
		}
		if len(created) == 0 {
			return nil
		}
		return m.store.WriteGraph(entities, relations)
	})
	return created, err
}

// Observation is one line to append to an entity's observation list.
type Observation struct {
	EntityName string
	Contents   []string
}

// AddedObservations reports what was actually appended for one entity.
type AddedObservations struct {
	EntityName        string
	AddedObservations []string
}

// AddObservations appends free-text lines to existing entities, deduping
// exact-match lines per entity (spec §4.H). An entity name with no match in
// the graph is skipped rather than erroring, so a partial batch can't be
// blocked by one bad name.
func (m *Manager) AddObservations(additions []Observation) ([]AddedObservations, error) {
	var results []AddedObservations
	err := lockfile.WithLock(m.store.LockPath(), func() error {
		entities, relations, err := m.store.ReadGraph()
		if err != nil {
			return err
		}
		byName := map[string]*types.Entity{}
		for _, e := range entities {
			byName[e.Name] = e
		}

		changed := false
		for _, add := range additions {
			e, ok := byName[add.EntityName]
			if !ok {
				continue
			}
			var appended []string
			for _, line := range add.Contents {
				if e.HasObservation(line) {
					continue
				}
				e.Observations = append(e.Observations, line)
				appended = append(appended, line)
				changed = true
			}
			if len(appended) > 0 {
				results = append(results, AddedObservations{EntityName: add.EntityName, AddedObservations: appended})
			}
		}
		if !changed {
			return nil
		}
		return m.store.WriteGraph(entities, relations)
	})
	return results, err
}

// ReadGraph returns the full entity and relation set (spec §4.H read_graph).
func (m *Manager) ReadGraph() ([]*types.Entity, []*types.Relation, error) {
	return m.store.ReadGraph()
}

// SearchNodes returns entities whose name, entityType, or any observation
// line contains query (case-insensitive substring), along with relations
// where both endpoints are in the matched set (spec §4.H search_nodes).
func (m *Manager) SearchNodes(query string) ([]*types.Entity, []*types.Relation, error) {
	entities, relations, err := m.store.ReadGraph()
	if err != nil {
		return nil, nil, err
	}
	q := strings.ToLower(query)

	var matched []*types.Entity
	matchedNames := map[string]bool{}
	for _, e := range entities {
		if entityMatches(e, q) {
			matched = append(matched, e)
			matchedNames[e.Name] = true
		}
	}

	var matchedRelations []*types.Relation
	for _, r := range relations {
		if matchedNames[r.From] && matchedNames[r.To] {
			matchedRelations = append(matchedRelations, r)
		}
	}
	return matched, matchedRelations, nil
}

func entityMatches(e *types.Entity, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(e.Name), lowerQuery) {
		return true
	}
	if strings.Contains(strings.ToLower(e.EntityType), lowerQuery) {
		return true
	}
	for _, o := range e.Observations {
		if strings.Contains(strings.ToLower(o), lowerQuery) {
			return true
		}
	}
	return false
}

// OpenNodes returns exactly the named entities (missing names are simply
// absent from the result) plus relations between any two of them (spec
// §4.H open_nodes).
func (m *Manager) OpenNodes(names []string) ([]*types.Entity, []*types.Relation, error) {
	entities, relations, err := m.store.ReadGraph()
	if err != nil {
		return nil, nil, err
	}
	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}

	var matched []*types.Entity
	for _, e := range entities {
		if want[e.Name] {
			matched = append(matched, e)
		}
	}
	var matchedRelations []*types.Relation
	for _, r := range relations {
		if want[r.From] && want[r.To] {
			matchedRelations = append(matchedRelations, r)
		}
	}
	return matched, matchedRelations, nil
}
