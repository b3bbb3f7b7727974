// Package observations implements the Observations Manager (spec §4.G):
// topic-key dispatch between insert and revision, counter allocation,
// extractor-driven enrichment, embedding generation, and search-index
// maintenance. Only the disk reload, dispatch, and atomic write run under
// the store's project lock; extraction and embedding run outside it.
package observations

import (
	"context"
	"fmt"
	"time"

	"github.com/memorix-dev/memorix-core/internal/embedding"
	"github.com/memorix-dev/memorix-core/internal/extractor"
	"github.com/memorix-dev/memorix-core/internal/idgen"
	"github.com/memorix-dev/memorix-core/internal/lockfile"
	"github.com/memorix-dev/memorix-core/internal/searchindex"
	"github.com/memorix-dev/memorix-core/internal/store"
	"github.com/memorix-dev/memorix-core/internal/tokencount"
	"github.com/memorix-dev/memorix-core/internal/types"
)

// Input is the caller-supplied payload for recording one observation
// (spec §4.G). TopicKeyFam, when set, routes the write to a revision of the
// project's existing observation under that family, or gives a new
// observation a freshly minted family/slug key.
type Input struct {
	ProjectID     string
	EntityName    string
	Type          types.ObservationType
	Title         string
	Narrative     string
	Facts         []string
	FilesModified []string
	Concepts      []string
	SessionID     string
	TopicKeyFam   string // family half of a family/slug topic key; empty disables topic-key assignment
}

// Manager orchestrates observation writes and reads against one store.
type Manager struct {
	store *store.Store
	index *searchindex.Index
	slug  *idgen.SlugGenerator
}

// New returns a Manager backed by st, indexing into ix.
func New(st *store.Store, ix *searchindex.Index) *Manager {
	return &Manager{store: st, index: ix, slug: idgen.NewSlugGenerator()}
}

// Store records input as a new observation, or as a revision of an
// existing one sharing the same topic key (spec §4.G rule 1). The write is
// serialized by the store's project lock; the index is updated only after
// the durable write succeeds.
func (m *Manager) Store(ctx context.Context, cache *embedding.Cache, input Input) (*types.Observation, error) {
	extracted := extractor.Extract(input.Narrative)

	var result *types.Observation

	err := lockfile.WithLock(m.store.LockPath(), func() error {
		all, err := m.store.ReadObservations()
		if err != nil {
			return err
		}
		counter, err := m.store.ReadCounter()
		if err != nil {
			return err
		}

		var topicKey string
		if input.TopicKeyFam != "" {
			existingKeys := map[string]bool{}
			for _, o := range all {
				if o.TopicKey != "" {
					existingKeys[o.TopicKey] = true
				}
			}
			topicKey = findByTopicKeyFamily(all, input.ProjectID, input.TopicKeyFam, input.Title, m.slug, existingKeys)
		}

		now := time.Now()
		var target *types.Observation
		if topicKey != "" {
			for _, o := range all {
				if o.ProjectID == input.ProjectID && o.TopicKey == topicKey {
					target = o
					break
				}
			}
		}

		if target != nil {
			target.Narrative = input.Narrative
			target.Facts = input.Facts
			target.FilesModified = extractor.EnrichFiles(input.FilesModified, extracted.Files)
			target.Concepts = extractor.EnrichConcepts(input.Concepts, extracted)
			target.HasCausalLanguage = extracted.HasCausalLanguage
			target.UpdatedAt = now
			target.RevisionCount++
			target.Tokens = tokencount.Estimate(target)
			result = target
		} else {
			o := &types.Observation{
				ID:                counter.NextID,
				EntityName:        input.EntityName,
				Type:              input.Type,
				Title:             input.Title,
				Narrative:         input.Narrative,
				Facts:             input.Facts,
				FilesModified:     extractor.EnrichFiles(input.FilesModified, extracted.Files),
				Concepts:          extractor.EnrichConcepts(input.Concepts, extracted),
				CreatedAt:         now,
				ProjectID:         input.ProjectID,
				HasCausalLanguage: extracted.HasCausalLanguage,
				RevisionCount:     1,
				SessionID:         input.SessionID,
			}
			if topicKey != "" {
				o.TopicKey = topicKey
			}
			o.Tokens = tokencount.Estimate(o)
			all = append(all, o)
			counter.NextID++
			result = o

			if err := m.store.WriteCounter(counter); err != nil {
				return err
			}
		}

		return m.store.WriteObservations(all)
	})
	if err != nil {
		return nil, fmt.Errorf("observations: store: %w", err)
	}

	// Extraction already ran before the lock; embedding and index
	// maintenance run after it releases so a slow cold-start embedding
	// call never holds the cross-process lock other writers wait on.
	if cache != nil {
		if v, embedErr := cache.Embed(ctx, result.SearchableText()); embedErr == nil && m.index != nil {
			_ = m.index.UpsertVector(result.ID, v)
		}
		_ = cache.Flush()
	}

	if m.index != nil {
		m.index.Insert(result)
	}
	return result, nil
}

// findByTopicKeyFamily returns the topic key to use: an existing one of
// projectID matching family (so the write becomes a revision), or a newly
// minted slug under family if no revision target is found. The title plays
// no part in the match; it only feeds the slug of a newly minted key.
func findByTopicKeyFamily(all []*types.Observation, projectID, family, title string, slug *idgen.SlugGenerator, existingKeys map[string]bool) string {
	prefix := family + "/"
	for _, o := range all {
		if o.ProjectID == projectID && len(o.TopicKey) > len(prefix) && o.TopicKey[:len(prefix)] == prefix {
			return o.TopicKey
		}
	}
	return slug.GenerateTopicKey(family, title, existingKeys)
}

// Reindex rebuilds the in-memory search index (and its vector layer, if
// configured) from the authoritative observations.json and returns the
// errors the index reports; an embedding failure never stops the lexical
// rebuild (spec §4.G rule on reindex).
func (m *Manager) Reindex(ctx context.Context) []error {
	all, err := m.store.ReadObservations()
	if err != nil {
		return []error{err}
	}
	if m.index == nil {
		return nil
	}
	return m.index.Reindex(ctx, all)
}

// MigrateProjectIDs rewrites every observation whose ProjectID is one of
// aliases to canonical, under the store's lock (spec §4.C: alias merges
// must not fork an existing project's history).
func (m *Manager) MigrateProjectIDs(aliases []string, canonical string) error {
	aliasSet := map[string]bool{}
	for _, a := range aliases {
		aliasSet[a] = true
	}

	return lockfile.WithLock(m.store.LockPath(), func() error {
		all, err := m.store.ReadObservations()
		if err != nil {
			return err
		}
		changed := false
		for _, o := range all {
			if aliasSet[o.ProjectID] && o.ProjectID != canonical {
				o.ProjectID = canonical
				changed = true
			}
		}
		if !changed {
			return nil
		}
		return m.store.WriteObservations(all)
	})
}
