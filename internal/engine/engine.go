// Package engine implements the Memory Service Façade (spec §4.K): the one
// orchestration point every transport adapter (out of scope here) and the
// administrative CLI (§6.E) call into. It owns every component instance,
// no process-wide globals, and shapes responses for progressive
// disclosure.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/memorix-dev/memorix-core/internal/alias"
	"github.com/memorix-dev/memorix-core/internal/config"
	"github.com/memorix-dev/memorix-core/internal/embedding"
	"github.com/memorix-dev/memorix-core/internal/graph"
	"github.com/memorix-dev/memorix-core/internal/lockfile"
	"github.com/memorix-dev/memorix-core/internal/observations"
	"github.com/memorix-dev/memorix-core/internal/retention"
	"github.com/memorix-dev/memorix-core/internal/searchindex"
	"github.com/memorix-dev/memorix-core/internal/session"
	"github.com/memorix-dev/memorix-core/internal/store"
	"github.com/memorix-dev/memorix-core/internal/types"
)

// Engine bundles every component against one data root (spec §4.K, §9
// design note: "owns no process-wide globals").
type Engine struct {
	cfg    config.Config
	log    *slog.Logger
	store  *store.Store
	index  *searchindex.Index
	cache  *embedding.Cache
	aliasR *alias.Registry

	Observations *observations.Manager
	Graph        *graph.Manager
	Retention    *retention.Engine
	Sessions     *session.Manager
}

// New constructs an Engine rooted at cfg.DataRoot, taking its embedding
// provider from embedding.Select() and loading any existing alias
// registry and embedding cache from disk.
func New(cfg config.Config, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}

	st, err := store.New(cfg.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("engine: init store: %w", err)
	}

	provider := embedding.Select()
	if embedding.IsNull(provider) {
		log.Warn("no embedding provider registered, falling back to lexical-only search")
	}
	cachePath := st.BaseDir() + "/.embedding-cache.json"
	cache, err := embedding.NewCache(provider, cachePath)
	if err != nil {
		return nil, fmt.Errorf("engine: init embedding cache: %w", err)
	}

	var vectors searchindex.VectorStore
	if !embedding.IsNull(provider) {
		switch cfg.VectorBackend {
		case "sqlite":
			vectors, err = searchindex.NewSQLiteVectorStore(cfg.VectorDSN, provider.Dimensions())
			if err != nil {
				return nil, fmt.Errorf("engine: init sqlite vector store: %w", err)
			}
		default:
			vectors = searchindex.NewMemoryVectorStore()
		}
	}
	index := searchindex.New(vectors, cache)

	aliasFile, err := st.ReadAliasRegistry()
	if err != nil {
		return nil, fmt.Errorf("engine: read alias registry: %w", err)
	}
	aliasR := alias.FromFile(aliasFile)

	e := &Engine{
		cfg:          cfg,
		log:          log,
		store:        st,
		index:        index,
		cache:        cache,
		aliasR:       aliasR,
		Observations: observations.New(st, index),
		Graph:        graph.New(st),
		Retention:    retention.New(st, index),
		Sessions:     session.New(st),
	}

	if errs := e.Observations.Reindex(context.Background()); len(errs) > 0 {
		for _, ixErr := range errs {
			log.Warn("reindex skipped an observation", "error", ixErr)
		}
	}

	return e, nil
}

// ResolveProject detects the project identity for workingDir, registers it
// in the alias registry (merging with any known alias group), and returns
// the expanded set of ids that the caller's subsequent search/store calls
// should consider in scope (spec §4.C, §4.K: "expands the project alias
// set once per call").
func (e *Engine) ResolveProject(workingDir string) (types.ProjectIdentity, []string, error) {
	identity, err := alias.Detect(workingDir)
	if err != nil {
		return types.ProjectIdentity{}, nil, fmt.Errorf("engine: detect project: %w", err)
	}
	if identity.ID == types.InvalidProjectID {
		return identity, nil, types.NewError(types.KindInvalidProject, "engine.ResolveProject", fmt.Errorf("%s is not a valid project directory", workingDir))
	}

	e.aliasR.Register(identity)
	e.aliasR.AutoMergeByBasename(e.observedProjectIDs())

	resolved := e.aliasR.ResolveAliases(identity.ID)
	canonical := identity.ID
	if g := e.aliasR.GroupFor(identity.ID); g != nil {
		canonical = g.Canonical
	}

	if err := e.persistAliasRegistry(); err != nil {
		return identity, nil, err
	}

	if len(resolved) > 1 {
		if err := e.Observations.MigrateProjectIDs(resolved, canonical); err != nil {
			return identity, nil, fmt.Errorf("engine: migrate project ids: %w", err)
		}
	}

	return identity, resolved, nil
}

func (e *Engine) persistAliasRegistry() error {
	return lockfile.WithLock(e.store.LockPath(), func() error {
		return e.store.WriteAliasRegistry(e.aliasR.ToFile())
	})
}

// observedProjectIDs returns every distinct projectId currently present in
// observations.json, feeding AutoMergeByBasename ids that were never
// registered directly (spec §4.C: basename auto-merge considers ids seen
// only in stored data, not just detected identities).
func (e *Engine) observedProjectIDs() []string {
	all, err := e.store.ReadObservations()
	if err != nil {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, o := range all {
		if o.ProjectID == "" || seen[o.ProjectID] {
			continue
		}
		seen[o.ProjectID] = true
		out = append(out, o.ProjectID)
	}
	return out
}

// SearchRequest is the façade's Layer 1 request shape.
type SearchRequest struct {
	WorkingDir string
	Text       string
	Since      *int64
	Until      *int64
	Limit      int
	MaxTokens  int
	UseVector  bool
}

// Search resolves the caller's project, expands its alias set, and runs
// Layer 1 hybrid search (spec §4.F, §4.K).
func (e *Engine) Search(ctx context.Context, req SearchRequest) ([]searchindex.Hit, error) {
	_, projectIDs, err := e.ResolveProject(req.WorkingDir)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = e.cfg.SearchDefaultLimit
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = e.cfg.SearchDefaultMaxTokens
	}
	return e.index.Search(ctx, searchindex.Query{
		ProjectIDs: projectIDs,
		Text:       req.Text,
		Since:      req.Since,
		Until:      req.Until,
		Limit:      limit,
		MaxTokens:  maxTokens,
		UseVector:  req.UseVector,
	})
}

// Timeline resolves the caller's project and runs Layer 2: anchorID plus
// depthBefore/depthAfter adjacent observations (spec §4.F, §4.K).
func (e *Engine) Timeline(workingDir string, anchorID int64, depthBefore, depthAfter int) ([]*types.Observation, error) {
	if _, _, err := e.ResolveProject(workingDir); err != nil {
		return nil, err
	}
	all, err := e.store.ReadObservations()
	if err != nil {
		return nil, err
	}
	return searchindex.Timeline(all, anchorID, depthBefore, depthAfter), nil
}

// Detail runs Layer 3: direct id lookup (spec §4.K).
func (e *Engine) Detail(ids []int64) ([]*types.Observation, error) {
	all, err := e.store.ReadObservations()
	if err != nil {
		return nil, err
	}
	return searchindex.Detail(all, ids), nil
}

// StoreObservation resolves the caller's project and records an
// observation through the Observations Manager (spec §4.G, §4.K).
func (e *Engine) StoreObservation(ctx context.Context, workingDir string, input observations.Input) (*types.Observation, error) {
	identity, _, err := e.ResolveProject(workingDir)
	if err != nil {
		return nil, err
	}
	input.ProjectID = identity.ID
	start := time.Now()
	o, err := e.Observations.Store(ctx, e.cache, input)
	e.log.Debug("stored observation", "duration", time.Since(start), "projectId", identity.ID)
	return o, err
}

// ArchiveStale runs the retention engine's archive pass against the
// configured or caller-supplied threshold (spec §4.I, §4.K).
func (e *Engine) ArchiveStale(threshold float64) (*retention.Result, error) {
	if threshold == 0 {
		threshold = e.cfg.ArchiveThreshold
	}
	start := time.Now()
	result, err := e.Retention.Archive(threshold)
	if err == nil {
		e.log.Info("archive pass complete", "archived", result.ArchivedCount, "duration", time.Since(start))
	}
	return result, err
}

// Stats reports retention classification counts for one project (spec
// §6.E memorixctl stats).
func (e *Engine) Stats(workingDir string) (retention.Stats, error) {
	_, projectIDs, err := e.ResolveProject(workingDir)
	if err != nil {
		return retention.Stats{}, err
	}
	return e.statsForIDs(projectIDs)
}

// StatsByID reports retention classification counts for projectID directly
// (spec §6.E memorixctl stats, which takes a project identifier rather
// than a working directory): it expands projectID's alias group without
// requiring a directory to detect one from.
func (e *Engine) StatsByID(projectID string) (retention.Stats, error) {
	return e.statsForIDs(e.aliasR.ResolveAliases(projectID))
}

func (e *Engine) statsForIDs(projectIDs []string) (retention.Stats, error) {
	all, err := e.store.ReadObservations()
	if err != nil {
		return retention.Stats{}, err
	}
	inScope := map[string]bool{}
	for _, id := range projectIDs {
		inScope[id] = true
	}
	var scoped []*types.Observation
	for _, o := range all {
		if inScope[o.ProjectID] {
			scoped = append(scoped, o)
		}
	}
	return retention.ClassifyAll(scoped, time.Now()), nil
}

// Migrate runs the one-shot subdirectory-flattening migration (spec §4.B,
// §6.E memorixctl migrate).
func (e *Engine) Migrate() (*store.FlattenResult, error) {
	var result *store.FlattenResult
	err := lockfile.WithLock(e.store.LockPath(), func() error {
		var flattenErr error
		result, flattenErr = e.store.FlattenSubdirs()
		return flattenErr
	})
	return result, err
}

// Close flushes the embedding cache and releases any resources the engine
// holds open (the vector store, if ephemeral-on-disk).
func (e *Engine) Close() error {
	if err := e.cache.Flush(); err != nil {
		return err
	}
	return e.index.Close()
}
