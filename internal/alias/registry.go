package alias

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/memorix-dev/memorix-core/internal/types"
)

// Registry holds the in-memory alias groups for a data root, mirroring
// .project-aliases.json (spec §4.B, §4.C).
type Registry struct {
	groups []*types.AliasGroup
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// FromFile reconstructs a Registry from the persisted file shape.
func FromFile(f *types.AliasRegistryFile) *Registry {
	r := NewRegistry()
	if f == nil {
		return r
	}
	for _, row := range f.Groups {
		g := &types.AliasGroup{
			Canonical: row.Canonical,
			Aliases:   map[string]bool{},
			RootPaths: map[string]bool{},
			GitRemote: row.GitRemote,
		}
		for _, a := range row.Aliases {
			g.Aliases[a] = true
		}
		for _, p := range row.RootPaths {
			g.RootPaths[p] = true
		}
		r.groups = append(r.groups, g)
	}
	return r
}

// ToFile serializes the registry to its persisted shape, sorting slices for
// determinism.
func (r *Registry) ToFile() *types.AliasRegistryFile {
	f := &types.AliasRegistryFile{Version: types.CurrentAliasRegistryVersion}
	for _, g := range r.groups {
		row := &types.AliasGroupFileRow{
			Canonical: g.Canonical,
			Aliases:   sortedKeys(g.Aliases),
			RootPaths: sortedKeys(g.RootPaths),
			GitRemote: g.GitRemote,
		}
		f.Groups = append(f.Groups, row)
	}
	return f
}

// Groups returns every group in the registry.
func (r *Registry) Groups() []*types.AliasGroup { return r.groups }

// normalizeRootPath applies spec §4.C's root-path comparison rule:
// forward-slash, no trailing slash, lowercase on case-insensitive
// filesystems (Windows, macOS default).
func normalizeRootPath(path string) string {
	p := filepath.ToSlash(path)
	p = strings.TrimSuffix(p, "/")
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		p = strings.ToLower(p)
	}
	return p
}

// findGroup locates the group matching any of id, rootPath, or gitRemote
// (spec §4.C alias registration rule).
func (r *Registry) findGroup(id, rootPath, gitRemote string) *types.AliasGroup {
	normRoot := ""
	if rootPath != "" {
		normRoot = normalizeRootPath(rootPath)
	}
	for _, g := range r.groups {
		if g.Aliases[id] {
			return g
		}
		if normRoot != "" && g.RootPaths[normRoot] {
			return g
		}
		if gitRemote != "" && g.GitRemote == gitRemote {
			return g
		}
	}
	return nil
}

// Register folds a detected identity into the registry, creating a new
// group if none matches, and recomputes the canonical member. It returns
// the group the identity now belongs to.
func (r *Registry) Register(identity types.ProjectIdentity) *types.AliasGroup {
	g := r.findGroup(identity.ID, identity.RootPath, identity.GitRemote)
	if g == nil {
		g = types.NewAliasGroup(identity.ID)
		r.groups = append(r.groups, g)
	} else {
		g.Aliases[identity.ID] = true
	}
	if identity.RootPath != "" {
		g.RootPaths[normalizeRootPath(identity.RootPath)] = true
	}
	if identity.GitRemote != "" {
		g.GitRemote = identity.GitRemote
	}
	recomputeCanonical(g)
	return g
}

// recomputeCanonical sets g.Canonical to the highest-Priority alias.
func recomputeCanonical(g *types.AliasGroup) {
	best := g.Canonical
	bestPriority := Priority(best)
	for id := range g.Aliases {
		if p := Priority(id); p > bestPriority {
			best = id
			bestPriority = p
		}
	}
	g.Canonical = best
}

// ResolveAliases returns every id in the group containing id, or []string{id}
// if no group contains it (spec §4.C).
func (r *Registry) ResolveAliases(id string) []string {
	for _, g := range r.groups {
		if g.Aliases[id] {
			return g.AliasList()
		}
	}
	return []string{id}
}

// GroupFor returns the group containing id, or nil.
func (r *Registry) GroupFor(id string) *types.AliasGroup {
	for _, g := range r.groups {
		if g.Aliases[id] {
			return g
		}
	}
	return nil
}

// AutoMergeByBasename implements spec §4.C's one-shot rule: any two ids
// whose basename (the part after the last "/") match are folded into one
// group. Operates over the ids currently present across all groups plus
// any extra ids supplied by the caller (e.g. ids seen only in observations,
// never registered directly).
func (r *Registry) AutoMergeByBasename(extraIDs []string) {
	byBasename := map[string][]string{}
	seen := map[string]bool{}

	note := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		base := basenameOf(id)
		byBasename[base] = append(byBasename[base], id)
	}
	for _, g := range r.groups {
		for id := range g.Aliases {
			note(id)
		}
	}
	for _, id := range extraIDs {
		note(id)
	}

	for _, ids := range byBasename {
		if len(ids) < 2 {
			continue
		}
		r.mergeAll(ids)
	}
}

func basenameOf(id string) string {
	idx := strings.LastIndex(id, "/")
	if idx < 0 {
		return id
	}
	return id[idx+1:]
}

// mergeAll folds every group touched by any of ids into a single group.
func (r *Registry) mergeAll(ids []string) {
	var touched []*types.AliasGroup
	var untouchedGroups []*types.AliasGroup

	for _, g := range r.groups {
		matches := false
		for _, id := range ids {
			if g.Aliases[id] {
				matches = true
				break
			}
		}
		if matches {
			touched = append(touched, g)
		} else {
			untouchedGroups = append(untouchedGroups, g)
		}
	}
	if len(touched) == 0 {
		merged := types.NewAliasGroup(ids[0])
		for _, id := range ids[1:] {
			merged.Aliases[id] = true
		}
		recomputeCanonical(merged)
		r.groups = append(untouchedGroups, merged)
		return
	}

	merged := touched[0]
	for _, extra := range touched[1:] {
		for id := range extra.Aliases {
			merged.Aliases[id] = true
		}
		for p := range extra.RootPaths {
			merged.RootPaths[p] = true
		}
		if extra.GitRemote != "" {
			merged.GitRemote = extra.GitRemote
		}
	}
	for _, id := range ids {
		merged.Aliases[id] = true
	}
	recomputeCanonical(merged)
	r.groups = append(untouchedGroups, merged)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortStrings(out)
	return out
}

// sortStrings is a small insertion sort: the slices here are always tiny
// (alias counts per group), so pulling in "sort" for a handful of strings
// isn't worth the indirection.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
