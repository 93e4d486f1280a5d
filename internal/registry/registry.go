// Package registry implements the Tool Registry (spec.md §4.2): an
// indexed, immutable-per-entry catalogue of ToolDefinitions with
// category/type/tag lookup and ranked search.
//
// Grounded on the teacher's pkg/registry/registry.go generic
// BaseRegistry[T] (single RWMutex, map-backed store); generalized here
// from one map to a primary map plus three derived indexes, all
// mutated atomically under the same write lock so a reader can never
// observe an id present in an index but absent from the primary map
// (spec.md §5).
package registry

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/kadirpekel/agentrt/internal/model"
	"github.com/kadirpekel/agentrt/internal/rterr"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Filter narrows List/Search results.
type Filter struct {
	Category            model.Category
	Kind                model.Kind
	Tags                []string
	IncludeDeprecated   bool
	ExcludeExperimental bool
}

// SearchOptions configures Search.
type SearchOptions struct {
	Fuzzy bool
	Limit int
}

// Stats summarises the registry's contents.
type Stats struct {
	TotalByCategory map[model.Category]int
	TotalByKind     map[model.Kind]int
	Deprecated      int
	Experimental    int
}

// Registry is the Tool Registry.
type Registry struct {
	mu sync.RWMutex

	byID          map[string]model.ToolDefinition
	categoryIndex map[model.Category]map[string]struct{}
	typeIndex     map[model.Kind]map[string]struct{}
	tagIndex      map[string]map[string]struct{}
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byID:          make(map[string]model.ToolDefinition),
		categoryIndex: make(map[model.Category]map[string]struct{}),
		typeIndex:     make(map[model.Kind]map[string]struct{}),
		tagIndex:      make(map[string]map[string]struct{}),
	}
}

// Register validates and adds a tool definition. It rejects a
// duplicate id with ALREADY_EXISTS and a malformed definition with
// VALIDATION_FAILED (errors joined with "; " in the message).
func (r *Registry) Register(t model.ToolDefinition) error {
	if errs := selfValidate(t); len(errs) > 0 {
		return rterr.New(rterr.ValidationFailed, strings.Join(errs, "; "))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[t.ID]; exists {
		return rterr.Newf(rterr.AlreadyExists, "tool %q already registered", t.ID)
	}

	r.byID[t.ID] = t
	r.indexAdd(t)
	return nil
}

// Unregister removes a tool from the primary map and every index.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return rterr.Newf(rterr.NotFound, "tool %q not found", id)
	}
	delete(r.byID, id)
	r.indexRemove(t)
	return nil
}

// Get returns a tool by id.
func (r *Registry) Get(id string) (model.ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	return t, ok
}

// List returns tools matching filter, unordered beyond the id tiebreak
// search applies; List itself returns insertion-independent order
// sorted by id for determinism.
func (r *Registry) List(f Filter) []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidateIDs map[string]struct{}
	if f.Category != "" {
		candidateIDs = cloneSet(r.categoryIndex[f.Category])
	}
	if f.Kind != "" {
		candidateIDs = intersectOrSeed(candidateIDs, r.typeIndex[f.Kind])
	}
	for _, tag := range f.Tags {
		candidateIDs = intersectOrSeed(candidateIDs, r.tagIndex[tag])
	}

	var out []model.ToolDefinition
	if candidateIDs == nil {
		for _, t := range r.byID {
			if matchesFlags(t, f) {
				out = append(out, t)
			}
		}
	} else {
		for id := range candidateIDs {
			t, ok := r.byID[id]
			if ok && matchesFlags(t, f) {
				out = append(out, t)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func matchesFlags(t model.ToolDefinition, f Filter) bool {
	if t.Deprecated && !f.IncludeDeprecated {
		return false
	}
	if t.Experimental && f.ExcludeExperimental {
		return false
	}
	return true
}

// Search ranks tools by the deterministic score table in spec.md §4.2:
// stable sort by score desc, then id asc. An empty query degenerates
// to List(filter).
func (r *Registry) Search(query string, f Filter, opts SearchOptions) []model.ToolDefinition {
	if strings.TrimSpace(query) == "" {
		out := r.List(f)
		if opts.Limit > 0 && len(out) > opts.Limit {
			out = out[:opts.Limit]
		}
		return out
	}

	candidates := r.List(f)
	lowerQuery := strings.ToLower(query)

	type scored struct {
		tool  model.ToolDefinition
		score int
	}
	var results []scored
	for _, t := range candidates {
		var score int
		if opts.Fuzzy {
			if !fuzzyMatch(lowerQuery, haystack(t)) {
				continue
			}
			score = fuzzyScore(lowerQuery, t)
		} else {
			score = substringScore(lowerQuery, t)
			if score == 0 {
				continue
			}
		}
		results = append(results, scored{tool: t, score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].tool.ID < results[j].tool.ID
	})

	out := make([]model.ToolDefinition, 0, len(results))
	for _, s := range results {
		out = append(out, s.tool)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

func substringScore(lowerQuery string, t model.ToolDefinition) int {
	name := strings.ToLower(t.Name)
	desc := strings.ToLower(t.Description)
	id := strings.ToLower(t.ID)

	score := 0
	switch {
	case name == lowerQuery:
		score += 100
	case id == lowerQuery:
		score += 90
	case strings.HasPrefix(name, lowerQuery):
		score += 50
	case strings.HasPrefix(desc, lowerQuery):
		score += 30
	case strings.Contains(name, lowerQuery):
		score += 20
	case strings.Contains(desc, lowerQuery):
		score += 10
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), lowerQuery) {
			score += 15
		}
	}
	return score
}

func fuzzyScore(lowerQuery string, t model.ToolDefinition) int {
	// Base it on the same weighted table; fuzzy mode only changes
	// whether a candidate qualifies at all (subsequence match), not how
	// ties are broken once it does.
	score := substringScore(lowerQuery, t)
	if score == 0 {
		score = 1
	}
	return score
}

func haystack(t model.ToolDefinition) string {
	return strings.ToLower(t.Name + " " + t.Description + " " + t.ID + " " + strings.Join(t.Tags, " "))
}

func fuzzyMatch(query, haystack string) bool {
	qi := 0
	for i := 0; i < len(haystack) && qi < len(query); i++ {
		if haystack[i] == query[qi] {
			qi++
		}
	}
	return qi == len(query)
}

// Stats summarises registry contents by category/type and flag counts.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		TotalByCategory: make(map[model.Category]int),
		TotalByKind:     make(map[model.Kind]int),
	}
	for _, t := range r.byID {
		s.TotalByCategory[t.Category]++
		s.TotalByKind[t.Kind]++
		if t.Deprecated {
			s.Deprecated++
		}
		if t.Experimental {
			s.Experimental++
		}
	}
	return s
}

func (r *Registry) indexAdd(t model.ToolDefinition) {
	if r.categoryIndex[t.Category] == nil {
		r.categoryIndex[t.Category] = make(map[string]struct{})
	}
	r.categoryIndex[t.Category][t.ID] = struct{}{}

	if r.typeIndex[t.Kind] == nil {
		r.typeIndex[t.Kind] = make(map[string]struct{})
	}
	r.typeIndex[t.Kind][t.ID] = struct{}{}

	for _, tag := range t.Tags {
		if r.tagIndex[tag] == nil {
			r.tagIndex[tag] = make(map[string]struct{})
		}
		r.tagIndex[tag][t.ID] = struct{}{}
	}
}

func (r *Registry) indexRemove(t model.ToolDefinition) {
	removeFromSet(r.categoryIndex[t.Category], t.ID)
	if len(r.categoryIndex[t.Category]) == 0 {
		delete(r.categoryIndex, t.Category)
	}
	removeFromSet(r.typeIndex[t.Kind], t.ID)
	if len(r.typeIndex[t.Kind]) == 0 {
		delete(r.typeIndex, t.Kind)
	}
	for _, tag := range t.Tags {
		removeFromSet(r.tagIndex[tag], t.ID)
		if len(r.tagIndex[tag]) == 0 {
			delete(r.tagIndex, tag)
		}
	}
}

func cloneSet(s map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// intersectOrSeed intersects current with next, treating a nil current
// (no filter applied yet) as "everything" by seeding from next instead.
func intersectOrSeed(current, next map[string]struct{}) map[string]struct{} {
	if current == nil {
		return cloneSet(next)
	}
	out := make(map[string]struct{})
	for k := range current {
		if _, ok := next[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func removeFromSet(s map[string]struct{}, id string) {
	if s == nil {
		return
	}
	delete(s, id)
}

func selfValidate(t model.ToolDefinition) []string {
	var errs []string
	if t.ID == "" || !idPattern.MatchString(t.ID) {
		errs = append(errs, "id must be non-empty and match [A-Za-z0-9_-]+")
	}
	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, "name is required")
	}
	if strings.TrimSpace(t.Description) == "" {
		errs = append(errs, "description is required")
	}
	if !versionPattern.MatchString(t.Version) {
		errs = append(errs, "version must match \\d+.\\d+.\\d+")
	}
	if t.InputSchema == nil {
		errs = append(errs, "inputSchema is required")
	}
	if t.OutputSchema == nil {
		errs = append(errs, "outputSchema is required")
	}
	if t.Execution.TimeoutMs <= 0 {
		errs = append(errs, "execution.timeoutMs must be positive")
	}
	if t.Execution.ResourceLimits.MaxMemoryMB < 0 {
		errs = append(errs, "execution.resourceLimits.maxMemoryMB must be positive when set")
	}
	return errs
}
