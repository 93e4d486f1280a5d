package registry

import "github.com/kadirpekel/agentrt/internal/metrics"

// PublishStats pushes a Stats snapshot onto rec's gauges. Safe to call
// with a nil rec (every Recorder method is itself nil-safe).
func (r *Registry) PublishStats(rec *metrics.Recorder) {
	s := r.Stats()
	for cat, n := range s.TotalByCategory {
		rec.SetToolCategoryCount(string(cat), n)
	}
	for kind, n := range s.TotalByKind {
		rec.SetToolKindCount(string(kind), n)
	}
	rec.SetDeprecatedCount(s.Deprecated)
	rec.SetExperimentalCount(s.Experimental)
}
