package planner

// Weights holds the planner's scoring constants. Zero-value fields
// fall back to the defaults named in spec.md §9's Open Question — the
// source hardcodes 0.4/0.3/0.2/0.1/base-0.3; this runtime exposes them
// as configuration instead, per the spec's explicit recommendation.
type Weights struct {
	Base                float64
	CategoryMatchBonus   float64
	KeywordMatchPerHit   float64
	ExactIDBonus         float64
	CalculationBonus     float64
	ConfidenceComplexity float64
}

// DefaultWeights returns the constants spec.md §4.5 names literally.
func DefaultWeights() Weights {
	return Weights{
		Base:                 0.3,
		CategoryMatchBonus:   0.4,
		KeywordMatchPerHit:   0.1,
		ExactIDBonus:         0.3,
		CalculationBonus:     0.3,
		ConfidenceComplexity: 0.2,
	}
}

// withDefaults fills any zero-valued field from DefaultWeights, so a
// caller can override a single constant without restating the rest.
func (w Weights) withDefaults() Weights {
	d := DefaultWeights()
	if w.Base == 0 {
		w.Base = d.Base
	}
	if w.CategoryMatchBonus == 0 {
		w.CategoryMatchBonus = d.CategoryMatchBonus
	}
	if w.KeywordMatchPerHit == 0 {
		w.KeywordMatchPerHit = d.KeywordMatchPerHit
	}
	if w.ExactIDBonus == 0 {
		w.ExactIDBonus = d.ExactIDBonus
	}
	if w.CalculationBonus == 0 {
		w.CalculationBonus = d.CalculationBonus
	}
	if w.ConfidenceComplexity == 0 {
		w.ConfidenceComplexity = d.ConfidenceComplexity
	}
	return w
}
