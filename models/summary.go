package models

// Summary holds descriptive statistics over the amounts of a record subset.
// It is recomputed on demand and never cached.
type Summary struct {
	Count    int     `json:"count"`
	Max      float64 `json:"max"`
	Min      float64 `json:"min"`
	Sum      float64 `json:"sum"`
	Mean     float64 `json:"mean"`
	Mode     float64 `json:"mode"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"stddev"`
}

// ComparisonSide is the outcome for one label of a comparison. Exactly one of
// Summary and Err is set.
type ComparisonSide struct {
	Label   string   `json:"label"`
	Records []Record `json:"-"`
	Summary *Summary `json:"summary,omitempty"`
	Err     error    `json:"-"`
}

// OK reports whether the side produced a summary.
func (s ComparisonSide) OK() bool {
	return s.Err == nil && s.Summary != nil
}

// Comparison pairs two labels with their independent results, stamped with
// the generation of the dataset it was computed from.
type Comparison struct {
	Generation uint64            `json:"generation"`
	Key        string            `json:"key"`
	Sides      [2]ComparisonSide `json:"sides"`
}

// Side looks up a side by its label.
func (c *Comparison) Side(label string) (ComparisonSide, bool) {
	for _, s := range c.Sides {
		if s.Label == label {
			return s, true
		}
	}
	return ComparisonSide{}, false
}

// Series is an ordered x/y sequence handed to a chart renderer.
type Series struct {
	Label string    `json:"label"`
	X     []string  `json:"x"`
	Y     []float64 `json:"y"`
}

// Point is one scatter-plot coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
