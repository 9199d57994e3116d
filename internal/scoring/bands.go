package scoring

import (
	"fmt"
	"sort"
)

// Test types with built-in banding tables.
const (
	TestTypeGeneral     = "general"
	TestTypeSituational = "situational"
)

// Band is one row of a banding table: a percentage of at least Min earns
// Label.
type Band struct {
	Min   int    `json:"min" mapstructure:"min"`
	Label string `json:"label" mapstructure:"label"`
}

// BandTable maps a percentage to a performance label. Bands are checked from
// the highest Min down; a percentage below every band gets Fallback.
type BandTable struct {
	Bands    []Band `json:"bands" mapstructure:"bands"`
	Fallback string `json:"fallback" mapstructure:"fallback"`
}

// GeneralBands is the table for knowledge and reasoning tests.
var GeneralBands = BandTable{
	Bands: []Band{
		{Min: 90, Label: "Excellent"},
		{Min: 80, Label: "Very Good"},
		{Min: 70, Label: "Good"},
		{Min: 60, Label: "Fair"},
	},
	Fallback: "Needs Improvement",
}

// SituationalBands is the table for situational-judgment tests.
var SituationalBands = BandTable{
	Bands: []Band{
		{Min: 85, Label: "Exceptional"},
		{Min: 75, Label: "Strong"},
		{Min: 65, Label: "Competent"},
		{Min: 55, Label: "Developing"},
	},
	Fallback: "Needs Development",
}

// DefaultBandTables returns the built-in tables keyed by test type.
func DefaultBandTables() map[string]BandTable {
	return map[string]BandTable{
		TestTypeGeneral:     GeneralBands,
		TestTypeSituational: SituationalBands,
	}
}

// Validate checks that the table has a fallback, labelled bands, and no
// repeated thresholds.
func (t BandTable) Validate() error {
	if t.Fallback == "" {
		return fmt.Errorf("band table has no fallback label")
	}
	seen := make(map[int]bool, len(t.Bands))
	for _, b := range t.Bands {
		if b.Label == "" {
			return fmt.Errorf("band at %d has no label", b.Min)
		}
		if b.Min < 0 || b.Min > 100 {
			return fmt.Errorf("band %q threshold %d outside [0,100]", b.Label, b.Min)
		}
		if seen[b.Min] {
			return fmt.Errorf("duplicate band threshold %d", b.Min)
		}
		seen[b.Min] = true
	}
	return nil
}

// Level returns the label for pct.
func (t BandTable) Level(pct int) string {
	bands := make([]Band, len(t.Bands))
	copy(bands, t.Bands)
	sort.Slice(bands, func(i, j int) bool { return bands[i].Min > bands[j].Min })
	for _, b := range bands {
		if pct >= b.Min {
			return b.Label
		}
	}
	return t.Fallback
}
