package compose

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/bank"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/scoring"
)

// ratioTolerance is how far the ratio sum may drift from 1.0.
const ratioTolerance = 1e-6

// Ratios is the share of each difficulty band within a domain.
type Ratios struct {
	Easy   float64 `json:"easy" yaml:"easy"`
	Medium float64 `json:"medium" yaml:"medium"`
	Hard   float64 `json:"hard" yaml:"hard"`
}

// Of returns the ratio for band d.
func (r Ratios) Of(d bank.Difficulty) float64 {
	switch d {
	case bank.Easy:
		return r.Easy
	case bank.Medium:
		return r.Medium
	case bank.Hard:
		return r.Hard
	}
	return 0
}

// Spec describes the test to compose.
type Spec struct {
	TotalItems      int            `json:"total_items" yaml:"total_items"`
	DomainQuotas    map[string]int `json:"domain_quotas" yaml:"domain_quotas"`
	Ratios          Ratios         `json:"difficulty_ratios" yaml:"difficulty_ratios"`
	CooldownSeconds int            `json:"cooldown_seconds" yaml:"cooldown_seconds"`

	// TestType selects the scoring band table. Defaults to "general".
	TestType string `json:"test_type,omitempty" yaml:"test_type,omitempty"`
}

// Cooldown returns the retake cooldown as a Duration.
func (s Spec) Cooldown() time.Duration {
	return time.Duration(s.CooldownSeconds) * time.Second
}

// Type returns the test type, defaulting to general.
func (s Spec) Type() string {
	if s.TestType == "" {
		return scoring.TestTypeGeneral
	}
	return s.TestType
}

// Domains returns the quota domains in sorted order.
func (s Spec) Domains() []string {
	out := make([]string, 0, len(s.DomainQuotas))
	for d := range s.DomainQuotas {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Validate checks the spec on its own and against b. b may be nil to skip
// the domain check.
func (s Spec) Validate(b *bank.Bank) error {
	if s.TotalItems <= 0 {
		return &InvalidSpecError{Reason: fmt.Sprintf("total_items must be positive, got %d", s.TotalItems)}
	}
	if len(s.DomainQuotas) == 0 {
		return &InvalidSpecError{Reason: "domain_quotas is empty"}
	}
	if s.CooldownSeconds < 0 {
		return &InvalidSpecError{Reason: fmt.Sprintf("cooldown_seconds must not be negative, got %d", s.CooldownSeconds)}
	}

	sum := 0
	for _, d := range s.Domains() {
		q := s.DomainQuotas[d]
		if q < 0 {
			return &InvalidSpecError{Reason: fmt.Sprintf("quota for %q is negative (%d)", d, q)}
		}
		if b != nil && !b.HasDomain(d) {
			return &InvalidSpecError{Reason: fmt.Sprintf("domain %q is not in the question bank", d)}
		}
		sum += q
	}
	if sum != s.TotalItems {
		return &InvalidSpecError{Reason: fmt.Sprintf("domain quotas sum to %d, want total_items %d", sum, s.TotalItems)}
	}

	r := s.Ratios
	for _, v := range []float64{r.Easy, r.Medium, r.Hard} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidSpecError{Reason: "difficulty ratios must be finite numbers"}
		}
		if v < 0 {
			return &InvalidSpecError{Reason: "difficulty ratios must not be negative"}
		}
	}
	if total := r.Easy + r.Medium + r.Hard; math.Abs(total-1) > ratioTolerance {
		return &InvalidSpecError{Reason: fmt.Sprintf("difficulty ratios sum to %g, want 1.0", total)}
	}
	return nil
}

// Allocate splits a domain quota across bands: easy and hard are rounded
// down and medium takes the remainder.
func (s Spec) Allocate(quota int) map[bank.Difficulty]int {
	easy := int(math.Floor(float64(quota)*s.Ratios.Easy + 1e-9))
	hard := int(math.Floor(float64(quota)*s.Ratios.Hard + 1e-9))
	if easy+hard > quota {
		hard = quota - easy
	}
	return map[bank.Difficulty]int{
		bank.Easy:   easy,
		bank.Medium: quota - easy - hard,
		bank.Hard:   hard,
	}
}

// LoadSpecFile reads a JSON or YAML spec, chosen by file extension.
func LoadSpecFile(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read spec: %w", err)
	}

	var s Spec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &s)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	default:
		return Spec{}, fmt.Errorf("unsupported spec extension %q", filepath.Ext(path))
	}
	if err != nil {
		return Spec{}, fmt.Errorf("parse spec %s: %w", path, err)
	}
	return s, nil
}
