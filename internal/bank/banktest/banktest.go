// Package banktest builds synthetic question banks for tests.
package banktest

import (
	"fmt"
	"testing"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/bank"
)

// DefaultDomains are the eight domains used by the end-to-end fixtures.
var DefaultDomains = []string{
	"abstract", "numerical", "logical", "verbal",
	"spatial", "technical", "teamwork", "leadership",
}

// Records returns perBand records for every domain and band. Record ids are
// "<domain>-<band>-<n>" and the correct choice is always "correct".
func Records(domains []string, perBand int) []bank.Record {
	var out []bank.Record
	for _, domain := range domains {
		for _, d := range bank.AllDifficulties() {
			for n := 0; n < perBand; n++ {
				out = append(out, bank.Record{
					ID:           fmt.Sprintf("%s-%s-%d", domain, d, n),
					Domain:       domain,
					Difficulty:   d,
					Prompt:       fmt.Sprintf("%s %s question %d", domain, d, n),
					Choices:      []string{"wrong a", "correct", "wrong b", "wrong c"},
					CorrectText:  "correct",
					CorrectIndex: 1,
				})
			}
		}
	}
	return out
}

// New builds a Bank from Records and fails the test on error.
func New(t testing.TB, domains []string, perBand int) *bank.Bank {
	t.Helper()
	b, err := bank.New(Records(domains, perBand))
	if err != nil {
		t.Fatalf("build fixture bank: %v", err)
	}
	return b
}

// Standard is the 8 domains x 3 bands x 5 items bank (120 records).
func Standard(t testing.TB) *bank.Bank {
	t.Helper()
	return New(t, DefaultDomains, 5)
}
