package bank

import (
	"fmt"
	"sort"
)

// Bank holds validated records with precomputed domain and band indices.
// A Bank is immutable after construction and safe for concurrent readers.
type Bank struct {
	records []Record
	byID    map[string]int
	byBand  map[string]map[Difficulty][]int
	domains []string
}

// New builds a Bank from already validated records. Record ids must be
// unique; New returns an error otherwise.
func New(records []Record) (*Bank, error) {
	if len(records) == 0 {
		return nil, ErrNoValidRecords
	}
	b := &Bank{
		records: make([]Record, len(records)),
		byID:    make(map[string]int, len(records)),
	}
	copy(b.records, records)

	for i, r := range b.records {
		if _, dup := b.byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate record id %q", r.ID)
		}
		b.byID[r.ID] = i
	}
	b.indexByDomain()
	return b, nil
}

// indexByDomain builds the domain -> band -> positions index and the sorted
// domain list.
func (b *Bank) indexByDomain() {
	b.byBand = make(map[string]map[Difficulty][]int)
	for i, r := range b.records {
		bands, ok := b.byBand[r.Domain]
		if !ok {
			bands = make(map[Difficulty][]int, 3)
			b.byBand[r.Domain] = bands
			b.domains = append(b.domains, r.Domain)
		}
		bands[r.Difficulty] = append(bands[r.Difficulty], i)
	}
	sort.Strings(b.domains)
}

// Len returns the number of records.
func (b *Bank) Len() int { return len(b.records) }

// Get returns the record with the given id.
func (b *Bank) Get(id string) (Record, bool) {
	i, ok := b.byID[id]
	if !ok {
		return Record{}, false
	}
	return b.records[i], true
}

// Domains returns all domains in sorted order.
func (b *Bank) Domains() []string {
	out := make([]string, len(b.domains))
	copy(out, b.domains)
	return out
}

// HasDomain reports whether any record belongs to domain.
func (b *Bank) HasDomain(domain string) bool {
	_, ok := b.byBand[domain]
	return ok
}

// ByDomain returns every record of a domain, easy band first.
func (b *Bank) ByDomain(domain string) []Record {
	var out []Record
	for _, d := range AllDifficulties() {
		out = append(out, b.Band(domain, d)...)
	}
	return out
}

// Band returns the records of one domain at one difficulty.
func (b *Bank) Band(domain string, d Difficulty) []Record {
	return b.AvailableBand(domain, d, nil)
}

// AvailableBand returns the records of one band whose id is not in used.
func (b *Bank) AvailableBand(domain string, d Difficulty, used map[string]bool) []Record {
	idx := b.byBand[domain][d]
	out := make([]Record, 0, len(idx))
	for _, i := range idx {
		if used[b.records[i].ID] {
			continue
		}
		out = append(out, b.records[i])
	}
	return out
}

// Available returns every record whose id is not in used, in load order.
func (b *Bank) Available(used map[string]bool) []Record {
	out := make([]Record, 0, len(b.records))
	for _, r := range b.records {
		if !used[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// CountAvailable is Available without the allocation.
func (b *Bank) CountAvailable(used map[string]bool) int {
	n := 0
	for _, r := range b.records {
		if !used[r.ID] {
			n++
		}
	}
	return n
}

// Stats returns per-domain, per-band record counts (for CLI output).
func (b *Bank) Stats() map[string]map[Difficulty]int {
	out := make(map[string]map[Difficulty]int, len(b.byBand))
	for domain, bands := range b.byBand {
		m := make(map[Difficulty]int, len(bands))
		for d, idx := range bands {
			m[d] = len(idx)
		}
		out[domain] = m
	}
	return out
}
