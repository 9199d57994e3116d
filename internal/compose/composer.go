// Package compose assembles a fixed-form test from the question bank: it
// fills per-domain quotas at the requested difficulty mix, skips questions
// the user has already been graded on, and shuffles everything the
// candidate sees.
package compose

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/bank"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/choice"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/history"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/random"
)

// Shortfall records a band that could not fill its allocation from its own
// pool. Missing items were backfilled from elsewhere.
type Shortfall struct {
	Domain    string          `json:"domain"`
	Band      bank.Difficulty `json:"band"`
	Requested int             `json:"requested"`
	Missing   int             `json:"missing"`
}

// Options configures a Composer.
type Options struct {
	// Source drives every shuffle. Defaults to a time-seeded source.
	Source random.Source

	Logger *slog.Logger
}

// Composer builds tests. It is safe for concurrent use when its Source is
// (see random.NewLocked).
type Composer struct {
	bank    *bank.Bank
	tracker *history.Tracker
	src     random.Source
	logger  *slog.Logger
}

// New returns a Composer over b that consults tracker for cooldowns and
// used questions.
func New(b *bank.Bank, tracker *history.Tracker, opts Options) *Composer {
	c := &Composer{
		bank:    b,
		tracker: tracker,
		src:     opts.Source,
		logger:  opts.Logger,
	}
	if c.src == nil {
		c.src = random.NewLocked(random.NewFromTime())
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Bank returns the composer's question bank.
func (c *Composer) Bank() *bank.Bank { return c.bank }

// Compose builds a test for userID. It never marks questions as used;
// that happens when the attempt is graded.
//
// Errors: *InvalidSpecError, *RetakeNotAllowedError, ErrPoolExhausted, or a
// wrapped store error.
func (c *Composer) Compose(ctx context.Context, userID string, spec Spec) (*Test, error) {
	return c.ComposeReserved(ctx, userID, spec, nil)
}

// ComposeReserved is Compose with reserved ids treated as used, typically
// the questions of a test the user was issued but has not submitted yet.
// A history reset keeps the reservation when the rest of the bank can
// still fill the test.
func (c *Composer) ComposeReserved(ctx context.Context, userID string, spec Spec, reserved map[string]bool) (*Test, error) {
	if err := spec.Validate(c.bank); err != nil {
		return nil, err
	}

	ok, remaining, err := c.tracker.CanAttempt(ctx, userID, spec.Cooldown())
	if err != nil {
		return nil, fmt.Errorf("check cooldown: %w", err)
	}
	if !ok {
		c.logger.Info("retake refused", "user", userID, "remaining", remaining)
		return nil, &RetakeNotAllowedError{Remaining: remaining}
	}

	hist, err := c.tracker.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	used := make(map[string]bool, len(hist.UsedIDs)+len(reserved))
	for id := range hist.UsedIDs {
		used[id] = true
	}
	for id := range reserved {
		used[id] = true
	}

	historyReset := false
	if c.bank.CountAvailable(used) < spec.TotalItems {
		// A reset can not help when the whole bank is too small.
		if c.bank.Len() < spec.TotalItems {
			return nil, fmt.Errorf("%w: bank holds %d questions, test needs %d",
				ErrPoolExhausted, c.bank.Len(), spec.TotalItems)
		}
		c.logger.Info("unused pool too small, resetting history",
			"user", userID,
			"unused", c.bank.CountAvailable(used),
			"needed", spec.TotalItems,
		)
		if err := c.tracker.ResetHistory(ctx, userID); err != nil {
			return nil, fmt.Errorf("reset history: %w", err)
		}
		used = make(map[string]bool, len(reserved))
		for id := range reserved {
			used[id] = true
		}
		if c.bank.CountAvailable(used) < spec.TotalItems {
			used = map[string]bool{}
		}
		historyReset = true
	}

	records, shortfalls := c.draw(spec, used)
	if len(records) < spec.TotalItems {
		return nil, fmt.Errorf("%w: drew %d of %d questions", ErrPoolExhausted, len(records), spec.TotalItems)
	}

	items := make([]Item, len(records))
	for i, rec := range records {
		items[i] = Item{Instance: choice.Randomize(rec, c.src)}
	}
	c.src.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	for i := range items {
		items[i].DisplayID = i + 1
	}

	test := &Test{
		ID:           uuid.NewString(),
		UserID:       userID,
		TestType:     spec.Type(),
		GeneratedAt:  c.tracker.Now(),
		Items:        items,
		Shortfalls:   shortfalls,
		HistoryReset: historyReset,
	}
	c.logger.Debug("test composed",
		"test", test.ID,
		"user", userID,
		"items", len(items),
		"shortfalls", len(shortfalls),
	)
	return test, nil
}

// pools holds the shuffled, not yet drawn records of every band.
type pools map[string]map[bank.Difficulty][]bank.Record

func (p pools) take(domain string, d bank.Difficulty, n int) []bank.Record {
	pool := p[domain][d]
	n = min(n, len(pool))
	out := pool[:n]
	p[domain][d] = pool[n:]
	return out
}

// largestBand returns the band of domain with the most records left. Ties
// go to the earlier band in easy, medium, hard order.
func (p pools) largestBand(domain string) (bank.Difficulty, int) {
	var best bank.Difficulty
	size := 0
	for _, d := range bank.AllDifficulties() {
		if n := len(p[domain][d]); n > size {
			best, size = d, n
		}
	}
	return best, size
}

// draw fills every domain's allocation. A band that runs short is
// backfilled first from its own domain, then from the largest band left
// anywhere in the bank.
func (c *Composer) draw(spec Spec, used map[string]bool) ([]bank.Record, []Shortfall) {
	domains := c.bank.Domains()
	p := make(pools, len(domains))
	for _, domain := range domains {
		p[domain] = make(map[bank.Difficulty][]bank.Record, 3)
		for _, d := range bank.AllDifficulties() {
			recs := c.bank.AvailableBand(domain, d, used)
			c.src.Shuffle(len(recs), func(i, j int) { recs[i], recs[j] = recs[j], recs[i] })
			p[domain][d] = recs
		}
	}

	var (
		out        []bank.Record
		shortfalls []Shortfall
		deficit    int
	)
	for _, domain := range spec.Domains() {
		alloc := spec.Allocate(spec.DomainQuotas[domain])
		missing := 0
		for _, d := range bank.AllDifficulties() {
			got := p.take(domain, d, alloc[d])
			out = append(out, got...)
			if short := alloc[d] - len(got); short > 0 {
				shortfalls = append(shortfalls, Shortfall{
					Domain:    domain,
					Band:      d,
					Requested: alloc[d],
					Missing:   short,
				})
				missing += short
			}
		}

		for missing > 0 {
			d, n := p.largestBand(domain)
			if n == 0 {
				break
			}
			out = append(out, p.take(domain, d, 1)...)
			missing--
		}
		if missing > 0 {
			c.logger.Warn("domain pool short, borrowing from other domains",
				"domain", domain,
				"quota", spec.DomainQuotas[domain],
				"missing", missing,
			)
		}
		deficit += missing
	}

	for ; deficit > 0; deficit-- {
		domain, d, ok := p.largestAnywhere()
		if !ok {
			break
		}
		out = append(out, p.take(domain, d, 1)...)
	}

	for _, s := range shortfalls {
		c.logger.Warn("difficulty band short, backfilled",
			"domain", s.Domain,
			"band", s.Band,
			"requested", s.Requested,
			"missing", s.Missing,
		)
	}
	return out, shortfalls
}

// largestAnywhere returns the band with the most records left across the
// bank. Ties go to the alphabetically first domain, then the easier band.
func (p pools) largestAnywhere() (string, bank.Difficulty, bool) {
	domains := make([]string, 0, len(p))
	for domain := range p {
		domains = append(domains, domain)
	}
	sort.Strings(domains)

	var (
		bestDomain string
		bestBand   bank.Difficulty
		size       int
	)
	for _, domain := range domains {
		d, n := p.largestBand(domain)
		if n > size {
			bestDomain, bestBand, size = domain, d, n
		}
	}
	return bestDomain, bestBand, size > 0
}
