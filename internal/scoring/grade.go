// Package scoring grades a finished attempt into a per-domain report.
// Grading is a pure function of its inputs: no clock, no globals.
package scoring

import (
	"math"
	"sort"
	"time"
)

// Unanswered is the Selected value of a response with no choice made.
const Unanswered = -1

// InsufficientData is the percentile note when there is no population.
const InsufficientData = "insufficient data"

// KeyEntry is the server-side answer for one question as it was presented.
type KeyEntry struct {
	Domain       string `json:"domain"`
	Difficulty   string `json:"difficulty"`
	CorrectIndex int    `json:"correct_index"`
}

// AnswerKey maps question ids to their presented answer.
type AnswerKey map[string]KeyEntry

// QuestionIDs returns the key's ids in sorted order.
func (k AnswerKey) QuestionIDs() []string {
	ids := make([]string, 0, len(k))
	for id := range k {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Response is a candidate's answer to one question. Elapsed time is supplied
// by the caller.
type Response struct {
	QuestionID     string  `json:"question_id"`
	Selected       int     `json:"selected"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// Elapsed returns the response time as a Duration.
func (r Response) Elapsed() time.Duration {
	return time.Duration(r.ElapsedSeconds * float64(time.Second))
}

// ItemResult is the graded outcome of one question.
type ItemResult struct {
	QuestionID     string  `json:"question_id"`
	Domain         string  `json:"domain"`
	Selected       int     `json:"selected"`
	Correct        bool    `json:"correct"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// DomainScore aggregates one domain.
type DomainScore struct {
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage int     `json:"percentage"`
	AvgSeconds float64 `json:"avg_seconds"`
}

// Report is the graded attempt.
type Report struct {
	TestType         string                 `json:"test_type"`
	RawScore         int                    `json:"raw_score"`
	Total            int                    `json:"total"`
	Percentage       int                    `json:"percentage"`
	Unanswered       int                    `json:"unanswered"`
	PerDomain        map[string]DomainScore `json:"per_domain"`
	PerformanceLevel string                 `json:"performance_level"`
	Mastery          map[string]string      `json:"mastery,omitempty"`
	Percentile       *float64               `json:"percentile,omitempty"`
	PercentileNote   string                 `json:"percentile_note,omitempty"`
	Items            []ItemResult           `json:"items"`

	// Rejected lists response ids that are not part of the attempt.
	Rejected []string `json:"rejected,omitempty"`
}

// MasteryFunc labels a skill from its accuracy and mean response time.
type MasteryFunc func(accuracy float64, avgLatency time.Duration) string

// Options configures Grade.
type Options struct {
	// TestType selects the band table from Bands. Defaults to "general".
	TestType string

	// Bands holds band tables by test type. Defaults to DefaultBandTables.
	// An unknown test type falls back to the general table.
	Bands map[string]BandTable

	// WithPercentile requests a percentile against Population.
	WithPercentile bool
	Population     []int

	// Mastery, when set, adds a per-domain mastery label.
	Mastery MasteryFunc
}

// Grade scores responses against key. It never fails: responses for ids not
// in key are listed in Rejected, and questions without a response count as
// unanswered (and so incorrect). When a question has several responses the
// first one counts.
func Grade(responses []Response, key AnswerKey, opts Options) Report {
	testType := opts.TestType
	if testType == "" {
		testType = TestTypeGeneral
	}

	byID := make(map[string]Response, len(responses))
	rejected := make(map[string]bool)
	for _, r := range responses {
		if _, ok := key[r.QuestionID]; !ok {
			rejected[r.QuestionID] = true
			continue
		}
		if _, dup := byID[r.QuestionID]; dup {
			continue
		}
		byID[r.QuestionID] = r
	}

	type domainAcc struct {
		correct, total, timed int
		seconds               float64
	}
	domains := make(map[string]*domainAcc)

	report := Report{
		TestType:  testType,
		Total:     len(key),
		PerDomain: make(map[string]DomainScore),
		Items:     make([]ItemResult, 0, len(key)),
	}

	for _, id := range key.QuestionIDs() {
		entry := key[id]
		acc, ok := domains[entry.Domain]
		if !ok {
			acc = &domainAcc{}
			domains[entry.Domain] = acc
		}
		acc.total++

		item := ItemResult{QuestionID: id, Domain: entry.Domain, Selected: Unanswered}
		if r, ok := byID[id]; ok {
			item.ElapsedSeconds = r.ElapsedSeconds
			acc.seconds += r.ElapsedSeconds
			acc.timed++
			if r.Selected >= 0 {
				item.Selected = r.Selected
				item.Correct = r.Selected == entry.CorrectIndex
			}
		}
		if item.Selected == Unanswered {
			report.Unanswered++
		}
		if item.Correct {
			report.RawScore++
			acc.correct++
		}
		report.Items = append(report.Items, item)
	}

	for name, acc := range domains {
		ds := DomainScore{
			Correct:    acc.correct,
			Total:      acc.total,
			Percentage: Percentage(acc.correct, acc.total),
		}
		if acc.timed > 0 {
			ds.AvgSeconds = roundTo(acc.seconds/float64(acc.timed), 2)
		}
		report.PerDomain[name] = ds

		if opts.Mastery != nil {
			if report.Mastery == nil {
				report.Mastery = make(map[string]string, len(domains))
			}
			avg := time.Duration(ds.AvgSeconds * float64(time.Second))
			report.Mastery[name] = opts.Mastery(float64(acc.correct)/float64(acc.total), avg)
		}
	}

	report.Percentage = Percentage(report.RawScore, report.Total)
	report.PerformanceLevel = bandTable(opts.Bands, testType).Level(report.Percentage)

	if opts.WithPercentile {
		report.Percentile, report.PercentileNote = Percentile(report.Percentage, opts.Population)
	}

	if len(rejected) > 0 {
		for id := range rejected {
			report.Rejected = append(report.Rejected, id)
		}
		sort.Strings(report.Rejected)
	}
	return report
}

// Percentage returns round(100 * correct / total), halves away from zero.
// A zero total yields 0.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// Percentile returns the share of population at or below score, in percent,
// rounded to one decimal. With no population it returns nil and
// InsufficientData rather than inventing a value.
func Percentile(score int, population []int) (*float64, string) {
	if len(population) == 0 {
		return nil, InsufficientData
	}
	atOrBelow := 0
	for _, p := range population {
		if p <= score {
			atOrBelow++
		}
	}
	v := roundTo(100*float64(atOrBelow)/float64(len(population)), 1)
	return &v, ""
}

func bandTable(tables map[string]BandTable, testType string) BandTable {
	if tables == nil {
		tables = DefaultBandTables()
	}
	if t, ok := tables[testType]; ok {
		return t
	}
	if t, ok := tables[TestTypeGeneral]; ok {
		return t
	}
	return GeneralBands
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
