// Package adaptive raises and lowers per-skill difficulty during a live,
// one-question-at-a-time session.
package adaptive

import (
	"sort"
	"time"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/bank"
)

const (
	MinLevel   = 1
	MaxLevel   = 3
	StartLevel = 2
)

// Config holds the latency thresholds that drive level changes.
type Config struct {
	// FastThreshold: a correct answer quicker than this moves the level up.
	FastThreshold time.Duration `mapstructure:"fast_threshold"`

	// SlowThreshold: an answer slower than this moves the level down, even
	// when correct.
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`

	Mastery MasteryConfig `mapstructure:"mastery"`
}

// DefaultConfig returns thresholds for a 30 second per-question time limit.
func DefaultConfig() Config {
	return Config{
		FastThreshold: 15 * time.Second,
		SlowThreshold: 25 * time.Second,
		Mastery:       DefaultMasteryConfig(),
	}
}

// SkillState is the controller's view of one skill.
type SkillState struct {
	Level        int
	Attempts     int
	Correct      int
	TotalLatency time.Duration
}

// Accuracy returns Correct/Attempts, or 0 before the first attempt.
func (s SkillState) Accuracy() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Attempts)
}

// AvgLatency returns the mean response time.
func (s SkillState) AvgLatency() time.Duration {
	if s.Attempts == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Attempts)
}

// Transition describes a level change caused by one answer.
type Transition struct {
	Skill string
	From  int
	To    int
}

// Changed reports whether the level moved.
func (t Transition) Changed() bool { return t.From != t.To }

// Controller holds per-skill levels for exactly one session. It is not safe
// for concurrent use and must not be shared between sessions.
type Controller struct {
	cfg    Config
	skills map[string]*SkillState
}

// NewController returns a controller with every skill at StartLevel.
func NewController(cfg Config) *Controller {
	return &Controller{cfg: cfg, skills: make(map[string]*SkillState)}
}

func (c *Controller) state(skill string) *SkillState {
	s, ok := c.skills[skill]
	if !ok {
		s = &SkillState{Level: StartLevel}
		c.skills[skill] = s
	}
	return s
}

// Level returns the current level of skill.
func (c *Controller) Level(skill string) int {
	if s, ok := c.skills[skill]; ok {
		return s.Level
	}
	return StartLevel
}

// Band returns the difficulty band of the current level of skill.
func (c *Controller) Band(skill string) bank.Difficulty {
	return bank.DifficultyForLevel(c.Level(skill))
}

// Record applies one answer to skill and returns the resulting transition.
func (c *Controller) Record(skill string, correct bool, elapsed time.Duration) Transition {
	s := c.state(skill)
	s.Attempts++
	s.TotalLatency += elapsed
	if correct {
		s.Correct++
	}

	from := s.Level
	switch {
	case correct && elapsed < c.cfg.FastThreshold:
		s.Level = min(MaxLevel, s.Level+1)
	case !correct || elapsed > c.cfg.SlowThreshold:
		s.Level = max(MinLevel, s.Level-1)
	}
	return Transition{Skill: skill, From: from, To: s.Level}
}

// Pick chooses the band to draw the next question of skill from. It tries
// the current level's band, then the nearest non-empty band; at equal
// distance the easier band wins. available reports how many unused
// questions a band has. ok is false when every band is empty.
func (c *Controller) Pick(skill string, available func(bank.Difficulty) int) (bank.Difficulty, bool) {
	for _, level := range searchOrder(c.Level(skill)) {
		d := bank.DifficultyForLevel(level)
		if available(d) > 0 {
			return d, true
		}
	}
	return "", false
}

// searchOrder lists every level by distance from level, easier first on ties.
func searchOrder(level int) []int {
	levels := make([]int, 0, MaxLevel-MinLevel+1)
	for l := MinLevel; l <= MaxLevel; l++ {
		levels = append(levels, l)
	}
	sort.SliceStable(levels, func(i, j int) bool {
		return abs(levels[i]-level) < abs(levels[j]-level)
	})
	return levels
}

// State returns a copy of skill's state.
func (c *Controller) State(skill string) SkillState {
	if s, ok := c.skills[skill]; ok {
		return *s
	}
	return SkillState{Level: StartLevel}
}

// Skills returns every skill seen so far, sorted.
func (c *Controller) Skills() []string {
	out := make([]string, 0, len(c.skills))
	for name := range c.skills {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Mastery labels every skill seen so far.
func (c *Controller) Mastery() map[string]string {
	out := make(map[string]string, len(c.skills))
	for name, s := range c.skills {
		if s.Attempts == 0 {
			continue
		}
		out[name] = c.cfg.Mastery.Label(s.Accuracy(), s.AvgLatency())
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
