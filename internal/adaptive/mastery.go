package adaptive

import "time"

// Mastery labels.
const (
	MasteryExpert       = "expert"
	MasteryAdvanced     = "advanced"
	MasteryIntermediate = "intermediate"
	MasteryBeginner     = "beginner"
)

// MasteryConfig holds the cut points for MasteryLabel. The two stricter
// labels need both the accuracy and the latency condition.
type MasteryConfig struct {
	ExpertAccuracy       float64       `mapstructure:"expert_accuracy"`
	ExpertLatency        time.Duration `mapstructure:"expert_latency"`
	AdvancedAccuracy     float64       `mapstructure:"advanced_accuracy"`
	AdvancedLatency      time.Duration `mapstructure:"advanced_latency"`
	IntermediateAccuracy float64       `mapstructure:"intermediate_accuracy"`
}

// DefaultMasteryConfig returns the standard cut points.
func DefaultMasteryConfig() MasteryConfig {
	return MasteryConfig{
		ExpertAccuracy:       0.8,
		ExpertLatency:        20 * time.Second,
		AdvancedAccuracy:     0.7,
		AdvancedLatency:      25 * time.Second,
		IntermediateAccuracy: 0.5,
	}
}

// Label derives the mastery label from accuracy (correct/total) and the
// average response time. It has the shape of scoring.MasteryFunc.
func (m MasteryConfig) Label(accuracy float64, avgLatency time.Duration) string {
	switch {
	case accuracy >= m.ExpertAccuracy && avgLatency < m.ExpertLatency:
		return MasteryExpert
	case accuracy >= m.AdvancedAccuracy && avgLatency < m.AdvancedLatency:
		return MasteryAdvanced
	case accuracy >= m.IntermediateAccuracy:
		return MasteryIntermediate
	default:
		return MasteryBeginner
	}
}

// MasteryLabel is Label with the default cut points.
func MasteryLabel(accuracy float64, avgLatency time.Duration) string {
	return DefaultMasteryConfig().Label(accuracy, avgLatency)
}
