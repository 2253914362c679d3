package slots

import "github.com/lenmanean/doer-sub005/internal/domain"

// Policy holds every weight, window, and threshold the slot scorer uses.
// Keeping them in one value object makes score computations reproducible
// in tests and lets deployments tune the heuristic without code changes.
type Policy struct {
	GridStepMinutes int
	BaseScore       float64

	// Priority-conflict penalty: tasks near the candidate slot within the
	// spacing window push the slot down, weighted by proximity.
	SpacingWindowMinutes map[domain.SpacingMode]int
	SpacingWeight        map[domain.SpacingMode]float64
	SamePriorityScale    float64
	LowerPriorityWeight  float64
	LowerPriorityScale   float64

	// Density penalty: tasks clustered around the slot's center.
	DensityWindowMinutes int
	DensityPerTask       float64
	DensityCap           float64

	// Context fit: time-of-day suitability bonuses and maluses.
	MorningBonus        float64 // priority 1 before noon
	AfternoonBonus      float64 // priority >= 3 at/after 14:00
	AfternoonFromMinute int
	LunchMalus          float64
	ComplexityBonus     float64 // complexity >= threshold before noon
	ComplexityThreshold int

	// Final blend weights.
	PriorityWeight float64
	DensityWeight  float64
	ContextWeight  float64
}

// DefaultPolicy returns the production scoring constants.
func DefaultPolicy() Policy {
	return Policy{
		GridStepMinutes: 15,
		BaseScore:       100,

		SpacingWindowMinutes: map[domain.SpacingMode]int{
			domain.SpacingStrict:   120,
			domain.SpacingModerate: 90,
			domain.SpacingLoose:    60,
		},
		SpacingWeight: map[domain.SpacingMode]float64{
			domain.SpacingStrict:   1.0,
			domain.SpacingModerate: 0.7,
			domain.SpacingLoose:    0.5,
		},
		SamePriorityScale:   10,
		LowerPriorityWeight: 0.3,
		LowerPriorityScale:  5,

		DensityWindowMinutes: 120,
		DensityPerTask:       2,
		DensityCap:           20,

		MorningBonus:        5,
		AfternoonBonus:      3,
		AfternoonFromMinute: 14 * 60,
		LunchMalus:          3,
		ComplexityBonus:     2,
		ComplexityThreshold: 7,

		PriorityWeight: 0.3,
		DensityWeight:  0.2,
		ContextWeight:  0.1,
	}
}

// neighbor is a same-day scheduled task reduced to what scoring needs.
type neighbor struct {
	centerMin int
	priority  int
}

// priorityPenalty sums proximity-weighted penalties from neighbors inside
// the spacing window around the slot's center. Same-or-higher-priority
// neighbors (lower or equal numeric value) weigh more than lower-priority
// ones.
func (p Policy) priorityPenalty(taskPriority, slotCenter int, mode domain.SpacingMode, neighbors []neighbor) float64 {
	window := p.SpacingWindowMinutes[mode]
	weight := p.SpacingWeight[mode]
	if window <= 0 {
		return 0
	}

	var penalty float64
	for _, n := range neighbors {
		dist := slotCenter - n.centerMin
		if dist < 0 {
			dist = -dist
		}
		if dist > window {
			continue
		}
		prox := 1 - float64(dist)/float64(window)
		if n.priority <= taskPriority {
			penalty += weight * p.SamePriorityScale * prox
		} else {
			penalty += p.LowerPriorityWeight * p.LowerPriorityScale * prox
		}
	}
	return penalty
}

// densityPenalty counts neighbors whose center falls within the density
// window of the slot's center, capped.
func (p Policy) densityPenalty(slotCenter int, neighbors []neighbor) float64 {
	count := 0
	for _, n := range neighbors {
		dist := slotCenter - n.centerMin
		if dist < 0 {
			dist = -dist
		}
		if dist <= p.DensityWindowMinutes {
			count++
		}
	}
	penalty := float64(count) * p.DensityPerTask
	if penalty > p.DensityCap {
		penalty = p.DensityCap
	}
	return penalty
}

// contextScore is the time-of-day fit heuristic for the slot's start.
func (p Policy) contextScore(priority, complexity, slotStart int, ws domain.WorkdaySettings) float64 {
	const noon = 12 * 60
	var score float64
	if priority == 1 && slotStart < noon {
		score += p.MorningBonus
	}
	if priority >= 3 && slotStart >= p.AfternoonFromMinute {
		score += p.AfternoonBonus
	}
	startHour := slotStart / 60
	if startHour >= ws.LunchStartHour && startHour < ws.LunchEndHour {
		score -= p.LunchMalus
	}
	if complexity >= p.ComplexityThreshold && slotStart < noon {
		score += p.ComplexityBonus
	}
	return score
}

// finalScore blends the components.
func (p Policy) finalScore(priorityPenalty, densityPenalty, contextScore float64) float64 {
	return p.BaseScore -
		priorityPenalty*p.PriorityWeight -
		densityPenalty*p.DensityWeight +
		contextScore*p.ContextWeight
}
