package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lenmanean/doer-sub005/internal/domain"
)

func TestPriorityPenalty_ProximityWeighted(t *testing.T) {
	p := DefaultPolicy()
	// Priority-1 neighbor centered at 10:30.
	neighbors := []neighbor{{centerMin: 10*60 + 30, priority: 1}}

	// Slot centered at 11:30: 60 minutes away inside the 90-minute
	// moderate window, proximity 1/3.
	got := p.priorityPenalty(2, 11*60+30, domain.SpacingModerate, neighbors)
	assert.InDelta(t, 0.7*10*(1.0/3.0), got, 1e-9)

	// Same distance, strict spacing: wider window and full weight.
	got = p.priorityPenalty(2, 11*60+30, domain.SpacingStrict, neighbors)
	assert.InDelta(t, 1.0*10*(1.0-60.0/120.0), got, 1e-9)

	// Outside the window: no penalty.
	got = p.priorityPenalty(2, 14*60, domain.SpacingModerate, neighbors)
	assert.Zero(t, got)
}

func TestPriorityPenalty_LowerPriorityNeighborsWeighLess(t *testing.T) {
	p := DefaultPolicy()
	// Priority-4 neighbor 30 minutes from the slot center.
	neighbors := []neighbor{{centerMin: 10 * 60, priority: 4}}

	got := p.priorityPenalty(2, 10*60+30, domain.SpacingModerate, neighbors)
	assert.InDelta(t, 0.3*5*(1.0-30.0/90.0), got, 1e-9)
}

func TestDensityPenalty_CountsAndCaps(t *testing.T) {
	p := DefaultPolicy()

	near := []neighbor{
		{centerMin: 10 * 60}, {centerMin: 11 * 60}, {centerMin: 9 * 60},
	}
	assert.InDelta(t, 6, p.densityPenalty(10*60, near), 1e-9)

	// Far neighbors do not count.
	far := []neighbor{{centerMin: 16 * 60}}
	assert.Zero(t, p.densityPenalty(10*60, far))

	// Cap at 20 regardless of how crowded the window is.
	var crowd []neighbor
	for i := 0; i < 15; i++ {
		crowd = append(crowd, neighbor{centerMin: 10 * 60})
	}
	assert.InDelta(t, 20, p.densityPenalty(10*60, crowd), 1e-9)
}

func TestContextScore(t *testing.T) {
	p := DefaultPolicy()
	ws := domain.DefaultWorkdaySettings()

	// Priority 1 in the morning.
	assert.InDelta(t, 5, p.contextScore(1, 0, 9*60, ws), 1e-9)
	// Priority 3 at 14:00 or later.
	assert.InDelta(t, 3, p.contextScore(3, 0, 14*60, ws), 1e-9)
	// Priority 3 before 14:00 in the afternoon gets nothing.
	assert.Zero(t, p.contextScore(3, 0, 13*60, ws))
	// Slot starting in the lunch band.
	assert.InDelta(t, -3, p.contextScore(2, 0, 12*60+30, ws), 1e-9)
	// High complexity in the morning stacks with the priority bonus.
	assert.InDelta(t, 7, p.contextScore(1, 8, 10*60, ws), 1e-9)
}

// Workday 09:00–17:00, lunch 12:00–13:00, one existing priority-1 task at
// 10:00–11:00. A 60-minute candidate at 13:30 must beat one at 11:00: it
// sits outside both the spacing and density windows of the existing task.
func TestScoring_LaterSlotBeatsCrowdedMorning(t *testing.T) {
	p := DefaultPolicy()
	ws := domain.DefaultWorkdaySettings()
	neighbors := []neighbor{{centerMin: 10*60 + 30, priority: 1}}

	score := func(startMin int) float64 {
		center := startMin + 30
		pp := p.priorityPenalty(2, center, ws.Spacing, neighbors)
		dp := p.densityPenalty(center, neighbors)
		cs := p.contextScore(2, 0, startMin, ws)
		return p.finalScore(pp, dp, cs)
	}

	at1100 := score(11 * 60)
	at1330 := score(13*60 + 30)

	// 11:00 slot: priority penalty 0.7·10·(1/3), density 2, context 0.
	assert.InDelta(t, 100-(0.7*10/3.0)*0.3-2*0.2, at1100, 1e-9)
	// 13:30 slot: clean.
	assert.InDelta(t, 100, at1330, 1e-9)
	assert.Greater(t, at1330, at1100)
}
