package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenmanean/doer-sub005/internal/clock"
	"github.com/lenmanean/doer-sub005/internal/detector"
	"github.com/lenmanean/doer-sub005/internal/domain"
	"github.com/lenmanean/doer-sub005/internal/proposals"
	"github.com/lenmanean/doer-sub005/internal/settings"
	"github.com/lenmanean/doer-sub005/internal/slots"
)

// ── mocks ────────────────────────────────────────────────────────────────────

type fakeScheduleRepo struct {
	detectable []*domain.DueEntry
	active     []*domain.DueEntry
	statuses   map[string]domain.ScheduleStatus
	statusErr  map[string]error
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{
		statuses:  make(map[string]domain.ScheduleStatus),
		statusErr: make(map[string]error),
	}
}

func (r *fakeScheduleRepo) ListDetectable(_ context.Context, _ string, _ *string, _ string) ([]*domain.DueEntry, error) {
	return r.detectable, nil
}
func (r *fakeScheduleRepo) ListActiveBetween(_ context.Context, _ string, _ *string, from, to, _ string) ([]*domain.DueEntry, error) {
	var out []*domain.DueEntry
	for _, e := range r.active {
		if e.Date >= from && e.Date <= to {
			out = append(out, e)
		}
	}
	return out, nil
}
func (r *fakeScheduleRepo) GetByID(_ context.Context, id string) (*domain.ScheduleEntry, error) {
	return nil, &domain.ScheduleNotFoundError{ScheduleID: id}
}
func (r *fakeScheduleRepo) Insert(_ context.Context, _ *domain.ScheduleEntry) error { return nil }
func (r *fakeScheduleRepo) SetStatus(_ context.Context, id string, status domain.ScheduleStatus) error {
	if err := r.statusErr[id]; err != nil {
		return err
	}
	r.statuses[id] = status
	return nil
}
func (r *fakeScheduleRepo) FindByTaskAndDate(_ context.Context, _, _ string) (*domain.ScheduleEntry, error) {
	return nil, nil
}

type fakeTaskRepo struct{}

func (fakeTaskRepo) GetByID(_ context.Context, id string) (*domain.Task, error) {
	return nil, &domain.TaskNotFoundError{TaskID: id}
}
func (fakeTaskRepo) ListIndefiniteRecurring(_ context.Context, _ string, _ *string) ([]*domain.Task, error) {
	return nil, nil
}

type fakeCompletionRepo struct{}

func (fakeCompletionRepo) Exists(_ context.Context, _, _ string, _ *string) (bool, error) {
	return false, nil
}

type fakeSettingsRepo struct {
	enabled bool
}

func (r *fakeSettingsRepo) Get(_ context.Context, _ string) (*domain.UserSettings, error) {
	return nil, nil
}
func (r *fakeSettingsRepo) IsAutoRescheduleEnabled(_ context.Context, _ string) (bool, error) {
	return r.enabled, nil
}
func (r *fakeSettingsRepo) ListAutoRescheduleUserIDs(_ context.Context) ([]string, error) {
	return nil, nil
}

type fakeProposalRepo struct {
	created   []*domain.RescheduleProposal
	createErr map[string]error // keyed by schedule id
}

func (r *fakeProposalRepo) CreatePending(_ context.Context, p *domain.RescheduleProposal) (*domain.RescheduleProposal, bool, error) {
	if err := r.createErr[p.TaskScheduleID]; err != nil {
		return nil, false, err
	}
	p.ID = "prop-" + p.TaskScheduleID
	p.Status = domain.ProposalPending
	r.created = append(r.created, p)
	return p, true, nil
}
func (r *fakeProposalRepo) Accept(_ context.Context, proposalID, _ string, _ time.Time) (*domain.RescheduleProposal, error) {
	return nil, &domain.ProposalNotPendingError{ProposalID: proposalID}
}
func (r *fakeProposalRepo) Reject(_ context.Context, proposalID, _ string, _ time.Time) (*domain.RescheduleProposal, error) {
	return nil, &domain.ProposalNotPendingError{ProposalID: proposalID}
}
func (r *fakeProposalRepo) ListPending(_ context.Context, _ string, _ *string) ([]*domain.PendingProposal, error) {
	return nil, nil
}

type fakePlanRepo struct {
	plans    map[string]*domain.Plan
	extended []string
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{plans: make(map[string]*domain.Plan)}
}

func (r *fakePlanRepo) GetByID(_ context.Context, planID, _ string) (*domain.Plan, error) {
	p, ok := r.plans[planID]
	if !ok {
		return nil, &domain.PlanNotFoundError{PlanID: planID}
	}
	return p, nil
}
func (r *fakePlanRepo) ExtendEndDate(_ context.Context, planID, _ string, days int) (string, error) {
	p, ok := r.plans[planID]
	if !ok {
		return "", &domain.PlanNotFoundError{PlanID: planID}
	}
	end, err := addDays(p.EndDate, days)
	if err != nil {
		return "", err
	}
	p.EndDate = end
	r.extended = append(r.extended, planID)
	return end, nil
}
func (r *fakePlanRepo) ListActiveIDs(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func addDays(date string, n int) (string, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format("2006-01-02"), nil
}

type fakeLocker struct {
	held     bool
	err      error
	acquired []string
	released int
}

func (l *fakeLocker) TryAcquire(_ context.Context, key string, _ time.Duration) (func(context.Context), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.acquired = append(l.acquired, key)
	return func(context.Context) { l.released++ }, true, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// now is Wednesday 2026-08-26 10:00 UTC in every test below.
var now = time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

type fixture struct {
	orch      *Orchestrator
	schedules *fakeScheduleRepo
	proposals *fakeProposalRepo
	plans     *fakePlanRepo
	locker    *fakeLocker
}

func newFixture(settingsRepo *fakeSettingsRepo) *fixture {
	logger := slog.Default()
	schedules := newFakeScheduleRepo()
	proposalRepo := &fakeProposalRepo{createErr: make(map[string]error)}
	plans := newFakePlanRepo()
	locker := &fakeLocker{}

	resolver := settings.NewResolver(settingsRepo, nil, logger)
	det := detector.New(schedules, fakeTaskRepo{}, fakeCompletionRepo{}, logger)
	finder := slots.NewFinder(schedules, slots.DefaultPolicy(), logger)
	mgr := proposals.NewManager(proposalRepo, fakeCompletionRepo{}, nil, clock.Fixed(now), logger)

	return &fixture{
		orch:      New(resolver, det, finder, mgr, plans, schedules, locker, clock.Fixed(now), logger),
		schedules: schedules,
		proposals: proposalRepo,
		plans:     plans,
		locker:    locker,
	}
}

func overdueEntry(id, taskID string, planID *string) *domain.DueEntry {
	return &domain.DueEntry{
		ScheduleEntry: domain.ScheduleEntry{
			ID:              id,
			TaskID:          taskID,
			UserID:          "user-1",
			PlanID:          planID,
			Date:            "2026-08-24",
			StartTime:       "09:00:00",
			EndTime:         "10:00:00",
			DurationMinutes: 60,
			Status:          domain.ScheduleOverdue,
		},
		TaskName: "task " + taskID,
		Priority: 2,
	}
}

func fullyBooked(date string) *domain.DueEntry {
	return &domain.DueEntry{
		ScheduleEntry: domain.ScheduleEntry{
			ID:        "busy-" + date,
			Date:      date,
			StartTime: "09:00:00",
			EndTime:   "17:00:00",
			Status:    domain.ScheduleScheduled,
		},
		Priority: 1,
	}
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestRun_DisabledToggleShortCircuits(t *testing.T) {
	f := newFixture(&fakeSettingsRepo{enabled: false})
	f.schedules.detectable = []*domain.DueEntry{overdueEntry("s1", "t1", nil)}

	created, err := f.orch.Run(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Nil(t, created)
	assert.Empty(t, f.proposals.created)
	assert.Empty(t, f.locker.acquired)
}

func TestRun_FreeModeCreatesProposal(t *testing.T) {
	f := newFixture(&fakeSettingsRepo{enabled: true})
	f.schedules.detectable = []*domain.DueEntry{overdueEntry("s1", "t1", nil)}

	created, err := f.orch.Run(context.Background(), "user-1", nil)
	require.NoError(t, err)
	require.Len(t, created, 1)

	p := created[0]
	assert.Equal(t, "s1", p.TaskScheduleID)
	assert.Equal(t, domain.ProposalPending, p.Status)
	// An open calendar scores the first grid slot from "now" onward
	// clean, so the proposal lands today.
	assert.Equal(t, "2026-08-26", p.ProposedDate)

	assert.Equal(t, domain.ScheduleRescheduling, f.schedules.statuses["s1"])
	assert.Equal(t, []string{"resched:run:user-1:free"}, f.locker.acquired)
	assert.Equal(t, 1, f.locker.released)
}

func TestRun_LockHeldSkips(t *testing.T) {
	f := newFixture(&fakeSettingsRepo{enabled: true})
	f.schedules.detectable = []*domain.DueEntry{overdueEntry("s1", "t1", nil)}
	f.locker.held = true

	created, err := f.orch.Run(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Nil(t, created)
	assert.Empty(t, f.proposals.created)
}

func TestRun_SkipsEntriesAwaitingDecision(t *testing.T) {
	f := newFixture(&fakeSettingsRepo{enabled: true})
	pending := overdueEntry("s1", "t1", nil)
	pending.Status = domain.SchedulePendingReschedule
	f.schedules.detectable = []*domain.DueEntry{pending, overdueEntry("s2", "t2", nil)}

	created, err := f.orch.Run(context.Background(), "user-1", nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "s2", created[0].TaskScheduleID)
}

func TestRun_FreeModeFallsBackToTomorrowMorning(t *testing.T) {
	f := newFixture(&fakeSettingsRepo{enabled: true})
	f.schedules.detectable = []*domain.DueEntry{overdueEntry("s1", "t1", nil)}
	// Book out the whole default 3-day window plus today.
	for _, d := range []string{"2026-08-26", "2026-08-27", "2026-08-28", "2026-08-29"} {
		f.schedules.active = append(f.schedules.active, fullyBooked(d))
	}

	created, err := f.orch.Run(context.Background(), "user-1", nil)
	require.NoError(t, err)
	require.Len(t, created, 1)

	p := created[0]
	assert.Equal(t, "2026-08-27", p.ProposedDate)
	assert.Equal(t, "09:00:00", p.ProposedStartTime)
	assert.Equal(t, "10:00:00", p.ProposedEndTime)
}

func TestRun_PlanModeExtendsPlanWhenWindowFull(t *testing.T) {
	f := newFixture(&fakeSettingsRepo{enabled: true})
	planID := "plan-1"
	f.plans.plans[planID] = &domain.Plan{ID: planID, UserID: "user-1", EndDate: "2026-08-27", Status: "active"}
	f.schedules.detectable = []*domain.DueEntry{overdueEntry("s1", "t1", &planID)}
	// Plan window (today through plan end) fully booked; the added day is
	// open.
	f.schedules.active = []*domain.DueEntry{
		fullyBooked("2026-08-26"),
		fullyBooked("2026-08-27"),
	}

	created, err := f.orch.Run(context.Background(), "user-1", &planID)
	require.NoError(t, err)
	require.Len(t, created, 1)

	assert.Equal(t, []string{planID}, f.plans.extended)
	assert.Equal(t, "2026-08-28", f.plans.plans[planID].EndDate)
	assert.Equal(t, "2026-08-28", created[0].ProposedDate)
	assert.Equal(t, "09:00:00", created[0].ProposedStartTime)
}

func TestRun_StalePlanEndNeverProposesPastDates(t *testing.T) {
	f := newFixture(&fakeSettingsRepo{enabled: true})
	planID := "plan-1"
	// The plan's end date fell behind the calendar: it is 2026-08-26 and
	// the plan ended six days ago.
	f.plans.plans[planID] = &domain.Plan{ID: planID, UserID: "user-1", EndDate: "2026-08-20", Status: "active"}
	f.schedules.detectable = []*domain.DueEntry{overdueEntry("s1", "t1", &planID)}

	created, err := f.orch.Run(context.Background(), "user-1", &planID)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Empty(t, f.proposals.created)

	// One extension is attempted, but 2026-08-21 is still in the past, so
	// the entry goes back to overdue rather than onto an elapsed date.
	assert.Equal(t, []string{planID}, f.plans.extended)
	assert.Equal(t, "2026-08-21", f.plans.plans[planID].EndDate)
	assert.Equal(t, domain.ScheduleOverdue, f.schedules.statuses["s1"])
}

func TestRun_PlanNotFoundPropagates(t *testing.T) {
	f := newFixture(&fakeSettingsRepo{enabled: true})
	planID := "missing"
	f.schedules.detectable = []*domain.DueEntry{overdueEntry("s1", "t1", &planID)}

	_, err := f.orch.Run(context.Background(), "user-1", &planID)
	var notFound *domain.PlanNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRun_PerTaskFailureResetsToOverdueAndContinues(t *testing.T) {
	f := newFixture(&fakeSettingsRepo{enabled: true})
	f.schedules.detectable = []*domain.DueEntry{
		overdueEntry("s1", "t1", nil),
		overdueEntry("s2", "t2", nil),
	}
	f.proposals.createErr["s1"] = errors.New("deadlock detected")

	created, err := f.orch.Run(context.Background(), "user-1", nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "s2", created[0].TaskScheduleID)

	// The failed entry goes back to overdue for the next pass.
	assert.Equal(t, domain.ScheduleOverdue, f.schedules.statuses["s1"])
	assert.Equal(t, domain.ScheduleRescheduling, f.schedules.statuses["s2"])
}

func TestRun_NothingOverdueDoesNothing(t *testing.T) {
	f := newFixture(&fakeSettingsRepo{enabled: true})

	created, err := f.orch.Run(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Nil(t, created)
}
