package ironbrain

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/ironbrain/internal/ptr"
	"github.com/myrjola/ironbrain/internal/testhelpers"
)

var (
	seasonStart = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC) // Monday
	seasonGoal  = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
)

func testProfile() *UserProfile {
	return &UserProfile{
		FTPWatts:              250,
		MaxHR:                 188,
		LTHR:                  168,
		ThresholdPaceSecPerKm: 285,
		WeightKg:              72,
		GoalDate:              ptr.Ref(seasonGoal),
		Availability: Weekly[int]{
			time.Sunday:    120,
			time.Monday:    60,
			time.Tuesday:   90,
			time.Wednesday: 60,
			time.Thursday:  90,
			time.Friday:    0,
			time.Saturday:  180,
		},
		Anchors: Weekly[Discipline]{
			time.Monday:    DisciplineStrength,
			time.Wednesday: DisciplineSwim,
			time.Saturday:  DisciplineBike,
		},
		CommuteDays:  Weekly[bool]{time.Thursday: true},
		Balance:      TrainingBalance{Swim: 20, Bike: 50, Run: 30},
		StrengthDays: 2,
		RampRate:     0.05,
	}
}

func recentRuns() []WorkoutLog {
	var logs []WorkoutLog
	for _, d := range []time.Time{
		time.Date(2024, 12, 24, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 27, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	} {
		logs = append(logs, WorkoutLog{
			ID:          d.Format(time.DateOnly),
			Date:        d,
			Discipline:  DisciplineRun,
			DurationMin: 60,
			DistanceKm:  ptr.Ref(11.0),
			ComputedTSS: 60,
		})
	}
	return logs
}

func testRequest(t *testing.T) SeasonRequest {
	t.Helper()
	return SeasonRequest{
		StartDate:      seasonStart,
		CurrentCTL:     50,
		Months:         4,
		RecentLogs:     recentRuns(),
		Profile:        testProfile(),
		Settings:       DefaultRuleSettings(),
		Unavailable:    nil,
		ForcedRecovery: nil,
		Logger:         testhelpers.NewLogger(testhelpers.NewWriter(t)),
	}
}

func mustSucceed(t *testing.T, result GenerationResult) Success {
	t.Helper()
	switch r := result.(type) {
	case Success:
		return r
	case Failure:
		t.Fatalf("expected success, got failure: %v", r)
	default:
		t.Fatalf("unexpected result type %T", result)
	}
	return Success{}
}

func TestGenerateSeason_RevalidationHasNoBlockers(t *testing.T) {
	req := testRequest(t)
	success := mustSucceed(t, GenerateSeason(t.Context(), req))
	if len(success.Plans) == 0 {
		t.Fatal("expected plans")
	}

	findings := ValidateSchedule(success.Plans, req.RecentLogs, nil, req.Settings, req.Profile.GoalDate)
	for _, f := range findings {
		for _, w := range f.Warnings {
			if w.IsBlocker {
				t.Errorf("%s %s: blocker %q", f.Plan.Date.Format(time.DateOnly), f.Plan.Discipline, w.Title)
			}
		}
	}
}

func TestGenerateSeason_WeeklyBudgets(t *testing.T) {
	req := testRequest(t)
	success := mustSucceed(t, GenerateSeason(t.Context(), req))

	if len(success.Weeks) != 18 {
		t.Fatalf("expected 18 weeks for four months, got %d", len(success.Weeks))
	}
	for i, w := range success.Weeks {
		wantRecovery := (i+1)%4 == 0
		if w.Recovery != wantRecovery {
			t.Errorf("week %d: recovery = %t, want %t", i, w.Recovery, wantRecovery)
		}
		if w.Recovery && math.Abs(w.Target-0.2*w.Equivalent) > 1e-9 {
			t.Errorf("week %d: recovery target %f is not 20%% of %f", i, w.Target, w.Equivalent)
		}
		if !w.Recovery && w.Target != w.Equivalent {
			t.Errorf("week %d: target %f differs from equivalent %f", i, w.Target, w.Equivalent)
		}
		allocated := float64(w.StrengthSessions)*strengthSessionTSS + w.Budgets.Total()
		if allocated > w.Target+1e-9 {
			t.Errorf("week %d: sub-budgets %f exceed target %f", i, allocated, w.Target)
		}
		if w.Budgets.Run > w.RunCap+1e-9 {
			t.Errorf("week %d: run budget %f exceeds cap %f", i, w.Budgets.Run, w.RunCap)
		}
		// Sessions round to whole TSS, at most one per day.
		if float64(w.PlannedTSS) > w.Target+daysPerWeek*0.5 {
			t.Errorf("week %d: planned %d exceeds target %f", i, w.PlannedTSS, w.Target)
		}
	}

	for i, w := range success.Weeks[:17] {
		if w.Days != daysPerWeek {
			t.Errorf("week %d: %d days, want a full week", i, w.Days)
		}
	}
	// The season ends on Tuesday 2025-05-06, leaving only Monday of the last week.
	last := success.Weeks[17]
	if last.Days != 1 {
		t.Errorf("last week: %d days, want 1", last.Days)
	}
	if last.Target > success.Weeks[16].Target/3 {
		t.Errorf("last week target %f is not scaled to its single day", last.Target)
	}

	// Recovery weeks do not advance the ramp, the following week resumes from the same base.
	if success.Weeks[3].Phase == success.Weeks[4].Phase &&
		math.Abs(success.Weeks[3].Equivalent-success.Weeks[4].Equivalent) > 1e-9 {
		t.Errorf("ramp moved across recovery week: %f -> %f",
			success.Weeks[3].Equivalent, success.Weeks[4].Equivalent)
	}
	if success.Weeks[1].Equivalent <= success.Weeks[0].Equivalent {
		t.Errorf("expected ramp growth in build, got %f -> %f",
			success.Weeks[0].Equivalent, success.Weeks[1].Equivalent)
	}
}

func TestGenerateSeason_RecoveryWeekVolume(t *testing.T) {
	tests := []struct {
		name string
		ctl  float64
	}{
		{name: "ctl 50", ctl: 50},
		{name: "ctl 35", ctl: 35},
		{name: "ctl 20", ctl: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(t)
			req.CurrentCTL = tt.ctl
			success := mustSucceed(t, GenerateSeason(t.Context(), req))

			recoveryWeeks := 0
			for i, w := range success.Weeks {
				if !w.Recovery {
					continue
				}
				recoveryWeeks++
				want := recoveryWeekFactor * w.Equivalent
				if math.Abs(float64(w.PlannedTSS)-want) > 1.5 {
					t.Errorf("week %d: planned %d TSS, want %.1f (20%% of %.1f)", i, w.PlannedTSS, want, w.Equivalent)
				}
			}
			if recoveryWeeks != 4 {
				t.Errorf("expected 4 recovery weeks, got %d", recoveryWeeks)
			}
		})
	}
}

func TestPoolSmallBudgets(t *testing.T) {
	tests := []struct {
		name      string
		remaining map[Discipline]float64
		want      map[Discipline]float64
	}{
		{
			name:      "leftovers join the larger of bike and swim",
			remaining: map[Discipline]float64{DisciplineSwim: 7, DisciplineBike: -0.5, DisciplineRun: 10.5},
			want:      map[Discipline]float64{DisciplineSwim: 17, DisciplineBike: 0, DisciplineRun: 0},
		},
		{
			name:      "full sessions stay put",
			remaining: map[Discipline]float64{DisciplineSwim: 10, DisciplineBike: 40, DisciplineRun: 30},
			want:      map[Discipline]float64{DisciplineSwim: 0, DisciplineBike: 50, DisciplineRun: 30},
		},
		{
			name:      "run never receives budget",
			remaining: map[Discipline]float64{DisciplineSwim: 5, DisciplineBike: 6, DisciplineRun: 40},
			want:      map[Discipline]float64{DisciplineSwim: 0, DisciplineBike: 11, DisciplineRun: 40},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poolSmallBudgets(tt.remaining)
			if diff := cmp.Diff(tt.want, tt.remaining); diff != "" {
				t.Errorf("poolSmallBudgets() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSessionShare(t *testing.T) {
	tests := []struct {
		name      string
		remaining map[Discipline]float64
		d         Discipline
		daysLeft  int
		want      float64
	}{
		{
			name:      "split over expected days",
			remaining: map[Discipline]float64{DisciplineBike: 120, DisciplineRun: 60},
			d:         DisciplineBike,
			daysLeft:  3,
			want:      60,
		},
		{
			name:      "never below one session",
			remaining: map[Discipline]float64{DisciplineSwim: 20},
			d:         DisciplineSwim,
			daysLeft:  4,
			want:      20,
		},
		{
			name:      "empty budget",
			remaining: map[Discipline]float64{DisciplineSwim: 20, DisciplineRun: -0.5},
			d:         DisciplineRun,
			daysLeft:  4,
			want:      0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sessionShare(tt.remaining, tt.d, tt.daysLeft); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("sessionShare() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestGenerateSeason_PlanShape(t *testing.T) {
	req := testRequest(t)
	success := mustSucceed(t, GenerateSeason(t.Context(), req))
	end := seasonStart.AddDate(0, req.Months, 0)

	perDay := make(map[time.Time]int)
	for i, p := range success.Plans {
		if i > 0 && p.Date.Before(success.Plans[i-1].Date) {
			t.Errorf("plans not sorted at %d", i)
		}
		if p.Date.Before(seasonStart) || !p.Date.Before(end) {
			t.Errorf("plan on %s outside season", p.Date.Format(time.DateOnly))
		}
		if p.Date.Weekday() == time.Friday {
			t.Errorf("plan on unavailable Friday %s", p.Date.Format(time.DateOnly))
		}
		if p.DurationMin > req.Profile.Availability.On(p.Date) {
			t.Errorf("plan on %s lasts %d min, only %d available",
				p.Date.Format(time.DateOnly), p.DurationMin, req.Profile.Availability.On(p.Date))
		}
		if p.ID == "" {
			t.Errorf("plan on %s has no id", p.Date.Format(time.DateOnly))
		}
		if p.Discipline == DisciplineStrength && (p.StrengthFocus == FocusNone || p.StrengthIntensity == IntensityNone) {
			t.Errorf("strength plan on %s lacks focus or intensity", p.Date.Format(time.DateOnly))
		}
		perDay[p.Date]++
	}
	for d, n := range perDay {
		if n > 1 {
			t.Errorf("%d sessions on %s", n, d.Format(time.DateOnly))
		}
	}
}

func TestGenerateSeason_Deterministic(t *testing.T) {
	first := GenerateSeason(t.Context(), testRequest(t))
	second := GenerateSeason(t.Context(), testRequest(t))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("generation is not deterministic (-first +second):\n%s", diff)
	}
}

func TestGenerateSeason_BlockedAnchorIsSkipped(t *testing.T) {
	req := testRequest(t)
	req.Months = 1
	req.Profile.StrengthDays = 0
	req.Profile.Anchors = Weekly[Discipline]{time.Monday: DisciplineRun, time.Tuesday: DisciplineRun}

	success := mustSucceed(t, GenerateSeason(t.Context(), req))
	week := success.Weeks[0]
	if week.SkippedAnchors != 1 {
		t.Errorf("expected the Tuesday run anchor to be skipped, got %d skipped", week.SkippedAnchors)
	}
	for _, p := range success.Plans {
		if p.Date.Equal(seasonStart.AddDate(0, 0, 1)) && p.Discipline == DisciplineRun {
			t.Errorf("back-to-back run planned on %s", p.Date.Format(time.DateOnly))
		}
	}
	if week.PlannedTSS == 0 {
		t.Error("expected the skipped budget to be placed elsewhere")
	}
}

func TestGenerateSeason_SpecialPeriods(t *testing.T) {
	req := testRequest(t)
	holiday := DateRange{Start: seasonStart.AddDate(0, 0, 7), End: seasonStart.AddDate(0, 0, 13)}
	req.Unavailable = []DateRange{holiday}
	req.ForcedRecovery = []DateRange{{Start: seasonStart.AddDate(0, 0, 14), End: seasonStart.AddDate(0, 0, 20)}}

	success := mustSucceed(t, GenerateSeason(t.Context(), req))
	for _, p := range success.Plans {
		if holiday.Contains(p.Date) {
			t.Errorf("plan %s on holiday %s", p.Discipline, p.Date.Format(time.DateOnly))
		}
	}
	if success.Weeks[1].PlannedTSS != 0 {
		t.Errorf("expected empty holiday week, got %d TSS", success.Weeks[1].PlannedTSS)
	}
	if !success.Weeks[2].Recovery {
		t.Error("expected forced recovery week")
	}
}

func TestGenerateSeason_Failures(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*SeasonRequest)
		want   FailureReason
	}{
		{"missing profile", func(r *SeasonRequest) { r.Profile = nil }, ReasonMissingProfile},
		{"zero months", func(r *SeasonRequest) { r.Months = 0 }, ReasonInvalidMonths},
		{"too many months", func(r *SeasonRequest) { r.Months = 7 }, ReasonInvalidMonths},
		{"no goal", func(r *SeasonRequest) { r.Profile.GoalDate = nil }, ReasonGoalDateOutOfRange},
		{"goal too soon", func(r *SeasonRequest) {
			r.Profile.GoalDate = ptr.Ref(seasonStart.AddDate(0, 0, 13))
		}, ReasonGoalDateOutOfRange},
		{"goal too far", func(r *SeasonRequest) {
			r.Profile.GoalDate = ptr.Ref(seasonStart.AddDate(2, 0, 1))
		}, ReasonGoalDateOutOfRange},
		{"negative ctl", func(r *SeasonRequest) { r.CurrentCTL = -1 }, ReasonCTLOutOfRange},
		{"ctl too high", func(r *SeasonRequest) { r.CurrentCTL = 150.5 }, ReasonCTLOutOfRange},
		{"ctl not a number", func(r *SeasonRequest) { r.CurrentCTL = math.NaN() }, ReasonCTLOutOfRange},
		{"no availability", func(r *SeasonRequest) { r.Profile.Availability = Weekly[int]{} }, ReasonNoAvailability},
		{"ramp too low", func(r *SeasonRequest) { r.Profile.RampRate = 0.02 }, ReasonRampRateOutOfRange},
		{"ramp too high", func(r *SeasonRequest) { r.Profile.RampRate = 0.1 }, ReasonRampRateOutOfRange},
		{"balance off", func(r *SeasonRequest) {
			r.Profile.Balance = TrainingBalance{Swim: 30, Bike: 50, Run: 30}
		}, ReasonInvalidBalance},
		{"strength days", func(r *SeasonRequest) { r.Profile.StrengthDays = 8 }, ReasonInvalidStrengthDays},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(t)
			tt.modify(&req)
			failure, ok := GenerateSeason(t.Context(), req).(Failure)
			if !ok {
				t.Fatal("expected failure")
			}
			if failure.Reason != tt.want {
				t.Errorf("reason = %s, want %s", failure.Reason, tt.want)
			}
		})
	}
}

func TestGenerateSeason_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	failure, ok := GenerateSeason(ctx, testRequest(t)).(Failure)
	if !ok {
		t.Fatal("expected failure")
	}
	if failure.Reason != ReasonCanceled {
		t.Errorf("reason = %s, want %s", failure.Reason, ReasonCanceled)
	}
}

func TestMondayOf(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2025, 1, 6, 15, 0, 0, 0, time.UTC), time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := MondayOf(tt.in); !got.Equal(tt.want) {
			t.Errorf("MondayOf(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestPlanID(t *testing.T) {
	a := planID(seasonStart, DisciplineRun)
	if a != planID(seasonStart.Add(5*time.Hour), DisciplineRun) {
		t.Error("expected the same id for the same calendar date")
	}
	if a == planID(seasonStart, DisciplineBike) {
		t.Error("expected different ids per discipline")
	}
	if a == planID(seasonStart.AddDate(0, 0, 1), DisciplineRun) {
		t.Error("expected different ids per date")
	}
}
