package ironbrain

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Season generation constants.
const (
	// Pre-flight bounds.
	MinGoalLeadDays  = 14
	MaxGoalLeadYears = 2
	MaxCTL           = 150.0
	MinRampRate      = 0.03
	MaxRampRate      = 0.08
	MaxSeasonMonths  = 6

	// Weekly budgeting.
	daysPerWeek           = 7
	recoveryEveryNthWeek  = 4
	recoveryWeekFactor    = 0.2
	strengthSessionTSS    = 50.0
	strengthSessionMinute = 45
	runCapFactor          = 1.15
	runCapOffsetTSS       = 15.0
	trailingWeeks         = 2

	// Placement.
	minSessionTSS     = 15.0
	minSessionMinutes = 20
)

// Minutes of training per TSS point. One hour at threshold is 100 TSS, endurance work accrues
// roughly 50-60 TSS per hour depending on the sport.
//
//nolint:gochecknoglobals // lookup table
var minutesPerTSS = map[Discipline]float64{
	DisciplineSwim: 60.0 / 55.0,
	DisciplineBike: 60.0 / 50.0,
	DisciplineRun:  60.0 / 60.0,
}

// fillPriority is the order disciplines are tried when filling open days.
//
//nolint:gochecknoglobals // fixed order
var fillPriority = []Discipline{DisciplineRun, DisciplineBike, DisciplineSwim}

//nolint:gochecknoglobals // namespace for deterministic plan identifiers
var planNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://ironbrain.local/plans"))

// SeasonRequest is the input snapshot for season generation.
type SeasonRequest struct {
	// StartDate is moved back to the Monday of its week.
	StartDate  time.Time
	CurrentCTL float64
	Months     int
	// RecentLogs are the recently completed sessions. The run cap reads the last 14 days, older runs
	// tell the mechanical load rule how long running history reaches back.
	RecentLogs []WorkoutLog
	Profile    *UserProfile
	Settings   RuleSettings
	// Unavailable days (injury, holiday) get no sessions.
	Unavailable []DateRange
	// ForcedRecovery turns every week starting inside a range into a recovery week.
	ForcedRecovery []DateRange
	// Logger receives debug output about skipped sessions. Nil discards it.
	Logger *slog.Logger
}

// seasonGenerator generates training plans week by week.
type seasonGenerator struct {
	req     SeasonRequest
	profile UserProfile
	logger  *slog.Logger
	// timeline holds the real recent logs and every committed plan.
	timeline *timeline
	plans    []TrainingPlan
	// rampFactor is the cumulative ramp growth applied to the weekly target.
	rampFactor float64
}

// GenerateSeason builds a multi-week plan under phase budgets, ramp limits, 3:1 recovery weeks,
// weekday anchors and the rules engine. It never panics past this boundary: invalid input yields a
// Failure, and rule conflicts only thin out a week.
func GenerateSeason(ctx context.Context, req SeasonRequest) GenerationResult {
	if failure := validateSeasonRequest(req); failure != nil {
		return *failure
	}

	g := newSeasonGenerator(req)
	start := MondayOf(req.StartDate)
	end := start.AddDate(0, req.Months, 0)

	var weeks []WeekSummary
	for weekIndex, weekStart := 0, start; weekStart.Before(end); weekIndex, weekStart = weekIndex+1, weekStart.AddDate(0, 0, daysPerWeek) {
		if err := ctx.Err(); err != nil {
			return Failure{Reason: ReasonCanceled, Detail: err.Error()}
		}
		weeks = append(weeks, g.generateWeek(ctx, weekIndex, weekStart, end))
	}

	slices.SortStableFunc(g.plans, func(a, b TrainingPlan) int {
		return a.Date.Compare(b.Date)
	})
	return Success{Plans: g.plans, Weeks: weeks}
}

// validateSeasonRequest fails closed on inputs the generator cannot plan for.
func validateSeasonRequest(req SeasonRequest) *Failure {
	if req.Profile == nil {
		return &Failure{Reason: ReasonMissingProfile, Detail: "no athlete profile"}
	}
	p := req.Profile
	start := MondayOf(req.StartDate)

	if req.Months < 1 || req.Months > MaxSeasonMonths {
		return &Failure{Reason: ReasonInvalidMonths,
			Detail: fmt.Sprintf("months %d outside 1-%d", req.Months, MaxSeasonMonths)}
	}
	if p.GoalDate == nil {
		return &Failure{Reason: ReasonGoalDateOutOfRange, Detail: "goal date missing"}
	}
	goal := normalizeDate(*p.GoalDate)
	if goal.Before(start.AddDate(0, 0, MinGoalLeadDays)) || goal.After(start.AddDate(MaxGoalLeadYears, 0, 0)) {
		return &Failure{Reason: ReasonGoalDateOutOfRange,
			Detail: fmt.Sprintf("goal %s must be 2 weeks to 2 years after %s",
				goal.Format(time.DateOnly), start.Format(time.DateOnly))}
	}
	if math.IsNaN(req.CurrentCTL) || req.CurrentCTL < 0 || req.CurrentCTL > MaxCTL {
		return &Failure{Reason: ReasonCTLOutOfRange, Detail: fmt.Sprintf("ctl %.1f outside 0-%.0f", req.CurrentCTL, MaxCTL)}
	}
	if !p.HasAvailability() {
		return &Failure{Reason: ReasonNoAvailability, Detail: "weekly availability is empty"}
	}
	if p.RampRate < MinRampRate || p.RampRate > MaxRampRate {
		return &Failure{Reason: ReasonRampRateOutOfRange,
			Detail: fmt.Sprintf("ramp rate %.3f outside %.2f-%.2f", p.RampRate, MinRampRate, MaxRampRate)}
	}
	if !p.Balance.Valid() {
		return &Failure{Reason: ReasonInvalidBalance,
			Detail: fmt.Sprintf("swim %d + bike %d + run %d must equal 100", p.Balance.Swim, p.Balance.Bike, p.Balance.Run)}
	}
	if p.StrengthDays < 0 || p.StrengthDays > daysPerWeek {
		return &Failure{Reason: ReasonInvalidStrengthDays, Detail: fmt.Sprintf("strength days %d outside 0-7", p.StrengthDays)}
	}
	return nil
}

// newSeasonGenerator constructs a generator seeded with the recent logs.
func newSeasonGenerator(req SeasonRequest) *seasonGenerator {
	logger := req.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tl := newTimeline(req.Settings, req.Profile.GoalDate)
	for _, l := range req.RecentLogs {
		tl.add(l.Activity())
	}
	return &seasonGenerator{
		req:        req,
		profile:    *req.Profile,
		logger:     logger,
		timeline:   tl,
		plans:      nil,
		rampFactor: 1,
	}
}

// weekState tracks the budgets of the week being placed.
type weekState struct {
	summary       WeekSummary
	remaining     map[Discipline]float64
	strengthLeft  int
	strengthIndex int
	// minutes available per day offset, zero when the day is not plannable.
	minutes [daysPerWeek]int
	used    [daysPerWeek]bool
}

// generateWeek budgets and places one week.
func (g *seasonGenerator) generateWeek(ctx context.Context, weekIndex int, weekStart, end time.Time) WeekSummary {
	ws := g.budgetWeek(weekIndex, weekStart, end)

	for i := range daysPerWeek {
		day := weekStart.AddDate(0, 0, i)
		if !day.Before(end) || g.isUnavailable(day) {
			continue
		}
		ws.minutes[i] = g.profile.Availability.On(day)
	}

	g.placeAnchors(ctx, ws, weekStart)
	g.placeStrength(ws, weekStart)
	g.fillOpenDays(ws, weekStart)
	g.topUp(ws, weekStart)

	for _, p := range g.plans {
		if !p.Date.Before(weekStart) && p.Date.Before(weekStart.AddDate(0, 0, daysPerWeek)) {
			ws.summary.PlannedTSS += p.PlannedTSS
		}
	}
	return ws.summary
}

// budgetWeek derives the weekly target and its split into strength and endurance sub-budgets. A week
// cut short by the season end gets the share of the target for its days.
func (g *seasonGenerator) budgetWeek(weekIndex int, weekStart, end time.Time) *weekState {
	phase := ClassifyPhase(weekStart, g.profile.GoalDate)
	recovery := (weekIndex+1)%recoveryEveryNthWeek == 0 || g.isForcedRecovery(weekStart)

	days := 0
	for i := range daysPerWeek {
		if weekStart.AddDate(0, 0, i).Before(end) {
			days++
		}
	}
	equivalent := g.req.CurrentCTL * float64(days) * phase.loadMultiplier() * g.rampFactor
	target := equivalent
	if recovery {
		target = equivalent * recoveryWeekFactor
	}
	// Recovery weeks neither grow nor reset the ramp; it resumes from the last loading week.
	if phase.ramps() && !recovery {
		g.rampFactor *= 1 + g.profile.RampRate
	}

	strengthSessions := min(g.profile.StrengthDays, int(target/strengthSessionTSS))
	endurance := target - float64(strengthSessions)*strengthSessionTSS
	// An endurance remainder too small for any session would go unplanned.
	if strengthSessions > 0 && endurance > 0 && endurance < minSessionTSS {
		strengthSessions--
		endurance += strengthSessionTSS
	}

	budgets := DisciplineBudgets{
		Swim: endurance * float64(g.profile.Balance.Swim) / 100, //nolint:mnd // percent
		Bike: endurance * float64(g.profile.Balance.Bike) / 100, //nolint:mnd // percent
		Run:  endurance * float64(g.profile.Balance.Run) / 100,  //nolint:mnd // percent
	}
	runCap := g.runCap(weekStart)
	if budgets.Run > runCap {
		budgets.Bike += budgets.Run - runCap
		budgets.Run = runCap
	}

	return &weekState{
		summary: WeekSummary{
			Start:            weekStart,
			Days:             days,
			Phase:            phase,
			Recovery:         recovery,
			Equivalent:       equivalent,
			Target:           target,
			StrengthSessions: strengthSessions,
			Budgets:          budgets,
			RunCap:           runCap,
			PlannedTSS:       0,
			SkippedAnchors:   0,
		},
		remaining: map[Discipline]float64{
			DisciplineSwim: budgets.Swim,
			DisciplineBike: budgets.Bike,
			DisciplineRun:  budgets.Run,
		},
		strengthLeft:  strengthSessions,
		strengthIndex: 0,
		minutes:       [daysPerWeek]int{},
		used:          [daysPerWeek]bool{},
	}
}

// runCap clamps running to 115% of the trailing average weekly run TSS plus 15. The trailing window
// covers real logs and already generated weeks, so the cap rolls forward through the season.
func (g *seasonGenerator) runCap(weekStart time.Time) float64 {
	var total float64
	for _, run := range g.timeline.runsBefore(weekStart) {
		total += run.TSS
	}
	return runCapFactor*(total/trailingWeeks) + runCapOffsetTSS
}

// placeAnchors places user-pinned weekday sessions first. A blocked anchor is skipped and its budget
// stays in the pool for the open days.
func (g *seasonGenerator) placeAnchors(ctx context.Context, ws *weekState, weekStart time.Time) {
	anchorsLeft := make(map[Discipline]int)
	for i := range daysPerWeek {
		if ws.minutes[i] > 0 {
			anchorsLeft[g.profile.Anchors.On(weekStart.AddDate(0, 0, i))]++
		}
	}

	for i := range daysPerWeek {
		day := weekStart.AddDate(0, 0, i)
		anchor := g.profile.Anchors.On(day)
		if ws.minutes[i] == 0 || anchor == DisciplineNone {
			continue
		}

		var candidate TrainingPlan
		switch anchor {
		case DisciplineStrength:
			if ws.strengthLeft == 0 || ws.minutes[i] < strengthSessionMinute {
				continue
			}
			candidate = g.strengthPlan(ws, day)
		case DisciplineSwim, DisciplineBike, DisciplineRun:
			share := ws.remaining[anchor] / float64(anchorsLeft[anchor])
			anchorsLeft[anchor]--
			tss := math.Min(share, capacityTSS(ws.minutes[i], anchor))
			if tss < minSessionTSS {
				continue
			}
			candidate = g.endurancePlan(ws, day, anchor, tss, ws.minutes[i])
		case DisciplineNone, DisciplineOther:
			continue
		default:
			continue
		}

		if !g.commit(candidate) {
			ws.summary.SkippedAnchors++
			g.logger.LogAttrs(ctx, slog.LevelDebug, "anchor blocked by rules",
				slog.String("date", day.Format(time.DateOnly)),
				slog.String("discipline", string(anchor)))
			continue
		}
		ws.used[i] = true
		g.consume(ws, candidate)
	}
}

// placeStrength places the remaining budgeted strength sessions on open days. Sessions that find no
// valid day hand their budget to the bike pool.
func (g *seasonGenerator) placeStrength(ws *weekState, weekStart time.Time) {
	for i := range daysPerWeek {
		if ws.strengthLeft == 0 {
			break
		}
		if ws.used[i] || ws.minutes[i] < strengthSessionMinute {
			continue
		}
		candidate := g.strengthPlan(ws, weekStart.AddDate(0, 0, i))
		if !g.commit(candidate) {
			continue
		}
		ws.used[i] = true
		g.consume(ws, candidate)
	}
	ws.remaining[DisciplineBike] += float64(ws.strengthLeft) * strengthSessionTSS
	ws.strengthLeft = 0
}

// fillOpenDays fills the remaining days in Run, Bike, Swim priority. When a discipline is blocked on
// a day its share rolls over to the next discipline of the week. Budgets too small for a session of
// their own are pooled before every day.
func (g *seasonGenerator) fillOpenDays(ws *weekState, weekStart time.Time) {
	var open []int
	for i := range daysPerWeek {
		if !ws.used[i] && ws.minutes[i] >= minSessionMinutes {
			open = append(open, i)
		}
	}

	for n, i := range open {
		daysLeft := len(open) - n
		day := weekStart.AddDate(0, 0, i)
		poolSmallBudgets(ws.remaining)
		for k, d := range fillPriority {
			share := sessionShare(ws.remaining, d, daysLeft)
			tss := math.Min(share, capacityTSS(ws.minutes[i], d))
			if tss < minSessionTSS {
				continue
			}
			candidate := g.endurancePlan(ws, day, d, tss, ws.minutes[i])
			if g.commit(candidate) {
				ws.used[i] = true
				g.consume(ws, candidate)
				break
			}
			if k+1 < len(fillPriority) {
				ws.remaining[d] -= share
				ws.remaining[fillPriority[k+1]] += share
			}
		}
	}
}

// poolSmallBudgets moves every budget below one session into the larger of the bike and swim budgets.
// Run never receives pooled budget so the run cap holds.
func poolSmallBudgets(remaining map[Discipline]float64) {
	into := DisciplineBike
	if remaining[DisciplineSwim] > remaining[DisciplineBike] {
		into = DisciplineSwim
	}
	for _, d := range fillPriority {
		if d == into || remaining[d] == 0 || remaining[d] >= minSessionTSS {
			continue
		}
		remaining[into] += remaining[d]
		remaining[d] = 0
	}
}

// sessionShare splits a discipline's remaining budget over the open days it can expect to receive,
// never into sessions below the minimum.
func sessionShare(remaining map[Discipline]float64, d Discipline, daysLeft int) float64 {
	var total float64
	for _, v := range remaining {
		total += v
	}
	if total <= 0 || remaining[d] <= 0 {
		return 0
	}
	sessions := int(math.Round(remaining[d] / total * float64(daysLeft)))
	sessions = max(1, min(sessions, int(remaining[d]/minSessionTSS)))
	return remaining[d] / float64(sessions)
}

// topUp spreads the endurance budget left after filling over the week's sessions, up to what their
// day can hold. Bike and swim take it first. Runs only absorb leftover run budget.
func (g *seasonGenerator) topUp(ws *weekState, weekStart time.Time) {
	var total float64
	for _, d := range fillPriority {
		total += ws.remaining[d]
	}
	left := int(math.Round(total))
	runLeft := min(left, int(math.Round(ws.remaining[DisciplineRun])))
	weekEnd := weekStart.AddDate(0, 0, daysPerWeek)

	for _, onto := range []Discipline{DisciplineBike, DisciplineSwim, DisciplineRun} {
		for j, p := range g.plans {
			if left <= 0 {
				return
			}
			if p.Discipline != onto || p.Date.Before(weekStart) || !p.Date.Before(weekEnd) {
				continue
			}
			i := daysBetween(weekStart, p.Date)
			add := min(left, int(capacityTSS(ws.minutes[i], onto))-p.PlannedTSS)
			if onto == DisciplineRun {
				add = min(add, runLeft)
			}
			if add <= 0 {
				continue
			}
			updated := g.endurancePlan(ws, p.Date, onto, float64(p.PlannedTSS+add), ws.minutes[i])
			if !g.timeline.retune(p.Activity(), updated.Activity()) {
				continue
			}
			g.plans[j] = updated
			left -= add
			if onto == DisciplineRun {
				runLeft -= add
			}
		}
	}
}

// commit validates a candidate against the rules engine and keeps it when nothing is blocked.
func (g *seasonGenerator) commit(p TrainingPlan) bool {
	if !g.timeline.admits(p.Activity()) {
		return false
	}
	g.plans = append(g.plans, p)
	return true
}

func (g *seasonGenerator) consume(ws *weekState, p TrainingPlan) {
	switch p.Discipline {
	case DisciplineStrength:
		ws.strengthLeft--
		ws.strengthIndex++
	case DisciplineSwim, DisciplineBike, DisciplineRun:
		// Rounding may take a budget slightly negative. It nets out against the pool.
		ws.remaining[p.Discipline] -= float64(p.PlannedTSS)
	case DisciplineNone, DisciplineOther:
	}
}

func (g *seasonGenerator) strengthPlan(ws *weekState, day time.Time) TrainingPlan {
	focus := FocusFullBody
	if ws.summary.StrengthSessions > 1 {
		focus = FocusLower
		if ws.strengthIndex%2 == 1 {
			focus = FocusUpper
		}
	}
	return TrainingPlan{
		ID:                planID(day, DisciplineStrength),
		Date:              day,
		Discipline:        DisciplineStrength,
		SubType:           string(focus),
		DurationMin:       strengthSessionMinute,
		PlannedTSS:        int(strengthSessionTSS),
		StrengthFocus:     focus,
		StrengthIntensity: ws.summary.Phase.strengthIntensity(),
		IsCommute:         false,
	}
}

func (g *seasonGenerator) endurancePlan(ws *weekState, day time.Time, d Discipline, tss float64, minutes int) TrainingPlan {
	planned := int(math.Round(tss))
	duration := min(minutes, int(math.Round(float64(planned)*minutesPerTSS[d])))
	subType := enduranceSubType(float64(planned))
	if ws.summary.Recovery {
		subType = "recovery"
	}
	return TrainingPlan{
		ID:                planID(day, d),
		Date:              day,
		Discipline:        d,
		SubType:           subType,
		DurationMin:       duration,
		PlannedTSS:        planned,
		StrengthFocus:     FocusNone,
		StrengthIntensity: IntensityNone,
		IsCommute:         d != DisciplineSwim && g.profile.CommuteDays.On(day),
	}
}

func enduranceSubType(tss float64) string {
	switch zone := InferZone(Activity{TSS: tss}); {
	case zone <= 1:
		return "recovery"
	case zone <= 2: //nolint:mnd // zone 2
		return "endurance"
	case zone <= 3: //nolint:mnd // zone 3
		return "tempo"
	case zone <= 4: //nolint:mnd // zone 4
		return "threshold"
	default:
		return "intervals"
	}
}

func (g *seasonGenerator) isUnavailable(day time.Time) bool {
	for _, r := range g.req.Unavailable {
		if r.Contains(day) {
			return true
		}
	}
	return false
}

func (g *seasonGenerator) isForcedRecovery(weekStart time.Time) bool {
	for _, r := range g.req.ForcedRecovery {
		if r.Contains(weekStart) {
			return true
		}
	}
	return false
}

// capacityTSS converts available minutes into the largest session the day can hold.
func capacityTSS(minutes int, d Discipline) float64 {
	perTSS, ok := minutesPerTSS[d]
	if !ok || minutes <= 0 {
		return 0
	}
	return float64(minutes) / perTSS
}

// planID derives a stable identifier so regenerating a season yields the same ids.
func planID(day time.Time, d Discipline) string {
	return uuid.NewSHA1(planNamespace, []byte(normalizeDate(day).Format(time.DateOnly)+"/"+string(d))).String()
}

// MondayOf returns the Monday on or before t as a UTC calendar date.
func MondayOf(t time.Time) time.Time {
	d := normalizeDate(t)
	offset := (int(d.Weekday()) + 6) % daysPerWeek //nolint:mnd // shift Sunday=0 to Monday=0
	return d.AddDate(0, 0, -offset)
}
