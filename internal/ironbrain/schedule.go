package ironbrain

import (
	"slices"
	"time"
)

// timeline indexes completed and planned sessions by date so rule contexts can be built for any day.
// The generator and ValidateSchedule share it, which keeps generation and re-validation consistent.
type timeline struct {
	byDate   map[time.Time][]Activity
	wellness map[time.Time]DailyWellnessLog
	goal     *time.Time
	settings RuleSettings
}

func newTimeline(settings RuleSettings, goal *time.Time) *timeline {
	return &timeline{
		byDate:   make(map[time.Time][]Activity),
		wellness: make(map[time.Time]DailyWellnessLog),
		goal:     goal,
		settings: settings,
	}
}

func (t *timeline) add(a Activity) {
	d := normalizeDate(a.Date)
	a.Date = d
	t.byDate[d] = append(t.byDate[d], a)
}

// remove drops the last added activity on the date of a.
func (t *timeline) remove(a Activity) {
	d := normalizeDate(a.Date)
	list := t.byDate[d]
	if len(list) == 0 {
		return
	}
	if len(list) == 1 {
		delete(t.byDate, d)
		return
	}
	t.byDate[d] = list[:len(list)-1]
}

func (t *timeline) on(d time.Time) []Activity {
	return t.byDate[normalizeDate(d)]
}

// lastStrengthBefore finds the most recent strength session strictly before d within the longest spacing.
func (t *timeline) lastStrengthBefore(d time.Time) *time.Time {
	d = normalizeDate(d)
	for back := 1; back <= StrengthSpacing72h/24; back++ {
		day := d.AddDate(0, 0, -back)
		if containsDiscipline(t.byDate[day], DisciplineStrength) {
			return &day
		}
	}
	return nil
}

func (t *timeline) runsBefore(d time.Time) []Activity {
	d = normalizeDate(d)
	var runs []Activity
	for back := mechanicalLoadWindowDays; back >= 1; back-- {
		for _, a := range t.byDate[d.AddDate(0, 0, -back)] {
			if a.Discipline == DisciplineRun {
				runs = append(runs, a)
			}
		}
	}
	return runs
}

// firstRunBefore finds the earliest known run strictly before d.
func (t *timeline) firstRunBefore(d time.Time) *time.Time {
	d = normalizeDate(d)
	var first *time.Time
	for day, list := range t.byDate {
		if !day.Before(d) || !containsDiscipline(list, DisciplineRun) {
			continue
		}
		if first == nil || day.Before(*first) {
			first = &day
		}
	}
	return first
}

// contextFor builds the rule context for today on its date.
func (t *timeline) contextFor(today Activity) DailyContext {
	d := normalizeDate(today.Date)
	var wellness *DailyWellnessLog
	if w, ok := t.wellness[d]; ok {
		wellness = &w
	}
	return DailyContext{
		Yesterday:    t.on(d.AddDate(0, 0, -1)),
		Today:        &today,
		Wellness:     wellness,
		LastStrength: t.lastStrengthBefore(d),
		Phase:        ClassifyPhase(d, t.goal),
		RecentRuns:   t.runsBefore(d),
		FirstRun:     t.firstRunBefore(d),
		Settings:     t.settings,
	}
}

func (t *timeline) validate(a Activity) []CoachWarning {
	return ValidateDailyPlan(t.contextFor(a))
}

// admits tentatively adds the candidate and reports whether neither the candidate nor any session
// in the following days whose rules can see it ends up blocked. The candidate stays added on success.
func (t *timeline) admits(candidate Activity) bool {
	if HasBlocker(t.validate(candidate)) {
		return false
	}
	t.add(candidate)
	if t.blocksAhead(candidate.Date) {
		t.remove(candidate)
		return false
	}
	return true
}

// retune swaps the session matching old's date and discipline for updated unless that blocks it or
// a session in the following days.
func (t *timeline) retune(old, updated Activity) bool {
	d := normalizeDate(old.Date)
	list := t.byDate[d]
	idx := slices.IndexFunc(list, func(a Activity) bool { return a.Discipline == old.Discipline })
	if idx < 0 {
		return false
	}
	previous := list[idx]
	updated.Date = d
	list[idx] = updated
	if HasBlocker(t.validate(updated)) || t.blocksAhead(d) {
		list[idx] = previous
		return false
	}
	return true
}

// blocksAhead reports whether a session in the days after d whose rules can see d is blocked.
func (t *timeline) blocksAhead(d time.Time) bool {
	d = normalizeDate(d)
	for ahead := 1; ahead <= StrengthSpacing72h/24; ahead++ {
		for _, later := range t.on(d.AddDate(0, 0, ahead)) {
			if HasBlocker(t.validate(later)) {
				return true
			}
		}
	}
	return false
}

// ScheduleFinding is the validation outcome of one planned session.
type ScheduleFinding struct {
	Plan     TrainingPlan
	Warnings []CoachWarning
}

// ValidateSchedule re-validates every plan with contexts derived from the completed history, the
// other plans and any wellness logs. It returns one finding per plan in input order.
func ValidateSchedule(
	plans []TrainingPlan,
	history []WorkoutLog,
	wellness []DailyWellnessLog,
	settings RuleSettings,
	goal *time.Time,
) []ScheduleFinding {
	tl := newTimeline(settings, goal)
	for _, l := range history {
		tl.add(l.Activity())
	}
	for _, p := range plans {
		tl.add(p.Activity())
	}
	for _, w := range wellness {
		tl.wellness[normalizeDate(w.Date)] = w
	}

	findings := make([]ScheduleFinding, 0, len(plans))
	for _, p := range plans {
		findings = append(findings, ScheduleFinding{
			Plan:     p,
			Warnings: tl.validate(p.Activity()),
		})
	}
	return findings
}
