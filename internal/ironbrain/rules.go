package ironbrain

import (
	"fmt"
	"math"
	"time"
)

// Strength spacing options in hours.
const (
	StrengthSpacing24h = 24
	StrengthSpacing48h = 48
	StrengthSpacing72h = 72

	defaultStrengthSpacingHours = StrengthSpacing48h
)

// Mechanical load monitoring.
const (
	mechanicalLoadWindowDays   = 14
	mechanicalLoadHalfDays     = 7
	mechanicalLoadZoneFactor   = 0.2
	mechanicalLoadMaxIncrease  = 0.15
	easyZone                   = 1.0
	fallbackZoneBandTSS        = 30.0
	fallbackZoneMax            = 5
	recoveryDisciplineAfterGym = DisciplineSwim
)

// RuleSettings is the user-tunable rule bundle: a master switch plus four tunables.
type RuleSettings struct {
	Enabled                  bool
	AllowConsecutiveRuns     bool
	CommuteExempt            bool
	StrengthSpacingHours     int
	MechanicalLoadMonitoring bool
}

// DefaultRuleSettings returns the settings a new athlete starts with.
func DefaultRuleSettings() RuleSettings {
	return RuleSettings{
		Enabled:                  true,
		AllowConsecutiveRuns:     false,
		CommuteExempt:            true,
		StrengthSpacingHours:     defaultStrengthSpacingHours,
		MechanicalLoadMonitoring: true,
	}
}

// ValidStrengthSpacing reports whether hours is one of the supported spacings.
func ValidStrengthSpacing(hours int) bool {
	return hours == StrengthSpacing24h || hours == StrengthSpacing48h || hours == StrengthSpacing72h
}

func (s RuleSettings) strengthSpacing() time.Duration {
	hours := s.StrengthSpacingHours
	if !ValidStrengthSpacing(hours) {
		hours = defaultStrengthSpacingHours
	}
	return time.Duration(hours) * time.Hour
}

// DailyContext is everything one day's validation looks at.
type DailyContext struct {
	// Yesterday holds the sessions of the previous day, completed or planned.
	Yesterday []Activity
	// Today is the session under validation. Nil means nothing is planned.
	Today    *Activity
	Wellness *DailyWellnessLog
	// LastStrength is the date of the most recent strength session before today.
	LastStrength *time.Time
	Phase        Phase
	// RecentRuns are the run sessions of the trailing 14 days.
	RecentRuns []Activity
	// FirstRun is the date of the earliest known run before today. Nil falls back to the earliest of
	// RecentRuns.
	FirstRun *time.Time
	Settings RuleSettings
}

// ValidateDailyPlan runs every rule against today's session and returns all warnings.
// Rules never short-circuit each other, and missing optional data makes a rule not applicable.
func ValidateDailyPlan(c DailyContext) []CoachWarning {
	if !c.Settings.Enabled || c.Today == nil {
		return nil
	}

	var warnings []CoachWarning
	for _, rule := range []func(DailyContext) *CoachWarning{
		checkConsecutiveRuns,
		checkStrengthSpacing,
		checkPostStrength,
		checkSevereAllergy,
		checkMechanicalLoad,
	} {
		if w := rule(c); w != nil {
			warnings = append(warnings, *w)
		}
	}
	return warnings
}

func checkConsecutiveRuns(c DailyContext) *CoachWarning {
	if c.Today.Discipline != DisciplineRun || !containsDiscipline(c.Yesterday, DisciplineRun) {
		return nil
	}
	if c.Settings.AllowConsecutiveRuns {
		return nil
	}
	if c.Settings.CommuteExempt && c.Today.IsCommute {
		return nil
	}
	return &CoachWarning{
		Type:      WarningRuleViolation,
		Title:     "Back-to-back runs",
		Message:   "You ran yesterday. Swap today's run for a bike or swim session to spare your joints.",
		IsBlocker: true,
	}
}

func checkStrengthSpacing(c DailyContext) *CoachWarning {
	if c.Today.Discipline != DisciplineStrength || c.LastStrength == nil {
		return nil
	}
	since := normalizeDate(c.Today.Date).Sub(normalizeDate(*c.LastStrength))
	spacing := c.Settings.strengthSpacing()
	if since >= spacing {
		return nil
	}
	return &CoachWarning{
		Type:  WarningRuleViolation,
		Title: "Strength sessions too close",
		Message: fmt.Sprintf("Only %dh since your last strength session, %dh are required.",
			int(since.Hours()), int(spacing.Hours())),
		IsBlocker: true,
	}
}

func checkPostStrength(c DailyContext) *CoachWarning {
	if !containsDiscipline(c.Yesterday, DisciplineStrength) || c.Today.Discipline == recoveryDisciplineAfterGym {
		return nil
	}
	if InferZone(*c.Today) <= easyZone {
		return nil
	}
	return &CoachWarning{
		Type:      WarningRecoveryAdvice,
		Title:     "Easy day after strength",
		Message:   "Yesterday was a strength day. Keep today in zone 1 or swim instead.",
		IsBlocker: false,
	}
}

func checkSevereAllergy(c DailyContext) *CoachWarning {
	if c.Wellness == nil || c.Wellness.Allergy != AllergySevere {
		return nil
	}
	if c.Today.Discipline != DisciplineStrength && InferZone(*c.Today) <= easyZone {
		return nil
	}
	return &CoachWarning{
		Type:      WarningInjuryRisk,
		Title:     "Severe allergy day",
		Message:   "Severe allergy symptoms reported. Only easy zone 1 work today, no strength.",
		IsBlocker: true,
	}
}

func checkMechanicalLoad(c DailyContext) *CoachWarning {
	if !c.Settings.MechanicalLoadMonitoring {
		return nil
	}
	today := normalizeDate(c.Today.Date)
	var (
		recent, prior           float64
		hasRecent, hasPrior     bool
		recentStart, windowFrom = today.AddDate(0, 0, -mechanicalLoadHalfDays), today.AddDate(0, 0, -mechanicalLoadWindowDays)
	)
	for _, run := range c.RecentRuns {
		if run.Discipline != DisciplineRun {
			continue
		}
		d := normalizeDate(run.Date)
		if d.Before(windowFrom) || !d.Before(today) {
			continue
		}
		if d.Before(recentStart) {
			prior += StructuralStressScore(run)
			hasPrior = true
		} else {
			recent += StructuralStressScore(run)
			hasRecent = true
		}
	}
	// A trend needs two full weeks of running history and run data in both halves of the window.
	first := c.FirstRun
	if first == nil {
		first = earliestRun(c.RecentRuns)
	}
	if first == nil || normalizeDate(*first).After(windowFrom) {
		return nil
	}
	if !hasRecent || !hasPrior || prior <= 0 {
		return nil
	}
	increase := (recent - prior) / prior
	if increase <= mechanicalLoadMaxIncrease {
		return nil
	}
	percent := increase * 100 //nolint:mnd // percent
	return &CoachWarning{
		Type:  WarningInjuryRisk,
		Title: "Running load climbing fast",
		Message: fmt.Sprintf("Mechanical running load is up %.0f%% on the previous week. Consider an easier run.",
			percent),
		IsBlocker: false,
	}
}

func earliestRun(activities []Activity) *time.Time {
	var first *time.Time
	for _, a := range activities {
		if a.Discipline != DisciplineRun {
			continue
		}
		if d := normalizeDate(a.Date); first == nil || d.Before(*first) {
			first = &d
		}
	}
	return first
}

// StructuralStressScore is the mechanical load proxy of a run: distance weighted by intensity.
// Runs without distance contribute nothing.
func StructuralStressScore(a Activity) float64 {
	if a.DistanceKm == nil {
		return 0
	}
	return *a.DistanceKm * (1 + InferZone(a)*mechanicalLoadZoneFactor)
}

// InferZone estimates the average intensity zone (1-5) of a session from heart rate zone time,
// then power zone time, then TSS bands.
func InferZone(a Activity) float64 {
	if z, ok := weightedZone(a.HRZoneMinutes); ok {
		return z
	}
	if z, ok := weightedZone(a.PowerZoneMinutes); ok {
		return z
	}
	band := int(math.Floor(a.TSS/fallbackZoneBandTSS)) + 1
	return float64(clampInt(band, 1, fallbackZoneMax))
}

func weightedZone(z ZoneMinutes) (float64, bool) {
	total := z.Total()
	if total <= 0 {
		return 0, false
	}
	var weighted float64
	for i, minutes := range z {
		weighted += float64(i+1) * minutes
	}
	return weighted / total, true
}

func containsDiscipline(activities []Activity, d Discipline) bool {
	for _, a := range activities {
		if a.Discipline == d {
			return true
		}
	}
	return false
}
