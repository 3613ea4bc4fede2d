package ironbrain

import (
	"time"
)

// Discipline is the sport of a logged or planned session.
type Discipline string

// Discipline constants.
const (
	DisciplineNone     Discipline = ""
	DisciplineSwim     Discipline = "SWIM"
	DisciplineBike     Discipline = "BIKE"
	DisciplineRun      Discipline = "RUN"
	DisciplineStrength Discipline = "STRENGTH"
	DisciplineOther    Discipline = "OTHER"
)

// ParseDiscipline maps a case-sensitive name to a Discipline. Unknown names report false.
func ParseDiscipline(s string) (Discipline, bool) {
	switch d := Discipline(s); d {
	case DisciplineSwim, DisciplineBike, DisciplineRun, DisciplineStrength, DisciplineOther:
		return d, true
	case DisciplineNone:
		return DisciplineNone, true
	default:
		return DisciplineNone, false
	}
}

// ZoneMinutes holds minutes spent in zones 1-5. Index 0 is zone 1.
type ZoneMinutes [5]float64

// Total returns the minutes across all zones.
func (z ZoneMinutes) Total() float64 {
	var total float64
	for _, m := range z {
		total += m
	}
	return total
}

// WorkoutLog is a completed session. It is immutable once imported.
type WorkoutLog struct {
	ID          string
	Date        time.Time
	Discipline  Discipline
	DurationMin int
	AvgHR       *int
	AvgPowerW   *int
	DistanceKm  *float64
	ComputedTSS float64
	// HRZoneMinutes and PowerZoneMinutes are zero when the device did not report them.
	HRZoneMinutes    ZoneMinutes
	PowerZoneMinutes ZoneMinutes
	IsCommute        bool
}

// Activity converts the log into the shape the rules engine validates.
func (l WorkoutLog) Activity() Activity {
	return Activity{
		Date:             normalizeDate(l.Date),
		Discipline:       l.Discipline,
		DurationMin:      l.DurationMin,
		TSS:              l.ComputedTSS,
		DistanceKm:       l.DistanceKm,
		HRZoneMinutes:    l.HRZoneMinutes,
		PowerZoneMinutes: l.PowerZoneMinutes,
		IsCommute:        l.IsCommute,
	}
}

// StrengthIntensity is the rep-range emphasis of a strength session.
type StrengthIntensity string

// Strength intensity constants.
const (
	IntensityNone        StrengthIntensity = ""
	IntensityStrength    StrengthIntensity = "strength"
	IntensityHypertrophy StrengthIntensity = "hypertrophy"
	IntensityEndurance   StrengthIntensity = "endurance"
	IntensityMaintenance StrengthIntensity = "maintenance"
)

// StrengthFocus is the body region a strength session targets.
type StrengthFocus string

// Strength focus constants.
const (
	FocusNone     StrengthFocus = ""
	FocusFullBody StrengthFocus = "full_body"
	FocusUpper    StrengthFocus = "upper"
	FocusLower    StrengthFocus = "lower"
)

// TrainingPlan is one planned session for a date.
type TrainingPlan struct {
	ID                string
	Date              time.Time
	Discipline        Discipline
	SubType           string
	DurationMin       int
	PlannedTSS        int
	StrengthFocus     StrengthFocus
	StrengthIntensity StrengthIntensity
	IsCommute         bool
}

// Activity converts the planned session into the shape the rules engine validates.
func (p TrainingPlan) Activity() Activity {
	return Activity{
		Date:             normalizeDate(p.Date),
		Discipline:       p.Discipline,
		DurationMin:      p.DurationMin,
		TSS:              float64(p.PlannedTSS),
		DistanceKm:       nil,
		HRZoneMinutes:    ZoneMinutes{},
		PowerZoneMinutes: ZoneMinutes{},
		IsCommute:        p.IsCommute,
	}
}

// Activity is the common view over completed logs and pending plans. Validation only
// ever looks at this type so live workouts and generator candidates share one rule set.
type Activity struct {
	Date             time.Time
	Discipline       Discipline
	DurationMin      int
	TSS              float64
	DistanceKm       *float64
	HRZoneMinutes    ZoneMinutes
	PowerZoneMinutes ZoneMinutes
	IsCommute        bool
}

// Weekly is a value per weekday, indexed by time.Weekday (Sunday = 0).
type Weekly[T any] [7]T

// On returns the value for the weekday of t.
func (w Weekly[T]) On(t time.Time) T {
	return w[t.Weekday()]
}

// TrainingBalance splits endurance load between disciplines. Percentages sum to 100.
type TrainingBalance struct {
	Swim int
	Bike int
	Run  int
}

// Valid reports whether every share is non-negative and the shares sum to exactly 100.
func (b TrainingBalance) Valid() bool {
	return b.Swim >= 0 && b.Bike >= 0 && b.Run >= 0 && b.Swim+b.Bike+b.Run == 100 //nolint:mnd // percent
}

// UserProfile holds athlete thresholds, goal and weekly structure.
type UserProfile struct {
	FTPWatts              int
	MaxHR                 int
	LTHR                  int
	ThresholdPaceSecPerKm int
	WeightKg              float64
	GoalDate              *time.Time
	// Availability is the training time per weekday in minutes. Zero means unavailable.
	Availability Weekly[int]
	// Anchors pins a discipline to a weekday. DisciplineNone means no anchor.
	Anchors      Weekly[Discipline]
	CommuteDays  Weekly[bool]
	Balance      TrainingBalance
	StrengthDays int
	// RampRate is the week-over-week load growth during Base and Build, e.g. 0.05.
	RampRate float64
}

// HasAvailability reports whether at least one weekday has training time.
func (p UserProfile) HasAvailability() bool {
	for _, minutes := range p.Availability {
		if minutes > 0 {
			return true
		}
	}
	return false
}

// AllergySeverity is the self-reported allergy level for a day.
type AllergySeverity string

// Allergy severity constants.
const (
	AllergyNone     AllergySeverity = "NONE"
	AllergyMild     AllergySeverity = "MILD"
	AllergyModerate AllergySeverity = "MODERATE"
	AllergySevere   AllergySeverity = "SEVERE"
)

// DailyWellnessLog is the subjective state reported for a date.
type DailyWellnessLog struct {
	Date             time.Time
	Soreness         *int
	Mood             *int
	Allergy          AllergySeverity
	MorningWeightKg  *float64
	CompletedTaskIDs []string
}

// PeriodKind classifies a special period.
type PeriodKind string

// Period kind constants.
const (
	PeriodInjury       PeriodKind = "INJURY"
	PeriodHoliday      PeriodKind = "HOLIDAY"
	PeriodRecoveryWeek PeriodKind = "RECOVERY_WEEK"
)

// SpecialPeriod is an interval that changes what the planner may schedule.
type SpecialPeriod struct {
	ID    int64
	Kind  PeriodKind
	Start time.Time
	End   time.Time
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the calendar date of t lies within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := normalizeDate(t)
	return !d.Before(normalizeDate(r.Start)) && !d.After(normalizeDate(r.End))
}

// SleepLog is one night of sleep.
type SleepLog struct {
	Date         time.Time
	DurationMin  int
	DeepMin      int
	RemMin       int
	LightMin     int
	AwakeMin     int
	TimeInBedMin int
	VendorNote   string
	Score        int
}

// PerformanceMetrics is the load model state for one date.
type PerformanceMetrics struct {
	Date time.Time
	CTL  float64
	ATL  float64
	TSB  float64
}

// WarningType classifies a coach warning.
type WarningType string

// Warning type constants.
const (
	WarningRuleViolation  WarningType = "RULE_VIOLATION"
	WarningRecoveryAdvice WarningType = "RECOVERY_ADVICE"
	WarningInjuryRisk     WarningType = "INJURY_RISK"
)

// CoachWarning is a rule outcome. Blockers must not be scheduled, advisories may.
type CoachWarning struct {
	Type      WarningType
	Title     string
	Message   string
	IsBlocker bool
}

// HasBlocker reports whether any warning is a blocker.
func HasBlocker(warnings []CoachWarning) bool {
	for _, w := range warnings {
		if w.IsBlocker {
			return true
		}
	}
	return false
}

// normalizeDate normalizes a date to midnight UTC.
func normalizeDate(t time.Time) time.Time {
	return time.Date(
		t.Year(), t.Month(), t.Day(),
		0, 0, 0, 0, time.UTC,
	)
}

// daysBetween returns the number of calendar days from a to b.
func daysBetween(a, b time.Time) int {
	return int(normalizeDate(b).Sub(normalizeDate(a)).Hours() / 24) //nolint:mnd // hours per day
}
