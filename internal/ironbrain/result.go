package ironbrain

import (
	"fmt"
	"time"
)

// FailureReason names why a season could not be generated.
type FailureReason string

// Failure reasons.
const (
	ReasonMissingProfile      FailureReason = "missing_profile"
	ReasonGoalDateOutOfRange  FailureReason = "goal_date_out_of_range"
	ReasonCTLOutOfRange       FailureReason = "ctl_out_of_range"
	ReasonNoAvailability      FailureReason = "no_availability"
	ReasonRampRateOutOfRange  FailureReason = "ramp_rate_out_of_range"
	ReasonInvalidBalance      FailureReason = "invalid_balance"
	ReasonInvalidStrengthDays FailureReason = "invalid_strength_days"
	ReasonInvalidMonths       FailureReason = "invalid_months"
	ReasonCanceled            FailureReason = "canceled"
)

// GenerationResult is either Success or Failure.
type GenerationResult interface {
	generationResult()
}

// Success carries a generated season. Plans replace any existing plans in the generated range.
type Success struct {
	Plans []TrainingPlan
	Weeks []WeekSummary
}

// Failure explains why nothing was generated. No partial plan accompanies it.
type Failure struct {
	Reason FailureReason
	Detail string
}

func (Success) generationResult() {}
func (Failure) generationResult() {}

// Error makes a Failure usable where callers want an error value.
func (f Failure) Error() string {
	if f.Detail == "" {
		return string(f.Reason)
	}
	return fmt.Sprintf("%s: %s", f.Reason, f.Detail)
}

// DisciplineBudgets holds weekly TSS per endurance discipline.
type DisciplineBudgets struct {
	Swim float64
	Bike float64
	Run  float64
}

// Total returns the sum of the endurance budgets.
func (b DisciplineBudgets) Total() float64 {
	return b.Swim + b.Bike + b.Run
}

// WeekSummary reports how one generated week was budgeted and filled.
type WeekSummary struct {
	Start time.Time
	// Days is the number of days of the week inside the season, fewer than seven for a final week
	// cut short by the season end. Equivalent and Target cover only those days.
	Days  int
	Phase Phase
	// Recovery marks a 3:1 unloading week or a forced recovery week.
	Recovery bool
	// Equivalent is the target the week would have had without the recovery reduction.
	Equivalent float64
	Target     float64
	// StrengthSessions is the number of strength sessions budgeted at 50 TSS each.
	StrengthSessions int
	Budgets          DisciplineBudgets
	// RunCap is the running safety clamp derived from the trailing two weeks.
	RunCap         float64
	PlannedTSS     int
	SkippedAnchors int
}
