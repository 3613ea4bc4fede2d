package ironbrain

import (
	"math"
	"slices"
)

// Nutrition multipliers in grams per kilogram of body weight.
const (
	proteinPerKg     = 2.0
	fatPerKg         = 1.0
	carbsPerKgEasy   = 3.0
	carbsPerKgMedium = 5.0
	carbsPerKgHard   = 7.0

	carbsEasyBelowTSS = 50.0
	carbsHardAboveTSS = 100.0
)

// Macros are daily nutrition targets in grams.
type Macros struct {
	ProteinG int
	FatG     int
	CarbsG   int
}

// NutritionTargets returns macros for a body weight and the day's total TSS. Protein and fat are
// load independent, carbohydrates scale in three steps.
func NutritionTargets(weightKg, tss float64) Macros {
	if weightKg <= 0 {
		return Macros{ProteinG: 0, FatG: 0, CarbsG: 0}
	}
	carbsPerKg := carbsPerKgMedium
	switch {
	case tss < carbsEasyBelowTSS:
		carbsPerKg = carbsPerKgEasy
	case tss > carbsHardAboveTSS:
		carbsPerKg = carbsPerKgHard
	}
	return Macros{
		ProteinG: int(math.Round(weightKg * proteinPerKg)),
		FatG:     int(math.Round(weightKg * fatPerKg)),
		CarbsG:   int(math.Round(weightKg * carbsPerKg)),
	}
}

// TaskTrigger decides when a recovery task becomes relevant.
type TaskTrigger string

// Task trigger constants.
const (
	TriggerDaily      TaskTrigger = "DAILY"
	TriggerDuration   TaskTrigger = "DURATION"
	TriggerTSS        TaskTrigger = "TSS"
	TriggerDiscipline TaskTrigger = "DISCIPLINE"
)

// RecoveryTask is a configurable recovery habit such as stretching or foam rolling.
type RecoveryTask struct {
	ID      string
	Title   string
	Trigger TaskTrigger
	// Threshold is minutes for DURATION and TSS points for TSS triggers.
	Threshold  float64
	Discipline Discipline
}

// DayAggregate summarizes the sessions of one day.
type DayAggregate struct {
	DurationMin int
	TSS         float64
	Disciplines []Discipline
}

// AggregateDay sums the activities of a day.
func AggregateDay(activities []Activity) DayAggregate {
	var agg DayAggregate
	for _, a := range activities {
		agg.DurationMin += a.DurationMin
		agg.TSS += a.TSS
		if !slices.Contains(agg.Disciplines, a.Discipline) {
			agg.Disciplines = append(agg.Disciplines, a.Discipline)
		}
	}
	return agg
}

// RelevantTasks returns the tasks active for the day in configuration order, without duplicates.
func RelevantTasks(tasks []RecoveryTask, day DayAggregate) []RecoveryTask {
	var (
		relevant []RecoveryTask
		seen     = make(map[string]bool, len(tasks))
	)
	for _, t := range tasks {
		if seen[t.ID] || !t.active(day) {
			continue
		}
		seen[t.ID] = true
		relevant = append(relevant, t)
	}
	return relevant
}

func (t RecoveryTask) active(day DayAggregate) bool {
	switch t.Trigger {
	case TriggerDaily:
		return true
	case TriggerDuration:
		return float64(day.DurationMin) >= t.Threshold
	case TriggerTSS:
		return day.TSS >= t.Threshold
	case TriggerDiscipline:
		return slices.Contains(day.Disciplines, t.Discipline)
	default:
		return false
	}
}
