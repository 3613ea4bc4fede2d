package ironbrain

import "time"

// Phase is the periodization block an athlete is in.
type Phase string

// Phase constants.
const (
	PhaseOffSeason  Phase = "OFF_SEASON"
	PhaseBase       Phase = "BASE"
	PhaseBuild      Phase = "BUILD"
	PhasePeak       Phase = "PEAK"
	PhaseTaper      Phase = "TAPER"
	PhaseTransition Phase = "TRANSITION"
)

// Phase boundaries.
const (
	offSeasonHorizonMonths = 6
	baseAfterWeeks         = 21.0
	buildAfterWeeks        = 9.0
	peakAfterWeeks         = 3.0
	transitionDays         = 28
)

// ClassifyPhase maps today and an optional goal date to a training phase. It is defined for every input.
//
//	no goal or goal more than 6 months out  -> OffSeason
//	weeks to goal > 21                      -> Base
//	9 < weeks <= 21                         -> Build
//	3 < weeks <= 9                          -> Peak
//	0 <= weeks <= 3                         -> Taper
//	goal passed at most 4 weeks ago         -> Transition
//	goal passed more than 4 weeks ago       -> OffSeason
func ClassifyPhase(today time.Time, goal *time.Time) Phase {
	if goal == nil {
		return PhaseOffSeason
	}
	today = normalizeDate(today)
	goalDate := normalizeDate(*goal)

	if goalDate.After(today.AddDate(0, offSeasonHorizonMonths, 0)) {
		return PhaseOffSeason
	}

	days := daysBetween(today, goalDate)
	if days < 0 {
		if -days <= transitionDays {
			return PhaseTransition
		}
		return PhaseOffSeason
	}

	weeks := float64(days) / 7 //nolint:mnd // days per week
	switch {
	case weeks > baseAfterWeeks:
		return PhaseBase
	case weeks > buildAfterWeeks:
		return PhaseBuild
	case weeks > peakAfterWeeks:
		return PhasePeak
	default:
		return PhaseTaper
	}
}

// loadMultiplier scales the weekly TSS target (7 x CTL) for the phase.
func (p Phase) loadMultiplier() float64 {
	switch p {
	case PhaseBase:
		return 1.0
	case PhaseBuild:
		return 1.05 //nolint:mnd // build overload
	case PhasePeak:
		return 1.0
	case PhaseTaper:
		return 0.55 //nolint:mnd // taper
	case PhaseOffSeason:
		return 0.95 //nolint:mnd // maintenance
	case PhaseTransition:
		return 0.35 //nolint:mnd // active rest
	default:
		return 1.0
	}
}

// ramps reports whether week-over-week ramp growth applies in the phase.
func (p Phase) ramps() bool {
	return p == PhaseBase || p == PhaseBuild
}

// strengthIntensity picks the strength emphasis for the phase.
func (p Phase) strengthIntensity() StrengthIntensity {
	switch p {
	case PhaseBase, PhaseOffSeason:
		return IntensityHypertrophy
	case PhaseBuild:
		return IntensityStrength
	case PhasePeak:
		return IntensityEndurance
	case PhaseTaper, PhaseTransition:
		return IntensityMaintenance
	default:
		return IntensityMaintenance
	}
}
