package ironbrain

import (
	"math"
	"sort"
	"time"
)

// Load model time constants in days.
const (
	CTLTimeConstantDays = 42
	ATLTimeConstantDays = 7
)

// Duration based TSS estimates per hour, used when no sensor data is available.
const (
	estimatedTSSPerHourSwim     = 55.0
	estimatedTSSPerHourBike     = 50.0
	estimatedTSSPerHourRun      = 60.0
	estimatedTSSPerHourStrength = 40.0
	estimatedTSSPerHourOther    = 35.0
)

//nolint:gochecknoglobals // derived constants
var (
	ctlDecay = 1 - math.Exp(-1.0/CTLTimeConstantDays)
	atlDecay = 1 - math.Exp(-1.0/ATLTimeConstantDays)
)

// DailyTSS sums the computed TSS of all logs per calendar date.
func DailyTSS(logs []WorkoutLog) map[time.Time]float64 {
	daily := make(map[time.Time]float64, len(logs))
	for _, l := range logs {
		daily[normalizeDate(l.Date)] += l.ComputedTSS
	}
	return daily
}

// MetricsAt returns fitness, fatigue and form on the target date.
//
// The recurrence starts at the earliest log with CTL = ATL = 0. Logs after the target are ignored.
// Calling this for every day of a chart is O(n) per call; use MetricsSeries for ranges.
func MetricsAt(logs []WorkoutLog, target time.Time) PerformanceMetrics {
	target = normalizeDate(target)
	if len(logs) == 0 {
		return PerformanceMetrics{Date: target, CTL: 0, ATL: 0, TSB: 0}
	}
	series := MetricsSeries(logs, earliestDate(logs), target)
	if len(series) == 0 {
		return PerformanceMetrics{Date: target, CTL: 0, ATL: 0, TSB: 0}
	}
	return series[len(series)-1]
}

// MetricsSeries computes one PerformanceMetrics per day from start to end inclusive in a single
// forward pass. Days before start still contribute to the seed values.
func MetricsSeries(logs []WorkoutLog, start, end time.Time) []PerformanceMetrics {
	start, end = normalizeDate(start), normalizeDate(end)
	if end.Before(start) {
		return nil
	}

	daily := DailyTSS(logs)
	first := start
	if len(logs) > 0 {
		if e := earliestDate(logs); e.Before(first) {
			first = e
		}
	}

	series := make([]PerformanceMetrics, 0, daysBetween(start, end)+1)
	var ctl, atl float64
	for d := first; !d.After(end); d = d.AddDate(0, 0, 1) {
		tss := daily[d]
		ctl += (tss - ctl) * ctlDecay
		atl += (tss - atl) * atlDecay
		if d.Before(start) {
			continue
		}
		series = append(series, PerformanceMetrics{
			Date: d,
			CTL:  ctl,
			ATL:  atl,
			TSB:  ctl - atl,
		})
	}
	return series
}

// SortLogs returns a copy of logs ordered by date.
func SortLogs(logs []WorkoutLog) []WorkoutLog {
	sorted := make([]WorkoutLog, len(logs))
	copy(sorted, logs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

func earliestDate(logs []WorkoutLog) time.Time {
	earliest := normalizeDate(logs[0].Date)
	for _, l := range logs[1:] {
		if d := normalizeDate(l.Date); d.Before(earliest) {
			earliest = d
		}
	}
	return earliest
}

// ComputeTSS estimates the training stress of a completed session.
//
// Preference order: power against FTP, pace against threshold pace for runs, heart rate against LTHR,
// then a duration estimate for the discipline.
func ComputeTSS(l WorkoutLog, p UserProfile) float64 {
	hours := float64(l.DurationMin) / 60 //nolint:mnd // minutes per hour
	if hours <= 0 {
		return 0
	}

	if l.AvgPowerW != nil && *l.AvgPowerW > 0 && p.FTPWatts > 0 {
		intensity := float64(*l.AvgPowerW) / float64(p.FTPWatts)
		return round1(hours * intensity * intensity * 100) //nolint:mnd // TSS scale
	}

	if l.Discipline == DisciplineRun && l.DistanceKm != nil && *l.DistanceKm > 0 && p.ThresholdPaceSecPerKm > 0 {
		paceSecPerKm := float64(l.DurationMin) * 60 / *l.DistanceKm //nolint:mnd // seconds per minute
		intensity := float64(p.ThresholdPaceSecPerKm) / paceSecPerKm
		return round1(hours * intensity * intensity * 100) //nolint:mnd // TSS scale
	}

	if l.AvgHR != nil && *l.AvgHR > 0 && p.LTHR > 0 {
		intensity := float64(*l.AvgHR) / float64(p.LTHR)
		return round1(hours * intensity * intensity * 100) //nolint:mnd // TSS scale
	}

	return round1(hours * estimatedTSSPerHour(l.Discipline))
}

func estimatedTSSPerHour(d Discipline) float64 {
	switch d {
	case DisciplineSwim:
		return estimatedTSSPerHourSwim
	case DisciplineBike:
		return estimatedTSSPerHourBike
	case DisciplineRun:
		return estimatedTSSPerHourRun
	case DisciplineStrength:
		return estimatedTSSPerHourStrength
	case DisciplineNone, DisciplineOther:
		return estimatedTSSPerHourOther
	default:
		return estimatedTSSPerHourOther
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10 //nolint:mnd // one decimal
}
