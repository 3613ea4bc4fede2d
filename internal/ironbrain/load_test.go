package ironbrain_test

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/ironbrain/internal/ironbrain"
	"github.com/myrjola/ironbrain/internal/ptr"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestMetricsAt_NoLogs(t *testing.T) {
	got := ironbrain.MetricsAt(nil, day(2025, 3, 1))
	want := ironbrain.PerformanceMetrics{Date: day(2025, 3, 1), CTL: 0, ATL: 0, TSB: 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MetricsAt() mismatch (-want +got):\n%s", diff)
	}
}

func TestMetricsAt_SingleHardDay(t *testing.T) {
	logs := []ironbrain.WorkoutLog{
		{ID: "a", Date: day(2025, 3, 1), Discipline: ironbrain.DisciplineBike, DurationMin: 120, ComputedTSS: 100},
	}
	m := ironbrain.MetricsAt(logs, day(2025, 3, 1))

	if m.ATL <= m.CTL {
		t.Errorf("expected ATL > CTL after a single hard day, got ATL=%f CTL=%f", m.ATL, m.CTL)
	}
	if m.TSB >= 0 {
		t.Errorf("expected negative TSB, got %f", m.TSB)
	}
	wantCTL := 100 * (1 - math.Exp(-1.0/42))
	if math.Abs(m.CTL-wantCTL) > 1e-9 {
		t.Errorf("CTL = %f, want %f", m.CTL, wantCTL)
	}
}

func TestMetricsAt_IgnoresFutureLogs(t *testing.T) {
	logs := []ironbrain.WorkoutLog{
		{ID: "a", Date: day(2025, 3, 1), ComputedTSS: 80},
		{ID: "b", Date: day(2025, 3, 10), ComputedTSS: 200},
	}
	before := ironbrain.MetricsAt(logs[:1], day(2025, 3, 5))
	got := ironbrain.MetricsAt(logs, day(2025, 3, 5))
	if diff := cmp.Diff(before, got); diff != "" {
		t.Errorf("future log changed metrics (-want +got):\n%s", diff)
	}
}

func TestMetricsSeries_FormIsFitnessMinusFatigue(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	start := day(2024, 1, 1)
	var logs []ironbrain.WorkoutLog
	for i := range 200 {
		if rng.IntN(3) == 0 {
			continue
		}
		logs = append(logs, ironbrain.WorkoutLog{
			ID:          "",
			Date:        start.AddDate(0, 0, i),
			Discipline:  ironbrain.DisciplineRun,
			ComputedTSS: rng.Float64() * 150,
		})
	}

	series := ironbrain.MetricsSeries(logs, start.AddDate(0, 0, 30), start.AddDate(0, 0, 220))
	if len(series) != 191 {
		t.Fatalf("expected 191 days, got %d", len(series))
	}
	for _, m := range series {
		if m.TSB != m.CTL-m.ATL {
			t.Fatalf("%s: TSB %f != CTL %f - ATL %f", m.Date.Format(time.DateOnly), m.TSB, m.CTL, m.ATL)
		}
	}

	// A single forward pass agrees with recomputing each day from scratch.
	for _, i := range []int{0, 57, 190} {
		want := ironbrain.MetricsAt(logs, series[i].Date)
		if math.Abs(want.CTL-series[i].CTL) > 1e-9 || math.Abs(want.ATL-series[i].ATL) > 1e-9 {
			t.Errorf("day %d: series %+v differs from MetricsAt %+v", i, series[i], want)
		}
	}
}

func TestDailyTSS_SumsPerDate(t *testing.T) {
	logs := []ironbrain.WorkoutLog{
		{ID: "a", Date: time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC), ComputedTSS: 40},
		{ID: "b", Date: time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC), ComputedTSS: 25},
		{ID: "c", Date: day(2025, 3, 2), ComputedTSS: 10},
	}
	want := map[time.Time]float64{day(2025, 3, 1): 65, day(2025, 3, 2): 10}
	if diff := cmp.Diff(want, ironbrain.DailyTSS(logs)); diff != "" {
		t.Errorf("DailyTSS() mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeTSS(t *testing.T) {
	profile := ironbrain.UserProfile{
		FTPWatts:              250,
		MaxHR:                 190,
		LTHR:                  170,
		ThresholdPaceSecPerKm: 270,
		WeightKg:              70,
	}
	tests := []struct {
		name string
		log  ironbrain.WorkoutLog
		want float64
	}{
		{
			name: "one hour at FTP",
			log:  ironbrain.WorkoutLog{Discipline: ironbrain.DisciplineBike, DurationMin: 60, AvgPowerW: ptr.Ref(250)},
			want: 100,
		},
		{
			name: "run at threshold pace",
			log: ironbrain.WorkoutLog{
				Discipline:  ironbrain.DisciplineRun,
				DurationMin: 45,
				DistanceKm:  ptr.Ref(10.0),
			},
			want: 75,
		},
		{
			name: "heart rate at LTHR",
			log:  ironbrain.WorkoutLog{Discipline: ironbrain.DisciplineSwim, DurationMin: 30, AvgHR: ptr.Ref(170)},
			want: 50,
		},
		{
			name: "duration only",
			log:  ironbrain.WorkoutLog{Discipline: ironbrain.DisciplineStrength, DurationMin: 90},
			want: 60,
		},
		{
			name: "zero duration",
			log:  ironbrain.WorkoutLog{Discipline: ironbrain.DisciplineBike, AvgPowerW: ptr.Ref(300)},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ironbrain.ComputeTSS(tt.log, profile); got != tt.want {
				t.Errorf("ComputeTSS() = %f, want %f", got, tt.want)
			}
		})
	}
}
