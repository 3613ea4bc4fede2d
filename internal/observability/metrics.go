package observability

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/myrjola/ironbrain/internal/ironbrain"
)

const namespace = "ironbrain"

// Registry holds every ironbrain collector. It is dumped by the CLI after each command.
//
//nolint:gochecknoglobals // collectors are process wide like prometheus.DefaultRegisterer.
var Registry = prometheus.NewRegistry()

//nolint:gochecknoglobals // registered once in init.
var (
	seasonsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "generator",
		Name:      "seasons_total",
		Help:      "Number of season generation attempts, labeled by outcome.",
	}, []string{"outcome"})

	generationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "generator",
		Name:      "duration_seconds",
		Help:      "Time spent generating a season.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), //nolint:mnd // 1ms to 2s
	})

	weeklyPlannedTSS = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "generator",
		Name:      "week_planned_tss",
		Help:      "Planned TSS per generated week.",
		Buckets:   prometheus.LinearBuckets(0, 100, 12), //nolint:mnd // 0 to 1100 TSS
	})

	skippedAnchorsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "generator",
		Name:      "skipped_anchors_total",
		Help:      "Anchored sessions dropped because a rule blocked them.",
	})

	workoutsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "logs",
		Name:      "workouts_recorded_total",
		Help:      "Completed workouts recorded, labeled by discipline.",
	}, []string{"discipline"})

	warningsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rules",
		Name:      "warnings_total",
		Help:      "Coach warnings produced by validation, labeled by type and blocker flag.",
	}, []string{"type", "blocker"})

	loadGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "load",
		Name:      "value",
		Help:      "Most recently computed load model values, labeled by metric (ctl, atl, tsb).",
	}, []string{"metric"})

	readinessGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "readiness",
		Name:      "score",
		Help:      "Most recently computed readiness score.",
	})
)

func init() {
	Registry.MustRegister(
		seasonsCounter,
		generationDuration,
		weeklyPlannedTSS,
		skippedAnchorsCounter,
		workoutsCounter,
		warningsCounter,
		loadGauge,
		readinessGauge,
	)
}

// RecordSeason counts a generation attempt and, on success, the shape of its weeks.
func RecordSeason(result ironbrain.GenerationResult, elapsed time.Duration) {
	generationDuration.Observe(elapsed.Seconds())
	switch r := result.(type) {
	case ironbrain.Success:
		seasonsCounter.WithLabelValues("success").Inc()
		for _, w := range r.Weeks {
			weeklyPlannedTSS.Observe(float64(w.PlannedTSS))
			skippedAnchorsCounter.Add(float64(w.SkippedAnchors))
		}
	case ironbrain.Failure:
		seasonsCounter.WithLabelValues(string(r.Reason)).Inc()
	}
}

// RecordWorkout counts a recorded workout.
func RecordWorkout(d ironbrain.Discipline) {
	workoutsCounter.WithLabelValues(string(d)).Inc()
}

// RecordWarnings counts coach warnings by type.
func RecordWarnings(warnings []ironbrain.CoachWarning) {
	for _, w := range warnings {
		warningsCounter.WithLabelValues(string(w.Type), strconv.FormatBool(w.IsBlocker)).Inc()
	}
}

// RecordStatus updates the load and readiness gauges.
func RecordStatus(m ironbrain.PerformanceMetrics, readiness int) {
	loadGauge.WithLabelValues("ctl").Set(m.CTL)
	loadGauge.WithLabelValues("atl").Set(m.ATL)
	loadGauge.WithLabelValues("tsb").Set(m.TSB)
	readinessGauge.Set(float64(readiness))
}

// WriteTextfile writes the registry in the text exposition format, suitable for the node exporter
// textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
