package ironbrain_test

import (
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/myrjola/ironbrain/internal/ironbrain"
	"github.com/myrjola/ironbrain/internal/ptr"
)

func TestClassifyPhase_Boundaries(t *testing.T) {
	today := day(2025, 1, 6)
	tests := []struct {
		name string
		goal *time.Time
		want ironbrain.Phase
	}{
		{"no goal", nil, ironbrain.PhaseOffSeason},
		{"beyond six months", ptr.Ref(today.AddDate(0, 6, 1)), ironbrain.PhaseOffSeason},
		{"exactly six months", ptr.Ref(today.AddDate(0, 6, 0)), ironbrain.PhaseBase},
		{"just over 21 weeks", ptr.Ref(today.AddDate(0, 0, 21*7+1)), ironbrain.PhaseBase},
		{"21 weeks", ptr.Ref(today.AddDate(0, 0, 21*7)), ironbrain.PhaseBuild},
		{"just over 9 weeks", ptr.Ref(today.AddDate(0, 0, 9*7+1)), ironbrain.PhaseBuild},
		{"9 weeks", ptr.Ref(today.AddDate(0, 0, 9*7)), ironbrain.PhasePeak},
		{"just over 3 weeks", ptr.Ref(today.AddDate(0, 0, 3*7+1)), ironbrain.PhasePeak},
		{"3 weeks", ptr.Ref(today.AddDate(0, 0, 3*7)), ironbrain.PhaseTaper},
		{"race day", ptr.Ref(today), ironbrain.PhaseTaper},
		{"race yesterday", ptr.Ref(today.AddDate(0, 0, -1)), ironbrain.PhaseTransition},
		{"4 weeks ago", ptr.Ref(today.AddDate(0, 0, -28)), ironbrain.PhaseTransition},
		{"over 4 weeks ago", ptr.Ref(today.AddDate(0, 0, -29)), ironbrain.PhaseOffSeason},
		{"time of day is ignored", ptr.Ref(today.AddDate(0, 0, 21).Add(23 * time.Hour)), ironbrain.PhaseTaper},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ironbrain.ClassifyPhase(today, tt.goal); got != tt.want {
				t.Errorf("ClassifyPhase() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyPhase_Total(t *testing.T) {
	valid := []ironbrain.Phase{
		ironbrain.PhaseOffSeason,
		ironbrain.PhaseBase,
		ironbrain.PhaseBuild,
		ironbrain.PhasePeak,
		ironbrain.PhaseTaper,
		ironbrain.PhaseTransition,
	}
	rng := rand.New(rand.NewPCG(42, 7))
	epoch := day(2000, 1, 1)
	for range 10_000 {
		today := epoch.AddDate(0, 0, rng.IntN(365*40))
		var goal *time.Time
		if rng.IntN(10) > 0 {
			goal = ptr.Ref(today.AddDate(0, 0, rng.IntN(3*365)-365))
		}
		got := ironbrain.ClassifyPhase(today, goal)
		if !slices.Contains(valid, got) {
			t.Fatalf("ClassifyPhase(%s, %v) = %q, not a known phase", today.Format(time.DateOnly), goal, got)
		}
	}
}
