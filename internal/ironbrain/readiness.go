package ironbrain

import "math"

// Readiness weights and defaults.
const (
	readinessWeightTSB        = 0.5
	readinessWeightSubjective = 0.3
	readinessWeightSleep      = 0.2

	neutralScore = 50.0

	tsbFreshAbove    = 5.0
	tsbDepletedBelow = -30.0

	allergyPenaltyModerate = 10
	allergyPenaltySevere   = 30

	greenAbove  = 75
	yellowFrom  = 40
	maxScore    = 100
	wellnessMin = 1
	wellnessMax = 10
)

// ReadinessColor is the traffic-light summary of a readiness score.
type ReadinessColor string

// Readiness color constants.
const (
	ReadinessGreen  ReadinessColor = "GREEN"
	ReadinessYellow ReadinessColor = "YELLOW"
	ReadinessRed    ReadinessColor = "RED"
)

// ReadinessInput is the snapshot a readiness score is computed from. Nil fields are absent.
type ReadinessInput struct {
	TSB        int
	SleepScore *int
	Soreness   *int
	Mood       *int
	Allergy    AllergySeverity
}

// ReadinessBreakdown holds the component scores before weighting.
type ReadinessBreakdown struct {
	TSBScore        float64
	SubjectiveScore float64
	SleepScore      float64
}

// ReadinessStatus is the composite readiness for a day.
type ReadinessStatus struct {
	Score          int
	Color          ReadinessColor
	Breakdown      ReadinessBreakdown
	AllergyPenalty int
}

// ScoreReadiness blends training form, subjective wellness, sleep and allergies into a 0-100 score.
// Missing inputs fall back to a neutral 50.
func ScoreReadiness(in ReadinessInput) ReadinessStatus {
	breakdown := ReadinessBreakdown{
		TSBScore:        tsbScore(float64(in.TSB)),
		SubjectiveScore: subjectiveScore(in.Soreness, in.Mood),
		SleepScore:      sleepComponent(in.SleepScore),
	}
	penalty := allergyPenalty(in.Allergy)

	weighted := breakdown.TSBScore*readinessWeightTSB +
		breakdown.SubjectiveScore*readinessWeightSubjective +
		breakdown.SleepScore*readinessWeightSleep
	score := clampInt(int(math.Round(weighted))-penalty, 0, maxScore)

	return ReadinessStatus{
		Score:          score,
		Color:          readinessColor(score),
		Breakdown:      breakdown,
		AllergyPenalty: penalty,
	}
}

func tsbScore(tsb float64) float64 {
	switch {
	case tsb > tsbFreshAbove:
		return maxScore
	case tsb < tsbDepletedBelow:
		return 0
	default:
		return (tsb - tsbDepletedBelow) / (tsbFreshAbove - tsbDepletedBelow) * maxScore
	}
}

func subjectiveScore(soreness, mood *int) float64 {
	var (
		sum   float64
		count int
	)
	for _, v := range []*int{soreness, mood} {
		if v == nil {
			continue
		}
		sum += float64(clampInt(*v, wellnessMin, wellnessMax))
		count++
	}
	if count == 0 {
		return neutralScore
	}
	avg := sum / float64(count)
	return (avg - wellnessMin) / (wellnessMax - wellnessMin) * maxScore
}

func sleepComponent(score *int) float64 {
	if score == nil {
		return neutralScore
	}
	return float64(clampInt(*score, 0, maxScore))
}

func allergyPenalty(a AllergySeverity) int {
	switch a {
	case AllergyModerate:
		return allergyPenaltyModerate
	case AllergySevere:
		return allergyPenaltySevere
	case AllergyNone, AllergyMild:
		return 0
	default:
		return 0
	}
}

func readinessColor(score int) ReadinessColor {
	switch {
	case score > greenAbove:
		return ReadinessGreen
	case score >= yellowFrom:
		return ReadinessYellow
	default:
		return ReadinessRed
	}
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
