package ironbrain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Sleep score component budgets. Without stage data the stage budget is redistributed to duration
// and efficiency.
const (
	sleepDurationPoints         = 40.0
	sleepDurationPointsNoStages = 60.0
	sleepDeepPoints             = 20.0
	sleepRemPoints              = 10.0
	sleepEfficiencyPoints       = 20.0
	sleepEfficiencyNoStages     = 30.0

	sleepIdealMinHours  = 8.0
	sleepIdealMaxHours  = 9.0
	sleepFloorHours     = 4.0
	sleepOversleepSlope = 4.0
	sleepOversleepFloor = 0.5

	deepTargetLow  = 0.15
	deepTargetHigh = 0.20
	remTargetLow   = 0.20
	remTargetHigh  = 0.25

	efficiencyFull  = 0.95
	efficiencyFloor = 0.75

	minSleepScore = 1
	maxSleepScore = 100
)

// SleepInput is one night as reported by a tracker. Stage minutes are zero when unavailable.
type SleepInput struct {
	DurationMin  int
	DeepMin      int
	RemMin       int
	LightMin     int
	AwakeMin     int
	TimeInBedMin int
	// VendorNote is free text that may carry the tracker's own score.
	VendorNote string
}

// ScoreSleep computes a 1-100 sleep quality score. A vendor score found in the note wins.
func ScoreSleep(in SleepInput) int {
	if vendor, ok := ParseVendorScore(in.VendorNote); ok {
		return vendor
	}
	if in.DurationMin <= 0 {
		return minSleepScore
	}

	hasStages := in.DeepMin+in.RemMin+in.LightMin > 0
	durationBudget, efficiencyBudget := sleepDurationPointsNoStages, sleepEfficiencyNoStages
	if hasStages {
		durationBudget, efficiencyBudget = sleepDurationPoints, sleepEfficiencyPoints
	}

	total := durationBudget*durationFraction(in.DurationMin) +
		efficiencyBudget*efficiencyFraction(in) +
		awakePoints(in.AwakeMin)
	if hasStages {
		duration := float64(in.DurationMin)
		total += sleepDeepPoints*targetFraction(float64(in.DeepMin)/duration, deepTargetLow, deepTargetHigh) +
			sleepRemPoints*targetFraction(float64(in.RemMin)/duration, remTargetLow, remTargetHigh)
	}
	return clampInt(int(math.Round(total)), minSleepScore, maxSleepScore)
}

func durationFraction(minutes int) float64 {
	hours := float64(minutes) / 60 //nolint:mnd // minutes per hour
	switch {
	case hours < sleepFloorHours:
		return 0
	case hours < sleepIdealMinHours:
		return (hours - sleepFloorHours) / (sleepIdealMinHours - sleepFloorHours)
	case hours <= sleepIdealMaxHours:
		return 1
	default:
		return math.Max(sleepOversleepFloor, 1-(hours-sleepIdealMaxHours)/sleepOversleepSlope)
	}
}

// targetFraction is 1 inside [low, high] and falls off linearly to 0 at zero share or at twice high.
func targetFraction(share, low, high float64) float64 {
	switch {
	case share >= low && share <= high:
		return 1
	case share < low:
		return math.Max(0, share/low)
	default:
		return math.Max(0, 1-(share-high)/high)
	}
}

func efficiencyFraction(in SleepInput) float64 {
	inBed := in.TimeInBedMin
	if inBed <= 0 {
		inBed = in.DurationMin + in.AwakeMin
	}
	if inBed <= 0 {
		return 0
	}
	efficiency := float64(in.DurationMin) / float64(inBed)
	switch {
	case efficiency >= efficiencyFull:
		return 1
	case efficiency <= efficiencyFloor:
		return 0
	default:
		return (efficiency - efficiencyFloor) / (efficiencyFull - efficiencyFloor)
	}
}

// awakePoints reserves full marks for an unbroken night.
func awakePoints(minutes int) float64 {
	switch {
	case minutes <= 0:
		return 10 //nolint:mnd // full marks
	case minutes <= 10: //nolint:mnd // minutes awake
		return 8 //nolint:mnd // points
	case minutes <= 20: //nolint:mnd // minutes awake
		return 6 //nolint:mnd // points
	case minutes <= 30: //nolint:mnd // minutes awake
		return 4 //nolint:mnd // points
	case minutes <= 45: //nolint:mnd // minutes awake
		return 2 //nolint:mnd // points
	default:
		return 0
	}
}

//nolint:gochecknoglobals // compiled once
var (
	vendorScoreLabeled = regexp.MustCompile(`(?i)score\s*[:=]?\s*(\d{1,3})`)
	vendorScoreRatio   = regexp.MustCompile(`(\d{1,3})\s*/\s*100`)
	vendorScoreBare    = regexp.MustCompile(`^\s*(\d{1,3})\s*$`)
)

// ParseVendorScore extracts a tracker score from free text such as "Score: 84", "84/100" or "84".
func ParseVendorScore(note string) (int, bool) {
	note = strings.TrimSpace(note)
	if note == "" {
		return 0, false
	}
	for _, re := range []*regexp.Regexp{vendorScoreLabeled, vendorScoreRatio, vendorScoreBare} {
		m := re.FindStringSubmatch(note)
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil || v < minSleepScore || v > maxSleepScore {
			continue
		}
		return v, true
	}
	return 0, false
}
