// Package athlete reads the athlete configuration file: thresholds, goal, weekly structure,
// rule settings and recovery tasks.
//
// Example:
//
//	ftp_watts: 250
//	max_hr: 188
//	lthr: 168
//	threshold_pace: "4:45"
//	weight_kg: 72
//	goal_date: 2025-06-01
//	ramp_rate: 0.05
//	strength_days: 2
//	balance: {swim: 20, bike: 50, run: 30}
//	week:
//	  monday: {minutes: 60, anchor: strength}
//	  tuesday: {minutes: 90, commute: true}
//	  saturday: {minutes: 180, anchor: bike}
//	rules:
//	  strength_spacing_hours: 72
//	recovery_tasks:
//	  - {id: mobility, title: Mobility routine, trigger: daily}
//	  - {id: foam-roll, title: Foam roll calves, trigger: discipline, discipline: run}
package athlete

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/myrjola/ironbrain/internal/ironbrain"
)

const defaultRampRate = 0.05

// ErrInvalid is wrapped by every validation error of an athlete file.
var ErrInvalid = errors.New("invalid athlete file")

// Config is a parsed athlete file.
type Config struct {
	Profile  ironbrain.UserProfile
	Settings ironbrain.RuleSettings
	Tasks    []ironbrain.RecoveryTask
}

type fileDay struct {
	Minutes int    `yaml:"minutes"`
	Anchor  string `yaml:"anchor"`
	Commute bool   `yaml:"commute"`
}

type fileBalance struct {
	Swim int `yaml:"swim"`
	Bike int `yaml:"bike"`
	Run  int `yaml:"run"`
}

type fileRules struct {
	Enabled                  bool `yaml:"enabled"`
	AllowConsecutiveRuns     bool `yaml:"allow_consecutive_runs"`
	CommuteExempt            bool `yaml:"commute_exempt"`
	StrengthSpacingHours     int  `yaml:"strength_spacing_hours"`
	MechanicalLoadMonitoring bool `yaml:"mechanical_load_monitoring"`
}

type fileTask struct {
	ID         string  `yaml:"id"`
	Title      string  `yaml:"title"`
	Trigger    string  `yaml:"trigger"`
	Threshold  float64 `yaml:"threshold"`
	Discipline string  `yaml:"discipline"`
}

type file struct {
	FTPWatts      int                `yaml:"ftp_watts"`
	MaxHR         int                `yaml:"max_hr"`
	LTHR          int                `yaml:"lthr"`
	ThresholdPace string             `yaml:"threshold_pace"`
	WeightKg      float64            `yaml:"weight_kg"`
	GoalDate      string             `yaml:"goal_date"`
	RampRate      float64            `yaml:"ramp_rate"`
	StrengthDays  int                `yaml:"strength_days"`
	Balance       fileBalance        `yaml:"balance"`
	Week          map[string]fileDay `yaml:"week"`
	Rules         fileRules          `yaml:"rules"`
	RecoveryTasks []fileTask         `yaml:"recovery_tasks"`
}

// Load reads and validates the athlete file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read athlete file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates an athlete file. Unknown keys are rejected and missing rule
// settings keep their defaults.
func Parse(data []byte) (Config, error) {
	defaults := ironbrain.DefaultRuleSettings()
	f := file{ //nolint:exhaustruct // filled by the decoder.
		RampRate: defaultRampRate,
		Rules: fileRules{
			Enabled:                  defaults.Enabled,
			AllowConsecutiveRuns:     defaults.AllowConsecutiveRuns,
			CommuteExempt:            defaults.CommuteExempt,
			StrengthSpacingHours:     defaults.StrengthSpacingHours,
			MechanicalLoadMonitoring: defaults.MechanicalLoadMonitoring,
		},
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return f.config()
}

func (f file) config() (Config, error) {
	p := ironbrain.UserProfile{
		FTPWatts:              f.FTPWatts,
		MaxHR:                 f.MaxHR,
		LTHR:                  f.LTHR,
		ThresholdPaceSecPerKm: 0,
		WeightKg:              f.WeightKg,
		GoalDate:              nil,
		Availability:          ironbrain.Weekly[int]{},
		Anchors:               ironbrain.Weekly[ironbrain.Discipline]{},
		CommuteDays:           ironbrain.Weekly[bool]{},
		Balance:               ironbrain.TrainingBalance{Swim: f.Balance.Swim, Bike: f.Balance.Bike, Run: f.Balance.Run},
		StrengthDays:          f.StrengthDays,
		RampRate:              f.RampRate,
	}

	var err error
	if p.ThresholdPaceSecPerKm, err = parsePace(f.ThresholdPace); err != nil {
		return Config{}, err
	}
	if f.GoalDate != "" {
		goal, parseErr := time.ParseInLocation(time.DateOnly, f.GoalDate, time.UTC)
		if parseErr != nil {
			return Config{}, fmt.Errorf("%w: goal_date %q is not YYYY-MM-DD", ErrInvalid, f.GoalDate)
		}
		p.GoalDate = &goal
	}
	if !p.Balance.Valid() {
		return Config{}, fmt.Errorf("%w: balance %d/%d/%d must sum to 100",
			ErrInvalid, p.Balance.Swim, p.Balance.Bike, p.Balance.Run)
	}
	if p.RampRate < ironbrain.MinRampRate || p.RampRate > ironbrain.MaxRampRate {
		return Config{}, fmt.Errorf("%w: ramp_rate %.3f outside %.2f-%.2f",
			ErrInvalid, p.RampRate, ironbrain.MinRampRate, ironbrain.MaxRampRate)
	}
	if p.StrengthDays < 0 || p.StrengthDays > 7 {
		return Config{}, fmt.Errorf("%w: strength_days %d outside 0-7", ErrInvalid, p.StrengthDays)
	}

	for name, day := range f.Week {
		weekday, ok := parseWeekday(name)
		if !ok {
			return Config{}, fmt.Errorf("%w: unknown weekday %q", ErrInvalid, name)
		}
		if day.Minutes < 0 {
			return Config{}, fmt.Errorf("%w: %s has negative minutes", ErrInvalid, name)
		}
		anchor, ok := ironbrain.ParseDiscipline(strings.ToUpper(day.Anchor))
		if !ok {
			return Config{}, fmt.Errorf("%w: %s has unknown anchor %q", ErrInvalid, name, day.Anchor)
		}
		p.Availability[weekday] = day.Minutes
		p.Anchors[weekday] = anchor
		p.CommuteDays[weekday] = day.Commute
	}

	settings := ironbrain.RuleSettings{
		Enabled:                  f.Rules.Enabled,
		AllowConsecutiveRuns:     f.Rules.AllowConsecutiveRuns,
		CommuteExempt:            f.Rules.CommuteExempt,
		StrengthSpacingHours:     f.Rules.StrengthSpacingHours,
		MechanicalLoadMonitoring: f.Rules.MechanicalLoadMonitoring,
	}
	if !ironbrain.ValidStrengthSpacing(settings.StrengthSpacingHours) {
		return Config{}, fmt.Errorf("%w: strength_spacing_hours %d must be 24, 48 or 72",
			ErrInvalid, settings.StrengthSpacingHours)
	}

	tasks, err := f.tasks()
	if err != nil {
		return Config{}, err
	}
	return Config{Profile: p, Settings: settings, Tasks: tasks}, nil
}

func (f file) tasks() ([]ironbrain.RecoveryTask, error) {
	tasks := make([]ironbrain.RecoveryTask, 0, len(f.RecoveryTasks))
	seen := make(map[string]bool, len(f.RecoveryTasks))
	for i, ft := range f.RecoveryTasks {
		if ft.ID == "" || seen[ft.ID] {
			return nil, fmt.Errorf("%w: recovery task %d needs a unique id", ErrInvalid, i+1)
		}
		seen[ft.ID] = true

		t := ironbrain.RecoveryTask{
			ID:         ft.ID,
			Title:      ft.Title,
			Trigger:    ironbrain.TaskTrigger(strings.ToUpper(ft.Trigger)),
			Threshold:  ft.Threshold,
			Discipline: ironbrain.DisciplineNone,
		}
		if t.Title == "" {
			t.Title = t.ID
		}
		switch t.Trigger {
		case ironbrain.TriggerDaily:
		case ironbrain.TriggerDuration, ironbrain.TriggerTSS:
			if t.Threshold <= 0 {
				return nil, fmt.Errorf("%w: recovery task %s needs a positive threshold", ErrInvalid, t.ID)
			}
		case ironbrain.TriggerDiscipline:
			d, ok := ironbrain.ParseDiscipline(strings.ToUpper(ft.Discipline))
			if !ok || d == ironbrain.DisciplineNone {
				return nil, fmt.Errorf("%w: recovery task %s has unknown discipline %q", ErrInvalid, t.ID, ft.Discipline)
			}
			t.Discipline = d
		default:
			return nil, fmt.Errorf("%w: recovery task %s has unknown trigger %q", ErrInvalid, t.ID, ft.Trigger)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// parsePace parses "m:ss" per kilometre into seconds. Empty means unknown.
func parsePace(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	minutes, seconds, ok := strings.Cut(s, ":")
	m, errM := strconv.Atoi(minutes)
	sec, errS := strconv.Atoi(seconds)
	if !ok || errM != nil || errS != nil || m < 0 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("%w: threshold_pace %q is not m:ss", ErrInvalid, s)
	}
	return m*60 + sec, nil //nolint:mnd // seconds per minute
}

func parseWeekday(name string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(name, d.String()) {
			return d, true
		}
	}
	return time.Sunday, false
}
