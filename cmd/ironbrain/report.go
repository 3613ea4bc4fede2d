package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/myrjola/ironbrain/internal/ironbrain"
	"github.com/myrjola/ironbrain/internal/sqlite"
	"github.com/myrjola/ironbrain/internal/training"
)

// report renders command output. Colors are only emitted when w is a terminal.
type report struct {
	w       io.Writer
	heading lipgloss.Style
	dim     lipgloss.Style
	colors  map[ironbrain.ReadinessColor]lipgloss.Style
	blocker lipgloss.Style
}

func newReport(w io.Writer) *report {
	r := lipgloss.NewRenderer(w)
	return &report{
		w:       w,
		heading: r.NewStyle().Bold(true).Underline(true),
		dim:     r.NewStyle().Faint(true),
		colors: map[ironbrain.ReadinessColor]lipgloss.Style{
			ironbrain.ReadinessGreen:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
			ironbrain.ReadinessYellow: r.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
			ironbrain.ReadinessRed:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		},
		blocker: r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
	}
}

func (r *report) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format, args...)
}

func (r *report) title(s string) {
	r.printf("\n%s\n", r.heading.Render(s))
}

func (r *report) table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	r.printf("%s\n", t.String())
}

// weekdays lists weekdays starting on Monday.
//
//nolint:gochecknoglobals // constant lookup.
var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

func (r *report) athlete(a training.Athlete) {
	if a.Profile == nil {
		r.printf("no athlete saved, load one with: ironbrain athlete -file athlete.yaml\n")
		return
	}
	p := a.Profile
	r.title("Athlete")
	goal := "none"
	if p.GoalDate != nil {
		goal = p.GoalDate.Format(time.DateOnly)
	}
	r.printf("FTP %d W, max HR %d, LTHR %d, threshold pace %s/km, weight %.1f kg\n",
		p.FTPWatts, p.MaxHR, p.LTHR, formatPace(p.ThresholdPaceSecPerKm), p.WeightKg)
	r.printf("goal %s, ramp rate %.0f%%, balance swim %d%% bike %d%% run %d%%, %d strength days\n",
		goal, p.RampRate*100, p.Balance.Swim, p.Balance.Bike, p.Balance.Run, p.StrengthDays) //nolint:mnd // percent

	rows := make([][]string, 0, len(weekdays))
	for _, d := range weekdays {
		rows = append(rows, []string{
			d.String(), formatMinutes(p.Availability[d]), string(p.Anchors[d]), yesNo(p.CommuteDays[d]),
		})
	}
	r.table([]string{"Day", "Time", "Anchor", "Commute"}, rows)

	s := a.Settings
	r.title("Rules")
	r.printf("enabled %s, consecutive runs %s, commute exempt %s, strength spacing %dh, mechanical load %s\n",
		yesNo(s.Enabled), yesNo(s.AllowConsecutiveRuns), yesNo(s.CommuteExempt), s.StrengthSpacingHours,
		yesNo(s.MechanicalLoadMonitoring))

	if len(a.Tasks) > 0 {
		r.title("Recovery tasks")
		for _, t := range a.Tasks {
			r.printf("- %s %s\n", t.Title, r.dim.Render("("+taskTrigger(t)+")"))
		}
	}
}

func (r *report) periods(periods []ironbrain.SpecialPeriod) {
	if len(periods) == 0 {
		r.printf("no special periods\n")
		return
	}
	rows := make([][]string, 0, len(periods))
	for _, p := range periods {
		rows = append(rows, []string{
			strconv.FormatInt(p.ID, 10), string(p.Kind), p.Start.Format(time.DateOnly), p.End.Format(time.DateOnly),
		})
	}
	r.table([]string{"ID", "Kind", "Start", "End"}, rows)
}

func (r *report) status(st training.Status) {
	r.title(fmt.Sprintf("%s, %s phase", st.Date.Format("Monday 2006-01-02"), st.Phase))
	r.printf("fitness (CTL) %.1f, fatigue (ATL) %.1f, form (TSB) %.1f\n", st.Metrics.CTL, st.Metrics.ATL, st.Metrics.TSB)

	rd := st.Readiness
	r.printf("readiness %s %s\n", r.colors[rd.Color].Render(fmt.Sprintf("%d %s", rd.Score, rd.Color)),
		r.dim.Render(fmt.Sprintf("(form %.0f, wellness %.0f, sleep %.0f, allergy -%d)",
			rd.Breakdown.TSBScore, rd.Breakdown.SubjectiveScore, rd.Breakdown.SleepScore, rd.AllergyPenalty)))
	if st.Sleep != nil {
		r.printf("sleep %s, score %d\n", formatMinutes(st.Sleep.DurationMin), st.Sleep.Score)
	}

	if len(st.Completed) > 0 {
		r.title("Completed")
		for _, l := range st.Completed {
			r.printf("- %s %s, %.1f TSS\n", l.Discipline, formatMinutes(l.DurationMin), l.ComputedTSS)
		}
	}
	if len(st.Plans) > 0 {
		r.title("Planned")
		r.findings(st.Plans)
	}

	if st.Nutrition != (ironbrain.Macros{}) {
		r.title("Nutrition")
		r.printf("protein %.0f g, fat %.0f g, carbs %.0f g\n",
			st.Nutrition.ProteinG, st.Nutrition.FatG, st.Nutrition.CarbsG)
	}
	if len(st.Tasks) > 0 {
		r.title("Recovery")
		for _, t := range st.Tasks {
			mark := "[ ]"
			if t.Done {
				mark = "[x]"
			}
			r.printf("%s %s\n", mark, t.Task.Title)
		}
	}
}

func (r *report) season(s ironbrain.Success) {
	rows := make([][]string, 0, len(s.Weeks))
	for _, w := range s.Weeks {
		var notes []string
		if w.Recovery {
			notes = append(notes, "recovery")
		}
		if w.Days < 7 { //nolint:mnd // days per week
			notes = append(notes, strconv.Itoa(w.Days)+"d")
		}
		rows = append(rows, []string{
			w.Start.Format(time.DateOnly),
			string(w.Phase),
			strings.Join(notes, " "),
			strconv.FormatFloat(w.Target, 'f', 0, 64),
			strconv.FormatFloat(w.Budgets.Swim, 'f', 0, 64),
			strconv.FormatFloat(w.Budgets.Bike, 'f', 0, 64),
			strconv.FormatFloat(w.Budgets.Run, 'f', 0, 64),
			strconv.Itoa(w.StrengthSessions),
			strconv.FormatFloat(w.RunCap, 'f', 0, 64),
			strconv.Itoa(w.PlannedTSS),
			strconv.Itoa(w.SkippedAnchors),
		})
	}
	r.table([]string{"Week", "Phase", "", "Target", "Swim", "Bike", "Run", "Strength", "Run cap", "Planned", "Skipped"},
		rows)
	r.printf("%d sessions planned over %d weeks\n", len(s.Plans), len(s.Weeks))
}

func (r *report) findings(findings []ironbrain.ScheduleFinding) {
	if len(findings) == 0 {
		r.printf("no planned sessions\n")
		return
	}
	rows := make([][]string, 0, len(findings))
	for _, f := range findings {
		p := f.Plan
		kind := p.SubType
		if p.Discipline == ironbrain.DisciplineStrength {
			kind = string(p.StrengthFocus) + " " + string(p.StrengthIntensity)
		}
		if p.IsCommute {
			kind += " (commute)"
		}
		warnings := make([]string, 0, len(f.Warnings))
		for _, w := range f.Warnings {
			if w.IsBlocker {
				warnings = append(warnings, r.blocker.Render("BLOCKER")+" "+w.Title)
			} else {
				warnings = append(warnings, w.Title)
			}
		}
		rows = append(rows, []string{
			p.Date.Format("Mon 2006-01-02"),
			string(p.Discipline),
			kind,
			formatMinutes(p.DurationMin),
			strconv.Itoa(p.PlannedTSS),
			strings.Join(warnings, "; "),
		})
	}
	r.table([]string{"Date", "Discipline", "Session", "Time", "TSS", "Warnings"}, rows)
}

func taskTrigger(t ironbrain.RecoveryTask) string {
	switch t.Trigger {
	case ironbrain.TriggerDuration:
		return "after " + formatMinutes(int(t.Threshold)) + " of training"
	case ironbrain.TriggerTSS:
		return "after " + strconv.FormatFloat(t.Threshold, 'f', 0, 64) + " TSS"
	case ironbrain.TriggerDiscipline:
		return "after " + strings.ToLower(string(t.Discipline))
	case ironbrain.TriggerDaily:
		return "daily"
	default:
		return string(t.Trigger)
	}
}

func formatPace(secPerKm int) string {
	if secPerKm <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d:%02d", secPerKm/60, secPerKm%60) //nolint:mnd // seconds per minute
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (r *report) query(res *sqlite.QueryResult) {
	r.table(res.Columns, res.Rows)
	suffix := ""
	if res.Truncated {
		suffix = ", truncated"
	}
	r.printf("%s\n", r.dim.Render(fmt.Sprintf("%d rows%s", len(res.Rows), suffix)))
}
