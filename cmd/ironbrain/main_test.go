package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/myrjola/ironbrain/internal/errors"
	"github.com/myrjola/ironbrain/internal/ironbrain"
	"github.com/myrjola/ironbrain/internal/sqlite"
	"github.com/myrjola/ironbrain/internal/testhelpers"
)

const athleteFile = `
ftp_watts: 250
max_hr: 188
lthr: 168
threshold_pace: "4:45"
weight_kg: 72
goal_date: 2025-08-31
ramp_rate: 0.05
strength_days: 1
balance: {swim: 20, bike: 50, run: 30}
week:
  monday: {minutes: 60, anchor: strength}
  tuesday: {minutes: 90, commute: true}
  wednesday: {minutes: 60}
  thursday: {minutes: 90}
  saturday: {minutes: 180, anchor: bike}
  sunday: {minutes: 120}
recovery_tasks:
  - {id: mobility, title: Mobility routine, trigger: daily}
`

type cli struct {
	t   *testing.T
	env map[string]string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	return &cli{
		t: t,
		env: map[string]string{
			"IRONBRAIN_SQLITE_URL":   filepath.Join(dir, "ironbrain.sqlite3"),
			"IRONBRAIN_METRICS_FILE": filepath.Join(dir, "ironbrain.prom"),
		},
	}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var (
		out   bytes.Buffer
		level slog.LevelVar
	)
	lookupEnv := func(key string) (string, bool) {
		v, ok := c.env[key]
		return v, ok
	}
	logger := testhelpers.NewLogger(testhelpers.NewWriter(c.t))
	err := run(c.t.Context(), args, &out, logger, &level, lookupEnv)
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("ironbrain %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func assertContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output is missing %q:\n%s", w, out)
		}
	}
}

func TestSeasonWorkflow(t *testing.T) {
	c := newCLI(t)
	path := filepath.Join(t.TempDir(), "athlete.yaml")
	if err := os.WriteFile(path, []byte(athleteFile), 0o600); err != nil {
		t.Fatalf("write athlete file: %v", err)
	}

	out := c.mustRun("athlete", "-file", path)
	assertContains(t, out, "Athlete", "FTP 250 W", "threshold pace 4:45/km", "Monday", "STRENGTH", "Mobility routine")

	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	for i := range 21 {
		d := start.AddDate(0, 0, i-21)
		discipline := "bike"
		if i%2 == 1 {
			discipline = "run"
		}
		c.mustRun("log", "-date", d.Format(time.DateOnly), "-discipline", discipline, "-duration", "60", "-tss", "60")
	}
	out = c.mustRun("log", "-date", "2025-03-02", "-discipline", "swim", "-duration", "40",
		"-hr", "140", "-hr-zones", "5,25,10,0,0")
	assertContains(t, out, "recorded SWIM on 2025-03-02: 40 min")

	c.mustRun("wellness", "-date", "2025-03-02", "-soreness", "3", "-mood", "7", "-allergy", "mild", "-done", "mobility")
	out = c.mustRun("sleep", "-date", "2025-03-02", "-duration", "450", "-note", "Score: 81")
	assertContains(t, out, "sleep score for 2025-03-02: 81")

	out = c.mustRun("period", "-kind", "holiday", "-start", "2025-03-20", "-end", "2025-03-23")
	assertContains(t, out, "HOLIDAY", "2025-03-20")

	out = c.mustRun("generate", "-start", "2025-03-05", "-months", "1")
	assertContains(t, out, "2025-03-03", "sessions planned over")

	out = c.mustRun("status", "-date", "2025-03-02")
	assertContains(t, out, "Sunday 2025-03-02", "readiness", "sleep 7:30, score 81", "[x] Mobility routine")

	out = c.mustRun("validate", "-from", "2025-03-03", "-to", "2025-03-16")
	assertContains(t, out, "Mon 2025-03-03", "STRENGTH")

	metrics, err := os.ReadFile(c.env["IRONBRAIN_METRICS_FILE"])
	if err != nil {
		t.Fatalf("read metrics file: %v", err)
	}
	assertContains(t, string(metrics), `ironbrain_generator_seasons_total{outcome="success"}`)
}

func TestValidate_Blockers(t *testing.T) {
	c := newCLI(t)
	path := filepath.Join(t.TempDir(), "athlete.yaml")
	if err := os.WriteFile(path, []byte(athleteFile), 0o600); err != nil {
		t.Fatalf("write athlete file: %v", err)
	}
	c.mustRun("athlete", "-file", path)
	for i := range 14 {
		d := time.Date(2025, 2, 17, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		c.mustRun("log", "-date", d.Format(time.DateOnly), "-discipline", "bike", "-duration", "60", "-tss", "60")
	}
	c.mustRun("generate", "-start", "2025-03-03", "-months", "1")

	// The Monday strength anchor is blocked on a severe allergy day.
	c.mustRun("wellness", "-date", "2025-03-03", "-allergy", "severe")
	out, err := c.run("validate", "-from", "2025-03-03", "-to", "2025-03-03")
	if !errors.Is(err, errBlockers) {
		t.Fatalf("validate error = %v, want errBlockers\n%s", err, out)
	}
	assertContains(t, out, "BLOCKER", "Severe allergy day")
}

func TestGenerate_Failure(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("generate", "-start", "2025-03-03")

	var failure ironbrain.Failure
	if !errors.As(err, &failure) || failure.Reason != ironbrain.ReasonMissingProfile {
		t.Errorf("generate error = %v, want a missing profile failure", err)
	}
}

func TestFlightRecorder_SlowCommand(t *testing.T) {
	c := newCLI(t)
	traces := filepath.Join(t.TempDir(), "traces")
	c.env["IRONBRAIN_TRACES_DIR"] = traces
	c.env["IRONBRAIN_SLOW_COMMAND"] = "0s"

	c.mustRun("period")

	entries, err := os.ReadDir(traces)
	if err != nil {
		t.Fatalf("read traces: %v", err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "slow-period-") {
		t.Errorf("expected one slow-period trace, got %v", entries)
	}
}

func TestQuery(t *testing.T) {
	c := newCLI(t)
	c.mustRun("log", "-date", "2025-03-01", "-discipline", "run", "-duration", "45", "-tss", "52")
	c.mustRun("log", "-date", "2025-03-02", "-discipline", "bike", "-duration", "90", "-tss", "80")

	out := c.mustRun("query", "SELECT discipline, SUM(computed_tss) AS total FROM workout_logs GROUP BY discipline ORDER BY 1")
	assertContains(t, out, "discipline", "BIKE", "RUN", "2 rows")

	if _, err := c.run("query", "PRAGMA foreign_keys = OFF"); !errors.Is(err, sqlite.ErrRestrictedQuery) {
		t.Errorf("query PRAGMA error = %v, want ErrRestrictedQuery", err)
	}
	if _, err := c.run("query"); !errors.Is(err, errUsage) {
		t.Errorf("query without SQL error = %v, want errUsage", err)
	}
}

func TestUsage(t *testing.T) {
	c := newCLI(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"coach"}},
		{name: "unknown discipline", args: []string{"log", "-discipline", "rowing", "-duration", "30"}},
		{name: "unknown allergy", args: []string{"wellness", "-allergy", "extreme"}},
		{name: "period without start", args: []string{"period", "-kind", "holiday"}},
		{name: "stray argument", args: []string{"status", "today"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.run(tt.args...); !errors.Is(err, errUsage) {
				t.Errorf("run(%q) error = %v, want errUsage", tt.args, err)
			}
		})
	}

	// -h prints the flags and succeeds.
	out, err := c.run("generate", "-h")
	if err != nil {
		t.Errorf("generate -h error = %v", err)
	}
	assertContains(t, out, "-months")
}

func TestInvoke_Panic(t *testing.T) {
	errNoPlans := errors.NewSentinel("no plans")
	tests := []struct {
		name    string
		cmd     command
		wantMsg string
		wantIs  error
	}{
		{
			name: "error value",
			cmd: func(_ context.Context, _ *environment, _ []string) error {
				panic(errNoPlans)
			},
			wantMsg: "panic: no plans",
			wantIs:  errNoPlans,
		},
		{
			name: "string value",
			cmd: func(_ context.Context, _ *environment, args []string) error {
				panic("bad args " + strings.Join(args, " "))
			},
			wantMsg: "panic: bad args -months 4",
			wantIs:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := invoke(t.Context(), tt.cmd, nil, []string{"-months", "4"})
			if err == nil {
				t.Fatal("invoke() error = nil, want recovered panic")
			}
			if got := err.Error(); got != tt.wantMsg {
				t.Errorf("invoke() error = %q, want %q", got, tt.wantMsg)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("invoke() error does not wrap %v", tt.wantIs)
			}
			if attr := errors.SlogError(err).String(); !strings.Contains(attr, "main_test.go:") {
				t.Errorf("SlogError() = %s, want the panicking line in main_test.go", attr)
			}
		})
	}

	// Commands that return normally are untouched.
	want := errors.NewSentinel("plain")
	err := invoke(t.Context(), func(context.Context, *environment, []string) error { return want }, nil, nil)
	if !errors.Is(err, want) {
		t.Errorf("invoke() error = %v, want %v", err, want)
	}
}
