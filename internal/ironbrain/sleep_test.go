package ironbrain_test

import (
	"testing"

	"github.com/myrjola/ironbrain/internal/ironbrain"
)

func TestScoreSleep(t *testing.T) {
	tests := []struct {
		name     string
		in       ironbrain.SleepInput
		min, max int
	}{
		{
			name: "great night",
			in:   ironbrain.SleepInput{DurationMin: 510, DeepMin: 90, RemMin: 100, LightMin: 320, AwakeMin: 5, TimeInBedMin: 520},
			min:  88,
			max:  99,
		},
		{
			name: "great night without light stage",
			in:   ironbrain.SleepInput{DurationMin: 510, DeepMin: 90, RemMin: 100, AwakeMin: 5, TimeInBedMin: 520},
			min:  88,
			max:  99,
		},
		{
			name: "unbroken night on every target",
			in:   ironbrain.SleepInput{DurationMin: 500, DeepMin: 90, RemMin: 110, LightMin: 300, TimeInBedMin: 510},
			min:  100,
			max:  100,
		},
		{
			name: "short restless night",
			in:   ironbrain.SleepInput{DurationMin: 300, DeepMin: 20, RemMin: 30, LightMin: 250, AwakeMin: 60, TimeInBedMin: 400},
			min:  1,
			max:  35,
		},
		{
			name: "no stage data redistributes points",
			in:   ironbrain.SleepInput{DurationMin: 480, TimeInBedMin: 490},
			min:  100,
			max:  100,
		},
		{
			name: "no stage data with brief waking",
			in:   ironbrain.SleepInput{DurationMin: 480, AwakeMin: 10, TimeInBedMin: 495},
			min:  98,
			max:  98,
		},
		{
			name: "nothing recorded",
			in:   ironbrain.SleepInput{},
			min:  1,
			max:  1,
		},
		{
			name: "vendor score wins",
			in:   ironbrain.SleepInput{DurationMin: 200, VendorNote: "Sleep Score: 77 (fair)"},
			min:  77,
			max:  77,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ironbrain.ScoreSleep(tt.in)
			if got < tt.min || got > tt.max {
				t.Errorf("ScoreSleep() = %d, want within [%d, %d]", got, tt.min, tt.max)
			}
		})
	}
}

func TestParseVendorScore(t *testing.T) {
	tests := []struct {
		note   string
		want   int
		wantOK bool
	}{
		{"Score: 84", 84, true},
		{"score=91 restorative", 91, true},
		{"Tracker said 72/100 last night", 72, true},
		{"88", 88, true},
		{" 100 ", 100, true},
		{"0", 0, false},
		{"250", 0, false},
		{"slept at 11pm, woke at 7", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.note, func(t *testing.T) {
			got, ok := ironbrain.ParseVendorScore(tt.note)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseVendorScore(%q) = (%d, %t), want (%d, %t)", tt.note, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
