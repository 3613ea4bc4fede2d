package envstruct_test

import (
	"errors"
	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/ironbrain/internal/envstruct"
	"strings"
	"testing"
	"time"
)

func TestPopulate(t *testing.T) {
	tests := []struct {
		name      string
		v         any
		lookupEnv func(string) (string, bool)
		want      any
		wantErr   error
	}{
		{
			name:      "nil",
			v:         nil,
			lookupEnv: func(_ string) (string, bool) { return "", false },
			want:      nil,
			wantErr:   envstruct.ErrInvalidValue,
		},
		{
			name:      "not pointer",
			v:         struct{}{},
			lookupEnv: func(_ string) (string, bool) { return "", false },
			want:      nil,
			wantErr:   envstruct.ErrInvalidValue,
		},
		{
			name:      "empty struct",
			v:         &struct{}{},
			lookupEnv: func(_ string) (string, bool) { return "", false },
			want:      &struct{}{},
			wantErr:   nil,
		},
		{
			name: "empty env",
			v: &struct { //nolint:exhaustruct // populated later, populated later
				EnvVar string `env:"ENV_VAR"`
			}{},
			lookupEnv: func(_ string) (string, bool) { return "", false },
			want:      nil,
			wantErr:   envstruct.ErrEnvNotSet,
		},
		{
			name: "env is set",
			v: &struct { //nolint:exhaustruct // populated later, populated later
				EnvVar string `env:"ENV_VAR"`
			}{},
			lookupEnv: func(_ string) (string, bool) { return "env_var", true },
			want: &struct {
				EnvVar string `env:"ENV_VAR"`
			}{EnvVar: "env_var"},
			wantErr: nil,
		},
		{
			name: "picks correct env variable",
			v: &struct { //nolint:exhaustruct // populated later
				EnvVar      string `env:"ENV_VAR"`
				EnvVar2     string `env:"ENV_VAR2"`
				OtherValue  string
				OtherValue2 int
			}{},
			lookupEnv: func(s string) (string, bool) { return strings.ToLower(s), true },
			want: &struct {
				EnvVar      string `env:"ENV_VAR"`
				EnvVar2     string `env:"ENV_VAR2"`
				OtherValue  string
				OtherValue2 int
			}{EnvVar: "env_var", EnvVar2: "env_var2", OtherValue: "", OtherValue2: 0},
			wantErr: nil,
		},
		{
			name: "handles default value",
			v: &struct { //nolint:exhaustruct // populated later
				EnvVarDefault string `env:"ENV_VAR_DEFAULT" envDefault:"default"`
			}{},
			lookupEnv: func(_ string) (string, bool) { return "", false },
			want: &struct {
				EnvVarDefault string `env:"ENV_VAR_DEFAULT" envDefault:"default"`
			}{EnvVarDefault: "default"},
			wantErr: nil,
		},
		{
			name: "parses ints and bools",
			v: &struct { //nolint:exhaustruct // populated later
				SQLiteURL string `env:"IRONBRAIN_SQLITE_URL" envDefault:"./ironbrain.sqlite3"`
				Months    int    `env:"IRONBRAIN_MONTHS" envDefault:"3"`
				Debug     bool   `env:"IRONBRAIN_DEBUG" envDefault:"false"`
			}{},
			lookupEnv: func(s string) (string, bool) {
				if s == "IRONBRAIN_DEBUG" {
					return "true", true
				}
				return "", false
			},
			want: &struct {
				SQLiteURL string `env:"IRONBRAIN_SQLITE_URL" envDefault:"./ironbrain.sqlite3"`
				Months    int    `env:"IRONBRAIN_MONTHS" envDefault:"3"`
				Debug     bool   `env:"IRONBRAIN_DEBUG" envDefault:"false"`
			}{SQLiteURL: "./ironbrain.sqlite3", Months: 3, Debug: true},
			wantErr: nil,
		},
		{
			name: "parses durations",
			v: &struct { //nolint:exhaustruct // populated later
				Slow time.Duration `env:"IRONBRAIN_SLOW_COMMAND" envDefault:"10s"`
			}{},
			lookupEnv: func(_ string) (string, bool) { return "", false },
			want: &struct {
				Slow time.Duration `env:"IRONBRAIN_SLOW_COMMAND" envDefault:"10s"`
			}{Slow: 10 * time.Second},
			wantErr: nil,
		},
		{
			name: "rejects malformed duration",
			v: &struct { //nolint:exhaustruct // populated later
				Slow time.Duration `env:"IRONBRAIN_SLOW_COMMAND"`
			}{},
			lookupEnv: func(_ string) (string, bool) { return "10", true },
			want:      nil,
			wantErr:   envstruct.ErrParse,
		},
		{
			name: "rejects malformed int",
			v: &struct { //nolint:exhaustruct // populated later
				Months int `env:"IRONBRAIN_MONTHS"`
			}{},
			lookupEnv: func(_ string) (string, bool) { return "three", true },
			want:      nil,
			wantErr:   envstruct.ErrParse,
		},
		{
			name: "rejects malformed bool",
			v: &struct { //nolint:exhaustruct // populated later
				Debug bool `env:"IRONBRAIN_DEBUG"`
			}{},
			lookupEnv: func(_ string) (string, bool) { return "maybe", true },
			want:      nil,
			wantErr:   envstruct.ErrParse,
		},
		{
			name: "rejects unsupported kinds",
			v: &struct { //nolint:exhaustruct // populated later
				Ratio float64 `env:"RATIO"`
			}{},
			lookupEnv: func(_ string) (string, bool) { return "0.5", true },
			want:      nil,
			wantErr:   envstruct.ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := envstruct.Populate(tt.v, tt.lookupEnv)

			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Populate() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Populate() unexpected error = %v", err)
				}
				if diff := cmp.Diff(tt.want, tt.v); diff != "" {
					t.Errorf("Populate() mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}
