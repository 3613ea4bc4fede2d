package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/myrjola/ironbrain/internal/ironbrain"
)

// dateFlag parses YYYY-MM-DD into a UTC date.
type dateFlag struct {
	t *time.Time
}

func (d dateFlag) String() string {
	if d.t == nil || d.t.IsZero() {
		return ""
	}
	return d.t.Format(time.DateOnly)
}

func (d dateFlag) Set(s string) error {
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return fmt.Errorf("date %q is not YYYY-MM-DD", s)
	}
	*d.t = t
	return nil
}

// optionalFlag leaves its target nil unless the flag is given.
type optionalFlag[T any] struct {
	v     **T
	parse func(string) (T, error)
}

func (o optionalFlag[T]) String() string {
	if o.v == nil || *o.v == nil {
		return ""
	}
	return fmt.Sprint(**o.v)
}

func (o optionalFlag[T]) Set(s string) error {
	v, err := o.parse(s)
	if err != nil {
		return err //nolint:wrapcheck // the flag package adds the flag name.
	}
	*o.v = &v
	return nil
}

func optionalInt(fs *flag.FlagSet, name, usage string) **int {
	v := new(*int)
	fs.Var(optionalFlag[int]{v: v, parse: strconv.Atoi}, name, usage)
	return v
}

func optionalFloat(fs *flag.FlagSet, name, usage string) **float64 {
	v := new(*float64)
	fs.Var(optionalFlag[float64]{v: v, parse: func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}}, name, usage)
	return v
}

// zonesFlag parses five comma separated zone minutes.
type zonesFlag struct {
	z *ironbrain.ZoneMinutes
}

func (f zonesFlag) String() string {
	if f.z == nil || f.z.Total() == 0 {
		return ""
	}
	parts := make([]string, 0, len(f.z))
	for _, m := range f.z {
		parts = append(parts, strconv.FormatFloat(m, 'f', -1, 64))
	}
	return strings.Join(parts, ",")
}

func (f zonesFlag) Set(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) != len(f.z) {
		return fmt.Errorf("want %d comma separated zone minutes, got %d", len(f.z), len(parts))
	}
	for i, p := range parts {
		m, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || m < 0 {
			return fmt.Errorf("zone %d minutes %q must be a non-negative number", i+1, p)
		}
		f.z[i] = m
	}
	return nil
}

// listFlag parses a comma separated list.
type listFlag struct {
	items *[]string
}

func (f listFlag) String() string {
	if f.items == nil {
		return ""
	}
	return strings.Join(*f.items, ",")
}

func (f listFlag) Set(s string) error {
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			*f.items = append(*f.items, item)
		}
	}
	return nil
}
