package report

import (
	"errors"
	"testing"
	"time"

	"cassa/internal/core"
)

func TestResolve(t *testing.T) {
	wed := core.NewDate(2024, 6, 5)
	cases := []struct {
		name   string
		preset Preset
		today  core.Date
		start  string
		end    string
	}{
		{"today", Today, wed, "2024-06-05", "2024-06-05"},
		{"week midweek", Week, wed, "2024-06-03", "2024-06-09"},
		{"week on monday", Week, core.NewDate(2024, 6, 3), "2024-06-03", "2024-06-09"},
		{"week on sunday", Week, core.NewDate(2024, 6, 9), "2024-06-03", "2024-06-09"},
		{"week across years", Week, core.NewDate(2025, 1, 1), "2024-12-30", "2025-01-05"},
		{"month", Month, wed, "2024-06-01", "2024-06-30"},
		{"leap february", Month, core.NewDate(2024, 2, 10), "2024-02-01", "2024-02-29"},
		{"december", Month, core.NewDate(2023, 12, 31), "2023-12-01", "2023-12-31"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Resolve(tc.preset, tc.today, core.Date{}, core.Date{})
			if err != nil {
				t.Fatal(err)
			}
			if r.Start.String() != tc.start || r.End.String() != tc.end {
				t.Fatalf("expected %s..%s, got %s", tc.start, tc.end, r.Key())
			}
		})
	}
}

func TestResolveCustom(t *testing.T) {
	today := core.NewDate(2024, 6, 5)
	r, err := Resolve(Custom, today, core.NewDate(2024, 1, 15), core.NewDate(2024, 3, 1))
	if err != nil {
		t.Fatal(err)
	}
	if r.Start.String() != "2024-01-15" || r.End.String() != "2024-03-01" {
		t.Fatalf("custom range must be verbatim, got %s", r.Key())
	}

	_, err = Resolve(Custom, today, core.NewDate(2024, 3, 2), core.NewDate(2024, 3, 1))
	if !core.IsValidation(err) {
		t.Fatalf("expected validation error for inverted range, got %v", err)
	}

	var ve *core.ValidationError
	_, err = Resolve(Custom, today, core.NewDate(2024, 3, 2), core.Date{})
	if !errors.As(err, &ve) || ve.Field != "end" {
		t.Fatalf("expected missing end, got %v", err)
	}

	if _, err := Resolve("year", today, core.Date{}, core.Date{}); !core.IsValidation(err) {
		t.Fatalf("expected validation error for unknown preset, got %v", err)
	}
}

func TestParsePreset(t *testing.T) {
	for in, want := range map[string]Preset{"": Month, "WEEK": Week, " today ": Today, "custom": Custom} {
		got, err := ParsePreset(in)
		if err != nil || got != want {
			t.Fatalf("ParsePreset(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePreset("quarter"); !core.IsValidation(err) {
		t.Fatalf("expected validation error")
	}
}

func TestTodayIn(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	now := time.Date(2024, 6, 5, 23, 30, 0, 0, time.UTC)
	if got := TodayIn(now, rome); got.String() != "2024-06-06" {
		t.Fatalf("expected 2024-06-06, got %s", got)
	}
	if got := TodayIn(now, nil); got.String() != "2024-06-05" {
		t.Fatalf("expected 2024-06-05, got %s", got)
	}
}
