package billing

import (
	"testing"
	"time"
)

func date(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestCycleMonths(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{in: "monthly", want: 1},
		{in: "quarterly", want: 3},
		{in: "yearly", want: 12},
		{in: "YEARLY", want: 12},
		{in: "weekly", want: 1},
		{in: "", want: 1},
	}

	for _, tt := range tests {
		if got := CycleMonths(tt.in); got != tt.want {
			t.Fatalf("CycleMonths(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestComputeNextBillingAt(t *testing.T) {
	tests := []struct {
		name     string
		first    string
		cycle    string
		today    string
		wantNext string
		wantDays int
	}{
		{
			name:  "monthly two cycles elapsed",
			first: "2024-01-15", cycle: "monthly", today: "2024-03-20",
			wantNext: "2024-04-15T00:00:00Z", wantDays: 26,
		},
		{
			name:  "first payment still in the future",
			first: "2024-06-01", cycle: "monthly", today: "2024-03-20",
			wantNext: "2024-06-01T00:00:00Z", wantDays: 73,
		},
		{
			name:  "due today yields zero days",
			first: "2024-01-15", cycle: "monthly", today: "2024-03-15",
			wantNext: "2024-03-15T00:00:00Z", wantDays: 0,
		},
		{
			name:  "quarterly",
			first: "2024-01-10", cycle: "quarterly", today: "2024-05-01",
			wantNext: "2024-07-10T00:00:00Z", wantDays: 70,
		},
		{
			name:  "yearly",
			first: "2020-02-14", cycle: "yearly", today: "2024-03-01",
			wantNext: "2025-02-14T00:00:00Z", wantDays: 350,
		},
		{
			name:  "month end clamps to february",
			first: "2024-01-31", cycle: "monthly", today: "2024-02-01",
			wantNext: "2024-02-29T00:00:00Z", wantDays: 28,
		},
		{
			name:  "unknown cycle falls back to monthly",
			first: "2024-01-15", cycle: "biweekly", today: "2024-02-01",
			wantNext: "2024-02-15T00:00:00Z", wantDays: 14,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeNextBillingAt(tt.first, tt.cycle, date(tt.today))
			if got.NextBillingAt != tt.wantNext {
				t.Fatalf("NextBillingAt = %q, want %q", got.NextBillingAt, tt.wantNext)
			}
			if got.DaysUntilNextBilling != tt.wantDays {
				t.Fatalf("DaysUntilNextBilling = %d, want %d", got.DaysUntilNextBilling, tt.wantDays)
			}
		})
	}
}

func TestComputeNextBillingAtInvalidDate(t *testing.T) {
	got := ComputeNextBillingAt("not-a-date", "monthly", date("2024-03-20"))
	if got.NextBillingAt != "not-a-date" {
		t.Fatalf("expected raw input back, got %q", got.NextBillingAt)
	}
	if got.DaysUntilNextBilling != 0 {
		t.Fatalf("expected zero days for invalid date, got %d", got.DaysUntilNextBilling)
	}
}

func TestComputeNextBillingAtIdempotent(t *testing.T) {
	today := date("2024-03-20")
	a := ComputeNextBillingAt("2024-01-15", "monthly", today)
	b := ComputeNextBillingAt("2024-01-15", "monthly", today)
	if a != b {
		t.Fatalf("same-day evaluations differ: %+v vs %+v", a, b)
	}
}

func TestComputeNextBillingAtMonotone(t *testing.T) {
	first := "2023-07-01"
	today := date("2024-01-01")
	prev := ComputeNextBillingAt(first, "monthly", today)
	for i := 0; i < 120; i++ {
		today = today.AddDate(0, 0, 1)
		cur := ComputeNextBillingAt(first, "monthly", today)
		if cur.NextBillingAt < prev.NextBillingAt {
			t.Fatalf("result moved backwards on %s: %q -> %q", today.Format("2006-01-02"), prev.NextBillingAt, cur.NextBillingAt)
		}
		prev = cur
	}
}

func TestComputeNextBillingAtNeverBeforeToday(t *testing.T) {
	firsts := []string{"2020-01-31", "2022-12-01", "2024-02-29"}
	cycles := []string{"monthly", "quarterly", "yearly"}
	today := date("2024-03-20")

	for _, first := range firsts {
		for _, cycle := range cycles {
			got := ComputeNextBillingAt(first, cycle, today)
			next, ok := ParseDate(got.NextBillingAt)
			if !ok {
				t.Fatalf("unparseable result %q", got.NextBillingAt)
			}
			if next.Before(today) {
				t.Fatalf("ComputeNextBillingAt(%s, %s) = %s, before today", first, cycle, got.NextBillingAt)
			}
			if got.DaysUntilNextBilling < 0 {
				t.Fatalf("negative day count %d for %s/%s", got.DaysUntilNextBilling, first, cycle)
			}
		}
	}
}
