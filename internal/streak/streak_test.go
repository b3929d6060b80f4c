package streak

import (
	"testing"
	"time"

	"github.com/and161185/medizone/internal/model"
)

func onDaysAgo(now time.Time, offsets ...int) []model.Intake {
	out := make([]model.Intake, 0, len(offsets))
	for _, d := range offsets {
		ts := now.AddDate(0, 0, -d).Format(time.RFC3339)
		out = append(out, model.Intake{ID: ts, MedicationID: "m", TimestampISO: ts})
	}
	return out
}

func TestCalculate(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+2", 2*3600)
	now := time.Date(2026, 10, 19, 9, 30, 0, 0, loc)

	cases := []struct {
		name    string
		intakes []model.Intake
		want    int
	}{
		{"today yesterday day-before", onDaysAgo(now, 0, 1, 2), 3},
		{"nothing today yet", onDaysAgo(now, 1, 2), 2},
		{"only three days ago", onDaysAgo(now, 3), 0},
		{"empty", nil, 0},
		{"gap stops the walk", onDaysAgo(now, 0, 1, 3, 4), 2},
		{"several per day", onDaysAgo(now, 0, 0, 0, 1), 2},
		{"future-dated intake", onDaysAgo(now, -1, 0, 1), 0},
		{"only tomorrow", onDaysAgo(now, -1), 0},
		{"unparseable ignored", append(onDaysAgo(now, 0), model.Intake{TimestampISO: ""}, model.Intake{TimestampISO: "soon"}), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Calculate(tc.intakes, now, loc); got != tc.want {
				t.Fatalf("Calculate() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCalculate_DayBoundaryInLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+2", 2*3600)
	now := time.Date(2026, 10, 19, 0, 30, 0, 0, loc)
	// 22:15 UTC on the 18th is already the 19th at UTC+2.
	intakes := []model.Intake{
		{TimestampISO: "2026-10-18T22:15:00Z"},
		{TimestampISO: "2026-10-18T08:00:00+02:00"},
	}
	if got := Calculate(intakes, now, loc); got != 2 {
		t.Fatalf("Calculate() = %d, want 2", got)
	}
}

func TestCalculate_AcrossDST(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Clocks go back on 2026-10-25.
	now := time.Date(2026, 10, 26, 10, 0, 0, 0, loc)
	var intakes []model.Intake
	for d := 0; d < 4; d++ {
		ts := time.Date(2026, 10, 26-d, 8, 0, 0, 0, loc).Format(time.RFC3339)
		intakes = append(intakes, model.Intake{TimestampISO: ts})
	}
	if got := Calculate(intakes, now, loc); got != 4 {
		t.Fatalf("Calculate() = %d, want 4", got)
	}
}
