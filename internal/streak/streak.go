// Package streak counts consecutive days with at least one recorded intake.
package streak

import (
	"time"

	"github.com/and161185/medizone/internal/model"
)

// Calculate returns the length of the run of consecutive calendar days (in loc) with an
// intake, walking back from the most recent such day. The streak is 0 unless that day is
// today or yesterday, so a future-dated intake also yields 0.
// Intakes with unparseable timestamps are ignored.
func Calculate(intakes []model.Intake, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	days := make(map[string]struct{}, len(intakes))
	latest := ""
	for _, in := range intakes {
		ts, ok := model.ParseTimestamp(in.TimestampISO, loc)
		if !ok {
			continue
		}
		key := model.DayKey(ts, loc)
		days[key] = struct{}{}
		if key > latest {
			latest = key
		}
	}
	if latest == "" {
		return 0
	}

	cursor := midnight(now, loc)
	switch latest {
	case model.DayKey(cursor, loc):
	case model.DayKey(cursor.AddDate(0, 0, -1), loc):
		cursor = cursor.AddDate(0, 0, -1)
	default:
		return 0
	}

	n := 0
	for {
		if _, ok := days[model.DayKey(cursor, loc)]; !ok {
			return n
		}
		n++
		cursor = cursor.AddDate(0, 0, -1)
	}
}

// midnight uses noon to step around DST transitions that skip or repeat midnight.
func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, loc)
}
