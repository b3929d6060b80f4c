// Package reminder stores daily intake reminders and fires them when due.
package reminder

import (
	"fmt"
	"time"

	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/model"
)

// DefaultSnooze is used when a snooze duration is not given.
const DefaultSnooze = 10 * time.Minute

const clockLayout = "15:04"

// ParseClock validates and normalizes an "HH:MM" time of day ("8:05" becomes "08:05").
func ParseClock(s string) (string, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: time of day %q, want HH:MM", errs.ErrValidation, s)
	}
	return t.Format(clockLayout), nil
}

// Due reports whether rem should fire at now. An active snooze replaces the daily
// time: the reminder fires once the snooze has expired. Callers pass now in the
// zone the reminder times are written in.
func Due(rem model.Reminder, now time.Time) bool {
	if !rem.Enabled {
		return false
	}
	if rem.SnoozedUntil != nil {
		return !now.Before(*rem.SnoozedUntil)
	}
	return now.Format(clockLayout) == rem.Time
}
