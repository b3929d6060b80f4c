package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/medizone/internal/model"
)

var cet = time.FixedZone("CET", 3600)

func at(day, clock string) string { return day + "T" + clock + "+01:00" }

func TestTodayIntakes_CalendarDayNotRollingWindow(t *testing.T) {
	t.Parallel()
	p := New(cet)
	p.UpsertIntake(model.Intake{ID: "late", MedicationID: "m", TimestampISO: at("2026-10-18", "23:58:00"), Dose: 1})
	p.UpsertIntake(model.Intake{ID: "early", MedicationID: "m", TimestampISO: at("2026-10-19", "00:02:00"), Dose: 1})

	now := time.Date(2026, 10, 19, 0, 10, 0, 0, cet)
	today := p.TodayIntakes(now)
	require.Len(t, today, 1)
	require.Equal(t, "early", today[0].ID)
}

func TestTodayIntakes_UTCTimestampsBucketedInLocation(t *testing.T) {
	t.Parallel()
	p := New(cet)
	// 23:30 UTC on the 18th is 00:30 CET on the 19th.
	p.UpsertIntake(model.Intake{ID: "a", MedicationID: "m", TimestampISO: "2026-10-18T23:30:00Z"})
	require.Len(t, p.TodayIntakes(time.Date(2026, 10, 19, 9, 0, 0, 0, cet)), 1)
	require.Empty(t, p.TodayIntakes(time.Date(2026, 10, 18, 22, 0, 0, 0, cet)))
}

func TestDaySums_And_Last(t *testing.T) {
	t.Parallel()
	p := New(cet)
	day := "2026-10-19"
	p.UpsertIntake(model.Intake{ID: "1", MedicationID: "m", TimestampISO: at(day, "08:00:00"), Dose: 400})
	p.UpsertIntake(model.Intake{ID: "2", MedicationID: "m", TimestampISO: at(day, "14:00:00"), Dose: 200})
	p.UpsertIntake(model.Intake{ID: "3", MedicationID: "m", TimestampISO: at(day, "11:00:00")}) // no dose
	p.UpsertIntake(model.Intake{ID: "4", MedicationID: "other", TimestampISO: at(day, "15:00:00"), Dose: 50})
	p.UpsertIntake(model.Intake{ID: "5", MedicationID: "m", TimestampISO: "not a time", Dose: 999})
	p.UpsertIntake(model.Intake{ID: "6", MedicationID: "m", TimestampISO: at("2026-10-18", "20:00:00"), Dose: 100})

	now := time.Date(2026, 10, 19, 16, 0, 0, 0, cet)
	require.Len(t, p.IntakesForMedication("m", now), 3)
	require.Equal(t, 600.0, p.DoseSumForMedication("m", now))
	require.Equal(t, 100.0, p.DoseSumForMedication("m", now.AddDate(0, 0, -1)))

	last, lastAt, ok := p.LastIntakeForMedication("m", now)
	require.True(t, ok)
	require.Equal(t, "2", last.ID)
	require.True(t, lastAt.Equal(time.Date(2026, 10, 19, 14, 0, 0, 0, cet)))

	_, _, ok = p.LastIntakeForMedication("nothing", now)
	require.False(t, ok)

	require.Len(t, p.Intakes(), 6)
}

func TestUpsert_ReplacesByID(t *testing.T) {
	t.Parallel()
	p := New(cet)
	p.UpsertMedication(model.Medication{ID: "m", Name: "A"})
	p.UpsertMedication(model.Medication{ID: "m", Name: "B"})
	meds := p.Medications()
	require.Len(t, meds, 1)
	require.Equal(t, "B", meds[0].Name)
}

func TestReplaceID_NoDuplicate_AndReferencesFollow(t *testing.T) {
	t.Parallel()
	p := New(cet)
	p.UpsertMedication(model.Medication{ID: "temp_m", Name: "Ibuprofen", MaxPerDay: 1200})
	p.UpsertIntake(model.Intake{ID: "temp_i", MedicationID: "temp_m", TimestampISO: at("2026-10-19", "08:00:00"), Dose: 400})

	require.True(t, p.ReplaceID("temp_m", "perm_m"))
	require.True(t, p.ReplaceID("temp_i", "perm_i"))
	require.False(t, p.ReplaceID("temp_x", "perm_x"))

	meds := p.Medications()
	require.Len(t, meds, 1)
	require.Equal(t, model.Medication{ID: "perm_m", Name: "Ibuprofen", MaxPerDay: 1200}, meds[0])

	intakes := p.Intakes()
	require.Len(t, intakes, 1)
	require.Equal(t, "perm_i", intakes[0].ID)
	require.Equal(t, "perm_m", intakes[0].MedicationID)
	require.Equal(t, 400.0, intakes[0].Dose)
}

func TestReplaceID_TargetAlreadyHydrated(t *testing.T) {
	t.Parallel()
	p := New(cet)
	p.UpsertIntake(model.Intake{ID: "perm", MedicationID: "m", Dose: 1})
	p.UpsertIntake(model.Intake{ID: "temp", MedicationID: "m", Dose: 1})

	require.True(t, p.ReplaceID("temp", "perm"))
	require.Len(t, p.Intakes(), 1)
}

func TestRemove(t *testing.T) {
	t.Parallel()
	p := New(nil)
	require.Equal(t, time.Local, p.Location())
	p.UpsertIntake(model.Intake{ID: "i"})
	p.UpsertMedication(model.Medication{ID: "m"})
	p.Remove("i")
	p.Remove("m")
	p.Remove("absent")
	require.Empty(t, p.Intakes())
	require.Empty(t, p.Medications())
	_, ok := p.Medication("m")
	require.False(t, ok)
}
