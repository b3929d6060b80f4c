package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/medizone/internal/model"
	"github.com/and161185/medizone/internal/projection"
)

var now = time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)

func history(t *testing.T, intakes ...model.Intake) *projection.Projection {
	t.Helper()
	p := projection.New(time.UTC)
	for _, in := range intakes {
		p.UpsertIntake(in)
	}
	return p
}

func intake(id string, at time.Time, dose float64) model.Intake {
	return model.Intake{ID: id, MedicationID: "m", TimestampISO: at.Format(time.RFC3339), Dose: dose}
}

func TestCheck_ExceedsDailyCeiling(t *testing.T) {
	t.Parallel()
	p := history(t, intake("a", now.Add(-5*time.Hour), 50), intake("b", now.Add(-3*time.Hour), 30))

	res := Check(p, "m", 30, 100, 0, now)
	require.Equal(t, 80.0, res.SumToday)
	require.Equal(t, 110.0, res.ProjectedTotal)
	require.True(t, res.ExceedsMaxPerDay)
	require.False(t, res.TooSoon)
	require.True(t, res.Violated())
}

func TestCheck_AtCeilingIsAllowed(t *testing.T) {
	t.Parallel()
	p := history(t, intake("a", now.Add(-5*time.Hour), 70))
	res := Check(p, "m", 30, 100, 0, now)
	require.False(t, res.ExceedsMaxPerDay)
}

func TestCheck_TooSoon(t *testing.T) {
	t.Parallel()
	p := history(t, intake("a", now.Add(-2*time.Hour), 1))

	res := Check(p, "m", 1, 0, 6, now)
	require.True(t, res.TooSoon)
	require.Equal(t, 240, res.MinutesUntilAllowed)
}

func TestCheck_MinutesRoundUp(t *testing.T) {
	t.Parallel()
	p := history(t, intake("a", now.Add(-(2*time.Hour + 30*time.Second)), 1))
	res := Check(p, "m", 1, 0, 6, now)
	require.Equal(t, 240, res.MinutesUntilAllowed)
}

func TestCheck_SpacingSatisfied(t *testing.T) {
	t.Parallel()
	p := history(t, intake("a", now.Add(-6*time.Hour), 1))
	res := Check(p, "m", 1, 0, 6, now)
	require.False(t, res.TooSoon)
	require.Zero(t, res.MinutesUntilAllowed)
}

func TestCheck_ZeroCeilingNeverFlags(t *testing.T) {
	t.Parallel()
	p := history(t, intake("a", now.Add(-time.Hour), 100000))
	for _, limit := range []float64{0, -1} {
		res := Check(p, "m", 5000, limit, 0, now)
		require.False(t, res.ExceedsMaxPerDay)
		require.Equal(t, 105000.0, res.ProjectedTotal)
	}
}

func TestCheck_YesterdayDoesNotCount(t *testing.T) {
	t.Parallel()
	// 23:00 yesterday is under six hours before 01:00 today but belongs to another day.
	early := time.Date(2026, 10, 19, 1, 0, 0, 0, time.UTC)
	p := history(t, intake("a", early.Add(-2*time.Hour), 90))

	res := Check(p, "m", 30, 100, 6, early)
	require.Zero(t, res.SumToday)
	require.False(t, res.ExceedsMaxPerDay)
	require.False(t, res.TooSoon)
}

func TestCheck_EmptyHistoryAndUnparseable(t *testing.T) {
	t.Parallel()
	p := history(t, model.Intake{ID: "bad", MedicationID: "m", TimestampISO: "yesterday-ish", Dose: 500})
	res := Check(p, "m", 10, 100, 6, now)
	require.Equal(t, model.RuleCheckResult{ProjectedTotal: 10}, res)
}

func TestCheck_Deterministic(t *testing.T) {
	t.Parallel()
	p := history(t, intake("a", now.Add(-time.Hour), 60))
	before := p.Intakes()
	first := Check(p, "m", 50, 100, 4, now)
	second := Check(p, "m", 50, 100, 4, now)
	require.Equal(t, first, second)
	require.Equal(t, before, p.Intakes())
}

func TestCheckMedication_UsesConfiguredLimits(t *testing.T) {
	t.Parallel()
	p := history(t, intake("a", now.Add(-time.Hour), 400))
	med := model.Medication{ID: "m", MaxPerDay: 1200, MinHoursBetween: 6}
	res := CheckMedication(p, med, 400, now)
	require.False(t, res.ExceedsMaxPerDay)
	require.True(t, res.TooSoon)
	require.Equal(t, 300, res.MinutesUntilAllowed)
}
