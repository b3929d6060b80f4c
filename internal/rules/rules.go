// Package rules evaluates per-medication dosing limits against recorded history.
package rules

import (
	"math"
	"time"

	"github.com/and161185/medizone/internal/model"
)

// View is the read side of the intake projection the evaluator depends on.
type View interface {
	DoseSumForMedication(medicationID string, day time.Time) float64
	LastIntakeForMedication(medicationID string, day time.Time) (model.Intake, time.Time, bool)
}

// Check reports whether taking doseToAdd of medicationID at now would break the daily
// ceiling or the minimum spacing. A limit of zero or less is treated as not configured.
// It never mutates the view and always returns a complete result.
func Check(v View, medicationID string, doseToAdd, maxPerDay, minHoursBetween float64, now time.Time) model.RuleCheckResult {
	var res model.RuleCheckResult
	res.SumToday = v.DoseSumForMedication(medicationID, now)
	res.ProjectedTotal = res.SumToday + doseToAdd
	res.ExceedsMaxPerDay = maxPerDay > 0 && res.ProjectedTotal > maxPerDay

	if minHoursBetween <= 0 {
		return res
	}
	_, lastAt, ok := v.LastIntakeForMedication(medicationID, now)
	if !ok {
		return res
	}
	minGap := time.Duration(minHoursBetween * float64(time.Hour))
	if elapsed := now.Sub(lastAt); elapsed < minGap {
		res.TooSoon = true
		res.MinutesUntilAllowed = int(math.Ceil((minGap - elapsed).Minutes()))
	}
	return res
}

// CheckMedication runs Check with the limits configured on med.
func CheckMedication(v View, med model.Medication, doseToAdd float64, now time.Time) model.RuleCheckResult {
	return Check(v, med.ID, doseToAdd, med.MaxPerDay, med.MinHoursBetween, now)
}
