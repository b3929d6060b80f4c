// Package model defines domain entities shared by the local engine, the remote store and the server.
package model

import (
	"encoding/json"
	"time"
)

// Remote collection names.
const (
	CollectionMedications = "medications"
	CollectionIntakes     = "intakes"
)

// DosageForm is the physical form a medication is taken in.
type DosageForm string

const (
	DosageTablet    DosageForm = "tablet"
	DosageCapsule   DosageForm = "capsule"
	DosageDrops     DosageForm = "drops"
	DosageSpray     DosageForm = "spray"
	DosageInjection DosageForm = "injection"
	DosageCream     DosageForm = "cream"
	DosageOther     DosageForm = "other"
)

// Valid reports whether f is one of the known dosage forms.
func (f DosageForm) Valid() bool {
	switch f {
	case DosageTablet, DosageCapsule, DosageDrops, DosageSpray, DosageInjection, DosageCream, DosageOther:
		return true
	}
	return false
}

// Medication is a configured medication with its dosing limits.
// ID is a permanent remote id or, until reconciled, a temp id.
type Medication struct {
	ID              string     `json:"id,omitempty" yaml:"id"`
	Name            string     `json:"name" yaml:"name"`
	Substance       string     `json:"substance" yaml:"substance"`
	DosageForm      DosageForm `json:"dosageForm" yaml:"dosageForm"`
	Strength        string     `json:"strength,omitempty" yaml:"strength,omitempty"`
	StandardDose    float64    `json:"standardDose" yaml:"standardDose"`
	DoseUnit        string     `json:"doseUnit" yaml:"doseUnit"`
	Instructions    string     `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	MaxPerDay       float64    `json:"maxPerDay" yaml:"maxPerDay"`
	MinHoursBetween float64    `json:"minHoursBetween" yaml:"minHoursBetween"`
	OwnerID         string     `json:"ownerId,omitempty" yaml:"ownerId,omitempty"`
}

// Intake is a single recorded dose. TimestampISO is the only ordering and day-bucketing key.
type Intake struct {
	ID             string  `json:"id,omitempty" yaml:"id"`
	MedicationID   string  `json:"medicationId" yaml:"medicationId"`
	MedicationName string  `json:"medName,omitempty" yaml:"medName,omitempty"`
	TimestampISO   string  `json:"timestampIso" yaml:"timestampIso"`
	Dose           float64 `json:"dose" yaml:"dose"`
	DoseUnit       string  `json:"doseUnit" yaml:"doseUnit"`
	Note           string  `json:"note,omitempty" yaml:"note,omitempty"`
	WithFood       bool    `json:"withFood,omitempty" yaml:"withFood,omitempty"`
	OwnerID        string  `json:"ownerId,omitempty" yaml:"ownerId,omitempty"`
}

// PendingRecord is a local creation waiting for a permanent remote id.
type PendingRecord struct {
	TempID     string          `json:"tempId"`
	Collection string          `json:"collection"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// RuleCheckResult is the advisory outcome of evaluating dosing rules for a proposed intake.
type RuleCheckResult struct {
	SumToday            float64 `json:"sumToday" yaml:"sumToday"`
	ProjectedTotal      float64 `json:"projectedTotal" yaml:"projectedTotal"`
	ExceedsMaxPerDay    bool    `json:"exceedsMaxPerDay" yaml:"exceedsMaxPerDay"`
	TooSoon             bool    `json:"tooSoon" yaml:"tooSoon"`
	MinutesUntilAllowed int     `json:"minutesUntilAllowed" yaml:"minutesUntilAllowed"`
}

// Violated reports whether any rule flagged the proposed intake.
func (r RuleCheckResult) Violated() bool { return r.ExceedsMaxPerDay || r.TooSoon }

// Reminder is a daily "HH:MM" intake reminder for a medication.
type Reminder struct {
	ID           string     `json:"id" yaml:"id"`
	MedicationID string     `json:"medicationId" yaml:"medicationId"`
	Time         string     `json:"time" yaml:"time"`
	Enabled      bool       `json:"enabled" yaml:"enabled"`
	SnoozedUntil *time.Time `json:"snoozedUntil,omitempty" yaml:"snoozedUntil,omitempty"`
}

// Document is a record of a remote collection: server-assigned id plus free-form fields.
type Document struct {
	ID         string
	Collection string
	OwnerID    string
	Fields     map[string]any
	CreatedAt  time.Time
}
