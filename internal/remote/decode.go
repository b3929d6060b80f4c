package remote

import (
	"encoding/json"
	"fmt"

	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/model"
)

func rejected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errs.ErrRemoteRejected, fmt.Sprintf(format, args...))
}

// MedicationFields converts a medication into document fields (id excluded).
func MedicationFields(m model.Medication) map[string]any {
	f := map[string]any{
		"name":            m.Name,
		"substance":       m.Substance,
		"dosageForm":      string(m.DosageForm),
		"standardDose":    m.StandardDose,
		"doseUnit":        m.DoseUnit,
		"maxPerDay":       m.MaxPerDay,
		"minHoursBetween": m.MinHoursBetween,
	}
	putOptional(f, "strength", m.Strength)
	putOptional(f, "instructions", m.Instructions)
	putOptional(f, "ownerId", m.OwnerID)
	return f
}

// IntakeFields converts an intake into document fields (id excluded).
func IntakeFields(in model.Intake) map[string]any {
	f := map[string]any{
		"medicationId": in.MedicationID,
		"timestampIso": in.TimestampISO,
		"dose":         in.Dose,
		"doseUnit":     in.DoseUnit,
	}
	putOptional(f, "medName", in.MedicationName)
	putOptional(f, "note", in.Note)
	putOptional(f, "ownerId", in.OwnerID)
	if in.WithFood {
		f["withFood"] = true
	}
	return f
}

func putOptional(f map[string]any, key, v string) {
	if v != "" {
		f[key] = v
	}
}

// FieldsFromPayload decodes a queued JSON payload into document fields.
func FieldsFromPayload(payload json.RawMessage) (map[string]any, error) {
	var f map[string]any
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, rejected("payload is not a JSON object: %v", err)
	}
	if f == nil {
		return nil, rejected("payload is empty")
	}
	delete(f, "id")
	return f, nil
}

// DecodeMedication validates a document against the medication schema.
// Any mismatch fails closed with errs.ErrRemoteRejected.
func DecodeMedication(doc model.Document) (model.Medication, error) {
	return decodeMedicationFields(doc.ID, doc.Fields)
}

// ValidateFields checks fields against the schema of collection without an id.
func ValidateFields(collection string, fields map[string]any) error {
	switch collection {
	case model.CollectionMedications:
		_, err := decodeMedicationFields("", fields)
		return err
	case model.CollectionIntakes:
		_, err := decodeIntakeFields("", fields)
		return err
	default:
		return rejected("unknown collection %q", collection)
	}
}

func decodeMedicationFields(id string, fields map[string]any) (model.Medication, error) {
	d := decoder{fields: fields}
	m := model.Medication{
		ID:              id,
		Name:            d.str("name", true),
		Substance:       d.str("substance", false),
		DosageForm:      model.DosageForm(d.str("dosageForm", true)),
		Strength:        d.str("strength", false),
		StandardDose:    d.num("standardDose", false),
		DoseUnit:        d.str("doseUnit", false),
		Instructions:    d.str("instructions", false),
		MaxPerDay:       d.num("maxPerDay", false),
		MinHoursBetween: d.num("minHoursBetween", false),
		OwnerID:         d.str("ownerId", false),
	}
	if d.err != nil {
		return model.Medication{}, d.err
	}
	if m.Name == "" {
		return model.Medication{}, rejected("medication %s: empty name", id)
	}
	if !m.DosageForm.Valid() {
		return model.Medication{}, rejected("medication %s: unknown dosage form %q", id, m.DosageForm)
	}
	if m.StandardDose < 0 {
		return model.Medication{}, rejected("medication %s: negative standardDose", id)
	}
	return m, nil
}

// DecodeIntake validates a document against the intake schema.
// A well-typed but unparseable timestamp is kept; the projection ignores it.
func DecodeIntake(doc model.Document) (model.Intake, error) {
	return decodeIntakeFields(doc.ID, doc.Fields)
}

func decodeIntakeFields(id string, fields map[string]any) (model.Intake, error) {
	d := decoder{fields: fields}
	in := model.Intake{
		ID:             id,
		MedicationID:   d.str("medicationId", true),
		MedicationName: d.str("medName", false),
		TimestampISO:   d.str("timestampIso", false),
		Dose:           d.num("dose", false),
		DoseUnit:       d.str("doseUnit", false),
		Note:           d.str("note", false),
		WithFood:       d.boolean("withFood"),
		OwnerID:        d.str("ownerId", false),
	}
	if d.err != nil {
		return model.Intake{}, d.err
	}
	if in.MedicationID == "" {
		return model.Intake{}, rejected("intake %s: empty medicationId", id)
	}
	if in.Dose < 0 {
		return model.Intake{}, rejected("intake %s: negative dose", id)
	}
	return in, nil
}

// decoder collects the first type mismatch.
type decoder struct {
	fields map[string]any
	err    error
}

func (d *decoder) fail(key, want string, v any) {
	if d.err == nil {
		d.err = rejected("field %q: want %s, got %T", key, want, v)
	}
}

func (d *decoder) str(key string, required bool) string {
	v, ok := d.fields[key]
	if !ok || v == nil {
		if required && d.err == nil {
			d.err = rejected("field %q is required", key)
		}
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(key, "string", v)
	}
	return s
}

func (d *decoder) num(key string, required bool) float64 {
	v, ok := d.fields[key]
	if !ok || v == nil {
		if required && d.err == nil {
			d.err = rejected("field %q is required", key)
		}
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			d.fail(key, "number", v)
		}
		return f
	default:
		d.fail(key, "number", v)
		return 0
	}
}

func (d *decoder) boolean(key string) bool {
	v, ok := d.fields[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		d.fail(key, "bool", v)
	}
	return b
}
