// Package tracker is the application facade: it owns the projection and routes new
// records either straight to the remote store or through the durable queue.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/medizone/internal/connectivity"
	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/model"
	"github.com/and161185/medizone/internal/projection"
	"github.com/and161185/medizone/internal/queue"
	"github.com/and161185/medizone/internal/reconcile"
	"github.com/and161185/medizone/internal/remote"
	"github.com/and161185/medizone/internal/rules"
	"github.com/and161185/medizone/internal/streak"
)

// Deps are the collaborators of a Tracker. Queue, Remote, Projection and Signal are required.
type Deps struct {
	Queue      queue.Queue
	Remote     remote.Store
	Projection *projection.Projection
	Signal     connectivity.Signal
	// Reconciler is optional; when set its pending count is kept current.
	Reconciler *reconcile.Reconciler
	Owner      string
	Log        *zap.Logger
	Now        func() time.Time
}

// Tracker records medications and intakes and answers rule, streak and history queries.
type Tracker struct {
	Deps
}

// New validates deps and returns a Tracker.
func New(d Deps) (*Tracker, error) {
	if d.Queue == nil || d.Remote == nil || d.Projection == nil || d.Signal == nil {
		return nil, errors.New("tracker: queue, remote, projection and signal are required")
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Tracker{Deps: d}, nil
}

// Hydrate loads pending local records into the projection and, when online, the
// owner's records from the remote store. Records that fail to decode are skipped.
// A remote failure is returned after the local part has been applied.
func (t *Tracker) Hydrate(ctx context.Context) error {
	aliases, err := t.Queue.Aliases(ctx)
	if err != nil {
		t.Log.Warn("load aliases", zap.Error(err))
		aliases = map[string]string{}
	}
	pending, err := t.Queue.ListPending(ctx)
	if err != nil {
		t.Log.Warn("load pending records", zap.Error(err))
	}
	for _, rec := range pending {
		fields, err := remote.FieldsFromPayload(rec.Payload)
		if err != nil {
			t.Log.Warn("skip undecodable pending record", zap.String("temp_id", rec.TempID), zap.Error(err))
			continue
		}
		t.apply(model.Document{ID: rec.TempID, Collection: rec.Collection, Fields: fields}, aliases)
	}
	t.refreshPending(ctx)

	if !t.Signal.Online() {
		return nil
	}
	for _, coll := range []string{model.CollectionMedications, model.CollectionIntakes} {
		docs, err := t.Remote.Query(ctx, coll, t.Owner)
		if err != nil {
			return fmt.Errorf("hydrate %s: %w", coll, err)
		}
		for _, doc := range docs {
			doc.Collection = coll
			t.apply(doc, nil)
		}
	}
	return nil
}

func (t *Tracker) apply(doc model.Document, aliases map[string]string) {
	switch doc.Collection {
	case model.CollectionMedications:
		m, err := remote.DecodeMedication(doc)
		if err != nil {
			t.Log.Warn("skip medication", zap.String("id", doc.ID), zap.Error(err))
			return
		}
		t.Projection.UpsertMedication(m)
	case model.CollectionIntakes:
		in, err := remote.DecodeIntake(doc)
		if err != nil {
			t.Log.Warn("skip intake", zap.String("id", doc.ID), zap.Error(err))
			return
		}
		if perm, ok := aliases[in.MedicationID]; ok {
			in.MedicationID = perm
		}
		t.Projection.UpsertIntake(in)
	default:
		t.Log.Warn("skip record of unknown collection", zap.String("collection", doc.Collection))
	}
}

// AddMedication stores med and returns it with its (temp or permanent) id.
func (t *Tracker) AddMedication(ctx context.Context, med model.Medication) (model.Medication, error) {
	med.Name = strings.TrimSpace(med.Name)
	if med.DosageForm == "" {
		med.DosageForm = model.DosageTablet
	}
	if med.OwnerID == "" {
		med.OwnerID = t.Owner
	}
	fields := remote.MedicationFields(med)
	if err := remote.ValidateFields(model.CollectionMedications, fields); err != nil {
		return model.Medication{}, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}

	id, err := t.save(ctx, model.CollectionMedications, fields, med, true)
	if err != nil {
		return model.Medication{}, err
	}
	med.ID = id
	t.Projection.UpsertMedication(med)
	return med, nil
}

// LogIntake records an intake. Missing dose, unit and timestamp are filled from the
// medication and the clock. Intakes of a medication that is itself still pending always
// go through the queue so the reconciler can re-target them. An unknown medication id
// is ErrNotFound, except a permanent id while offline, which cannot be checked.
func (t *Tracker) LogIntake(ctx context.Context, in model.Intake) (model.Intake, error) {
	if in.MedicationID == "" {
		return model.Intake{}, fmt.Errorf("%w: medication id is required", errs.ErrValidation)
	}
	med, ok, err := t.resolveMedication(ctx, in.MedicationID)
	if err != nil {
		return model.Intake{}, err
	}
	if med.ID != "" {
		in.MedicationID = med.ID
	}
	if ok {
		if in.Dose <= 0 {
			in.Dose = med.StandardDose
		}
		if in.DoseUnit == "" {
			in.DoseUnit = med.DoseUnit
		}
		if in.MedicationName == "" {
			in.MedicationName = med.Name
		}
	}
	if in.TimestampISO == "" {
		in.TimestampISO = model.FormatTimestamp(t.Now(), t.Projection.Location())
	}
	if in.OwnerID == "" {
		in.OwnerID = t.Owner
	}
	fields := remote.IntakeFields(in)
	if err := remote.ValidateFields(model.CollectionIntakes, fields); err != nil {
		return model.Intake{}, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}

	id, err := t.save(ctx, model.CollectionIntakes, fields, in, !queue.IsTempID(in.MedicationID))
	if err != nil {
		return model.Intake{}, err
	}
	in.ID = id
	t.Projection.UpsertIntake(in)
	return in, nil
}

func (t *Tracker) resolveMedication(ctx context.Context, id string) (model.Medication, bool, error) {
	if med, ok := t.Projection.Medication(id); ok {
		return med, true, nil
	}
	if queue.IsTempID(id) {
		if aliases, err := t.Queue.Aliases(ctx); err == nil {
			if perm, found := aliases[id]; found {
				if med, ok := t.Projection.Medication(perm); ok {
					return med, true, nil
				}
				return model.Medication{ID: perm}, false, nil
			}
		}
		return model.Medication{}, false, fmt.Errorf("medication %s: %w", id, errs.ErrNotFound)
	}
	if !t.Signal.Online() {
		t.Log.Info("medication not known locally, recording unverified", zap.String("medication_id", id))
		return model.Medication{ID: id}, false, nil
	}
	med, err := t.FetchMedication(ctx, id)
	switch {
	case err == nil:
		return med, true, nil
	case errors.Is(err, errs.ErrNotFound):
		return model.Medication{}, false, err
	default:
		t.Log.Warn("medication lookup failed, recording unverified", zap.String("medication_id", id), zap.Error(err))
		return model.Medication{ID: id}, false, nil
	}
}

// save creates the record remotely when allowed and online, and queues it otherwise.
// An unavailable remote falls back to the queue; a rejection is returned. If the queue
// itself fails the record lives in memory only under a fresh temp id.
func (t *Tracker) save(ctx context.Context, collection string, fields map[string]any, v any, direct bool) (string, error) {
	if direct && t.Signal.Online() {
		id, err := t.Remote.Create(ctx, collection, fields)
		switch {
		case err == nil:
			return id, nil
		case errors.Is(err, errs.ErrRemoteRejected):
			return "", err
		default:
			t.Log.Info("remote create failed, queueing", zap.String("collection", collection), zap.Error(err))
		}
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", collection, err)
	}
	rec, err := t.Queue.Enqueue(ctx, collection, payload)
	if err != nil {
		id := queue.NewTempID()
		t.Log.Warn("queue unavailable, record kept in memory only",
			zap.String("collection", collection), zap.String("temp_id", id), zap.Error(err))
		return id, nil
	}
	t.refreshPending(ctx)
	return rec.TempID, nil
}

func (t *Tracker) refreshPending(ctx context.Context) {
	if t.Reconciler == nil {
		return
	}
	if _, err := t.Reconciler.RefreshPending(ctx); err != nil {
		t.Log.Warn("refresh pending count", zap.Error(err))
	}
}

// FetchMedication resolves a medication id (e.g. from a scanned tag), consulting the
// remote store when the projection does not know it.
func (t *Tracker) FetchMedication(ctx context.Context, id string) (model.Medication, error) {
	if m, ok := t.Projection.Medication(id); ok {
		return m, nil
	}
	if !t.Signal.Online() {
		return model.Medication{}, fmt.Errorf("medication %s: %w", id, errs.ErrNotFound)
	}
	doc, err := t.Remote.Get(ctx, model.CollectionMedications, id)
	if err != nil {
		return model.Medication{}, fmt.Errorf("medication %s: %w", id, err)
	}
	m, err := remote.DecodeMedication(doc)
	if err != nil {
		return model.Medication{}, err
	}
	t.Projection.UpsertMedication(m)
	return m, nil
}

// Medications lists known medications.
func (t *Tracker) Medications() []model.Medication { return t.Projection.Medications() }

// CheckRules evaluates a proposed dose of medicationID at now. A non-positive dose
// means the medication's standard dose.
func (t *Tracker) CheckRules(medicationID string, dose float64, now time.Time) (model.RuleCheckResult, error) {
	med, ok := t.Projection.Medication(medicationID)
	if !ok {
		return model.RuleCheckResult{}, fmt.Errorf("medication %s: %w", medicationID, errs.ErrNotFound)
	}
	if dose <= 0 {
		dose = med.StandardDose
	}
	return rules.CheckMedication(t.Projection, med, dose, now), nil
}

// Streak returns the current intake streak in days.
func (t *Tracker) Streak(now time.Time) int {
	return streak.Calculate(t.Projection.Intakes(), now, t.Projection.Location())
}

// TodayIntakes returns the intakes of the calendar day containing now.
func (t *Tracker) TodayIntakes(now time.Time) []model.Intake {
	return t.Projection.TodayIntakes(now)
}

// PendingCount returns the number of records waiting to sync.
func (t *Tracker) PendingCount(ctx context.Context) (int, error) {
	if t.Reconciler != nil {
		return t.Reconciler.RefreshPending(ctx)
	}
	return t.Queue.Count(ctx)
}
