// Package projection holds the in-memory, time-indexed view of medications and intakes
// that the rule evaluator and the streak calculator read from.
package projection

import (
	"sort"
	"sync"
	"time"

	"github.com/and161185/medizone/internal/model"
)

// Projection is safe for concurrent use; writes are serialized by a single lock.
//
// Day-scoped queries bucket intakes by the calendar date of their timestamp in loc,
// so "today" resets at local midnight rather than being a rolling 24 hour window.
type Projection struct {
	mu          sync.RWMutex
	loc         *time.Location
	medications map[string]model.Medication
	intakes     map[string]model.Intake
	order       map[string]uint64 // id -> insertion sequence, keeps snapshots stable
	seq         uint64
}

// New returns an empty projection bucketing days in loc (time.Local when nil).
func New(loc *time.Location) *Projection {
	if loc == nil {
		loc = time.Local
	}
	return &Projection{
		loc:         loc,
		medications: make(map[string]model.Medication),
		intakes:     make(map[string]model.Intake),
		order:       make(map[string]uint64),
	}
}

// Location returns the zone used for calendar-day bucketing.
func (p *Projection) Location() *time.Location { return p.loc }

// UpsertMedication inserts or replaces a medication by id.
func (p *Projection) UpsertMedication(m model.Medication) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touch(m.ID)
	p.medications[m.ID] = m
}

// UpsertIntake inserts or replaces an intake by id.
func (p *Projection) UpsertIntake(in model.Intake) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touch(in.ID)
	p.intakes[in.ID] = in
}

// Remove deletes the record with id from whichever collection holds it.
func (p *Projection) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.medications, id)
	delete(p.intakes, id)
	delete(p.order, id)
}

// ReplaceID re-keys the record oldID as newID, keeping every other field. Intakes that
// reference a re-keyed medication follow it. If newID is already present (an earlier
// hydrate fetched it), the old record is dropped so exactly one record remains.
// It reports whether oldID was found.
func (p *Projection) ReplaceID(oldID, newID string) bool {
	if oldID == newID {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	found := false
	if m, ok := p.medications[oldID]; ok {
		found = true
		delete(p.medications, oldID)
		if _, exists := p.medications[newID]; !exists {
			m.ID = newID
			p.medications[newID] = m
		}
		for id, in := range p.intakes {
			if in.MedicationID == oldID {
				in.MedicationID = newID
				p.intakes[id] = in
			}
		}
	}
	if in, ok := p.intakes[oldID]; ok {
		found = true
		delete(p.intakes, oldID)
		if _, exists := p.intakes[newID]; !exists {
			in.ID = newID
			p.intakes[newID] = in
		}
	}
	if found {
		if _, exists := p.order[newID]; !exists {
			p.order[newID] = p.order[oldID]
		}
		delete(p.order, oldID)
	}
	return found
}

// Medication returns the medication with id.
func (p *Projection) Medication(id string) (model.Medication, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.medications[id]
	return m, ok
}

// Medications returns all medications in insertion order.
func (p *Projection) Medications() []model.Medication {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Medication, 0, len(p.medications))
	for _, m := range p.medications {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return p.order[out[i].ID] < p.order[out[j].ID] })
	return out
}

// Intakes returns all intakes in insertion order, including ones with unparseable timestamps.
func (p *Projection) Intakes() []model.Intake {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.intakesLocked(func(model.Intake) bool { return true })
}

// TodayIntakes returns intakes whose timestamp falls on the calendar day of now.
func (p *Projection) TodayIntakes(now time.Time) []model.Intake {
	day := model.DayKey(now, p.loc)
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.intakesLocked(func(in model.Intake) bool { return p.onDay(in, day) })
}

// IntakesForMedication returns the intakes of medicationID on the calendar day containing day.
func (p *Projection) IntakesForMedication(medicationID string, day time.Time) []model.Intake {
	key := model.DayKey(day, p.loc)
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.intakesLocked(func(in model.Intake) bool {
		return in.MedicationID == medicationID && p.onDay(in, key)
	})
}

// DoseSumForMedication sums the doses of medicationID on the given day.
func (p *Projection) DoseSumForMedication(medicationID string, day time.Time) float64 {
	var sum float64
	for _, in := range p.IntakesForMedication(medicationID, day) {
		sum += in.Dose
	}
	return sum
}

// LastIntakeForMedication returns the latest intake of medicationID on the given day.
func (p *Projection) LastIntakeForMedication(medicationID string, day time.Time) (model.Intake, time.Time, bool) {
	var (
		last   model.Intake
		lastAt time.Time
		found  bool
	)
	for _, in := range p.IntakesForMedication(medicationID, day) {
		ts, ok := model.ParseTimestamp(in.TimestampISO, p.loc)
		if !ok {
			continue
		}
		if !found || ts.After(lastAt) {
			last, lastAt, found = in, ts, true
		}
	}
	return last, lastAt, found
}

func (p *Projection) onDay(in model.Intake, day string) bool {
	ts, ok := model.ParseTimestamp(in.TimestampISO, p.loc)
	return ok && model.DayKey(ts, p.loc) == day
}

func (p *Projection) intakesLocked(keep func(model.Intake) bool) []model.Intake {
	var out []model.Intake
	for _, in := range p.intakes {
		if keep(in) {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return p.order[out[i].ID] < p.order[out[j].ID] })
	return out
}

func (p *Projection) touch(id string) {
	if _, ok := p.order[id]; !ok {
		p.seq++
		p.order[id] = p.seq
	}
}
