package reminder

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/medizone/internal/model"
)

// Notification is handed to a Notifier when a reminder fires.
type Notification struct {
	Reminder       model.Reminder
	MedicationName string
	At             time.Time
}

// Notifier delivers reminders to the user. Delivery itself is outside this package.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Source is the part of Store the scheduler needs.
type Source interface {
	List(ctx context.Context) ([]model.Reminder, error)
	ClearSnooze(ctx context.Context, id string) error
}

// Scheduler checks reminders periodically and fires each due reminder at most once per minute.
type Scheduler struct {
	Source   Source
	Notifier Notifier
	// Lookup resolves a medication name for the notification; optional.
	Lookup   func(medicationID string) (model.Medication, bool)
	Location *time.Location
	Interval time.Duration
	Now      func() time.Time
	Log      *zap.Logger

	mu    sync.Mutex
	fired map[string]string // reminder id -> minute it last fired
}

// Run calls Tick every Interval (30s by default) until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := s.Tick(ctx); err != nil {
			s.logger().Warn("reminder tick", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Tick fires every reminder due now and returns how many fired.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	now := s.now()
	minute := now.Format("2006-01-02T15:04")

	rems, err := s.Source.List(ctx)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	if s.fired == nil {
		s.fired = make(map[string]string)
	}
	s.mu.Unlock()

	fired := 0
	for _, rem := range rems {
		if !Due(rem, now) || s.firedIn(rem.ID, minute) {
			continue
		}
		n := Notification{Reminder: rem, At: now}
		if s.Lookup != nil {
			if med, ok := s.Lookup(rem.MedicationID); ok {
				n.MedicationName = med.Name
			}
		}
		if err := s.Notifier.Notify(ctx, n); err != nil {
			s.logger().Warn("notify", zap.String("reminder_id", rem.ID), zap.Error(err))
			continue
		}
		s.markFired(rem.ID, minute)
		fired++
		if rem.SnoozedUntil != nil {
			if err := s.Source.ClearSnooze(ctx, rem.ID); err != nil {
				s.logger().Warn("clear snooze", zap.String("reminder_id", rem.ID), zap.Error(err))
			}
		}
	}
	return fired, nil
}

func (s *Scheduler) firedIn(id, minute string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired[id] == minute
}

func (s *Scheduler) markFired(id, minute string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired[id] = minute
}

func (s *Scheduler) now() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc)
}

func (s *Scheduler) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
