// Package reconcile promotes queued local creations to permanent remote records.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/metrics"
	"github.com/and161185/medizone/internal/model"
	"github.com/and161185/medizone/internal/queue"
	"github.com/and161185/medizone/internal/remote"
)

// maxRejections bounds the rejection history kept in Status.
const maxRejections = 50

// Projection is the part of the intake projection the reconciler rewrites.
type Projection interface {
	ReplaceID(oldID, newID string) bool
	Remove(id string)
}

// Rejection describes a queued record the remote store refused for good.
type Rejection struct {
	TempID     string    `json:"tempId"`
	Collection string    `json:"collection"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}

// Status is a read-only snapshot for UI collaborators.
type Status struct {
	Pending     int         `json:"pending"`
	LastError   string      `json:"lastError,omitempty"`
	LastRun     time.Time   `json:"lastRun,omitzero"`
	LastSuccess time.Time   `json:"lastSuccess,omitzero"`
	Running     bool        `json:"running"`
	Rejections  []Rejection `json:"rejections,omitempty"`
}

// Result summarizes one Run, including any reruns it absorbed.
type Result struct {
	Promoted  int `json:"promoted" yaml:"promoted"`
	Rejected  int `json:"rejected" yaml:"rejected"`
	Remaining int `json:"remaining" yaml:"remaining"`
	// Stopped is set when a pass ended early on a systemic failure.
	Stopped bool `json:"stopped" yaml:"stopped"`
}

func (r *Result) add(o Result) {
	r.Promoted += o.Promoted
	r.Rejected += o.Rejected
	r.Remaining = o.Remaining
	r.Stopped = o.Stopped
}

// Options tune the reconciler. Zero values select defaults.
type Options struct {
	// MaxPerPass caps entries processed per pass; 0 means no cap.
	MaxPerPass int
	// RetryInterval is the first retry delay while online with pending records.
	RetryInterval time.Duration
	// MaxRetryInterval caps the exponential backoff.
	MaxRetryInterval time.Duration
	// MaxRetries stops retrying after this many consecutive failed passes until the
	// next offline to online transition; 0 means keep retrying.
	MaxRetries int
	// OnPromote is called after an entry got its permanent id, e.g. to re-point
	// local references that live outside the queue.
	OnPromote func(ctx context.Context, collection, tempID, permanentID string)
	Metrics   *metrics.Sync
	Log       *zap.Logger
	Now       func() time.Time
}

// Reconciler drains the queue into the remote store, one pass at a time.
type Reconciler struct {
	queue  queue.Queue
	remote remote.Store
	proj   Projection
	opts   Options
	log    *zap.Logger

	mu      sync.Mutex
	running bool
	rerun   bool
	status  Status
}

// New wires a reconciler.
func New(q queue.Queue, rs remote.Store, proj Projection, opts Options) *Reconciler {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 30 * time.Second
	}
	if opts.MaxRetryInterval <= 0 {
		opts.MaxRetryInterval = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{queue: q, remote: rs, proj: proj, opts: opts, log: log}
}

// Status returns a copy of the observable state.
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.status
	st.Rejections = append([]Rejection(nil), r.status.Rejections...)
	return st
}

// RefreshPending re-reads the queue size into Status.
func (r *Reconciler) RefreshPending(ctx context.Context) (int, error) {
	n, err := r.queue.Count(ctx)
	if err != nil {
		return 0, err
	}
	r.setPending(n)
	return n, nil
}

func (r *Reconciler) setPending(n int) {
	r.mu.Lock()
	r.status.Pending = n
	r.mu.Unlock()
	if r.opts.Metrics != nil {
		r.opts.Metrics.Pending.Set(float64(n))
	}
}

// Run performs a reconciliation pass. While a pass is running, other callers get
// errs.ErrSyncInProgress and the running pass goes around once more before returning,
// also after a failed pass. The returned error is the one of the last pass.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	r.mu.Lock()
	if r.running {
		r.rerun = true
		r.mu.Unlock()
		return Result{}, errs.ErrSyncInProgress
	}
	r.running = true
	r.status.Running = true
	r.mu.Unlock()

	var total Result
	for {
		res, err := r.pass(ctx)
		total.add(res)

		r.mu.Lock()
		// a contended trigger is never dropped, only a cancelled caller ends the loop
		again := r.rerun && ctx.Err() == nil
		r.rerun = false
		if !again {
			r.running = false
			r.status.Running = false
			r.mu.Unlock()
			return total, err
		}
		r.mu.Unlock()
	}
}

func (r *Reconciler) pass(ctx context.Context) (res Result, err error) {
	start := r.opts.Now()
	if m := r.opts.Metrics; m != nil {
		m.Passes.Inc()
		defer func() {
			m.PassDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				m.FailedPasses.Inc()
			}
		}()
	}
	defer func() { r.finish(ctx, start, &res, err) }()

	entries, err := r.queue.ListPending(ctx)
	if err != nil {
		return res, fmt.Errorf("list pending: %w", err)
	}
	aliases, err := r.queue.Aliases(ctx)
	if err != nil {
		return res, fmt.Errorf("load aliases: %w", err)
	}

	pending := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		pending[e.TempID] = struct{}{}
	}

	for i, e := range entries {
		if r.opts.MaxPerPass > 0 && i >= r.opts.MaxPerPass {
			break
		}
		permID, err := r.submit(ctx, e, aliases, pending)
		switch {
		case errors.Is(err, errAwaitingReference):
			r.log.Debug("intake waits for its medication", zap.String("temp_id", e.TempID))

		case err == nil:
			delete(pending, e.TempID)
			aliases[e.TempID] = permID
			if err := r.queue.Promote(ctx, e.TempID, permID); err != nil {
				// The record exists remotely; keep the projection consistent and
				// accept a duplicate on the next pass over losing the entry.
				r.proj.ReplaceID(e.TempID, permID)
				return res, fmt.Errorf("promote %s: %w", e.TempID, err)
			}
			r.proj.ReplaceID(e.TempID, permID)
			if r.opts.OnPromote != nil {
				r.opts.OnPromote(ctx, e.Collection, e.TempID, permID)
			}
			res.Promoted++
			if m := r.opts.Metrics; m != nil {
				m.Promoted.Inc()
			}
			r.log.Debug("promoted", zap.String("temp_id", e.TempID), zap.String("id", permID))

		case errors.Is(err, errs.ErrRemoteRejected):
			if rmErr := r.queue.Remove(ctx, e.TempID); rmErr != nil {
				return res, fmt.Errorf("remove rejected %s: %w", e.TempID, rmErr)
			}
			delete(pending, e.TempID)
			r.proj.Remove(e.TempID)
			r.reject(e, err)
			res.Rejected++
			r.log.Warn("record rejected", zap.String("temp_id", e.TempID),
				zap.String("collection", e.Collection), zap.Error(err))

		default:
			res.Stopped = true
			r.log.Info("remote unavailable, stopping pass", zap.String("temp_id", e.TempID), zap.Error(err))
			return res, fmt.Errorf("create %s: %w", e.TempID, err)
		}
	}
	return res, nil
}

// errAwaitingReference marks an intake whose medication is still queued.
var errAwaitingReference = errors.New("medication not yet promoted")

// submit creates the entry remotely. Intake references to medications that were
// promoted earlier are rewritten to the permanent id first. A temp reference that is
// neither promoted nor pending can never resolve, so the intake is rejected locally
// instead of leaving a temp id in the remote store.
func (r *Reconciler) submit(ctx context.Context, e model.PendingRecord, aliases map[string]string, pending map[string]struct{}) (string, error) {
	fields, err := remote.FieldsFromPayload(e.Payload)
	if err != nil {
		return "", err
	}
	if e.Collection == model.CollectionIntakes {
		if medID, ok := fields["medicationId"].(string); ok && queue.IsTempID(medID) {
			perm, promoted := aliases[medID]
			_, queued := pending[medID]
			switch {
			case promoted:
				fields["medicationId"] = perm
			case queued:
				return "", errAwaitingReference
			default:
				return "", fmt.Errorf("%w: medication %s was never created remotely", errs.ErrRemoteRejected, medID)
			}
		}
	}
	return r.remote.Create(ctx, e.Collection, fields)
}

func (r *Reconciler) reject(e model.PendingRecord, cause error) {
	if m := r.opts.Metrics; m != nil {
		m.Rejected.Inc()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Rejections = append(r.status.Rejections, Rejection{
		TempID:     e.TempID,
		Collection: e.Collection,
		Reason:     cause.Error(),
		At:         r.opts.Now(),
	})
	if n := len(r.status.Rejections); n > maxRejections {
		r.status.Rejections = append([]Rejection(nil), r.status.Rejections[n-maxRejections:]...)
	}
}

func (r *Reconciler) finish(ctx context.Context, start time.Time, res *Result, passErr error) {
	pending, countErr := r.queue.Count(ctx)
	if countErr == nil {
		res.Remaining = pending
		r.setPending(pending)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.LastRun = start
	switch {
	case passErr != nil:
		r.status.LastError = passErr.Error()
	case countErr != nil:
		r.status.LastError = countErr.Error()
	default:
		r.status.LastError = ""
		r.status.LastSuccess = start
	}
}
