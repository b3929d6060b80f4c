package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/metrics"
	"github.com/and161185/medizone/internal/model"
	"github.com/and161185/medizone/internal/projection"
	"github.com/and161185/medizone/internal/queue"
	"github.com/and161185/medizone/internal/remote"
)

type fixture struct {
	q    *queue.Memory
	rs   *remote.Memory
	proj *projection.Projection
	r    *Reconciler
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{q: queue.NewMemory(), rs: remote.NewMemory(), proj: projection.New(time.UTC)}
	opts.Log = zaptest.NewLogger(t)
	f.r = New(f.q, f.rs, f.proj, opts)
	return f
}

func (f *fixture) addMedication(t *testing.T, name string) string {
	t.Helper()
	med := model.Medication{Name: name, DosageForm: model.DosageTablet, StandardDose: 1, OwnerID: "u1"}
	rec := f.enqueue(t, model.CollectionMedications, med)
	med.ID = rec.TempID
	f.proj.UpsertMedication(med)
	return rec.TempID
}

func (f *fixture) logIntake(t *testing.T, medID string, dose float64) string {
	t.Helper()
	in := model.Intake{MedicationID: medID, TimestampISO: "2026-10-19T08:00:00Z", Dose: dose, OwnerID: "u1"}
	rec := f.enqueue(t, model.CollectionIntakes, in)
	in.ID = rec.TempID
	f.proj.UpsertIntake(in)
	return rec.TempID
}

func (f *fixture) enqueue(t *testing.T, collection string, v any) model.PendingRecord {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	rec, err := f.q.Enqueue(context.Background(), collection, raw)
	require.NoError(t, err)
	return rec
}

func (f *fixture) pending(t *testing.T) int {
	t.Helper()
	n, err := f.q.Count(context.Background())
	require.NoError(t, err)
	return n
}

// count is safe to call from require.Eventually conditions.
func (f *fixture) count() int {
	n, err := f.q.Count(context.Background())
	if err != nil {
		return -1
	}
	return n
}

func TestRun_PromotesAndNeverResubmits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})
	ids := []string{f.addMedication(t, "A"), f.addMedication(t, "B"), f.addMedication(t, "C")}

	res, err := f.r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{Promoted: 3}, res)
	require.Zero(t, f.pending(t))
	require.Len(t, f.rs.CreateCalls(), 3)

	meds := f.proj.Medications()
	require.Len(t, meds, 3)
	for _, m := range meds {
		require.False(t, queue.IsTempID(m.ID), "temp id %s survived", m.ID)
		require.NotContains(t, ids, m.ID)
	}

	res, err = f.r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{}, res)
	require.Len(t, f.rs.CreateCalls(), 3, "promoted records must not be submitted again")

	st := f.r.Status()
	require.Zero(t, st.Pending)
	require.Empty(t, st.LastError)
	require.False(t, st.LastSuccess.IsZero())
	require.False(t, st.Running)
}

func TestRun_AmbiguousTimeoutKeepsEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})
	tempID := f.addMedication(t, "A")

	f.rs.SetCreateHook(func(string, map[string]any) (bool, error) {
		return true, fmt.Errorf("%w: %v", errs.ErrRemoteUnavailable, context.DeadlineExceeded)
	})
	res, err := f.r.Run(ctx)
	require.ErrorIs(t, err, errs.ErrRemoteUnavailable)
	require.True(t, res.Stopped)
	require.Equal(t, 1, res.Remaining)

	pending, err := f.q.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, tempID, pending[0].TempID)

	_, ok := f.proj.Medication(tempID)
	require.True(t, ok, "optimistic record stays visible")

	st := f.r.Status()
	require.Equal(t, 1, st.Pending)
	require.Contains(t, st.LastError, "remote unavailable")
	require.True(t, st.LastSuccess.IsZero())
}

func TestRun_RejectedIsDroppedAndPassContinues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})
	bad := f.addMedication(t, "") // empty name never validates
	good := f.addMedication(t, "B")

	res, err := f.r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Promoted)
	require.Equal(t, 1, res.Rejected)
	require.Zero(t, f.pending(t))

	_, ok := f.proj.Medication(bad)
	require.False(t, ok)
	_, ok = f.proj.Medication(good)
	require.False(t, ok, "replaced by permanent id")
	require.Len(t, f.proj.Medications(), 1)

	st := f.r.Status()
	require.Len(t, st.Rejections, 1)
	require.Equal(t, bad, st.Rejections[0].TempID)
	require.Equal(t, model.CollectionMedications, st.Rejections[0].Collection)
}

func TestRun_UnavailableStopsPass(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})
	for i := 0; i < 3; i++ {
		f.addMedication(t, fmt.Sprintf("M%d", i))
	}
	f.rs.SetDown(true)

	res, err := f.r.Run(ctx)
	require.ErrorIs(t, err, errs.ErrRemoteUnavailable)
	require.True(t, res.Stopped)
	require.Len(t, f.rs.CreateCalls(), 1, "no further entries after a systemic failure")
	require.Equal(t, 3, f.pending(t))

	f.rs.SetDown(false)
	res, err = f.r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, res.Promoted)
	require.Empty(t, f.r.Status().LastError)
}

func TestRun_MaxPerPass(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{MaxPerPass: 2})
	for i := 0; i < 5; i++ {
		f.addMedication(t, fmt.Sprintf("M%d", i))
	}
	res, err := f.r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.Promoted)
	require.Equal(t, 3, res.Remaining)
	require.Equal(t, 3, f.r.Status().Pending)
}

func TestRun_IntakeFollowsPromotedMedication(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{MaxPerPass: 1})
	medTemp := f.addMedication(t, "Ibuprofen")
	intakeTemp := f.logIntake(t, medTemp, 400)

	_, err := f.r.Run(ctx)
	require.NoError(t, err)
	meds := f.proj.Medications()
	require.Len(t, meds, 1)
	permMed := meds[0].ID

	// second pass resolves the reference through the persisted alias
	_, err = f.r.Run(ctx)
	require.NoError(t, err)

	calls := f.rs.CreateCalls()
	require.Len(t, calls, 2)
	require.Equal(t, permMed, calls[1]["medicationId"])

	intakes := f.proj.Intakes()
	require.Len(t, intakes, 1)
	require.NotEqual(t, intakeTemp, intakes[0].ID)
	require.Equal(t, permMed, intakes[0].MedicationID)
	require.Equal(t, 400.0, intakes[0].Dose)

	docs, err := f.rs.Query(ctx, model.CollectionIntakes, "u1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, permMed, docs[0].Fields["medicationId"])
}

func TestRun_IntakeOfRejectedMedicationIsRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.rs.SetCreateHook(func(collection string, _ map[string]any) (bool, error) {
		if collection == model.CollectionMedications {
			return false, fmt.Errorf("%w: unknown substance", errs.ErrRemoteRejected)
		}
		return true, nil
	})
	medTemp := f.addMedication(t, "Ibuprofen")
	intakeTemp := f.logIntake(t, medTemp, 400)

	res, err := f.r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{Rejected: 2}, res)
	require.Len(t, f.rs.CreateCalls(), 1, "the intake never reaches the remote store")
	require.Zero(t, f.rs.Len(model.CollectionIntakes))
	require.Zero(t, f.pending(t))
	require.Empty(t, f.proj.Medications())
	require.Empty(t, f.proj.Intakes())

	st := f.r.Status()
	require.Len(t, st.Rejections, 2)
	require.Equal(t, intakeTemp, st.Rejections[1].TempID)
	require.Equal(t, model.CollectionIntakes, st.Rejections[1].Collection)
	require.Contains(t, st.Rejections[1].Reason, medTemp)
}

func TestRun_IntakeOfUnknownTempMedicationAcrossPasses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{MaxPerPass: 1})
	bad := f.addMedication(t, "") // empty name never validates
	f.logIntake(t, bad, 1)

	res, err := f.r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Rejected)
	require.Equal(t, 1, f.pending(t))

	res, err = f.r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{Rejected: 1}, res)
	require.Len(t, f.rs.CreateCalls(), 1)
	require.Empty(t, f.proj.Intakes())
}

// reversedQueue lists entries newest first.
type reversedQueue struct{ *queue.Memory }

func (q reversedQueue) ListPending(ctx context.Context) ([]model.PendingRecord, error) {
	recs, err := q.Memory.ListPending(ctx)
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, err
}

func TestRun_IntakeWaitsForQueuedMedication(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})
	r := New(reversedQueue{f.q}, f.rs, f.proj, Options{Log: zaptest.NewLogger(t)})
	medTemp := f.addMedication(t, "Ibuprofen")
	f.logIntake(t, medTemp, 1)

	res, err := r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Promoted)
	require.Zero(t, res.Rejected)
	require.Equal(t, 1, f.pending(t), "intake stays queued")

	res, err = r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Promoted)
	calls := f.rs.CreateCalls()
	require.Len(t, calls, 2)
	require.False(t, queue.IsTempID(calls[1]["medicationId"].(string)))
}

func TestRun_SingleFlightWithRerun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.addMedication(t, "first")

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.rs.SetCreateHook(func(string, map[string]any) (bool, error) {
		once.Do(func() {
			close(entered)
			<-release
		})
		return true, nil
	})

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := f.r.Run(ctx)
		done <- outcome{res, err}
	}()
	<-entered

	_, err := f.r.Run(ctx)
	require.ErrorIs(t, err, errs.ErrSyncInProgress)
	require.True(t, f.r.Status().Running)

	f.addMedication(t, "second")
	close(release)

	out := <-done
	require.NoError(t, out.err)
	require.Equal(t, 2, out.res.Promoted, "the rerun picked up the late entry")
	require.Zero(t, out.res.Remaining)
	require.False(t, f.r.Status().Running)
}

func TestRun_RerunAfterFailedPass(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.addMedication(t, "A")

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	f.rs.SetCreateHook(func(string, map[string]any) (bool, error) {
		calls++
		if calls == 1 {
			close(entered)
			<-release
			return false, fmt.Errorf("%w: connection reset", errs.ErrRemoteUnavailable)
		}
		return true, nil
	})

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := f.r.Run(ctx)
		done <- outcome{res, err}
	}()
	<-entered

	_, err := f.r.Run(ctx)
	require.ErrorIs(t, err, errs.ErrSyncInProgress)
	close(release)

	out := <-done
	require.NoError(t, out.err, "the contended trigger ran after the failure")
	require.Equal(t, 1, out.res.Promoted)
	require.False(t, out.res.Stopped)
	require.Zero(t, f.pending(t))
	require.Len(t, f.rs.CreateCalls(), 2)
}

type brokenQueue struct {
	queue.Queue
}

func (brokenQueue) ListPending(context.Context) ([]model.PendingRecord, error) {
	return nil, fmt.Errorf("queue list: %w: disk I/O error", errs.ErrQueueUnavailable)
}

func (brokenQueue) Count(context.Context) (int, error) {
	return 0, fmt.Errorf("queue count: %w: disk I/O error", errs.ErrQueueUnavailable)
}

func TestRun_QueueFailureBecomesStatus(t *testing.T) {
	t.Parallel()
	r := New(brokenQueue{}, remote.NewMemory(), projection.New(time.UTC), Options{Log: zaptest.NewLogger(t)})

	_, err := r.Run(context.Background())
	require.ErrorIs(t, err, errs.ErrQueueUnavailable)
	st := r.Status()
	require.Contains(t, st.LastError, "queue unavailable")
	require.False(t, st.Running)

	_, err = r.RefreshPending(context.Background())
	require.ErrorIs(t, err, errs.ErrQueueUnavailable)
}

func TestRun_Metrics(t *testing.T) {
	t.Parallel()
	m := metrics.NewSync(prometheus.NewRegistry())
	f := newFixture(t, Options{Metrics: m})
	f.addMedication(t, "")
	f.addMedication(t, "ok")
	f.addMedication(t, "later")
	f.rs.SetCreateHook(func(_ string, fields map[string]any) (bool, error) {
		if fields["name"] == "later" {
			return false, errors.Join(errs.ErrRemoteUnavailable, errors.New("connection reset"))
		}
		return true, nil
	})

	_, err := f.r.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Passes))
	require.Equal(t, 1.0, testutil.ToFloat64(m.FailedPasses))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Promoted))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Rejected))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Pending))
}

func TestRefreshPending(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	f.addMedication(t, "A")
	f.addMedication(t, "B")
	n, err := f.r.RefreshPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 2, f.r.Status().Pending)
}

func TestRun_OnPromote(t *testing.T) {
	t.Parallel()
	type promotion struct{ collection, temp, perm string }
	var got []promotion
	f := newFixture(t, Options{OnPromote: func(_ context.Context, collection, temp, perm string) {
		got = append(got, promotion{collection, temp, perm})
	}})
	medTemp := f.addMedication(t, "A")
	f.logIntake(t, medTemp, 1)

	_, err := f.r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, model.CollectionMedications, got[0].collection)
	require.Equal(t, medTemp, got[0].temp)
	require.Equal(t, f.proj.Medications()[0].ID, got[0].perm)
	require.Equal(t, model.CollectionIntakes, got[1].collection)
}
