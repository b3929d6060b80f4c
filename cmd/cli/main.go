// Command mz is the medizone client: it records medications and intakes offline-first
// and keeps the local queue in sync with the remote store.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/and161185/medizone/internal/config"
	"github.com/and161185/medizone/internal/connectivity"
	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/localdb"
	"github.com/and161185/medizone/internal/metrics"
	"github.com/and161185/medizone/internal/model"
	"github.com/and161185/medizone/internal/projection"
	"github.com/and161185/medizone/internal/queue"
	"github.com/and161185/medizone/internal/reconcile"
	"github.com/and161185/medizone/internal/reminder"
	"github.com/and161185/medizone/internal/remote"
	"github.com/and161185/medizone/internal/remote/grpcstore"
	"github.com/and161185/medizone/internal/remote/s3store"
	"github.com/and161185/medizone/internal/tracker"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// app is everything a command needs, opened once per invocation.
type app struct {
	cfg       config.Config
	log       *zap.Logger
	db        *sql.DB
	queue     queue.Queue
	remote    remote.Store
	monitor   *connectivity.Monitor
	prober    *connectivity.Prober
	rec       *reconcile.Reconciler
	tracker   *tracker.Tracker
	reminders *reminder.Store
	dbErr     error
	registry  *prometheus.Registry
	closers   []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	_ = a.log.Sync()
}

func newLogger(debug bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		l, err = cfg.Build()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// openRemote builds the configured backend and a connectivity check for it.
func openRemote(ctx context.Context, cfg config.Config, owner string) (remote.Store, connectivity.Checker, func() error, error) {
	switch cfg.Remote {
	case config.RemoteGRPC:
		st, err := grpcstore.Dial(cfg.Addr, grpcstore.Options{
			Token:       cfg.Token,
			CACert:      cfg.CACert,
			SkipVerify:  cfg.Insecure,
			Plaintext:   cfg.Plaintext,
			CallTimeout: cfg.CallTimeout,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return st, connectivity.NewHealthChecker(st.Conn()), st.Close, nil
	case config.RemoteS3:
		st, err := s3store.New(ctx, s3store.Config{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Owner:           owner,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKey,
			SecretAccessKey: cfg.S3.SecretKey,
			PathStyle:       cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return st, connectivity.CheckerFunc(st.Ping), func() error { return nil }, nil
	default:
		return remote.NewMemory(), connectivity.CheckerFunc(func(context.Context) error { return nil }),
			func() error { return nil }, nil
	}
}

func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, log: newLogger(cfg.Debug), registry: prometheus.NewRegistry()}

	db, err := localdb.Open(ctx, cfg.DataDir)
	if err != nil {
		// the queue is not a gate on usability: keep going in memory
		a.log.Warn("local database unavailable, pending records are kept in memory only",
			zap.String("path", localdb.Path(cfg.DataDir)), zap.Error(err))
		a.dbErr = err
		a.queue = queue.NewMemory()
	} else {
		a.db = db
		a.closers = append(a.closers, db.Close)
		a.queue = queue.NewSQLite(db)
		a.reminders = reminder.NewStore(db)
	}

	rs, checker, closeRemote, err := openRemote(ctx, cfg, cfg.Owner)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("remote: %w", err)
	}
	a.remote = rs
	a.closers = append(a.closers, closeRemote)

	proj := projection.New(cfg.Location())
	a.rec = reconcile.New(a.queue, rs, proj, reconcile.Options{
		MaxPerPass:       cfg.Sync.MaxPerPass,
		RetryInterval:    cfg.Sync.RetryInterval,
		MaxRetryInterval: cfg.Sync.MaxRetryInterval,
		MaxRetries:       cfg.Sync.MaxRetries,
		OnPromote:        a.retargetReminders,
		Metrics:          metrics.NewSync(a.registry),
		Log:              a.log,
	})

	a.monitor = connectivity.NewMonitor(false)
	a.prober = &connectivity.Prober{
		Checker:  checker,
		Monitor:  a.monitor,
		Interval: cfg.ProbeInterval,
		Timeout:  cfg.CallTimeout,
		Log:      a.log,
	}
	a.prober.ProbeOnce(ctx)

	a.tracker, err = tracker.New(tracker.Deps{
		Queue:      a.queue,
		Remote:     rs,
		Projection: proj,
		Signal:     a.monitor,
		Reconciler: a.rec,
		Owner:      cfg.Owner,
		Log:        a.log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.tracker.Hydrate(ctx); err != nil {
		a.log.Warn("hydrate from remote", zap.Error(err))
	}
	return a, nil
}

func (a *app) retargetReminders(ctx context.Context, collection, tempID, permID string) {
	if collection != model.CollectionMedications || a.reminders == nil {
		return
	}
	if err := a.reminders.RetargetMedication(ctx, tempID, permID); err != nil {
		a.log.Warn("retarget reminders", zap.String("temp_id", tempID), zap.Error(err))
	}
}

// reminderStore returns the reminder store, which needs the local database.
func (a *app) reminderStore() (*reminder.Store, error) {
	if a.reminders == nil {
		return nil, fmt.Errorf("reminders: %w: %v", errs.ErrQueueUnavailable, a.dbErr)
	}
	return a.reminders, nil
}

// withApp loads configuration, opens the app and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mz",
		Short:         "Offline-first medication and intake tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.String("data-dir", config.DefaultDataDir(), "local data directory")
	pf.String("owner", "", "owner id the records belong to")
	pf.String("remote", config.RemoteGRPC, "remote backend (grpc|s3|memory)")
	pf.String("addr", "localhost:8443", "remote store address")
	pf.String("token", "", "bearer token for the remote store")
	pf.String("cacert", "", "CA cert (PEM)")
	pf.Bool("insecure", false, "skip cert verify (dev)")
	pf.Bool("plaintext", false, "dial without TLS (dev)")
	pf.String("timezone", "Local", "IANA zone used for calendar days")
	pf.StringP("output", "o", config.OutputTable, "output format (table|json|yaml)")
	pf.Bool("debug", false, "debug logging")
	for _, name := range []string{"data-dir", "owner", "remote", "addr", "token", "cacert", "insecure", "plaintext", "timezone", "output", "debug"} {
		_ = viper.BindPFlag(name, pf.Lookup(name))
	}

	root.AddCommand(
		medCmd(),
		intakeCmd(),
		checkCmd(),
		streakCmd(),
		syncCmd(),
		pendingCmd(),
		reminderCmd(),
		agentCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "mz %s (%s)\n", version, buildDate)
			return err
		},
	}
}

// main runs the root command until it returns or the process is interrupted.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// parseAt accepts RFC 3339 or a local "15:04" clock time for today.
func parseAt(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	clock, err := time.ParseInLocation("15:04", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at %q: want RFC 3339 or HH:MM", s)
	}
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day(), clock.Hour(), clock.Minute(), 0, 0, loc), nil
}
