package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/model"
)

func intakeCmd() *cobra.Command {
	in := &cobra.Command{Use: "intake", Short: "Record and list intakes"}
	in.AddCommand(intakeLogCmd(), intakeTodayCmd())
	return in
}

func intakeLogCmd() *cobra.Command {
	var (
		rec   model.Intake
		at    string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "log <medication-id>",
		Short: "Record an intake; dose and unit default to the medication's standard dose",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				now := time.Now()
				when, err := parseAt(at, now, a.cfg.Location())
				if err != nil {
					return err
				}
				rec.MedicationID = args[0]
				rec.TimestampISO = model.FormatTimestamp(when, a.cfg.Location())

				// rules are advisory: warn, and refuse only without --force
				res, err := a.tracker.CheckRules(rec.MedicationID, rec.Dose, when)
				switch {
				case errors.Is(err, errs.ErrNotFound):
					fmt.Fprintf(cmd.ErrOrStderr(), "note: medication %s is not known locally, dosing rules not checked\n", rec.MedicationID)
				case err != nil:
					return err
				case res.Violated():
					printViolation(cmd, res)
					if !force {
						return fmt.Errorf("rule check failed; use --force to record anyway")
					}
				}
				saved, err := a.tracker.LogIntake(ctx, rec)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), a.cfg.Output, saved, intakesTable([]model.Intake{saved}, a.cfg.Location()))
			})
		},
	}
	f := cmd.Flags()
	f.Float64Var(&rec.Dose, "dose", 0, "dose; 0 means the standard dose")
	f.StringVar(&rec.DoseUnit, "unit", "", "dose unit")
	f.StringVar(&rec.Note, "note", "", "note")
	f.BoolVar(&rec.WithFood, "with-food", false, "taken with food")
	f.StringVar(&at, "at", "", "when (RFC 3339 or HH:MM today); default now")
	f.BoolVar(&force, "force", false, "record even if a dosing rule is violated")
	return cmd
}

func printViolation(cmd *cobra.Command, res model.RuleCheckResult) {
	w := cmd.ErrOrStderr()
	if res.ExceedsMaxPerDay {
		fmt.Fprintf(w, "warning: daily total would be %s (today so far %s)\n", num(res.ProjectedTotal), num(res.SumToday))
	}
	if res.TooSoon {
		fmt.Fprintf(w, "warning: too soon, next intake allowed in %d min\n", res.MinutesUntilAllowed)
	}
}

func intakeTodayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "List today's intakes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *app) error {
				in := a.tracker.TodayIntakes(time.Now())
				return render(cmd.OutOrStdout(), a.cfg.Output, in, intakesTable(in, a.cfg.Location()))
			})
		},
	}
}

func checkCmd() *cobra.Command {
	var dose float64
	var at string
	cmd := &cobra.Command{
		Use:   "check <medication-id>",
		Short: "Evaluate dosing rules for a proposed intake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(_ context.Context, a *app) error {
				when, err := parseAt(at, time.Now(), a.cfg.Location())
				if err != nil {
					return err
				}
				res, err := a.tracker.CheckRules(args[0], dose, when)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), a.cfg.Output, res, func(tw table.Writer) {
					tw.AppendRows([]table.Row{
						{"Today so far", num(res.SumToday)},
						{"Projected total", num(res.ProjectedTotal)},
						{"Exceeds daily max", res.ExceedsMaxPerDay},
						{"Too soon", res.TooSoon},
						{"Minutes until allowed", res.MinutesUntilAllowed},
					})
				})
			})
		},
	}
	cmd.Flags().Float64Var(&dose, "dose", 0, "proposed dose; 0 means the standard dose")
	cmd.Flags().StringVar(&at, "at", "", "when (RFC 3339 or HH:MM today); default now")
	return cmd
}

func streakCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streak",
		Short: "Consecutive days with at least one intake",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *app) error {
				days := a.tracker.Streak(time.Now())
				return render(cmd.OutOrStdout(), a.cfg.Output, map[string]int{"days": days}, func(tw table.Writer) {
					tw.AppendRow(table.Row{"Streak", fmt.Sprintf("%d days", days)})
				})
			})
		},
	}
}
