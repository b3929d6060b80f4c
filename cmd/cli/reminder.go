package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/medizone/internal/model"
	"github.com/and161185/medizone/internal/reminder"
)

func reminderCmd() *cobra.Command {
	r := &cobra.Command{Use: "reminder", Short: "Manage daily intake reminders"}
	r.AddCommand(reminderAddCmd(), reminderListCmd(), reminderRmCmd(), reminderToggleCmd(), reminderSnoozeCmd())
	return r
}

func (a *app) medicationName(id string) string {
	if m, ok := a.tracker.Projection.Medication(id); ok {
		return m.Name
	}
	return id
}

func (a *app) printReminders(cmd *cobra.Command, rems []model.Reminder) error {
	return render(cmd.OutOrStdout(), a.cfg.Output, rems, remindersTable(rems, a.medicationName))
}

func reminderAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <medication-id> <HH:MM>",
		Short: "Add a daily reminder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rs, err := a.reminderStore()
				if err != nil {
					return err
				}
				med, err := a.tracker.FetchMedication(ctx, args[0])
				if err != nil {
					return err
				}
				clock, err := reminder.ParseClock(args[1])
				if err != nil {
					return err
				}
				rem, err := rs.Add(ctx, med.ID, clock)
				if err != nil {
					return err
				}
				return a.printReminders(cmd, []model.Reminder{rem})
			})
		},
	}
}

func reminderListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List reminders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rs, err := a.reminderStore()
				if err != nil {
					return err
				}
				rems, err := rs.List(ctx)
				if err != nil {
					return err
				}
				return a.printReminders(cmd, rems)
			})
		},
	}
}

func reminderRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rs, err := a.reminderStore()
				if err != nil {
					return err
				}
				return rs.Remove(ctx, args[0])
			})
		},
	}
}

func reminderToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Enable or disable a reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rs, err := a.reminderStore()
				if err != nil {
					return err
				}
				rem, err := rs.Toggle(ctx, args[0])
				if err != nil {
					return err
				}
				return a.printReminders(cmd, []model.Reminder{rem})
			})
		},
	}
}

func reminderSnoozeCmd() *cobra.Command {
	var d time.Duration
	cmd := &cobra.Command{
		Use:   "snooze <id>",
		Short: "Fire a reminder again after a delay instead of at its daily time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rs, err := a.reminderStore()
				if err != nil {
					return err
				}
				if err := rs.Snooze(ctx, args[0], time.Now().Add(d)); err != nil {
					return err
				}
				rem, err := rs.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return a.printReminders(cmd, []model.Reminder{rem})
			})
		},
	}
	cmd.Flags().DurationVar(&d, "for", reminder.DefaultSnooze, "snooze duration")
	return cmd
}
