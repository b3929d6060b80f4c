package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/and161185/medizone/internal/model"
)

func medCmd() *cobra.Command {
	med := &cobra.Command{Use: "med", Short: "Manage medications"}
	med.AddCommand(medAddCmd(), medListCmd(), medShowCmd())
	return med
}

func medAddCmd() *cobra.Command {
	var m model.Medication
	var form string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a medication",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				m.DosageForm = model.DosageForm(form)
				saved, err := a.tracker.AddMedication(ctx, m)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), a.cfg.Output, saved, medicationsTable([]model.Medication{saved}))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&m.Name, "name", "", "name (required)")
	f.StringVar(&m.Substance, "substance", "", "active substance")
	f.StringVar(&form, "form", string(model.DosageTablet), "dosage form (tablet|capsule|drops|spray|injection|cream|other)")
	f.StringVar(&m.Strength, "strength", "", "strength, e.g. 400mg")
	f.Float64Var(&m.StandardDose, "dose", 0, "standard dose")
	f.StringVar(&m.DoseUnit, "unit", "", "dose unit")
	f.StringVar(&m.Instructions, "instructions", "", "free-form instructions")
	f.Float64Var(&m.MaxPerDay, "max-per-day", 0, "daily ceiling; 0 disables the check")
	f.Float64Var(&m.MinHoursBetween, "min-hours", 0, "minimum hours between intakes; 0 disables the check")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func medListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List medications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *app) error {
				meds := a.tracker.Medications()
				return render(cmd.OutOrStdout(), a.cfg.Output, meds, medicationsTable(meds))
			})
		},
	}
}

func medShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a medication, looking it up remotely if needed (e.g. a scanned tag)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				m, err := a.tracker.FetchMedication(ctx, args[0])
				if err != nil {
					return err
				}
				rems := []model.Reminder{}
				if a.reminders != nil {
					if rems, err = a.reminders.ForMedication(ctx, m.ID); err != nil {
						return err
					}
				}
				view := struct {
					model.Medication `yaml:",inline"`
					Reminders        []model.Reminder `json:"reminders" yaml:"reminders"`
				}{m, rems}
				return render(cmd.OutOrStdout(), a.cfg.Output, view, func(tw table.Writer) {
					tw.AppendRows([]table.Row{
						{"ID", m.ID},
						{"Name", m.Name},
						{"Substance", m.Substance},
						{"Form", m.DosageForm},
						{"Strength", m.Strength},
						{"Standard dose", fmt.Sprintf("%s %s", num(m.StandardDose), m.DoseUnit)},
						{"Max per day", num(m.MaxPerDay)},
						{"Min hours between", num(m.MinHoursBetween)},
						{"Instructions", m.Instructions},
						{"Reminders", len(rems)},
						{"Sync", pendingMark(m.ID)},
					})
				})
			})
		},
	}
}
