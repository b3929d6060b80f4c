package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/and161185/medizone/internal/config"
	"github.com/and161185/medizone/internal/model"
	"github.com/and161185/medizone/internal/queue"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// render prints v as JSON or YAML, or calls tableFn for the table format.
func render(w io.Writer, format string, v any, tableFn func(table.Writer)) error {
	switch format {
	case config.OutputJSON:
		return printJSON(w, v)
	case config.OutputYAML:
		return printYAML(w, v)
	default:
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleLight)
		tableFn(tw)
		tw.Render()
		return nil
	}
}

func num(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func pendingMark(id string) string {
	if queue.IsTempID(id) {
		return "pending"
	}
	return ""
}

func medicationsTable(meds []model.Medication) func(table.Writer) {
	return func(tw table.Writer) {
		tw.AppendHeader(table.Row{"ID", "Name", "Form", "Dose", "Max/day", "Min h", "Sync"})
		for _, m := range meds {
			dose := num(m.StandardDose)
			if dose != "" && m.DoseUnit != "" {
				dose += " " + m.DoseUnit
			}
			tw.AppendRow(table.Row{m.ID, m.Name, m.DosageForm, dose, num(m.MaxPerDay), num(m.MinHoursBetween), pendingMark(m.ID)})
		}
	}
}

func intakesTable(in []model.Intake, loc *time.Location) func(table.Writer) {
	return func(tw table.Writer) {
		tw.AppendHeader(table.Row{"Time", "Medication", "Dose", "Note", "Sync"})
		for _, i := range in {
			when := i.TimestampISO
			if t, ok := model.ParseTimestamp(i.TimestampISO, loc); ok {
				when = t.In(loc).Format("15:04")
			}
			name := i.MedicationName
			if name == "" {
				name = i.MedicationID
			}
			tw.AppendRow(table.Row{when, name, num(i.Dose) + " " + i.DoseUnit, i.Note, pendingMark(i.ID)})
		}
		tw.AppendFooter(table.Row{"", fmt.Sprintf("%d intakes", len(in)), "", "", ""})
	}
}

func remindersTable(rems []model.Reminder, names func(string) string) func(table.Writer) {
	return func(tw table.Writer) {
		tw.AppendHeader(table.Row{"ID", "Time", "Medication", "Enabled", "Snoozed until"})
		for _, r := range rems {
			snoozed := ""
			if r.SnoozedUntil != nil {
				snoozed = r.SnoozedUntil.Format("15:04")
			}
			tw.AppendRow(table.Row{r.ID, r.Time, names(r.MedicationID), r.Enabled, snoozed})
		}
	}
}
