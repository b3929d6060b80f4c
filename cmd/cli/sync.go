package main

import (
	"context"
	"errors"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/and161185/medizone/internal/errs"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push pending local records to the remote store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if !a.monitor.Online() {
					return errors.New("remote unreachable; records stay queued")
				}
				res, err := a.rec.Run(ctx)
				if err != nil && !errors.Is(err, errs.ErrRemoteUnavailable) {
					return err
				}
				if rerr := render(cmd.OutOrStdout(), a.cfg.Output, res, func(tw table.Writer) {
					tw.AppendRows([]table.Row{
						{"Promoted", res.Promoted},
						{"Rejected", res.Rejected},
						{"Remaining", res.Remaining},
					})
				}); rerr != nil {
					return rerr
				}
				return err
			})
		},
	}
}

func pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Show what is waiting to sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				recs, err := a.queue.ListPending(ctx)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), a.cfg.Output, recs, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"Temp ID", "Collection", "Queued at"})
					for _, r := range recs {
						tw.AppendRow(table.Row{r.TempID, r.Collection, r.CreatedAt.Local().Format("2006-01-02 15:04")})
					}
					tw.AppendFooter(table.Row{"", "", len(recs)})
				})
			})
		},
	}
}
