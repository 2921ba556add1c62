package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"license-signing-system/internal/service"
)

func newArchiveCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect and annotate the license archive",
	}
	cmd.AddCommand(newArchiveListCmd(app), newArchiveRevokeCmd(app))
	return cmd
}

func newArchiveListCmd(app *App) *cobra.Command {
	var db dbFlags
	var q service.ListQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived licenses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			archive, err := app.OpenArchive(db.config())
			if err != nil {
				return err
			}
			licenses, total, err := archive.List(context.Background(), q)
			if err != nil {
				return err
			}

			today := app.archiveToday()
			tw := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tCUSTOMER\tPRODUCT\tSEATS\tEXPIRES\tSTATUS")
			for i := range licenses {
				l := &licenses[i]
				expires := "-"
				if l.ExpiresAt != nil {
					expires = l.ExpiresAt.Format("2006-01-02")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					l.Key, l.Customer, l.Product, l.Seats, expires, l.StatusOn(today))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "共 %d 条\n", total)
			return nil
		},
	}

	db.register(cmd)
	cmd.Flags().IntVar(&q.Page, "page", 1, "Page number.")
	cmd.Flags().IntVar(&q.PageSize, "size", 20, "Page size.")
	cmd.Flags().StringVar(&q.Customer, "customer", "", "Filter by customer (substring).")
	cmd.Flags().StringVar(&q.Product, "product", "", "Filter by product.")
	return cmd
}

func newArchiveRevokeCmd(app *App) *cobra.Command {
	var db dbFlags
	var restore bool
	cmd := &cobra.Command{
		Use:   "revoke KEY",
		Short: "Mark an archived license as revoked",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			archive, err := app.OpenArchive(db.config())
			if err != nil {
				return err
			}
			l, err := archive.SetRevoked(context.Background(), args[0], !restore)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s: %s\n", l.Key, l.StatusOn(app.archiveToday()))
			return nil
		},
	}

	db.register(cmd)
	cmd.Flags().BoolVar(&restore, "restore", false, "Clear the revocation instead.")
	return cmd
}

// archiveToday 归档中的日期按 UTC 零点保存
func (a *App) archiveToday() time.Time {
	return a.today().Time(time.UTC)
}
