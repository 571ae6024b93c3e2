package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"valuegen/internal/core"
)

func (a *app) service(cmd *cobra.Command) (*core.Service, func(), error) {
	repo, err := core.OpenRepository(cmd.Context(), a.cfg.StorageConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("open repository: %w", err)
	}
	svc := core.NewService(core.WithRepository(repo), core.WithServiceLogger(a.logger))
	return svc, func() { _ = repo.Close() }, nil
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [run-id]",
		Short: "Print a persisted run as JSON (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeRepo, err := a.service(cmd)
			if err != nil {
				return err
			}
			defer closeRepo()
			var snap core.ValueSnapshot
			if len(args) == 1 {
				snap, err = svc.Get(cmd.Context(), args[0])
			} else {
				snap, err = svc.Latest(cmd.Context())
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
}

func newRunsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List persisted runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeRepo, err := a.service(cmd)
			if err != nil {
				return err
			}
			defer closeRepo()
			runs, err := svc.Runs(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			if _, err := fmt.Fprintln(tw, "RUN ID\tCREATED\tGIVEN\tUNRESOLVED"); err != nil {
				return err
			}
			for _, r := range runs {
				if _, err := fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", r.RunID, r.CreatedAt.Format(time.RFC3339), r.Given, r.Unresolved); err != nil {
					return err
				}
			}
			return tw.Flush()
		},
	}
}
