package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"templateflow/internal/preflight"
	"templateflow/internal/store"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run readiness checks and summarize the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				results := preflight.RunAll(cmd.Context(), cfg, st)
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					status := "ok"
					if !r.Passed {
						status = "FAIL"
						if !r.Required {
							status = "warn"
						}
					}
					rows = append(rows, []string{r.Name, status, r.Detail})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))

				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				total := 0
				for _, n := range stats.Items {
					total += n
				}
				fmt.Fprintf(out, "Items: %d  Pending billing: %d (%s)  Unread notifications: %d\n",
					total, stats.PendingBillable, formatAmount(stats.PendingAmount), stats.Unread)

				if failed := preflight.Failed(results); len(failed) > 0 {
					return errors.New("required checks failed")
				}
				return nil
			})
		},
	}
}
