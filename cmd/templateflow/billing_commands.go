package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"templateflow/internal/api"
	"templateflow/internal/store"
)

func newBillingCommand(ctx *commandContext) *cobra.Command {
	billingCmd := &cobra.Command{
		Use:   "billing",
		Short: "Inspect billable records",
	}
	billingCmd.AddCommand(newBillingListCommand(ctx))
	return billingCmd
}

func newBillingListCommand(ctx *commandContext) *cobra.Command {
	var state string
	var assignee string
	var includeVoided bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List billable records",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.BillableFilter{Assignee: assignee, IncludeVoided: includeVoided}
			if state != "" {
				parsed, err := store.ParseBillableState(state)
				if err != nil {
					return err
				}
				filter.State = parsed
			}
			return ctx.withStore(func(st *store.Store) error {
				recs, err := st.ListBillable(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.BillableListResponse{Records: api.FromBillables(recs)})
				}
				if len(recs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No billable records")
					return nil
				}
				var total int64
				rows := make([][]string, 0, len(recs))
				for _, rec := range recs {
					if !rec.Voided() {
						total += rec.Amount
					}
					rows = append(rows, []string{
						strconv.FormatInt(rec.ID, 10),
						strconv.FormatInt(rec.ItemID, 10),
						rec.Assignee,
						formatAmount(rec.Amount),
						string(rec.State),
						yesNo(rec.Voided()),
						formatAge(rec.CompletedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Item", "Assignee", "Amount", "State", "Voided", "Completed"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignRight},
				))
				fmt.Fprintf(cmd.OutOrStdout(), "Total: %s\n", formatAmount(total))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "Filter by state (pending, invoiced, paid)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Filter by assignee identity")
	cmd.Flags().BoolVar(&includeVoided, "voided", false, "Include voided records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}
