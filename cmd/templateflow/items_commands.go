package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"templateflow/internal/api"
	"templateflow/internal/notifications"
	"templateflow/internal/store"
	"templateflow/internal/workflow"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect work items",
	}
	itemsCmd.AddCommand(newItemsListCommand(ctx))
	itemsCmd.AddCommand(newItemsShowCommand(ctx))
	itemsCmd.AddCommand(newItemsHistoryCommand(ctx))
	return itemsCmd
}

func newItemsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var assignee string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items, optionally filtered by status or assignee",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.ItemFilter{Assignee: strings.TrimSpace(assignee)}
			for _, value := range statuses {
				status, err := workflow.ParseStatus(value)
				if err != nil {
					return err
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			return ctx.withStore(func(st *store.Store) error {
				items, err := st.ListItems(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.ItemListResponse{Items: api.FromItems(items)})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No items")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.Title,
						notifications.StatusLabel(item.Status),
						dash(item.Assignee),
						formatAmount(item.Price),
						strconv.Itoa(item.ReworkCount),
						formatAge(item.UpdatedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Status", "Assignee", "Price", "Rework", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Filter by assignee identity")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newItemsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				item, err := lookupItem(cmd.Context(), st, id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.ItemResponse{Item: api.FromItem(item)})
				}
				completed := "-"
				if item.FirstCompletedAt != nil {
					completed = item.FirstCompletedAt.Local().Format("2006-01-02 15:04")
				}
				rows := [][]string{
					{"Title", item.Title},
					{"Template", item.TemplateRef},
					{"Status", notifications.StatusLabel(item.Status)},
					{"Creator", item.Creator},
					{"Assignee", dash(item.Assignee)},
					{"Price", formatAmount(item.Price)},
					{"Rework rounds", strconv.Itoa(item.ReworkCount)},
					{"Completed", completed},
					{"Updated", formatAge(item.UpdatedAt)},
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item #%d\n", item.ID)
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newItemsHistoryCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show an item's status history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				if _, err := lookupItem(cmd.Context(), st, id); err != nil {
					return err
				}
				log, err := st.Transitions(cmd.Context(), id)
				if err != nil {
					return err
				}
				rework, err := st.ReworkCountFromLog(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.HistoryResponse{ItemID: id, Transitions: api.FromTransitions(log), ReworkCount: rework})
				}
				rows := make([][]string, 0, len(log))
				for i, tr := range log {
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						notifications.StatusLabel(tr.From),
						notifications.StatusLabel(tr.To),
						tr.Actor,
						dash(tr.ActorRole),
						tr.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"#", "From", "To", "Actor", "Role", "At"},
					rows,
					[]columnAlignment{alignRight},
				))
				fmt.Fprintf(cmd.OutOrStdout(), "Rework rounds: %d\n", rework)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", value)
	}
	return id, nil
}

func lookupItem(ctx context.Context, st *store.Store, id int64) (*store.Item, error) {
	item, err := st.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", id, store.ErrNotFound)
	}
	return item, nil
}
