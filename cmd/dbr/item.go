package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rnwolf/dbr/internal/api"
	"github.com/rnwolf/dbr/internal/model"
)

var itemCmd = &cobra.Command{
	Use:     "item",
	Short:   "Manage work items",
	GroupID: "entities",
}

// parseHours converts --hours key=value pairs into a CCR hours map.
func parseHours(raw map[string]string) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		h, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("--hours %s=%s: not a number", k, v)
		}
		out[k] = h
	}
	return out, nil
}

var itemCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a work item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		org, err := requireOrg()
		if err != nil {
			return err
		}
		description, _ := cmd.Flags().GetString("description")
		status, _ := cmd.Flags().GetString("status")
		rawHours, _ := cmd.Flags().GetStringToString("hours")
		hours, err := parseHours(rawHours)
		if err != nil {
			return err
		}

		item, err := dbrClient.CreateWorkItem(cmd.Context(), &api.CreateWorkItemRequest{
			OrganizationID:   org,
			Title:            args[0],
			Description:      description,
			Status:           status,
			CCRHoursRequired: hours,
		})
		if err != nil {
			return fmt.Errorf("creating work item: %w", err)
		}
		return emit(cmd.OutOrStdout(), item, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "created work item %s (%s, %s)\n", item.ID, item.Title, item.Status)
			return err
		})
	},
}

var itemListCmd = &cobra.Command{
	Use:   "list",
	Short: "List work items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		org, err := requireOrg()
		if err != nil {
			return err
		}
		status, _ := cmd.Flags().GetStringSlice("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		resp, err := dbrClient.ListWorkItems(cmd.Context(), &api.ListWorkItemsRequest{
			OrganizationID: org,
			Status:         status,
			Limit:          limit,
			Offset:         offset,
		})
		if err != nil {
			return fmt.Errorf("listing work items: %w", err)
		}
		return emit(cmd.OutOrStdout(), resp, func(w io.Writer) error {
			return printWorkItems(w, resp.WorkItems, resp.Total)
		})
	},
}

var itemShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a work item with its readiness",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		item, err := dbrClient.GetWorkItem(ctx, args[0])
		if err != nil {
			return fmt.Errorf("getting work item %s: %w", args[0], err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), item)
		}
		ready, err := dbrClient.IsReady(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("checking readiness: %w", err)
		}
		w := cmd.OutOrStdout()
		if err := printWorkItem(w, item); err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "Ready:       %t\n", ready)
		return err
	},
}

var itemUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a work item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &api.UpdateWorkItemRequest{ID: args[0]}
		flags := cmd.Flags()
		if flags.Changed("title") {
			v, _ := flags.GetString("title")
			req.Title = &v
		}
		if flags.Changed("description") {
			v, _ := flags.GetString("description")
			req.Description = &v
		}
		if flags.Changed("status") {
			v, _ := flags.GetString("status")
			req.Status = &v
		}
		if flags.Changed("hours") {
			raw, _ := flags.GetStringToString("hours")
			hours, err := parseHours(raw)
			if err != nil {
				return err
			}
			req.CCRHoursRequired = hours
		}

		item, err := dbrClient.UpdateWorkItem(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("updating work item %s: %w", args[0], err)
		}
		return emit(cmd.OutOrStdout(), item, func(w io.Writer) error {
			return printWorkItem(w, item)
		})
	},
}

var readyCmd = &cobra.Command{
	Use:     "ready",
	Short:   "List work items that can be scheduled",
	GroupID: "scheduling",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listWorkItemsBy(cmd, dbrClient.ReadyWorkItems)
	},
}

var blockedCmd = &cobra.Command{
	Use:     "blocked",
	Short:   "List work items waiting on unfinished prerequisites",
	GroupID: "scheduling",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listWorkItemsBy(cmd, dbrClient.BlockedWorkItems)
	},
}

func listWorkItemsBy(cmd *cobra.Command, list func(context.Context, string) ([]*model.WorkItem, error)) error {
	org, err := requireOrg()
	if err != nil {
		return err
	}
	items, err := list(cmd.Context(), org)
	if err != nil {
		return err
	}
	return emit(cmd.OutOrStdout(), items, func(w io.Writer) error {
		return printWorkItems(w, items, len(items))
	})
}

func init() {
	statusHelp := "work item status (backlog, ready, standby, in_progress, done)"

	itemCreateCmd.Flags().String("description", "", "description")
	itemCreateCmd.Flags().String("status", "", statusHelp+"; default backlog")
	itemCreateCmd.Flags().StringToString("hours", nil, "CCR hours required, e.g. dev_team=10")

	itemListCmd.Flags().StringSlice("status", nil, "filter by status (repeatable)")
	itemListCmd.Flags().Int("limit", 0, "maximum number of items")
	itemListCmd.Flags().Int("offset", 0, "items to skip")

	itemUpdateCmd.Flags().String("title", "", "new title")
	itemUpdateCmd.Flags().String("description", "", "new description")
	itemUpdateCmd.Flags().String("status", "", statusHelp)
	itemUpdateCmd.Flags().StringToString("hours", nil, "replace CCR hours, e.g. dev_team=10")

	itemCmd.AddCommand(itemCreateCmd)
	itemCmd.AddCommand(itemListCmd)
	itemCmd.AddCommand(itemShowCmd)
	itemCmd.AddCommand(itemUpdateCmd)
}
