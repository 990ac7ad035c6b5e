package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rnwolf/dbr/internal/api"
	"github.com/rnwolf/dbr/internal/scheduling"
)

var scheduleCmd = &cobra.Command{
	Use:     "schedule",
	Short:   "Manage schedules",
	GroupID: "scheduling",
}

var scheduleCreateCmd = &cobra.Command{
	Use:   "create <work-item>...",
	Short: "Batch ready work items onto a board",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		org, err := requireOrg()
		if err != nil {
			return err
		}
		boardID, _ := cmd.Flags().GetString("board")

		sched, err := dbrClient.CreateSchedule(cmd.Context(), &api.CreateScheduleRequest{
			OrganizationID: org,
			BoardConfigID:  boardID,
			WorkItemIDs:    args,
		})
		if err != nil {
			return fmt.Errorf("creating schedule: %w", err)
		}
		return emit(cmd.OutOrStdout(), sched, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "created schedule %s at position %d (%.1f CCR hours, %d items)\n",
				sched.ID, sched.TimeUnitPosition, sched.TotalCCRHours, len(sched.WorkItemIDs))
			return err
		})
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		org, err := requireOrg()
		if err != nil {
			return err
		}
		boardID, _ := cmd.Flags().GetString("board")
		status, _ := cmd.Flags().GetStringSlice("status")

		schedules, err := dbrClient.ListSchedules(cmd.Context(), &api.ListSchedulesRequest{
			OrganizationID: org,
			BoardConfigID:  boardID,
			Status:         status,
		})
		if err != nil {
			return fmt.Errorf("listing schedules: %w", err)
		}
		return emit(cmd.OutOrStdout(), schedules, func(w io.Writer) error {
			return printSchedules(w, schedules)
		})
	},
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sched, err := dbrClient.GetSchedule(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("getting schedule %s: %w", args[0], err)
		}
		return emit(cmd.OutOrStdout(), sched, func(w io.Writer) error {
			return printSchedule(w, sched)
		})
	},
}

var tickCmd = &cobra.Command{
	Use:     "tick",
	Aliases: []string{"advance"},
	Short:   "Advance the organization's boards by one time unit",
	GroupID: "scheduling",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		org, err := requireOrg()
		if err != nil {
			return err
		}
		count, _ := cmd.Flags().GetInt("count")
		if count < 1 {
			return fmt.Errorf("--count must be at least 1")
		}

		results := make([]*scheduling.AdvanceResult, 0, count)
		for range count {
			res, err := dbrClient.AdvanceTimeUnit(cmd.Context(), org)
			if err != nil {
				return fmt.Errorf("advancing time: %w", err)
			}
			results = append(results, res)
		}
		return emit(cmd.OutOrStdout(), results, func(w io.Writer) error {
			for _, res := range results {
				if err := printAdvanceResult(w, res); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func init() {
	scheduleCreateCmd.Flags().String("board", "", "board id")
	_ = scheduleCreateCmd.MarkFlagRequired("board")

	scheduleListCmd.Flags().String("board", "", "filter by board")
	scheduleListCmd.Flags().StringSlice("status", nil, "filter by status (planning, pre_constraint, post_constraint, completed)")

	tickCmd.Flags().Int("count", 1, "number of time units to advance")

	scheduleCmd.AddCommand(scheduleCreateCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleShowCmd)
}
