package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rnwolf/dbr/internal/api"
	"github.com/rnwolf/dbr/internal/model"
)

var ccrCmd = &cobra.Command{
	Use:     "ccr",
	Short:   "Manage capacity-constrained resources",
	GroupID: "entities",
}

var ccrCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a CCR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		org, err := requireOrg()
		if err != nil {
			return err
		}
		capacity, _ := cmd.Flags().GetFloat64("capacity")

		ccr, err := dbrClient.CreateCCR(cmd.Context(), &api.CreateCCRRequest{
			OrganizationID:      org,
			Name:                args[0],
			CapacityPerTimeUnit: capacity,
		})
		if err != nil {
			return fmt.Errorf("creating CCR: %w", err)
		}
		return emit(cmd.OutOrStdout(), ccr, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "created CCR %s (%s, key %s, %.1fh per time unit)\n",
				ccr.ID, ccr.Name, ccr.Key(), ccr.CapacityPerTimeUnit)
			return err
		})
	},
}

var ccrListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the organization's CCRs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		org, err := requireOrg()
		if err != nil {
			return err
		}
		ccrs, err := dbrClient.ListCCRs(cmd.Context(), org)
		if err != nil {
			return fmt.Errorf("listing CCRs: %w", err)
		}
		return emit(cmd.OutOrStdout(), ccrs, func(w io.Writer) error {
			return printCCRs(w, ccrs)
		})
	},
}

var ccrShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a CCR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ccr, err := dbrClient.GetCCR(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("getting CCR %s: %w", args[0], err)
		}
		return emit(cmd.OutOrStdout(), ccr, func(w io.Writer) error {
			return printCCRs(w, []*model.CCR{ccr})
		})
	},
}

func init() {
	ccrCreateCmd.Flags().Float64("capacity", 0, "hours available per time unit")
	_ = ccrCreateCmd.MarkFlagRequired("capacity")

	ccrCmd.AddCommand(ccrCreateCmd)
	ccrCmd.AddCommand(ccrListCmd)
	ccrCmd.AddCommand(ccrShowCmd)
}
