package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rnwolf/dbr/internal/api"
	"github.com/rnwolf/dbr/internal/client"
	"github.com/rnwolf/dbr/internal/model"
)

var depCmd = &cobra.Command{
	Use:     "dep",
	Short:   "Manage work item dependencies",
	GroupID: "entities",
}

var depAddCmd = &cobra.Command{
	Use:   "add <dependent> <prerequisite>",
	Short: "Make a work item wait for another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		depType, _ := cmd.Flags().GetString("type")
		dep, err := dbrClient.AddDependency(cmd.Context(), &api.AddDependencyRequest{
			DependentID:    args[0],
			PrerequisiteID: args[1],
			Type:           depType,
		})
		if err != nil {
			return describeCycle(fmt.Errorf("adding dependency: %w", err))
		}
		return emit(cmd.OutOrStdout(), dep, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "added %s: %s waits for %s (%s)\n", dep.ID, dep.DependentID, dep.PrerequisiteID, dep.Type)
			return err
		})
	},
}

var depRemoveCmd = &cobra.Command{
	Use:   "remove <dependency-id>",
	Short: "Remove a dependency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dep, err := dbrClient.RemoveDependency(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("removing dependency %s: %w", args[0], err)
		}
		return emit(cmd.OutOrStdout(), dep, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "removed %s\n", dep.ID)
			return err
		})
	},
}

var depListCmd = &cobra.Command{
	Use:   "list <work-item>",
	Short: "List the dependencies of a work item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := dbrClient.ListDependencies(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("listing dependencies: %w", err)
		}
		return emit(cmd.OutOrStdout(), deps, func(w io.Writer) error {
			return printDependencies(w, deps)
		})
	},
}

var depCheckCmd = &cobra.Command{
	Use:   "check <dependent> <prerequisite>",
	Short: "Check whether a dependency could be added without a cycle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := dbrClient.ValidateDependency(cmd.Context(), args[0], args[1]); err != nil {
			return describeCycle(err)
		}
		return emit(cmd.OutOrStdout(), api.ValidateDependencyResponse{Valid: true}, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, "ok: no cycle")
			return err
		})
	},
}

var depChainCmd = &cobra.Command{
	Use:   "chain <work-item>",
	Short: "Show every transitive prerequisite of a work item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chain, err := dbrClient.DependencyChain(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("getting chain: %w", err)
		}
		return emit(cmd.OutOrStdout(), api.ChainResponse{WorkItemID: args[0], Chain: chain}, func(w io.Writer) error {
			if len(chain) == 0 {
				_, err := fmt.Fprintf(w, "%s has no prerequisites\n", args[0])
				return err
			}
			_, err := fmt.Fprintf(w, "%s <- %s\n", args[0], strings.Join(chain, ", "))
			return err
		})
	},
}

// describeCycle appends the cycle path to circular dependency errors.
func describeCycle(err error) error {
	var apiErr *client.APIError
	if errors.Is(err, model.ErrCircularDependency) && errors.As(err, &apiErr) && len(apiErr.Path) > 0 {
		return fmt.Errorf("%w (cycle: %s)", err, strings.Join(apiErr.Path, " -> "))
	}
	return err
}

func init() {
	depAddCmd.Flags().String("type", string(model.DepFinishToStart), "dependency type (finish_to_start, start_to_start, finish_to_finish, start_to_finish)")

	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRemoveCmd)
	depCmd.AddCommand(depListCmd)
	depCmd.AddCommand(depCheckCmd)
	depCmd.AddCommand(depChainCmd)
}
