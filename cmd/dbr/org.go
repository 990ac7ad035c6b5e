package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rnwolf/dbr/internal/api"
	"github.com/rnwolf/dbr/internal/model"
)

var orgCmd = &cobra.Command{
	Use:     "org",
	Short:   "Manage organizations",
	GroupID: "entities",
}

var orgCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an organization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		org, err := dbrClient.CreateOrganization(cmd.Context(), &api.CreateOrganizationRequest{Name: args[0]})
		if err != nil {
			return fmt.Errorf("creating organization: %w", err)
		}
		return emit(cmd.OutOrStdout(), org, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "created organization %s (%s)\n", org.ID, org.Name)
			return err
		})
	},
}

var orgListCmd = &cobra.Command{
	Use:   "list",
	Short: "List organizations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		orgs, err := dbrClient.ListOrganizations(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing organizations: %w", err)
		}
		return emit(cmd.OutOrStdout(), orgs, func(w io.Writer) error {
			return printOrganizations(w, orgs)
		})
	},
}

var orgShowCmd = &cobra.Command{
	Use:   "show [<id>]",
	Short: "Show an organization (defaults to --org)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := orgID
		if len(args) == 1 {
			id = args[0]
		}
		if id == "" {
			return fmt.Errorf("no organization given")
		}
		org, err := dbrClient.GetOrganization(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("getting organization %s: %w", id, err)
		}
		return emit(cmd.OutOrStdout(), org, func(w io.Writer) error {
			return printOrganizations(w, []*model.Organization{org})
		})
	},
}

func init() {
	orgCmd.AddCommand(orgCreateCmd)
	orgCmd.AddCommand(orgListCmd)
	orgCmd.AddCommand(orgShowCmd)
}
