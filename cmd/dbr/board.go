package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rnwolf/dbr/internal/api"
	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/scheduling"
	"github.com/rnwolf/dbr/internal/ui"
)

var boardCmd = &cobra.Command{
	Use:     "board",
	Short:   "Manage board configurations",
	GroupID: "entities",
}

var boardCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a board around a CCR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		org, err := requireOrg()
		if err != nil {
			return err
		}
		ccrID, _ := cmd.Flags().GetString("ccr")
		pre, _ := cmd.Flags().GetInt("pre")
		post, _ := cmd.Flags().GetInt("post")
		unit, _ := cmd.Flags().GetString("time-unit")

		board, err := dbrClient.CreateBoard(cmd.Context(), &api.CreateBoardRequest{
			OrganizationID:           org,
			Name:                     args[0],
			CCRID:                    ccrID,
			PreConstraintBufferSize:  pre,
			PostConstraintBufferSize: post,
			TimeUnit:                 unit,
		})
		if err != nil {
			return fmt.Errorf("creating board: %w", err)
		}
		return emit(cmd.OutOrStdout(), board, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "created board %s (%s): positions %d..%d around %s\n",
				board.ID, board.Name, board.EntryPosition(), board.PostConstraintBufferSize, board.CCRID)
			return err
		})
	},
}

var boardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the organization's boards",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		org, err := requireOrg()
		if err != nil {
			return err
		}
		boards, err := dbrClient.ListBoards(cmd.Context(), org)
		if err != nil {
			return fmt.Errorf("listing boards: %w", err)
		}
		return emit(cmd.OutOrStdout(), boards, func(w io.Writer) error {
			return printBoards(w, boards)
		})
	},
}

var boardShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a board configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		board, err := dbrClient.GetBoard(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("getting board %s: %w", args[0], err)
		}
		return emit(cmd.OutOrStdout(), board, func(w io.Writer) error {
			return printBoards(w, []*model.BoardConfig{board})
		})
	},
}

// boardView pairs a board's analytics with its position occupancy.
type boardView struct {
	Summary    *scheduling.BoardSummary `json:"summary"`
	ByPosition map[int][]string         `json:"by_position"`
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show the organization's boards position by position",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		org, err := requireOrg()
		if err != nil {
			return err
		}
		boardID, _ := cmd.Flags().GetString("board")
		ctx := cmd.Context()

		analytics, err := dbrClient.BoardAnalytics(ctx, org, boardID)
		if err != nil {
			return fmt.Errorf("getting analytics: %w", err)
		}
		views := make([]boardView, 0, len(analytics.Boards))
		for _, sum := range analytics.Boards {
			st, err := dbrClient.BoardStatus(ctx, org, sum.Board.ID)
			if err != nil {
				return fmt.Errorf("getting status of board %s: %w", sum.Board.ID, err)
			}
			views = append(views, boardView{Summary: sum, ByPosition: st.ByPosition})
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"organization_id": org,
				"now":             analytics.Now,
				"throughput":      analytics.Throughput,
				"boards":          views,
			})
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s  now %s  throughput %d\n\n",
			ui.RenderAccent(org), analytics.Now.Format(timeLayout), analytics.Throughput)
		if len(views) == 0 {
			fmt.Fprintln(w, "no boards")
			return nil
		}
		for i, v := range views {
			if i > 0 {
				fmt.Fprintln(w)
			}
			ui.RenderBoard(w, v.Summary, v.ByPosition)
		}
		return nil
	},
}

func init() {
	boardCreateCmd.Flags().String("ccr", "", "CCR id that paces the board")
	boardCreateCmd.Flags().Int("pre", 0, "pre-constraint buffer size in time units")
	boardCreateCmd.Flags().Int("post", 0, "post-constraint buffer size in time units")
	boardCreateCmd.Flags().String("time-unit", model.DefaultTimeUnit, "label for one time unit")
	_ = boardCreateCmd.MarkFlagRequired("ccr")

	boardCmd.AddCommand(boardCreateCmd)
	boardCmd.AddCommand(boardListCmd)
	boardCmd.AddCommand(boardShowCmd)

	statusCmd.Flags().String("board", "", "limit to one board")
}
