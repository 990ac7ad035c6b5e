package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rnwolf/dbr/internal/config"
	dbrsync "github.com/rnwolf/dbr/internal/sync"
)

var exportCmd = &cobra.Command{
	Use:     "export [<org-id>...]",
	Short:   "Export organizations from the database as JSONL",
	Long: `Export reads DBR_DATABASE_URL directly, without a running server, and
writes one JSON record per line: a header, then every organization with its
CCRs, boards, work items, dependencies and schedules.

With --push the export is written to the S3 and git destinations configured
through DBR_SYNC_* instead of a file.`,
	GroupID:           "system",
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		push, _ := cmd.Flags().GetBool("push")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		if push {
			logger := cfg.NewLogger(os.Stderr)
			dests := syncDestinations(ctx, cfg, logger)
			if len(dests) == 0 {
				return fmt.Errorf("--push needs DBR_SYNC_S3_BUCKET or DBR_SYNC_GIT_REPO")
			}
			return dbrsync.NewScheduler(st, dests, 0, logger).SyncOnce(ctx)
		}

		w := cmd.OutOrStdout()
		if output != "" && output != "-" {
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return dbrsync.ExportJSONL(ctx, st, w, args...)
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "-", "output file (- for stdout)")
	exportCmd.Flags().Bool("push", false, "write to the configured sync destinations")
}
