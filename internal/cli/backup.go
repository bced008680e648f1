package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/intake/internal/backup"
)

func (a *app) backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup <file>",
		Short: "Copy every stored record to a JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			n, err := backup.Dump(cmd.Context(), st, args[0])
			if err != nil {
				return sysErr("backup: %w", err)
			}
			a.logger.Info("records backed up", zap.Int("count", n), zap.String("file", args[0]))
			fmt.Fprintf(cmd.OutOrStdout(), "backed up %d record(s)\n", n)
			return nil
		},
	}
}

func (a *app) restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>",
		Short: "Load records from a JSONL file written by backup",
		Long: `Restore upserts every record in file. Stored data is copied as is, so a
corrupt record can still be repaired afterwards. Malformed lines are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := backup.Restore(cmd.Context(), st, args[0], a.policy())
			if err != nil {
				return err
			}
			if len(rep.Skipped) > 0 {
				a.logger.Warn("skipped malformed lines", zap.Ints("lines", rep.Skipped))
			}
			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"created": rep.Created,
					"updated": rep.Updated,
					"skipped": rep.Skipped,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d, skipped %d\n",
				rep.Created, rep.Updated, len(rep.Skipped))
			return nil
		},
	}
}
