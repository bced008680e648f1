package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/intake/internal/planner"
	"github.com/mesh-intelligence/intake/pkg/types"
)

func (a *app) planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <cid>",
		Short: "Draft an action plan for a stored record",
		Long: `Plan sends the stored record to the configured Gemini model and prints the
suggested action plan. The API key is read from INTAKE_AI_API_KEY.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			loaded, err := svc.Load(ctx, args[0])
			if err != nil {
				return err
			}

			completer, err := a.newCompleter(ctx, a.cfg.AI)
			if err != nil {
				return err
			}
			plan, err := planner.New(completer, a.logger).Plan(ctx, loaded.Record)
			var ce *types.CompletionError
			if errors.As(err, &ce) {
				return sysErr("AI request failed with status %d: %s", ce.Status, ce.Body)
			}
			if err != nil {
				return err
			}

			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"cid": loaded.CID, "plan": plan})
			}
			fmt.Fprintln(cmd.OutOrStdout(), plan)
			return nil
		},
	}
}
