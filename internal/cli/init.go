package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and storage",
		Long: `Create the configuration directory with a default config.yaml, then create
the record table (or add columns missing from an older table).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "intake initialized (%s, table %s)\n", a.cfg.Driver, st.Table())
			return nil
		},
	}
}
