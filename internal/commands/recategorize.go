package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/pfinance/internal/ingest"
)

func newRecategorizeCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "recategorize",
		Short: "Re-apply the current rules to every stored transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.load()
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.service(ingest.OptionsFromConfig(e.cfg)).Recategorize(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d transactions changed category\n", n)
			return nil
		},
	}
}
