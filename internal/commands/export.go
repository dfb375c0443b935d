package commands

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/insightdelivered/pfinance/internal/writer"
)

func newExportCommand(g *globalFlags) *cobra.Command {
	var output, base, delimiter string
	var noHeader bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the ledger as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len([]rune(delimiter)) != 1 {
				return fmt.Errorf("delimiter must be one character, got %q", delimiter)
			}

			e, err := g.load()
			if err != nil {
				return err
			}
			defer e.Close()

			l := &writer.Ledger{}
			if base != "" {
				b, err := decimal.NewFromString(base)
				if err != nil {
					return fmt.Errorf("invalid base %q", base)
				}
				l.BaseBalance = &b
			}
			if l.Transactions, err = e.store.ListTransactions(cmd.Context()); err != nil {
				return err
			}

			w := &writer.CSVWriter{IncludeHeader: !noHeader, Comma: []rune(delimiter)[0]}
			if output == "" || output == "-" {
				return w.Write(cmd.OutOrStdout(), l)
			}
			if err := w.WriteToFile(output, l); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d transactions to %s\n", len(l.Transactions), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout if omitted)")
	cmd.Flags().StringVar(&base, "base", "", "opening balance for the running balance column")
	cmd.Flags().StringVar(&delimiter, "delimiter", ",", "field delimiter")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "omit the metadata rows")

	return cmd
}
