package commands

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/insightdelivered/pfinance/internal/ingest"
	"github.com/insightdelivered/pfinance/internal/normalize"
)

func newBalanceCommand(g *globalFlags) *cobra.Command {
	var setFlag, dateFlag string
	var clearBase bool

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the running balance, or set a manual base balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.load()
			if err != nil {
				return err
			}
			defer e.Close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case clearBase:
				if err := e.store.ClearManualBalance(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, "Manual balance cleared")
			case setFlag != "":
				value, err := decimal.NewFromString(setFlag)
				if err != nil {
					value = normalize.SignedAmount(setFlag)
					if value.IsZero() && normalize.ParseAmount(setFlag).Defaulted {
						return fmt.Errorf("invalid balance %q", setFlag)
					}
				}
				var date *time.Time
				if dateFlag != "" {
					d, ok := normalize.ParseDate(dateFlag)
					if !ok {
						return fmt.Errorf("invalid date %q", dateFlag)
					}
					date = &d
				}
				if err := e.store.SetManualBalance(ctx, value, date); err != nil {
					return err
				}
				fmt.Fprintf(out, "Manual balance set to %s\n", value.StringFixed(2))
			}

			st, err := e.service(ingest.OptionsFromConfig(e.cfg)).Balance(ctx)
			if err != nil {
				return err
			}

			source := "none"
			switch {
			case st.Manual:
				source = "manual"
			case st.Selected != nil:
				source = "statement"
			}
			fmt.Fprintf(out, "Base balance:    %s (%s", st.Base.StringFixed(2), source)
			if st.BaseDate != nil {
				fmt.Fprintf(out, ", %s", st.BaseDate.Format("02/01/2006"))
			}
			fmt.Fprintln(out, ")")
			fmt.Fprintf(out, "Current balance: %s\n", st.Current.StringFixed(2))
			if v := st.Validation; v != nil {
				fmt.Fprintf(out, "Last statement:  %s, difference %s (alert: %s)\n",
					v.Asserted.StringFixed(2), v.Difference.StringFixed(2), v.AlertLevel)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&setFlag, "set", "", "set a manual base balance (e.g. 1.234,56 or 1234.56)")
	cmd.Flags().StringVar(&dateFlag, "date", "", "date of the manual base balance (DD/MM/YYYY)")
	cmd.Flags().BoolVar(&clearBase, "clear", false, "remove the manual base balance")
	cmd.MarkFlagsMutuallyExclusive("set", "clear")

	return cmd
}
