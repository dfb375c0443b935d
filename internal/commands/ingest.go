package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/pfinance/internal/ingest"
	"github.com/insightdelivered/pfinance/internal/models"
)

func newIngestCommand(g *globalFlags) *cobra.Command {
	var kindFlag, bankFlag string
	var debug bool

	cmd := &cobra.Command{
		Use:   "ingest <statement> [statement ...]",
		Short: "Import PDF or spreadsheet statements into the ledger",
		Long: `Import bank statements into the ledger.

Each document is extracted, parsed, classified, deduplicated against the
ledger, categorized and stored in one transaction. Re-importing a document
only counts duplicates.

Supported layouts:
  bancoposta  - BancoPosta "Lista movimenti" PDFs (auto-detected)
  generic     - one movement per line: date [value date] description amount
  spreadsheet - xlsx, xls or csv exports with a header row`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var forced models.SourceKind
			if kindFlag != "" {
				k, err := ingest.ParseKind(kindFlag)
				if err != nil {
					return err
				}
				forced = k
			}
			bank, err := parseBank(bankFlag)
			if err != nil {
				return err
			}

			e, err := g.load()
			if err != nil {
				return err
			}
			defer e.Close()

			opts := ingest.OptionsFromConfig(e.cfg)
			opts.Bank = bank
			svc := e.service(opts)

			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				if err := ingestFile(cmd, svc, path, forced, debug, out); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error processing %s: %v\n", path, err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "", "document kind: pdf or spreadsheet (detected if omitted)")
	cmd.Flags().StringVar(&bankFlag, "bank", "", "PDF layout: bancoposta or generic (auto-detected if omitted)")
	cmd.Flags().BoolVar(&debug, "debug", false, "print what the parser did with each line")

	return cmd
}

func ingestFile(cmd *cobra.Command, svc *ingest.Service, path string, kind models.SourceKind, debug bool, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if kind == "" {
		if kind, err = ingest.DetectKind(path, data); err != nil {
			return err
		}
	}

	res, err := svc.Ingest(cmd.Context(), data, kind)
	if err != nil {
		return err
	}

	name := filepath.Base(path)
	fmt.Fprintf(out, "%s: %s layout, %d parsed, %d inserted, %d duplicates, %d skipped\n",
		name, res.Statement.Bank, res.Stats.TotalParsed, res.Stats.Inserted, res.Stats.Duplicates, res.Stats.Skipped)
	if res.Stats.DefaultedDates > 0 || res.Stats.DefaultedAmounts > 0 {
		fmt.Fprintf(out, "  warning: %d dates and %d amounts could not be read and were defaulted\n",
			res.Stats.DefaultedDates, res.Stats.DefaultedAmounts)
	}
	if v := res.Validation; v != nil {
		fmt.Fprintf(out, "  balance: stated %s, computed %s, difference %s (alert: %s)\n",
			v.Asserted.StringFixed(2), v.CurrentBalance.StringFixed(2), v.Difference.StringFixed(2), v.AlertLevel)
	}
	if debug {
		for _, d := range res.DebugLines {
			method := ""
			if d.Method != "" {
				method = " (" + d.Method + ")"
			}
			fmt.Fprintf(out, "  %4d %-11s%s %s\n", d.LineNum, d.Result, method, d.Text)
		}
	}
	return nil
}

func parseBank(s string) (models.BankType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "bancoposta", "poste":
		return models.BankBancoPosta, nil
	case "generic":
		return models.BankGeneric, nil
	}
	return "", fmt.Errorf("unknown bank: %q. Use bancoposta or generic", s)
}
