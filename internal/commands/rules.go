package commands

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/pfinance/internal/models"
	"github.com/insightdelivered/pfinance/internal/store"
)

func newRulesCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage categorization rules",
	}
	cmd.AddCommand(
		newRulesListCommand(g),
		newRulesAddCommand(g),
		newRulesToggleCommand(g, "disable", "Disable a rule", false),
		newRulesToggleCommand(g, "enable", "Enable a disabled rule", true),
	)
	return cmd
}

func newRulesListCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.load()
			if err != nil {
				return err
			}
			defer e.Close()

			rules, err := e.store.ListRules(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPRIORITY\tMATCH\tPATTERN\tCATEGORY\tENABLED")
			for _, r := range rules {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%t\n", r.ID, r.Priority, r.MatchType, r.Pattern, r.Category, r.Enabled)
			}
			return tw.Flush()
		},
	}
}

func newRulesAddCommand(g *globalFlags) *cobra.Command {
	var category, pattern, match string
	var priority int

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a rule, creating its category if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.load()
			if err != nil {
				return err
			}
			defer e.Close()
			ctx := cmd.Context()

			catID, err := e.store.AddCategory(ctx, category)
			if err != nil {
				return err
			}
			id, err := e.store.AddRule(ctx, models.CategoryRule{
				CategoryID: catID,
				Pattern:    pattern,
				MatchType:  models.MatchType(match),
				Priority:   priority,
				Enabled:    true,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added rule %d: %s %q -> %s\n", id, match, pattern, category)
			fmt.Fprintln(cmd.OutOrStdout(), "Run \"pfinance recategorize\" to apply it to stored transactions.")
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "category name")
	cmd.Flags().StringVar(&pattern, "pattern", "", "text to look for in the description (case-insensitive)")
	cmd.Flags().StringVar(&match, "match", string(models.MatchContains), "contains, startsWith or endsWith")
	cmd.Flags().IntVar(&priority, "priority", 100, "lower runs first")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("pattern")

	return cmd
}

func newRulesToggleCommand(g *globalFlags, use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <rule-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}
			e, err := g.load()
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.store.SetRuleEnabled(cmd.Context(), id, enabled); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("rule %d not found", id)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rule %d %sd\n", id, use)
			return nil
		},
	}
}

func newCategorizeCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "categorize <hash> <category>",
		Short: "Pin a transaction to a category",
		Long: `Pin a transaction to a category. A pinned category wins over every rule
and survives "pfinance recategorize".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.load()
			if err != nil {
				return err
			}
			defer e.Close()
			ctx := cmd.Context()

			cat, err := e.store.CategoryByName(ctx, args[1])
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("category %q not found", args[1])
				}
				return err
			}
			if err := e.store.SetManualCategory(ctx, args[0], cat.ID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("transaction %s not found", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Transaction %s -> %s\n", args[0], cat.Name)
			return nil
		},
	}
}
