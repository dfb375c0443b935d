package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/pfinance/internal/config"
	"github.com/insightdelivered/pfinance/internal/models"
	"github.com/insightdelivered/pfinance/internal/store"
)

func newInitCommand(g *globalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file and create a seeded ledger database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := os.Stat(g.configPath)
			switch {
			case err == nil && !force:
				fmt.Fprintf(cmd.OutOrStdout(), "Keeping existing %s\n", g.configPath)
			case err == nil || errors.Is(err, os.ErrNotExist):
				if err := config.Save(g.configPath, config.Default()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", g.configPath)
			default:
				return fmt.Errorf("checking %s: %w", g.configPath, err)
			}

			e, err := g.load()
			if err != nil {
				return err
			}
			defer e.Close()

			cats, rules, err := seed(cmd.Context(), e.store, e.cfg.Categories.Seed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s (%d categories, %d rules)\n", e.cfg.Database.Path, cats, rules)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}

// seed writes the starter categories and rules into an empty ledger. A
// ledger that already has categories is left alone.
func seed(ctx context.Context, st *store.Store, categories []config.SeedCategory) (int, int, error) {
	existing, err := st.ListCategories(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(existing) > 0 {
		return 0, 0, nil
	}

	nRules := 0
	for _, c := range categories {
		id, err := st.AddCategory(ctx, c.Name)
		if err != nil {
			return 0, 0, err
		}
		for _, r := range c.Rules {
			if _, err := st.AddRule(ctx, models.CategoryRule{
				CategoryID: id,
				Pattern:    r.Pattern,
				MatchType:  models.MatchType(r.MatchType),
				Priority:   r.Priority,
				Enabled:    true,
			}); err != nil {
				return 0, 0, fmt.Errorf("seeding %s: %w", c.Name, err)
			}
			nRules++
		}
	}
	return len(categories), nRules, nil
}
