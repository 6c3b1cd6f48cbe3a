package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newImportCmd(g *globalOptions) *cobra.Command {
	var terms []string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "List the recipes TheMealDB returns for the search terms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, cfg, logger, err := g.assemble(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			defer func() { _ = logger.Sync() }()

			if len(terms) == 0 {
				terms = cfg.Source.Terms
			}
			recipes, err := a.Source.FetchAll(ctx, terms)
			if err != nil {
				return fmt.Errorf("fetch recipes: %w", err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Fetched %d recipes\n", len(recipes))
			for i := range recipes {
				r := &recipes[i]
				_, _ = fmt.Fprintf(out, "- %s (%s, %d ingredients)\n", r.Name(), r.Cuisine(), len(r.Ingredients()))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&terms, "terms", nil, "TheMealDB search terms (default: from config)")
	return cmd
}
