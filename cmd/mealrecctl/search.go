package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mealrec/internal/domain/recommendation"
)

// instructionsPreview is how many characters of instructions the text output shows.
const instructionsPreview = 200

type searchOptions struct {
	k     int
	json  bool
	terms []string
}

type searchResultJSON struct {
	Name         string   `json:"name"`
	Cuisine      string   `json:"cuisine"`
	Difficulty   string   `json:"difficulty"`
	Ingredients  []string `json:"ingredients"`
	Instructions string   `json:"instructions"`
	Score        float64  `json:"score"`
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Recommend recipes for a free-text query",
		Long: `Imports recipes from TheMealDB, embeds them and prints the recipes
closest in meaning to the query.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, g, opts, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.k, "top", "k", 3, "number of recipes to return")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output results as JSON")
	cmd.Flags().StringSliceVar(&opts.terms, "terms", nil, "TheMealDB search terms (default: from config)")
	return cmd
}

func runSearch(cmd *cobra.Command, g *globalOptions, opts *searchOptions, query string) error {
	ctx := cmd.Context()
	a, cfg, logger, err := g.assemble(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	defer func() { _ = logger.Sync() }()

	terms := opts.terms
	if len(terms) == 0 {
		terms = cfg.Source.Terms
	}

	out := cmd.OutOrStdout()
	if !opts.json {
		_, _ = fmt.Fprintln(out, "Fetching recipes...")
	}
	n, err := a.Recommender.Import(ctx, a.Source, terms)
	if err != nil {
		return fmt.Errorf("import recipes: %w", err)
	}
	logger.Debug("Corpus ready", zap.Int("recipes", n))

	results, err := a.Recommender.Recommend(ctx, query, opts.k)
	if err != nil {
		return fmt.Errorf("recommend: %w", err)
	}

	if opts.json {
		return writeSearchJSON(out, results)
	}
	_, _ = fmt.Fprintf(out, "Loaded %d recipes\n", n)
	writeSearchText(out, query, results)
	return nil
}

func writeSearchJSON(w io.Writer, results []recommendation.Result) error {
	items := make([]searchResultJSON, len(results))
	for i := range results {
		r := results[i].Recipe()
		items[i] = searchResultJSON{
			Name:         r.Name(),
			Cuisine:      r.Cuisine(),
			Difficulty:   r.Difficulty(),
			Ingredients:  r.Ingredients(),
			Instructions: r.Instructions(),
			Score:        results[i].Score(),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	return nil
}

func writeSearchText(w io.Writer, query string, results []recommendation.Result) {
	_, _ = fmt.Fprintf(w, "\nSearching for: %s\n", query)
	_, _ = fmt.Fprintln(w, "\nRecommended Recipes:")
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "\nNo results found.")
		return
	}
	for i := range results {
		r := results[i].Recipe()
		_, _ = fmt.Fprintf(w, "\n- %s (%s cuisine)\n", r.Name(), r.Cuisine())
		_, _ = fmt.Fprintf(w, "  Ingredients: %s\n", strings.Join(r.Ingredients(), ", "))
		_, _ = fmt.Fprintf(w, "  Instructions: %s...\n", preview(r.Instructions(), instructionsPreview))
	}
}

// preview returns the first n runes of s.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
