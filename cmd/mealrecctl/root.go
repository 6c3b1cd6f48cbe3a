package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mealrec/internal/app"
	"github.com/kailas-cloud/mealrec/internal/config"
	logpkg "github.com/kailas-cloud/mealrec/internal/logger"
	"github.com/kailas-cloud/mealrec/internal/version"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	env        string
	provider   string
	cache      string
	sourceURL  string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "mealrecctl",
		Short: "Find recipes by meaning",
		Long: `mealrecctl imports recipes from TheMealDB, embeds them and ranks them
against a free-text query by cosine similarity.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to a YAML config file (default: config/<env>.yaml if present)")
	pf.StringVar(&opts.env, "env", config.GetEnv(), "config environment name")
	pf.StringVar(&opts.provider, "provider", "", "embedding provider override: openai or hashing")
	pf.StringVar(&opts.cache, "cache", "", "embedding cache override: none, redis or sqlite")
	pf.StringVar(&opts.sourceURL, "source-url", "", "TheMealDB API base URL override")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newSearchCmd(opts),
		newImportCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "mealrecctl version %s (%s)\n", version.Version, version.Commit)
		},
	}
}

// loadConfig reads --config, else config/<env>.yaml, else built-in defaults
// when that file does not exist, then applies flag overrides.
func (o *globalOptions) loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	switch {
	case o.configPath != "":
		cfg, err = config.LoadFile(o.configPath)
		if err != nil {
			return config.Config{}, err
		}
	default:
		cfg, err = config.Load(o.env)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			cfg = config.Default()
		case err != nil:
			return config.Config{}, err
		}
	}

	if o.provider != "" {
		cfg.Embedding.Provider = o.provider
	}
	if o.cache != "" {
		cfg.Cache.Driver = o.cache
	}
	if o.sourceURL != "" {
		cfg.Source.BaseURL = o.sourceURL
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// assemble builds the application for one command run. The caller closes it.
func (o *globalOptions) assemble(ctx context.Context) (*app.App, config.Config, *zap.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, config.Config{}, nil, err
	}

	level := ""
	if o.verbose {
		level = "debug"
	}
	logger, err := logpkg.NewLogger("cli", level)
	if err != nil {
		return nil, config.Config{}, nil, err
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	return a, cfg, logger, nil
}
