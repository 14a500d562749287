package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/goscrape/internal/app"
)

type rootFlags struct {
	configPath  string
	envFiles    []string
	cacheDir    string
	strictPerms bool
	workers     int
	refresh     bool
	verbose     bool

	output string
	format string

	urlsFile string
	searxURL string
	query    string
	limit    int
	allow    []string
	deny     []string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "goscrape",
		Short:         "Scrape pages with a headless browser and extract structured data with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if f.verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "settings file (YAML or JSON); defaults to $XDG_CONFIG_HOME/goscrape/settings.yaml")
	pf.StringSliceVar(&f.envFiles, "env-file", []string{".env"}, "dotenv files to load; later files override earlier ones")
	pf.StringVar(&f.cacheDir, "cache-dir", "", "page cache directory (default $XDG_CACHE_HOME/goscrape/pages)")
	pf.BoolVar(&f.strictPerms, "cache-strict-perms", false, "restrict cache permissions (0700 dirs, 0600 files)")
	pf.IntVarP(&f.workers, "workers", "w", 0, "maximum concurrent tasks (default from settings)")
	pf.BoolVar(&f.refresh, "refresh", false, "ignore cached pages and extract again")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	pf.StringVarP(&f.output, "output", "o", "", "write results to this file instead of stdout")
	pf.StringVar(&f.format, "format", "json", "output format: json, markdown or pdf")
	pf.StringVar(&f.urlsFile, "urls-file", "", "file with one URL per line, or a JSON array of {title,url}")
	pf.StringVar(&f.searxURL, "searx-url", "", "SearxNG base URL used with --query")
	pf.StringVar(&f.query, "query", "", "search query whose result URLs are added to the batch")
	pf.IntVar(&f.limit, "limit", 10, "maximum search results for --query")
	pf.StringSliceVar(&f.allow, "allow", nil, "only keep URLs on these domains")
	pf.StringSliceVar(&f.deny, "deny", nil, "drop URLs on these domains")

	root.AddCommand(newExtractCmd(f), newProcessCmd(f), newStatusCmd(f), newPruneCmd(f), newVersionCmd())
	return root
}

// loadConfig resolves flags over environment over settings file over
// defaults.
func (f *rootFlags) loadConfig() (app.Config, error) {
	if err := app.LoadEnvFiles(f.envFiles...); err != nil {
		return app.Config{}, fmt.Errorf("load env files: %w", err)
	}
	cfg := app.Config{
		SettingsPath:     f.configPath,
		CacheDir:         f.cacheDir,
		CacheStrictPerms: f.strictPerms,
		URLsFile:         f.urlsFile,
		SearxURL:         f.searxURL,
		Query:            f.query,
		SearchLimit:      f.limit,
		DomainsAllow:     f.allow,
		DomainsDeny:      f.deny,
		Workers:          f.workers,
		Refresh:          f.refresh,
		Verbose:          f.verbose,
	}
	app.ApplyEnvToConfig(&cfg)
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = app.DefaultSettingsPath()
	}
	cfg.Settings = app.DefaultSettings()
	if cfg.SettingsPath != "" {
		s, err := app.LoadSettingsFile(afero.NewOsFs(), cfg.SettingsPath)
		if err != nil {
			return cfg, fmt.Errorf("settings %s: %w", cfg.SettingsPath, err)
		}
		cfg.Settings = s
		log.Debug().Str("path", cfg.SettingsPath).Msg("settings loaded")
	}
	app.ApplyEnvOverrides(&cfg.Settings)
	return cfg, cfg.Settings.Validate()
}

func (f *rootFlags) newApp(ctx context.Context) (*app.App, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func (f *rootFlags) out(cmd *cobra.Command) (app.Output, error) {
	format, err := app.ParseFormat(f.format)
	if err != nil {
		return app.Output{}, err
	}
	if f.output == "" && strings.HasSuffix(strings.ToLower(f.format), "pdf") {
		return app.Output{}, fmt.Errorf("--format pdf needs --output")
	}
	return app.Output{Format: format, Path: f.output, W: cmd.OutOrStdout()}, nil
}

func readPrompt(prompt, path string) (string, error) {
	if path == "" {
		return prompt, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}
	return string(b), nil
}
