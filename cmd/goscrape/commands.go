package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/goscrape/internal/app"
)

func newExtractCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "extract [url...]",
		Short: "Extract page content, using the cache when fresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := f.newApp(ctx)
			if err != nil {
				return err
			}
			o, err := f.out(cmd)
			if err != nil {
				return err
			}
			urls, err := a.ResolveURLs(ctx, args)
			if err != nil {
				return err
			}
			results, batchErr := a.Extract(ctx, urls)
			if err := o.WriteContent(urls, results); err != nil {
				return err
			}
			if batchErr != nil {
				return batchErr
			}
			failed := 0
			for _, c := range results {
				if c.Failed() {
					failed++
				}
			}
			return summarize(failed, len(results))
		},
	}
}

func newProcessCmd(f *rootFlags) *cobra.Command {
	var prompt, promptFile, provider string
	cmd := &cobra.Command{
		Use:   "process [url...]",
		Short: "Extract pages and run a prompt against each with an LLM provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := readPrompt(prompt, promptFile)
			if err != nil {
				return err
			}
			a, err := f.newApp(ctx)
			if err != nil {
				return err
			}
			o, err := f.out(cmd)
			if err != nil {
				return err
			}
			urls, err := a.ResolveURLs(ctx, args)
			if err != nil {
				return err
			}
			results, batchErr := a.Process(ctx, urls, p, provider)
			if results != nil {
				if err := o.WriteProcessed(urls, results); err != nil {
					return err
				}
			}
			if batchErr != nil {
				return batchErr
			}
			failed := 0
			for _, r := range results {
				if r.Failed() {
					failed++
				}
			}
			return summarize(failed, len(results))
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "extraction instructions sent with every page")
	cmd.Flags().StringVar(&promptFile, "prompt-file", "", "read the prompt from a file")
	cmd.Flags().StringVar(&provider, "provider", "openai", "LLM provider: openai or google")
	return cmd
}

func newStatusCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status [url...]",
		Short: "Report which URLs have a fresh cache record",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := f.newApp(ctx)
			if err != nil {
				return err
			}
			o, err := f.out(cmd)
			if err != nil {
				return err
			}
			urls, err := a.ResolveURLs(ctx, args)
			if err != nil {
				return err
			}
			cached, uncached := a.Status(ctx, urls)
			return o.WriteStatus(cached, uncached)
		},
	}
}

func newPruneCmd(f *rootFlags) *cobra.Command {
	var maxAge time.Duration
	var all bool
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete cache records older than --max-age (default: the cache TTL)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := f.newApp(cmd.Context())
			if err != nil {
				return err
			}
			n, err := a.Prune(maxAge, all)
			if err != nil {
				return err
			}
			if all {
				log.Info().Msg("cache cleared")
				return nil
			}
			log.Info().Int("removed", n).Msg("cache pruned")
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "remove records older than this, e.g. 72h")
	cmd.Flags().BoolVar(&all, "all", false, "remove every record")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "goscrape %s (commit: %s, built: %s)\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
		},
	}
}

// summarize logs the batch outcome and fails the command only when nothing
// succeeded.
func summarize(failed, total int) error {
	if failed == 0 {
		log.Info().Int("urls", total).Msg("batch complete")
		return nil
	}
	log.Warn().Int("failed", failed).Int("urls", total).Msg("batch complete with failures")
	if failed == total {
		return &app.BatchError{Failed: failed, Total: total}
	}
	return nil
}
