// cmd/repowiki/generate.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/julianshen/repowiki/internal/cache"
	"github.com/julianshen/repowiki/internal/config"
	"github.com/julianshen/repowiki/internal/pipeline"
	"github.com/julianshen/repowiki/internal/source"
	"github.com/julianshen/repowiki/internal/transport"
	"github.com/julianshen/repowiki/internal/wiki"
)

func generateCmd() *cobra.Command {
	var (
		exportFlag string
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "generate <repository>",
		Short: "Generate a wiki for a repository",
		Long: `Fetch the repository's file tree, plan a wiki structure, and generate
page content through the generation backend. The repository may be a URL,
an owner/repo shorthand, or a local path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ref, err := parseRepoArg(args[0], platformFlag, tokenFlag)
			if err != nil {
				return err
			}

			stack, err := buildStack(cfg, ref)
			if err != nil {
				return err
			}
			defer stack.close()

			params := buildParams(cfg, ref)

			job, err := runPipeline(cmd.Context(), stack, ref, params, !noProgress)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d pages for %s/%s\n",
				len(job.PageContents), ref.Owner, ref.Name())
			if job.FromCache {
				fmt.Fprintln(cmd.OutOrStdout(), "(served from cache)")
			}

			if exportFlag != "" {
				path, err := stack.controller.Export(cmd.Context(), wiki.ExportFormat(exportFlag))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&exportFlag, "export", "", "export the finished wiki: markdown or json")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the interactive progress display")

	return cmd
}

// stack bundles the wired pipeline components for one invocation.
type stack struct {
	controller *pipeline.Controller
	scheduler  *wiki.Scheduler
	close      func()
}

// buildStack wires the transport, adapters, cache, and controller from the
// effective configuration.
func buildStack(cfg *config.Config, ref wiki.RepoRef) (*stack, error) {
	channel := transport.New(cfg.Server.BaseURL, nil)

	srcCfg := source.DefaultConfig()
	srcCfg.ServerBaseURL = cfg.Server.BaseURL
	if len(cfg.Source.BranchCandidates) > 0 {
		srcCfg.BranchCandidates = cfg.Source.BranchCandidates
	}
	if cfg.Source.PageSize > 0 {
		srcCfg.PageSize = cfg.Source.PageSize
	}
	if cfg.Source.BitbucketBaseURL != "" {
		srcCfg.BitbucketBaseURL = cfg.Source.BitbucketBaseURL
	}
	if cfg.Source.RequestsPerSecond > 0 {
		srcCfg.RequestsPerSecond = cfg.Source.RequestsPerSecond
	}

	fetcher, err := source.New(ref.Platform, srcCfg)
	if err != nil {
		return nil, err
	}

	gateway, closeCache, err := buildCache(cfg)
	if err != nil {
		return nil, err
	}

	scheduler := wiki.NewScheduler(channel, cfg.Generator.MaxConcurrency)

	controller := &pipeline.Controller{
		Fetcher:   fetcher,
		Planner:   wiki.NewPlanner(channel),
		Scheduler: scheduler,
		Exporter:  wiki.NewExporter(cfg.Server.BaseURL, nil, cfg.Export.OutputDir),
		Cache:     gateway,
	}

	return &stack{controller: controller, scheduler: scheduler, close: closeCache}, nil
}

// buildCache selects the gateway per cache.mode and fronts remote and local
// gateways with the in-process layer.
func buildCache(cfg *config.Config) (cache.Gateway, func(), error) {
	var inner cache.Gateway
	closeFn := func() {}

	switch cfg.Cache.Mode {
	case "off":
		return nil, closeFn, nil
	case "local":
		sq, err := cache.NewSQLiteGateway(cfg.Cache.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening cache database: %w", err)
		}
		inner = sq
		closeFn = func() { _ = sq.Close() }
	case "remote", "":
		inner = cache.NewRemoteGateway(cfg.Server.BaseURL, nil)
	default:
		return nil, nil, fmt.Errorf("unknown cache mode %q", cfg.Cache.Mode)
	}

	mem, err := cache.NewMemoryGateway(inner, cfg.Cache.MemoryBytes)
	if err != nil {
		return nil, nil, err
	}
	prev := closeFn
	return mem, func() { mem.Close(); prev() }, nil
}

// buildParams assembles the generation parameters from config, flags, and —
// for local repositories — the repository's own filter file.
func buildParams(cfg *config.Config, ref wiki.RepoRef) wiki.Params {
	params := wiki.Params{
		Provider:      cfg.Generator.Provider,
		Model:         cfg.Generator.Model,
		Language:      cfg.Generator.Language,
		Comprehensive: cfg.Generator.Comprehensive,
		Token:         ref.Token,
	}

	if ref.Platform == wiki.PlatformLocal {
		filters, err := config.LoadFilters(ref.LocalPath)
		if err != nil {
			log.Printf("WARNING: ignoring %s: %v", config.FilterFileName, err)
		} else {
			params.ExcludedDirs = filters.ExcludedDirs
			params.ExcludedFiles = filters.ExcludedFiles
			params.IncludedDirs = filters.IncludedDirs
			params.IncludedFiles = filters.IncludedFiles
		}
	}
	return params
}

// runPipeline drives the controller, with a full-screen progress display on
// a terminal and plain log lines otherwise.
func runPipeline(ctx context.Context, s *stack, ref wiki.RepoRef, params wiki.Params, progress bool) (*pipeline.Job, error) {
	if progress && term.IsTerminal(int(os.Stdout.Fd())) {
		return runWithProgress(ctx, s, ref, params)
	}

	s.controller.OnStateChange = func(state pipeline.State) {
		log.Printf("pipeline: %s", state)
	}
	s.scheduler.OnUpdate = func(pc wiki.PageContent) {
		log.Printf("page %s: %s", pc.PageID, pc.Status)
	}
	return s.controller.Run(ctx, ref, params)
}
