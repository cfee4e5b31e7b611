package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/omofolarin/fill-pdf/internal/cache"
	"github.com/omofolarin/fill-pdf/internal/config"
	"github.com/omofolarin/fill-pdf/internal/fetch"
	"github.com/omofolarin/fill-pdf/internal/fill"
	"github.com/omofolarin/fill-pdf/internal/mcp"
	"github.com/omofolarin/fill-pdf/internal/merge"
	"github.com/omofolarin/fill-pdf/internal/model"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the command
func setupLogging(cfg *config.Config, stderr io.Writer) {
	log.SetFlags(log.LstdFlags)
	log.SetOutput(stderr)

	if cfg.Command == config.CommandServe {
		// stdout carries the MCP protocol
		if !cfg.IsDebug() {
			log.SetOutput(io.Discard)
		}
		return
	}

	switch cfg.LogLevel {
	case "warn", "error":
		log.SetOutput(io.Discard)
	case "debug":
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signalCh
		log.Printf("Received signal: %s", sig)
		cancel()
	}()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args, stderr)
	switch {
	case errors.Is(err, config.ErrVersionRequested):
		printVersion(stdout)
		return 0
	case errors.Is(err, config.ErrHelpRequested):
		return 0
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	setupLogging(cfg, stderr)
	if version != "dev" {
		cfg.Version = version
	}
	if cfg.IsDebug() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	if err := dispatch(ctx, cfg, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	templateCache, closeCache, err := buildCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	if cfg.Command == config.CommandCacheClear {
		if templateCache == nil {
			return nil
		}
		if err := templateCache.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Fprintln(stdout, "Template cache cleared")
		return nil
	}

	service, err := buildService(cfg, templateCache)
	if err != nil {
		return err
	}

	switch cfg.Command {
	case config.CommandFill:
		return runFill(ctx, cfg, service, stdout)
	case config.CommandInfo:
		return runInfo(ctx, cfg, service, stdout)
	case config.CommandServe:
		server, err := mcp.NewServer(cfg, service)
		if err != nil {
			return fmt.Errorf("failed to create MCP server: %w", err)
		}
		return server.Run(ctx)
	}
	return fmt.Errorf("unknown command: %s", cfg.Command)
}

// buildCache opens the configured template cache store. Commands that do
// not use the cache get a nil cache.
func buildCache(cfg *config.Config) (*cache.TemplateCache, func(), error) {
	noop := func() {}
	needed := cfg.Cache || cfg.Command == config.CommandCacheClear || cfg.Command == config.CommandServe
	if !needed {
		return nil, noop, nil
	}

	if cfg.CacheStore == config.StoreRedis {
		store := cache.NewRedisStore(cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		closeStore := func() {
			if err := store.Close(); err != nil {
				log.Printf("[cache] close failed: %v", err)
			}
		}
		return cache.New(store, cfg.CacheTTLDuration()), closeStore, nil
	}

	store, err := cache.NewDiskStore(cfg.CacheDir)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open cache: %w", err)
	}
	return cache.New(store, cfg.CacheTTLDuration()), noop, nil
}

// mergeOptions picks the dependency prompter. serve never asks on the
// terminal because stdin and stdout carry the MCP stream.
func mergeOptions(cfg *config.Config) merge.Options {
	opts := merge.Options{
		Backend:   cfg.MergeBackend,
		BunScript: cfg.BunScript,
	}
	if cfg.AssumeYes || cfg.Command == config.CommandServe {
		opts.Prompter = merge.StaticPrompter(cfg.AssumeYes)
	}
	return opts
}

func buildService(cfg *config.Config, templateCache *cache.TemplateCache) (*fill.Service, error) {
	backend, err := merge.New(mergeOptions(cfg))
	if err != nil {
		return nil, err
	}

	return fill.NewService(fill.Config{
		Backend:      backend,
		Fetcher:      fetch.NewClient(cfg.FetchTimeout),
		Cache:        templateCache,
		MergeTimeout: cfg.MergeTimeout,
	})
}

func runFill(ctx context.Context, cfg *config.Config, service *fill.Service, stdout io.Writer) error {
	fields, err := fill.LoadFields(cfg.Data)
	if err != nil {
		return err
	}
	log.Printf("Loaded %d field(s) from %s", len(fields), cfg.Data)

	result, err := service.Fill(ctx, fill.Request{
		Template:     cfg.Template,
		Fields:       fields,
		Flatten:      cfg.Flatten(),
		TextOverflow: model.ParseTextOverflow(cfg.TextOverflow),
		UseCache:     cfg.Cache,
		RefreshCache: cfg.CacheRefresh,
	})
	if err != nil {
		return err
	}

	if err := fill.WriteOutputs(result, cfg.Output, cfg.Metadata); err != nil {
		return err
	}

	printSummary(stdout, cfg, result)
	return nil
}

func printSummary(w io.Writer, cfg *config.Config, result *fill.Result) {
	meta := result.Metadata
	fmt.Fprintf(w, "PDF written to %s\n", cfg.Output)
	fmt.Fprintf(w, "Pages with fields: %d of %d\n", len(meta.Pages), len(result.Pages))
	fmt.Fprintf(w, "Fields processed: %d, skipped: %d\n", meta.FieldsProcessed, meta.FieldsSkipped)
	if cfg.Metadata != "" {
		fmt.Fprintf(w, "Metadata written to %s\n", cfg.Metadata)
	}
	if len(meta.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, msg := range meta.Warnings {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}
	if len(meta.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, msg := range meta.Errors {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}
}

func runInfo(ctx context.Context, cfg *config.Config, service *fill.Service, stdout io.Writer) error {
	pages, err := service.PageInfo(ctx, cfg.Template, cfg.Cache)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Pages: %d\n", len(pages))
	for _, p := range pages {
		fmt.Fprintf(stdout, "  Page %d: %g x %g pt\n", p.Index, p.Width, p.Height)
	}
	return nil
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "fill-pdf\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
