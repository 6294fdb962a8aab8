package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/ChuckBuilds/ledmatrix-news/pkg/config"
	"github.com/ChuckBuilds/ledmatrix-news/pkg/feed"
	"github.com/ChuckBuilds/ledmatrix-news/pkg/repository"
	"github.com/ChuckBuilds/ledmatrix-news/pkg/scheduler"
	"github.com/ChuckBuilds/ledmatrix-news/pkg/ticker"
	"github.com/ChuckBuilds/ledmatrix-news/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"f" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`
	Listen string `short:"l" long:"listen" env:"LISTEN" description:"listen address, overrides config"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug)

	log.Printf("[INFO] starting ledmatrix-news version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1)
	}
	cancel()

	log.Print("[INFO] shutdown complete")
}

// run wires all components and blocks until shutdown
func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}

	store, err := repository.NewStore(ctx, repository.Config{
		DSN:             cfg.Cache.DSN,
		MaxOpenConns:    cfg.Cache.MaxOpenConns,
		MaxIdleConns:    cfg.Cache.MaxIdleConns,
		ConnMaxLifetime: cfg.Cache.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open headline cache: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] failed to close cache: %v", err)
		}
	}()

	registry, err := feed.NewRegistry(cfg.Feeds, cfg.Display.Logos)
	if err != nil {
		return fmt.Errorf("build feed registry: %w", err)
	}
	log.Printf("[INFO] enabled feeds: %v", registry.EnabledNames())

	fetcher := feed.NewParser(cfg.Schedule.RequestTimeout, cfg.Schedule.UserAgent,
		cfg.Schedule.MaxRetries, cfg.Feeds.TitleLimit)

	tickerSvc := ticker.NewService(store.Headlines, ticker.ServiceConfig{
		Display:   cfg.Display,
		CacheTTL:  cfg.Cache.TTL,
		FeedOrder: registry.EnabledNames(),
	})

	sched := scheduler.NewScheduler(store.Headlines, fetcher, registry, scheduler.Config{
		UpdateInterval:   cfg.Schedule.UpdateInterval,
		HeadlinesPerFeed: cfg.Feeds.HeadlinesPerFeed,
		MaxWorkers:       cfg.Schedule.MaxWorkers,
		CacheTTL:         cfg.Cache.TTL,
		PurgeSchedule:    cfg.Schedule.PurgeSchedule,
		OnUpdate:         tickerSvc.Notify,
	})
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	go func() {
		if err := tickerSvc.Run(ctx); err != nil {
			log.Printf("[ERROR] ticker failed: %v", err)
		}
	}()

	srv := server.New(cfg, tickerSvc, sched, registry, store.Headlines, revision, opts.Debug)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(io.Discard)}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
