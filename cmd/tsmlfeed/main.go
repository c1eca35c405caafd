package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clickonetwo/airtable-tsml-feed/internal/airtable"
	"github.com/clickonetwo/airtable-tsml-feed/internal/audit"
	"github.com/clickonetwo/airtable-tsml-feed/internal/config"
	"github.com/clickonetwo/airtable-tsml-feed/internal/feed"
	"github.com/clickonetwo/airtable-tsml-feed/internal/ics"
	appLog "github.com/clickonetwo/airtable-tsml-feed/internal/log"
	"github.com/clickonetwo/airtable-tsml-feed/internal/tsml"
	"github.com/clickonetwo/airtable-tsml-feed/internal/web"
)

const version = "1.0.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	ics        bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		appLog.Sync()
		os.Exit(1)
	}
	appLog.Configure(conf.Env, appLog.ParseLevel(conf.LogLevel))
	defer appLog.Sync()

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("tsmlfeed starting",
		"version", version,
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"view", conf.View,
		"max_records", conf.MaxRecords,
		"skip_invalid_rows", conf.SkipInvalidRows,
		"audit_cron", conf.AuditCron,
		"pinned_now", !conf.Now.IsZero(),
	)

	if err := run(conf, flags); err != nil {
		appLog.Error("tsmlfeed exiting with error", err)
		appLog.Sync()
		os.Exit(1)
	}
	appLog.Info("tsmlfeed exiting")
}

func run(conf *config.Config, flags flagConfig) error {
	transformer, err := tsml.NewTransformer(conf.Timezone)
	if err != nil {
		return err
	}
	clock := time.Now
	if !conf.Now.IsZero() {
		pinned := conf.Now
		clock = func() time.Time { return pinned }
	}

	registry := airtable.NewRegistry(airtable.Options{
		APIKey:         conf.AirtableToken,
		RequestTimeout: conf.RequestTimeout,
		RetryCount:     3,
	})
	source := &airtable.Source{
		Registry: registry,
		BaseID:   conf.MeetingsBaseID,
		TableID:  conf.MeetingsTableID,
		Select:   airtable.SelectOptions{View: conf.View, MaxRecords: conf.MaxRecords},
	}
	svc := feed.NewService(source, transformer, clock, tsml.Options{
		Workers:     conf.TransformWorkers,
		SkipInvalid: conf.SkipInvalidRows,
	})
	icsOpts := ics.Options{
		ProductID:   "-//tsmlfeed//meetings " + version + "//EN",
		Domain:      conf.ICSDomain,
		DefaultZone: conf.Timezone,
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if flags.once {
		return runOnce(ctx, svc, clock, icsOpts, flags.ics)
	}

	if conf.AuditCron != "" {
		sched, err := audit.NewScheduler(conf.AuditCron, transformer.Location(), 2*conf.RequestTimeout, svc)
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			sched.Stop(stopCtx)
		}()
	}

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(svc, clock, icsOpts).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2*conf.RequestTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("listening", "addr", conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// runOnce builds the feed a single time and writes it to stdout.
func runOnce(ctx context.Context, svc *feed.Service, clock func() time.Time, icsOpts ics.Options, asICS bool) error {
	res, err := svc.Build(ctx)
	if err != nil {
		return err
	}
	if asICS {
		body, err := ics.Render(res.Records, clock(), icsOpts)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(os.Stdout, body)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Records)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "tsmlfeed.yaml", "Path to optional YAML config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Build the feed once, print it to stdout and exit")
	flag.BoolVar(&cfg.ics, "ics", false, "With -once, print iCalendar instead of JSON")

	flag.Parse()

	return cfg
}
