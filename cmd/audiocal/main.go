package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"audiocal/internal/capture"
	"audiocal/internal/config"
	"audiocal/internal/feed"
	appLog "audiocal/internal/log"
	"audiocal/internal/registry"
	"audiocal/internal/state"
	"audiocal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
}

func main() {
	appLog.Info("audiocal starting", "version", "0.1.0-dev")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Warn("unknown timezone, falling back to local", "timezone", conf.Timezone)
		loc = time.Local
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"timetable_url", conf.TimetableURL != "",
		"registry_url", conf.RegistryURL != "",
		"postgres", conf.Postgres != nil,
		"basic_auth", conf.BasicAuth != nil,
		"capture", conf.Capture.Enabled,
		"once", flags.once,
	)

	if conf.TimetableURL == "" {
		appLog.Error("no timetable source configured", errors.New("timetable_url is empty"))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	fetcher := feed.NewFetcher(conf.CacheDir)
	timetableSrc := &feed.HTTPTimetable{Fetcher: fetcher, URL: conf.TimetableURL}

	var registrySrc feed.RegistrySource
	switch {
	case conf.Postgres != nil && conf.Postgres.DSN != "":
		pool, err := pgxpool.New(ctx, conf.Postgres.DSN)
		if err != nil {
			appLog.Error("failed to open postgres pool", err)
			os.Exit(1)
		}
		defer pool.Close()
		registrySrc = registry.NewPostgres(pool, conf.Postgres.Table)
	case conf.RegistryURL != "":
		registrySrc = &feed.HTTPRegistry{Fetcher: fetcher, URL: conf.RegistryURL}
	default:
		appLog.Error("no registry source configured", errors.New("registry_url and postgres are both empty"))
		os.Exit(1)
	}

	store := state.NewStore()
	refresher := &state.Refresher{
		Timetable: timetableSrc,
		Registry:  registrySrc,
		Store:     store,
	}

	server, err := web.NewServer(conf, store, refresher, loc)
	if err != nil {
		appLog.Error("failed to build server", err)
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLog.Info("HTTP server listening", "addr", conf.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			cancel()
		}
	}()

	cycle := func() {
		if err := refresher.Refresh(ctx); err != nil {
			// The previous snapshot (if any) stays current; the next
			// scheduled cycle retries.
			appLog.Error("refresh cycle failed", err)
			return
		}
		if conf.Capture.Enabled {
			if err := capture.GridPNG(ctx, captureOptions(conf)); err != nil {
				appLog.Error("grid capture failed", err)
			}
		}
	}

	cycle()

	if flags.once {
		shutdown(httpSrv)
		appLog.Info("audiocal exiting", "reason", "once")
		return
	}

	sched := cron.New()
	if _, err := sched.AddFunc(conf.RefreshCron, cycle); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	<-ctx.Done()

	shutdown(httpSrv)
	appLog.Info("audiocal exiting")
}

// captureOptions points the headless browser at our own week page. With
// basic auth enabled the credentials ride in the URL userinfo.
func captureOptions(conf *config.Config) capture.Options {
	u := &url.URL{Scheme: "http", Host: conf.Listen, Path: "/week"}
	if conf.BasicAuth != nil && conf.BasicAuth.Username != "" {
		u.User = url.UserPassword(conf.BasicAuth.Username, conf.BasicAuth.Password)
	}
	return capture.Options{
		URL:        u.String(),
		OutputPath: conf.Capture.OutputPath,
		Width:      conf.Capture.Width,
		Height:     conf.Capture.Height,
	}
}

func shutdown(srv *http.Server) {
	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	if err := srv.Shutdown(shCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/audiocal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh(+capture) cycle and exit")

	flag.Parse()

	return cfg
}
