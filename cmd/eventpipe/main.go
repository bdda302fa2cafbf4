package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/api"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/cache"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/config"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/country"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/dedup"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/logging"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/metrics"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/pipeline"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/postprocess"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/quota"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/scheduler"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/service"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/source"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/store"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	var (
		cfgPath  = flag.String("config", "config.yml", "path to YAML config")
		interval = flag.Duration("interval", 0, "run interval, overrides schedule.interval")
		once     = flag.Bool("once", false, "run a single cycle then exit")
		verbose  = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	boot := logging.NewLogger("info", "text")
	config.LoadEnv(boot)

	path := *cfgPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		boot.WithField("path", path).Warn("config file not found, using defaults")
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		boot.WithError(err).Fatal("load config")
	}
	if *interval > 0 {
		cfg.Schedule.Interval = *interval
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	logger.WithField("version", Version).Info("eventpipe starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *once, logger); err != nil {
		logger.WithError(err).Fatal("eventpipe stopped")
	}
	logger.Info("eventpipe stopped")
}

func run(ctx context.Context, cfg config.Config, once bool, logger *logrus.Logger) error {
	profiles := country.Select(country.Merge(country.Builtin(), cfg.Countries.Profiles), cfg.Countries.Available)
	active, err := store.LoadActiveCountry(cfg.Countries.StatePath)
	if err != nil {
		logger.WithError(err).Warn("load active country, using default")
	}
	if active == "" {
		active = cfg.Countries.Default
	}
	reg, err := country.NewRegistry(profiles, active)
	if errors.Is(err, country.ErrNotFound) {
		logger.WithField("country", active).Warn("active country not registered, using the first profile")
		reg, err = country.NewRegistry(profiles, "")
	}
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"countries": reg.IDs(), "active": reg.Active().ID}).Info("countries registered")

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	c, err := cache.New(cfg.Cache)
	if err != nil {
		return err
	}
	if c != nil {
		defer func() {
			if err := c.Close(); err != nil {
				logger.WithError(err).Warn("close cache")
			}
		}()
	}
	q, err := quota.New(cfg.Quota, logging.Component(logger, "quota"))
	if err != nil {
		return err
	}

	deps := source.Deps{
		Cache: c,
		TTLs:  cache.TTLsFromConfig(cfg.Cache),
		Quota: q,
		Queries: country.QueryOptions{
			MaxCities:     cfg.Pipeline.MaxCities,
			Max:           cfg.Pipeline.MaxQueries,
			IncludeGlobal: cfg.Pipeline.IncludeGlobal,
		},
		Log: logging.Component(logger, "source"),
	}
	connectors := make([]source.Connector, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		conn, err := source.NewFromConfig(sc, deps)
		if err != nil {
			return err
		}
		connectors = append(connectors, conn)
		logger.WithField("source", conn.Name()).Info("configured source")
	}
	if len(connectors) == 0 {
		logger.Warn("no sources configured, cycles will fail")
	}

	post, err := postprocess.New(cfg.Post)
	if err != nil {
		return err
	}
	m := metrics.New()
	dd := dedup.New(dedup.NewSimilarity(cfg.Dedup.Strategy, cfg.Dedup.Threshold),
		dedup.WithLogger(logging.Component(logger, "dedup")))
	orch := pipeline.New(reg, connectors, st, dd, pipeline.Options{
		Workers:      cfg.Pipeline.Workers,
		FetchTimeout: cfg.Pipeline.FetchTimeout,
		Post:         post,
		Metrics:      m,
		Quota:        q,
		Logger:       logging.Component(logger, "pipeline"),
	})
	sched := scheduler.New(orch, cfg.Schedule.Interval, *cfg.Schedule.RunOnStart, logging.Component(logger, "scheduler"))

	if once {
		rep := sched.RunOnce(ctx)
		if rep.State == pipeline.Failed {
			return errors.New(rep.Err)
		}
		return nil
	}

	maint, err := scheduler.NewMaintenance(st, c, cfg.Schedule, m, logging.Component(logger, "maintenance"))
	if err != nil {
		return err
	}
	maint.Start()
	defer maint.Stop(context.Background())

	svc := service.New(reg, st, sched, orch, service.Options{
		StatePath: cfg.Countries.StatePath,
		Metrics:   m,
		Quota:     q,
		Logger:    logging.Component(logger, "service"),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	if cfg.HTTP.Enable {
		gin.SetMode(gin.ReleaseMode)
		metricsPath := ""
		if cfg.Metrics.Enable {
			metricsPath = cfg.Metrics.Path
		}
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.NewRouter(svc, m, metricsPath, logging.Component(logger, "http")),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.WithField("addr", srv.Addr).Info("http listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}
