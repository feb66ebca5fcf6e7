package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inkhaven-social/warden/behavior"
	"github.com/inkhaven-social/warden/cachestore"
	"github.com/inkhaven-social/warden/countstore"
	"github.com/inkhaven-social/warden/database"
	"github.com/inkhaven-social/warden/detector"
	"github.com/inkhaven-social/warden/enforcement"
	"github.com/inkhaven-social/warden/engine"
	"github.com/inkhaven-social/warden/flagstore"
	"github.com/inkhaven-social/warden/policy"
	"github.com/inkhaven-social/warden/roles"
	"github.com/inkhaven-social/warden/setstore"
	"github.com/inkhaven-social/warden/urlcheck"
	"github.com/inkhaven-social/warden/visibility"
	"github.com/inkhaven-social/warden/visual"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"gorm.io/plugin/opentelemetry/tracing"
)

type Server struct {
	logger      *slog.Logger
	echo        *echo.Echo
	httpd       *http.Server
	engine      *engine.Engine
	policies    *policy.Store
	enforcement *enforcement.Service
	behavior    *behavior.Detector
	activity    *behavior.MemActivityStore
	visual      *visual.Service
	filter      *visibility.Filter
	prefs       visibility.PreferenceStore
	roles       *roles.StaticDirectory
	sweeper     *Sweeper
}

type Config struct {
	Logger             *slog.Logger
	Bind               string
	DatabaseURL        string
	MaxDBConnections   int
	DBTracing          bool
	RedisURL           string
	MemcachedAddrs     []string
	SetsFileJSON       string
	PoliciesFileJSON   string
	RolesFileJSON      string
	ReputationHost     string
	ReputationPassword string
	ArgusHost          string
	ArgusPassword      string
	SlackWebhookURL    string
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	dir, err := roles.NewStaticDirectory(config.RolesFileJSON)
	if err != nil {
		return nil, fmt.Errorf("initializing roles directory: %w", err)
	}

	sets := setstore.NewMemSetStore()
	if err := seedDefaultSets(sets); err != nil {
		return nil, fmt.Errorf("seeding default sets: %w", err)
	}
	if config.SetsFileJSON != "" {
		if err := sets.LoadFromFileJSON(config.SetsFileJSON); err != nil {
			return nil, fmt.Errorf("initializing in-process setstore: %w", err)
		}
		logger.Info("loaded set config from JSON", "path", config.SetsFileJSON)
	}

	policies := policy.NewStore()
	if config.PoliciesFileJSON != "" {
		if err := policies.LoadFromFileJSON(config.PoliciesFileJSON, "startup"); err != nil {
			return nil, fmt.Errorf("initializing policy store: %w", err)
		}
		logger.Info("loaded policy config from JSON", "path", config.PoliciesFileJSON, "version", policies.Current().Version)
	}

	var counters countstore.CountStore
	if config.RedisURL != "" {
		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %w", err)
		}
		counters = cnt
	} else {
		counters = countstore.NewMemCountStore()
	}

	var cache cachestore.CacheStore
	switch {
	case len(config.MemcachedAddrs) > 0:
		csh, err := cachestore.NewMemcachedCacheStore(config.MemcachedAddrs, 30*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("initializing memcached cachestore: %w", err)
		}
		cache = csh
	case config.RedisURL != "":
		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, 30*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %w", err)
		}
		cache = csh
	default:
		cache = cachestore.NewMemCacheStore(5_000, 30*time.Minute)
	}

	var flags flagstore.FlagStore
	var enfStore enforcement.Store
	var suspicions behavior.Store
	var prefs visibility.PreferenceStore
	var reports engine.ReportSink
	if config.DatabaseURL != "" {
		db, err := database.Open(config.DatabaseURL, config.MaxDBConnections)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if config.DBTracing {
			if err := db.Use(tracing.NewPlugin()); err != nil {
				return nil, err
			}
		}
		fs, err := flagstore.NewGormFlagStore(db)
		if err != nil {
			return nil, err
		}
		flags = fs
		es, err := enforcement.NewGormStore(db)
		if err != nil {
			return nil, err
		}
		enfStore = es
		bs, err := behavior.NewGormStore(db)
		if err != nil {
			return nil, err
		}
		suspicions = bs
		ps, err := visibility.NewGormPreferenceStore(db)
		if err != nil {
			return nil, err
		}
		prefs = ps
		rs, err := engine.NewGormReportSink(db)
		if err != nil {
			return nil, err
		}
		reports = rs
	} else {
		logger.Info("no database configured, using in-process stores")
		flags = flagstore.NewMemFlagStore()
		enfStore = enforcement.NewMemStore()
		suspicions = behavior.NewMemStore()
		prefs = visibility.NewMemPreferenceStore()
		reports = engine.NewMemReportSink()
	}

	// the activity mirror is fed by the evaluate and ingest endpoints; it
	// backs behavioral scans only, never decisions about a single submission
	activity := behavior.NewMemActivityStore()
	behaviorDet := behavior.NewDetector(activity, counters, suspicions)

	var repClient urlcheck.ReputationClient
	if config.ReputationHost != "" {
		logger.Info("configuring URL reputation client", "host", config.ReputationHost)
		repClient = urlcheck.NewHTTPReputationClient(config.ReputationHost, config.ReputationPassword)
	}
	urls := urlcheck.NewChecker(repClient, cache, sets)

	// the visual service always exists so moderator overrides and creator
	// self-marks work; the classifier itself is optional
	visualSvc := visual.NewService(nil, flags, dir)
	var engineVisual *visual.Service
	if config.ArgusHost != "" {
		logger.Info("configuring Argus image classifier", "host", config.ArgusHost)
		visualSvc.Classifier = visual.NewArgusClient(config.ArgusHost, config.ArgusPassword, 25, 1000, 10_000)
		engineVisual = visualSvc
	}

	var notifier engine.Notifier
	if config.SlackWebhookURL != "" {
		logger.Info("configuring Slack notifications for auto-reports")
		notifier = engine.NewSlackNotifier(config.SlackWebhookURL)
	}

	eng := &engine.Engine{
		Logger:   logger,
		Policies: policies,
		Detectors: []detector.Detector{
			detector.NewProfanityDetector(nil),
			detector.NewSpamDetector(),
			detector.NewHateSpeechDetector(sets),
		},
		URLs:     urls,
		Visual:   engineVisual,
		Behavior: behaviorDet,
		Flags:    flags,
		Counters: counters,
		Reports:  reports,
		Notifier: notifier,
	}

	enf := enforcement.NewService(enfStore, dir)
	filter := visibility.NewFilter(flags, enf, prefs)

	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("4M"))
	e.Use(echoprometheus.NewMiddleware("wardend"))

	srv := &Server{
		logger:      logger,
		echo:        e,
		engine:      eng,
		policies:    policies,
		enforcement: enf,
		behavior:    behaviorDet,
		activity:    activity,
		visual:      visualSvc,
		filter:      filter,
		prefs:       prefs,
		roles:       dir,
	}
	e.HTTPErrorHandler = srv.errorHandler
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   time.Minute,
		ReadTimeout:    time.Minute,
		MaxHeaderBytes: 1 * (1024 * 1024),
	}
	srv.sweeper = NewSweeper(enf, behaviorDet, activity, logger)

	e.GET("/_health", srv.HandleHealthCheck)

	e.POST("/evaluate", srv.HandleEvaluate)
	e.POST("/visibility/filter", srv.HandleFilter)
	e.PUT("/visibility/:account/preference", srv.HandleSetPreference)

	e.GET("/enforcement/:account", srv.HandleCheckEnforcement)
	e.POST("/enforcement/:account/suspend", srv.HandleSuspend)
	e.POST("/enforcement/:account/lift", srv.HandleLiftSuspension)
	e.POST("/enforcement/:account/shadowban", srv.HandleShadowban)
	e.POST("/enforcement/:account/remove-shadowban", srv.HandleRemoveShadowban)

	e.GET("/policies", srv.HandleGetPolicies)
	e.POST("/policies/:type", srv.HandleUpdatePolicy)

	e.POST("/content/:kind/:id/nsfw-override", srv.HandleOverrideNSFW)
	e.POST("/content/:kind/:id/nsfw-mark", srv.HandleSelfMarkNSFW)

	e.POST("/behavior/:account/scan", srv.HandleScanAccount)
	e.POST("/activity/account", srv.HandleRecordAccount)
	e.POST("/activity/session", srv.HandleRecordSession)

	return srv, nil
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

func (srv *Server) Run(ctx context.Context) error {
	srv.sweeper.Start()

	srv.logger.Info("starting admin API", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	// Wait for a signal to exit.
	quit := make(chan struct{})
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-exitSignals
		srv.logger.Info("received OS exit signal", "signal", sig)

		if err := srv.Shutdown(); err != nil {
			srv.logger.Error("shutdown error", "err", err)
		}

		close(quit)
	}()
	<-quit
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (srv *Server) Shutdown() error {
	srv.sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.httpd.Shutdown(ctx)
}

// seedDefaultSets installs conservative built-in heuristic lists so the URL
// checker is useful before any sets file is loaded. A sets file with the same
// set names replaces these wholesale.
func seedDefaultSets(sets *setstore.MemSetStore) error {
	ctx := context.Background()
	if err := sets.AddToSet(ctx, urlcheck.ShortenerSetName, []string{
		"bit.ly", "tinyurl.com", "t.co", "goo.gl", "ow.ly", "is.gd",
		"buff.ly", "rebrand.ly", "cutt.ly", "shorturl.at",
	}); err != nil {
		return err
	}
	if err := sets.AddToSet(ctx, urlcheck.SuspiciousTLDSetName, []string{
		"tk", "ml", "ga", "cf", "gq", "zip", "mov", "click",
	}); err != nil {
		return err
	}
	return sets.AddToSet(ctx, urlcheck.SuspiciousWordSetName, []string{
		"login", "signin", "verify", "wallet", "airdrop", "giveaway",
	})
}
