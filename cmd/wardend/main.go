package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/inkhaven-social/warden/cachestore"
	"github.com/inkhaven-social/warden/content"
	"github.com/inkhaven-social/warden/countstore"
	"github.com/inkhaven-social/warden/detector"
	"github.com/inkhaven-social/warden/engine"
	"github.com/inkhaven-social/warden/flagstore"
	"github.com/inkhaven-social/warden/policy"
	"github.com/inkhaven-social/warden/setstore"
	"github.com/inkhaven-social/warden/urlcheck"
	"github.com/inkhaven-social/warden/util"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "wardend",
		Usage:   "moderation decision engine daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "sets-json",
			Usage:   "file path of JSON file containing heuristic domain lists and term lexicons",
			EnvVars: []string{"WARDEN_SETS_JSON"},
		},
		&cli.StringFlag{
			Name:    "policies-json",
			Usage:   "file path of JSON file with initial filter policy configuration",
			EnvVars: []string{"WARDEN_POLICIES_JSON"},
		},
		&cli.StringFlag{
			Name:    "roles-json",
			Usage:   "file path of JSON file listing admin and moderator account IDs",
			EnvVars: []string{"WARDEN_ROLES_JSON"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		checkTextCmd,
		scanAccountCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/wardend/warden.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			EnvVars: []string{"WARDEN_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for counters and caches; in-process stores when empty",
			EnvVars: []string{"WARDEN_REDIS_URL"},
		},
		&cli.StringSliceFlag{
			Name:    "memcached",
			Usage:   "host and port of memcached instances to back the cache layer, instead of redis",
			EnvVars: []string{"WARDEN_MEMCACHED"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the admin API",
			Value:   ":2210",
			EnvVars: []string{"WARDEN_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":2211",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "reputation-host",
			Usage:   "method, hostname, and port of the URL reputation service",
			EnvVars: []string{"WARDEN_REPUTATION_HOST"},
		},
		&cli.StringFlag{
			Name:    "reputation-password",
			Usage:   "admin auth password for the URL reputation service",
			EnvVars: []string{"WARDEN_REPUTATION_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "argus-host",
			Usage:   "method, hostname, and port of the Argus image classifier",
			EnvVars: []string{"WARDEN_ARGUS_HOST"},
		},
		&cli.StringFlag{
			Name:    "argus-password",
			Usage:   "admin auth password for the Argus image classifier",
			EnvVars: []string{"WARDEN_ARGUS_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "webhook URL for auto-report ops notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.IntFlag{
			Name:    "quota-auto-report-day",
			Usage:   "max automatic reports filed per day before the circuit breaker trips",
			Value:   engine.QuotaAutoReportDay,
			EnvVars: []string{"WARDEN_QUOTA_AUTO_REPORT_DAY"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		// Enable OTLP HTTP exporter
		// For relevant environment variables:
		// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace#readme-environment-variables
		// At a minimum, you need to set
		// OTEL_EXPORTER_OTLP_ENDPOINT=http://localhost:4318
		if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
			slog.Info("setting up trace exporter", "endpoint", ep)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			exp, err := otlptracehttp.New(ctx)
			if err != nil {
				return fmt.Errorf("failed to create trace exporter: %w", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := exp.Shutdown(ctx); err != nil {
					slog.Error("failed to shutdown trace exporter", "error", err)
				}
			}()

			tp := tracesdk.NewTracerProvider(
				tracesdk.WithBatcher(exp),
				tracesdk.WithResource(resource.NewWithAttributes(
					semconv.SchemaURL,
					semconv.ServiceNameKey.String("wardend"),
					attribute.String("env", os.Getenv("ENVIRONMENT")),         // DataDog
					attribute.String("environment", os.Getenv("ENVIRONMENT")), // Others
					attribute.Int64("ID", 1),
				)),
			)
			otel.SetTracerProvider(tp)
		}

		engine.QuotaAutoReportDay = cctx.Int("quota-auto-report-day")

		srv, err := NewServer(Config{
			Logger:             logger,
			Bind:               cctx.String("bind"),
			DatabaseURL:        cctx.String("database-url"),
			MaxDBConnections:   cctx.Int("max-db-connections"),
			DBTracing:          cctx.Bool("db-tracing"),
			RedisURL:           cctx.String("redis-url"),
			MemcachedAddrs:     cctx.StringSlice("memcached"),
			SetsFileJSON:       cctx.String("sets-json"),
			PoliciesFileJSON:   cctx.String("policies-json"),
			RolesFileJSON:      cctx.String("roles-json"),
			ReputationHost:     cctx.String("reputation-host"),
			ReputationPassword: cctx.String("reputation-password"),
			ArgusHost:          cctx.String("argus-host"),
			ArgusPassword:      cctx.String("argus-password"),
			SlackWebhookURL:    cctx.String("slack-webhook-url"),
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		return nil
	},
}

var checkTextCmd = &cli.Command{
	Name:      "check-text",
	Usage:     "evaluate a text snippet in-process and print the decision",
	ArgsUsage: "<text>",
	Action: func(cctx *cli.Context) error {
		text := strings.Join(cctx.Args().Slice(), " ")
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("expected text to evaluate as an argument")
		}

		// keep stdout clean for the JSON result
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		}))
		slog.SetDefault(logger)

		sets := setstore.NewMemSetStore()
		if err := seedDefaultSets(sets); err != nil {
			return err
		}
		if p := cctx.String("sets-json"); p != "" {
			if err := sets.LoadFromFileJSON(p); err != nil {
				return fmt.Errorf("loading sets file: %w", err)
			}
		}

		policies := policy.NewStore()
		if p := cctx.String("policies-json"); p != "" {
			if err := policies.LoadFromFileJSON(p, "check-text"); err != nil {
				return fmt.Errorf("loading policy file: %w", err)
			}
		}

		eng := &engine.Engine{
			Logger:   logger,
			Policies: policies,
			Detectors: []detector.Detector{
				detector.NewProfanityDetector(nil),
				detector.NewSpamDetector(),
				detector.NewHateSpeechDetector(sets),
			},
			URLs:     urlcheck.NewChecker(nil, cachestore.NewMemCacheStore(1000, time.Hour), sets),
			Flags:    flagstore.NewMemFlagStore(),
			Counters: countstore.NewMemCountStore(),
			Reports:  engine.NewMemReportSink(),
		}

		d, err := eng.Evaluate(context.Background(), content.NewWhisper("check-text", "operator", text))
		if err != nil {
			return err
		}

		b, err := json.MarshalIndent(evaluateResponse{Decision: d, Error: d.Err()}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

var scanAccountCmd = &cli.Command{
	Name:      "scan-account",
	Usage:     "trigger a behavioral scan for one account on a running daemon",
	ArgsUsage: "<account-id>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "admin-host",
			Usage:   "method, hostname, and port of the running wardend admin API",
			Value:   "http://localhost:2210",
			EnvVars: []string{"WARDEN_ADMIN_HOST"},
		},
	},
	Action: func(cctx *cli.Context) error {
		accountID := cctx.Args().First()
		if accountID == "" {
			return fmt.Errorf("expected account ID as an argument")
		}

		client := util.RobustHTTPClient()
		url := fmt.Sprintf("%s/behavior/%s/scan", cctx.String("admin-host"), accountID)
		req, err := http.NewRequest("POST", url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", "wardend/"+versioninfo.Short())

		res, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("scan request failed: %w", err)
		}
		defer res.Body.Close()

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}
		if res.StatusCode != 200 {
			return fmt.Errorf("scan failed statusCode=%d body=%s", res.StatusCode, string(body))
		}
		fmt.Println(string(body))
		return nil
	},
}
