package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"dsacoach/internal/app/harness"
	"dsacoach/internal/infra/treesitter"
	"dsacoach/internal/logging"
	"dsacoach/internal/observability"
	"dsacoach/internal/runtime/docker"
)

var (
	envFile string

	cfg    appConfig
	logger *logging.ZapLogger

	rootCmd = &cobra.Command{
		Use:           "dsacoach",
		Short:         "DSA practice backend with a sandboxed evaluation harness",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			cfg = loadAppConfig()

			var err error
			logger, err = logging.NewZapLogger(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from this file (default .env when present)")
	rootCmd.AddCommand(serveCmd, workerCmd, evalCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. An empty path loads .env if it exists.
func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// sandbox bundles the harness with the engine it owns.
type sandbox struct {
	harness *harness.Service
	engine  *docker.Engine
}

func (s *sandbox) Close() error {
	return s.engine.Close()
}

func newSandbox(ctx context.Context, metrics *observability.Metrics) (*sandbox, error) {
	dockerCfg := dockerConfigFromEnv()
	dockerCfg.Logger = logger
	engine, err := docker.New(dockerCfg)
	if err != nil {
		return nil, fmt.Errorf("init docker runtime: %w", err)
	}

	if err := engine.Warmup(ctx); err != nil {
		logger.Warn("Image warmup failed; images will be pulled on first use", "error", err)
	}

	h := harness.New(engine, treesitter.NewChecker(),
		harness.WithLimits(dockerCfg.DefaultLimits),
		harness.WithLogger(logger),
		harness.WithMetrics(metrics),
	)
	return &sandbox{harness: h, engine: engine}, nil
}

// startTracing installs the tracer provider and returns its shutdown hook.
func startTracing(ctx context.Context) (func(), error) {
	shutdown, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}, nil
}

func newMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.DefaultRegisterer)
}
