// Package cmd implements the sieve command line interface.
package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for catalog migrations
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/adapters/datasource"
	_ "github.com/sievedata/sieve-engine/pkg/adapters/datasource/mssql"
	_ "github.com/sievedata/sieve-engine/pkg/adapters/datasource/postgres"
	"github.com/sievedata/sieve-engine/pkg/config"
	"github.com/sievedata/sieve-engine/pkg/database"
	"github.com/sievedata/sieve-engine/pkg/discovery"
	"github.com/sievedata/sieve-engine/pkg/llm"
	"github.com/sievedata/sieve-engine/pkg/logging"
	"github.com/sievedata/sieve-engine/pkg/repositories"
)

var rootCmd = &cobra.Command{
	Use:           "sieve",
	Short:         "Mine structural dependencies from relational databases",
	Long: `Sieve connects to a relational database, screens column pairs for
compatibility, builds a constraint graph of join predicates, and searches
it for functional, inclusion, tuple-generating and equality-generating
dependencies that hold on the live data.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sieve version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sieve %s\n", rootCmd.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the CLI. The version string is injected at build time.
func Execute(version string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.Version = version
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Connection failures echo the DSN, credentials included.
		fmt.Fprintln(os.Stderr, "Error:", logging.SanitizeError(err))
		stop()
		os.Exit(1)
	}
}

// runtime bundles everything a command needs once configuration is
// loaded: logger, datasource handle, and the assembled service.
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	handle  datasource.Handle
	service *discovery.Service

	closers []func()
}

func (r *runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// newRuntime loads configuration and opens every dependency the
// discovery service needs. Catalog and embeddings are optional and
// only opened when configured.
func newRuntime(ctx context.Context, version string) (*runtime, error) {
	cfg, err := config.Load(version)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	r := &runtime{cfg: cfg, logger: logger}
	r.closers = append(r.closers, func() { _ = logger.Sync() })

	if cfg.MetricsAddr != "" {
		startMetricsListener(cfg.MetricsAddr, logger)
	}

	handle, err := datasource.Open(ctx, datasource.Config{
		Type:           cfg.Datasource.Type,
		DSN:            cfg.Datasource.DSN,
		Schema:         cfg.Datasource.Schema,
		MaxConns:       cfg.Datasource.MaxConns,
		ConnectTimeout: cfg.Datasource.ConnectTimeout(),
		SampleLimit:    cfg.Datasource.SampleLimit,
	}, logger)
	if err != nil {
		r.close()
		return nil, fmt.Errorf("open datasource: %w", err)
	}
	r.handle = handle
	r.closers = append(r.closers, func() { _ = handle.Close() })

	svc := &discovery.Service{Handle: handle, Logger: logger}

	if cfg.Catalog.Enabled {
		runs, deps, err := openCatalog(ctx, cfg, logger)
		if err != nil {
			r.close()
			return nil, err
		}
		svc.Runs = runs
		svc.Dependencies = deps
	}

	if cfg.Embeddings.IsAvailable() {
		client, err := llm.NewClient(&llm.Config{
			Endpoint: cfg.Embeddings.Endpoint,
			Model:    cfg.Embeddings.Model,
			APIKey:   cfg.Embeddings.APIKey,
		}, logger)
		if err != nil {
			logger.Warn("embedding provider unavailable, continuing without it", zap.Error(err))
		} else {
			svc.Embedder = client
		}
	}

	r.service = svc
	return r, nil
}

// openCatalog connects the engine catalog, applies migrations, and
// returns the repositories.
func openCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.RunRepository, repositories.DependencyRepository, error) {
	url := cfg.Catalog.ConnectionString()

	migrationDB, err := sql.Open("pgx", url)
	if err != nil {
		return nil, nil, fmt.Errorf("open catalog for migrations: %w", err)
	}
	if err := database.RunMigrations(migrationDB, cfg.Catalog.MigrationsPath, logger); err != nil {
		migrationDB.Close()
		return nil, nil, fmt.Errorf("run catalog migrations: %w", err)
	}
	migrationDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            url,
		MaxConnections: cfg.Catalog.MaxConnections,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect catalog: %w", err)
	}
	return repositories.NewRunRepository(db), repositories.NewDependencyRepository(db), nil
}

// startMetricsListener serves Prometheus metrics in the background for
// the lifetime of the process.
func startMetricsListener(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		logger.Info("metrics listener started", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("metrics listener stopped", zap.Error(err))
		}
	}()
}
