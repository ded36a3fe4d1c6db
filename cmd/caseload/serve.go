package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rpggio/caseload/internal/config"
	"github.com/rpggio/caseload/internal/domain/activity"
	"github.com/rpggio/caseload/internal/domain/assignment"
	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/quota"
	"github.com/rpggio/caseload/internal/domain/session"
	"github.com/rpggio/caseload/internal/domain/therapist"
	"github.com/rpggio/caseload/internal/domain/tier"
	"github.com/rpggio/caseload/internal/events"
	"github.com/rpggio/caseload/internal/identity"
	"github.com/rpggio/caseload/internal/mcp"
	"github.com/rpggio/caseload/internal/metrics"
	"github.com/rpggio/caseload/internal/sqlstore"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger, closeLog := newLogger(cfg)
	defer closeLog()

	catalog, err := cfg.Catalog()
	if err != nil {
		return fmt.Errorf("tier catalog: %w", err)
	}
	defaultRole, err := identity.ParseRole(cfg.Auth.DefaultRole)
	if err != nil {
		return fmt.Errorf("auth.default_role: %w", err)
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return err
	}
	defer db.Close()

	bus := events.NewBus(logger)
	defer bus.Close()

	clientRepo := sqlstore.NewClientRepository(db)
	therapistRepo := sqlstore.NewTherapistRepository(db)
	keyRepo := sqlstore.NewAPIKeyRepository(db)

	gate := quota.NewGate(sqlstore.NewSubscriptionRepository(db), catalog, bus, logger)
	activitySvc := activity.NewService(sqlstore.NewActivityRepository(db), logger)
	services := mcp.Services{
		Clients:    client.NewService(clientRepo, logger),
		Therapists: therapist.NewService(therapistRepo, gate, logger),
		Quota:      gate,
		Assignments: assignment.NewService(assignment.Deps{
			Clients:     clientRepo,
			Therapists:  therapistRepo,
			Assignments: sqlstore.NewAssignmentRepository(db),
			Quota:       gate,
			Events:      bus,
		}, assignment.Config{
			CallTimeout:      cfg.Coordinator.CallTimeout,
			AutoConsultation: cfg.Coordinator.AutoConsultation,
		}, logger),
		Sessions: session.NewService(sqlstore.NewSessionRepository(db), clientRepo, bus, logger),
		Activity: activitySvc,
	}

	mcpServer := mcp.NewServer(mcp.Config{
		Services:    services,
		Resolver:    identity.NewResolver(keyRepo, cfg.Auth.KeyCacheTTL),
		AuthEnabled: cfg.Auth.Enabled,
		DefaultCaller: identity.Caller{
			UserID:   "local",
			ClinicID: cfg.Auth.DefaultClinic,
			Role:     defaultRole,
		},
		TransportMode: cfg.Transport.Mode,
		Version:       Version,
		Logger:        logger,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	activitySub, activityCh := bus.SubscribeDurable(256)
	defer bus.Unsubscribe(activitySub)
	metricsSub, metricsCh := bus.Subscribe(256)
	defer bus.Unsubscribe(metricsSub)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return activitySvc.Run(ctx, activityCh) })
	g.Go(func() error { return metrics.Run(ctx, metricsCh) })
	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			return serveHTTP(ctx, logger, "metrics", &http.Server{
				Addr:         cfg.Metrics.Addr,
				Handler:      mux,
				ReadTimeout:  5 * time.Second,
				WriteTimeout: 10 * time.Second,
			})
		})
	}
	g.Go(func() error {
		defer cancel()
		if cfg.Transport.Mode == "stdio" {
			return runStdioMode(ctx, logger, mcpServer)
		}
		return runHTTPMode(ctx, logger, mcpServer, cfg.Server.Host, cfg.Server.Port)
	})

	err = g.Wait()
	logger.Info("shut down")
	return err
}

func runStdioMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	// Run blocks until stdin closes or ctx is canceled.
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

func runHTTPMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server, host string, port int) error {
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:      false,
			SessionTimeout: 30 * time.Minute,
		},
	)

	router := http.NewServeMux()
	router.Handle("/mcp", mcpHandler)
	router.Handle("/mcp/", mcpHandler)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return serveHTTP(ctx, logger, "mcp", &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: router,
	})
}

// serveHTTP runs srv until ctx is done, then shuts it down.
func serveHTTP(ctx context.Context, logger *slog.Logger, name string, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "server", name, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server: %w", name, err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", "server", name, "error", err)
	}
	return nil
}

func openDB(ctx context.Context, cfg config.Config) (*sqlstore.DB, error) {
	dialect := sqlstore.Dialect(cfg.DB.Driver)
	dsn := cfg.DB.DSN
	if dialect == sqlstore.DialectSQLite {
		dsn = cfg.DB.Path
		if err := ensureDBDir(dsn); err != nil {
			return nil, fmt.Errorf("prepare database path: %w", err)
		}
	}
	db, err := sqlstore.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runMigrate(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	fmt.Fprintf(out, "migrated %s database\n", db.Dialect())
	return nil
}

func runTiers(out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}
	printCatalog(out, catalog)
	return nil
}

func printCatalog(out io.Writer, catalog *tier.Catalog) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIER\tTHERAPISTS\tCLIENTS/DAY\tSCRIPTS/DAY\tMONTHLY\tANNUAL")
	for _, p := range catalog.Plans() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\n",
			p.Tier, p.Limits.Therapists, p.Limits.ClientsPerDay, p.Limits.ScriptsPerDay,
			formatCents(p.Price(tier.CycleMonthly)), formatCents(p.Price(tier.CycleAnnual)))
	}
	tw.Flush()
}

func formatCents(c int64) string {
	return fmt.Sprintf("$%d.%02d", c/100, c%100)
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
