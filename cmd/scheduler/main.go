package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/example/fieldservice-scheduler/internal/application"
	"github.com/example/fieldservice-scheduler/internal/calendar"
	"github.com/example/fieldservice-scheduler/internal/calendar/ics"
	"github.com/example/fieldservice-scheduler/internal/config"
	httptransport "github.com/example/fieldservice-scheduler/internal/http"
	"github.com/example/fieldservice-scheduler/internal/persistence/sqlite"
	"github.com/example/fieldservice-scheduler/internal/persistence/sqlite/migration"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("failed to load timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.NewConnectionPool(migration.DefaultSQLiteConfig(cfg.SQLiteDSN))
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := pool.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := func() string { return uuid.NewString() }
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	technicianRepo := sqlite.NewTechnicianRepository(pool)
	jobRepo := sqlite.NewJobRepository(pool)
	appointmentRepo := sqlite.NewAppointmentRepository(pool)
	operatorRepo := sqlite.NewOperatorRepository(pool)
	sessionRepo := sqlite.NewSessionRepository(pool)

	messenger := calendar.NewHTTPMessenger(cfg.CalendarBaseURL, cfg.CalendarTimeout, logger)
	busyFeed := ics.NewFeedReader(ics.NewFetcher(cfg.CalendarTimeout), loc)

	technicianService := application.NewTechnicianService(technicianRepo, idGenerator, now)
	jobService := application.NewJobService(jobRepo, idGenerator, now)
	appointmentService := application.NewAppointmentService(application.AppointmentServiceConfig{
		Appointments: appointmentRepo,
		Jobs:         jobRepo,
		Technicians:  technicianRepo,
		Messenger:    messenger,
		BusyFeed:     busyFeed,
		CallTimeout:  cfg.CalendarTimeout,
		IDGenerator:  idGenerator,
		Now:          now,
		Logger:       logger,
	})
	authService := application.NewAuthService(operatorRepo, sessionRepo, application.VerifyPassword, tokenGenerator, now, cfg.SessionTTL, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(authService, logger),
		Technicians:  httptransport.NewTechnicianHandler(technicianService, logger),
		Jobs:         httptransport.NewJobHandler(jobService, logger),
		Appointments: httptransport.NewAppointmentHandler(appointmentService, logger),
	})

	protected := httptransport.RequireSession(authService, logger)(router)
	handler := httptransport.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicRoute(r) {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	poller := newResponsePoller(messenger, appointmentService, logger)
	pollScheduler := cron.New()
	if _, err := pollScheduler.AddFunc(cfg.PollSpec, func() {
		poller.poll(context.Background())
	}); err != nil {
		logger.Error("failed to register response poller", "spec", cfg.PollSpec, "error", err)
		os.Exit(1)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("scheduler API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		pollScheduler.Start()
		<-groupCtx.Done()
		<-pollScheduler.Stop().Done()
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// isPublicRoute reports whether a request may bypass session authentication:
// login itself and the gateway's response push.
func isPublicRoute(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	return path == "/sessions" || path == "/calendar/responses"
}

type responseApplier interface {
	ApplyResponses(ctx context.Context, responses []application.InboundResponse) (application.ApplyResponsesResult, error)
}

// responsePoller periodically drains pending accept/decline signals from the
// calendar gateway. It complements the push webhook for deployments where the
// gateway cannot reach this service directly.
type responsePoller struct {
	source  calendar.ResponseSource
	applier responseApplier
	logger  *slog.Logger
}

func newResponsePoller(source calendar.ResponseSource, applier responseApplier, logger *slog.Logger) *responsePoller {
	if logger == nil {
		logger = slog.Default()
	}
	return &responsePoller{source: source, applier: applier, logger: logger}
}

func (p *responsePoller) poll(ctx context.Context) {
	responses, err := p.source.FetchResponses(ctx)
	if err != nil {
		p.logger.Error("failed to fetch calendar responses", "error", err)
		return
	}
	if len(responses) == 0 {
		return
	}

	result, err := p.applier.ApplyResponses(ctx, responses)
	if err != nil {
		p.logger.Error("failed to apply calendar responses", "error", err)
		return
	}

	p.logger.Info("applied calendar responses",
		"fetched", len(responses),
		"changed", len(result.Changed),
		"warnings", len(result.Warnings),
	)
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
