package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tutorhq/tutorbook/internal/booking"
	"github.com/tutorhq/tutorbook/internal/config"
	"github.com/tutorhq/tutorbook/internal/events"
	"github.com/tutorhq/tutorbook/internal/handlers"
	"github.com/tutorhq/tutorbook/internal/httpx"
	"github.com/tutorhq/tutorbook/internal/kafkax"
	"github.com/tutorhq/tutorbook/internal/notify"
	"github.com/tutorhq/tutorbook/internal/otelx"
	"github.com/tutorhq/tutorbook/internal/runtime"
	"github.com/tutorhq/tutorbook/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "tutorbook")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var store storage.Store
	var checks []runtime.ReadyCheck
	if dbURL := config.String("DATABASE_URL", ""); dbURL != "" {
		pg, err := storage.OpenPGStore(ctx, dbURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pg.Close()
		store = pg
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: pg.ReadyCheck()})
	} else {
		path := config.String("STORE_PATH", "appointments.json")
		logger.Info("using file store", "path", path)
		store = storage.NewFileStore(path)
	}

	tutor := booking.Contact{
		Name:  config.String("TUTOR_NAME", "Tutor"),
		Email: config.String("TUTOR_EMAIL", "tutor@tutorbook.local"),
	}
	notifier := notify.NewSMTPNotifier(
		config.String("SMTP_HOST", "localhost"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@tutorbook.local"),
		tutor.Name,
		logger,
	)

	brokers := config.String("KAFKA_BROKERS", "")
	publisher := events.NewPublisher(brokers, logger)
	if publisher != nil {
		defer publisher.Close()
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	policy := booking.Policy{
		SlotHours:      config.Hours("SLOT_HOURS", booking.DefaultPolicy().SlotHours),
		LeadTime:       time.Duration(config.Int("LEAD_TIME_HOURS", 24)) * time.Hour,
		ReminderWindow: time.Duration(config.Int("REMINDER_WINDOW_HOURS", 48)) * time.Hour,
	}

	svc := booking.NewService(booking.Config{
		Store:    store,
		Notifier: notifier,
		Events:   publisher,
		Logger:   logger,
		Policy:   policy,
		Tutor:    tutor,
	})

	rateLimit := config.Int("RATE_LIMIT", 60)
	rateWindow := time.Duration(config.Int("RATE_WINDOW_SECONDS", 60)) * time.Second
	var limit httpx.Middleware
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer rdb.Close()
		limit = httpx.NewRedisRateLimiter(rdb, rateLimit, rateWindow, "tutorbook").Middleware(logger)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		limit = httpx.NewRateLimiter(rateLimit, rateWindow).Middleware()
	}

	bookingHandler := handlers.NewBookingHandler(svc, logger)
	adminHandler := handlers.NewAdminHandler(svc, logger)
	admin := handlers.RequireAdmin(config.String("ADMIN_PASSWORD_HASH", ""), logger)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/v1/slots", limit(http.HandlerFunc(bookingHandler.Slots)))
	mux.Handle("/api/v1/appointments", limit(http.HandlerFunc(bookingHandler.Create)))
	mux.Handle("/api/v1/appointments/cancel", limit(http.HandlerFunc(bookingHandler.Cancel)))
	mux.Handle("/api/v1/appointments/reschedule", limit(http.HandlerFunc(bookingHandler.Reschedule)))
	mux.Handle("/api/v1/admin/decision", admin(http.HandlerFunc(adminHandler.Decide)))
	mux.Handle("/api/v1/admin/appointments", admin(http.HandlerFunc(adminHandler.List)))
	mux.Handle("/api/v1/admin/reminders/scan", admin(http.HandlerFunc(adminHandler.ScanReminders)))

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	handler = otelhttp.NewHandler(handler, "tutorbook")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
