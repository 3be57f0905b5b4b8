package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/slotpark/slotpark/libs/config"
	"github.com/slotpark/slotpark/libs/db"
	"github.com/slotpark/slotpark/libs/httpx"
	"github.com/slotpark/slotpark/libs/kafkax"
	otelx "github.com/slotpark/slotpark/libs/otel"
	"github.com/slotpark/slotpark/libs/runtime"
	"github.com/slotpark/slotpark/services/parking-service/internal/booking"
	"github.com/slotpark/slotpark/services/parking-service/internal/handlers"
	"github.com/slotpark/slotpark/services/parking-service/internal/maintenance"
	"github.com/slotpark/slotpark/services/parking-service/internal/outbox"
	"github.com/slotpark/slotpark/services/parking-service/internal/schedule"
	"github.com/slotpark/slotpark/services/parking-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "parking-service")
	port, err := config.Port("PORT", "8081")
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository(pool)
	slotRepo := storage.NewSlotRepository(pool, outboxRepo)
	bookingRepo := storage.NewBookingRepository(pool, outboxRepo)
	scheduleRepo := storage.NewScheduleRepository(pool)

	rules, err := booking.RulesFromEnv()
	if err != nil {
		logger.Error("invalid booking rules", "err", err)
		panic(err)
	}

	loc := time.UTC
	if tz := config.String("COMMUNITY_TZ", "UTC"); tz != "UTC" {
		loaded, err := time.LoadLocation(tz)
		if err != nil {
			logger.Error("community timezone load failed; using UTC", "err", err, "tz", tz)
		} else {
			loc = loaded
		}
	}
	resolver := schedule.NewResolver(loc)
	engine := booking.NewEngine(rules, resolver, slotRepo, scheduleRepo, bookingRepo, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	bookingHandler := handlers.NewBookingHandler(engine, bookingRepo, slotRepo, logger)
	slotHandler := handlers.NewSlotHandler(engine, slotRepo, logger)
	scheduleHandler := handlers.NewScheduleHandler(scheduleRepo, slotRepo, logger)
	adminHandler := handlers.NewAdminHandler(engine, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/bookings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			bookingHandler.Create(w, r)
			return
		}
		if r.Method == http.MethodGet {
			bookingHandler.List(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/slots", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			slotHandler.List(w, r)
			return
		}
		if r.Method == http.MethodPost {
			slotHandler.Create(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	mux.HandleFunc("/api/v1/slots/update", slotHandler.Update)
	mux.HandleFunc("/api/v1/slots/quickpost", slotHandler.QuickPost)
	mux.HandleFunc("/api/v1/slots/quickpost/clear", slotHandler.QuickPostClear)
	mux.HandleFunc("/api/v1/slots/availability", slotHandler.Availability)
	mux.HandleFunc("/api/v1/slots/quote", slotHandler.Quote)
	mux.HandleFunc("/api/v1/slots/windows", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			scheduleHandler.CreateWindow(w, r)
			return
		}
		if r.Method == http.MethodGet {
			scheduleHandler.ListWindows(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	mux.HandleFunc("/api/v1/slots/windows/delete", scheduleHandler.DeleteWindow)
	mux.HandleFunc("/api/v1/slots/blackouts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			scheduleHandler.CreateBlackout(w, r)
			return
		}
		if r.Method == http.MethodGet {
			scheduleHandler.ListBlackouts(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	mux.HandleFunc("/api/v1/slots/blackouts/delete", scheduleHandler.DeleteBlackout)
	mux.HandleFunc("/api/v1/admin/sweep", adminHandler.Sweep)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "parking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	// Housekeeping: expire stale quick postings and complete finished
	// bookings even when no admin calls the sweep endpoint.
	sweepSeconds, _ := strconv.Atoi(config.String("SWEEP_INTERVAL_SECONDS", "60"))
	if sweepSeconds <= 0 {
		sweepSeconds = 60
	}
	lockKey, _ := strconv.ParseInt(config.String("SWEEP_LOCK_KEY", "7231001"), 10, 64)
	worker := maintenance.NewWorker(pool, slotRepo, bookingRepo, outboxRepo, logger, maintenance.WorkerConfig{
		Interval:        time.Duration(sweepSeconds) * time.Second,
		AdvisoryLockKey: lockKey,
	})
	go worker.Run(ctx)

	if err := startGrpcServer(ctx, logger, engine); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
