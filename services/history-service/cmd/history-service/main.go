package main

import (
	"context"
	"net/http"
	"time"

	"github.com/slotpark/slotpark/libs/config"
	"github.com/slotpark/slotpark/libs/db"
	"github.com/slotpark/slotpark/libs/httpx"
	"github.com/slotpark/slotpark/libs/kafkax"
	otelx "github.com/slotpark/slotpark/libs/otel"
	"github.com/slotpark/slotpark/libs/runtime"
	"github.com/slotpark/slotpark/services/history-service/internal/consumer"
	"github.com/slotpark/slotpark/services/history-service/internal/history"
	"github.com/slotpark/slotpark/services/history-service/internal/inbox"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "history-service")
	port, err := config.Port("PORT", "8082")
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

	repo := history.NewRepository(pool)
	projector := history.NewProjector(repo, logger)

	inboxRepo := inbox.NewRepository(pool)
	eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "history-service"),
		Topics: []string{
			history.TopicBookingConfirmed,
			history.TopicBookingCancelled,
			history.TopicQuickPostExpired,
		},
	}, projector.Handle)
	go eventConsumer.Run(ctx)

	historyHandler := history.NewHandler(repo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/history/bookings", historyHandler.Bookings)
	mux.HandleFunc(history.SlotTimelinePrefix, historyHandler.SlotTimeline)
	setupParkingDebugRoutes(ctx, mux, logger)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "history")
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

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
