package main

import (
	"context"
	"embed"
	"net/http"
	"net/http/httputil"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/slotpark/slotpark/libs/auth"
	"github.com/slotpark/slotpark/libs/config"
	"github.com/slotpark/slotpark/libs/httpx"
	otelx "github.com/slotpark/slotpark/libs/otel"
	"github.com/slotpark/slotpark/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

//go:embed assets/gateway.v1.yaml
var openAPISpec embed.FS

func main() {
	service := config.String("SERVICE_NAME", "gateway-service")
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

	mux := runtime.NewBaseMuxWithReady()
	registerRoutes(mux,
		config.String("JWT_SECRET", "dev-secret"),
		config.String("JWKS_URL", ""),
		time.Duration(intOr("JWKS_CACHE_SECONDS", 300))*time.Second,
	)

	limitPerMinute := intOr("RATE_LIMIT_PER_MINUTE", 60)
	var counter httpx.CounterStore = httpx.NewMemoryCounter()
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       intOr("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		counter = httpx.NewRedisCounter(rdb)
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(corsPolicyFromEnv()),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(intOr("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(time.Duration(intOr("REQUEST_TIMEOUT_SECONDS", 10))*time.Second),
		httpx.RateLimit(counter, httpx.RateLimitConfig{
			Limit:    limitPerMinute,
			Window:   time.Minute,
			Prefix:   config.String("RATE_LIMIT_PREFIX", "rl"),
			FailOpen: config.Bool("RATE_LIMIT_FAIL_OPEN", true),
		}, logger),
	)
	handler = otelhttp.NewHandler(handler, "gateway")
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

// intOr reads an integer knob, keeping the fallback when the variable is
// unset, malformed, or not positive.
func intOr(key string, fallback int) int {
	n, err := config.Int(key, fallback)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func corsPolicyFromEnv() httpx.CORSPolicy {
	return httpx.CORSPolicy{
		AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
		AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS"),
		AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,Idempotency-Key"),
		AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
		MaxAge:           time.Duration(intOr("CORS_MAX_AGE_SECONDS", 600)) * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, jwtSecret, jwksURL string, jwksTTL time.Duration) {
	transport := otelhttp.NewTransport(http.DefaultTransport)
	parking := newProxy(config.String("PARKING_URL", "http://parking-service:8081"), transport)
	history := newProxy(config.String("HISTORY_URL", "http://history-service:8082"), transport)

	var jwksClient *auth.JWKSClient
	if jwksURL != "" {
		jwksClient = auth.NewJWKSClient(jwksURL, jwksTTL)
	}
	authed := func(h http.Handler) http.Handler {
		return requireAuth(h, jwtSecret, jwksClient)
	}

	// Every v1 route needs a bearer token; there is no public subset.
	mount(mux, "/api/v1/slots", authed(parking))
	mount(mux, "/api/v1/bookings", authed(parking))
	mount(mux, "/api/v1/admin", authed(requireRole(parking, "admin")))
	mount(mux, "/api/v1/history", authed(requireRole(history, "admin")))

	mux.HandleFunc("/openapi", serveOpenAPI)
}

func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	data, err := openAPISpec.ReadFile("assets/gateway.v1.yaml")
	if err != nil {
		http.Error(w, "openapi not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// newProxy builds a reverse proxy for the backend at raw, panicking on a
// malformed URL.
func newProxy(raw string, transport http.RoundTripper) *httputil.ReverseProxy {
	target, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	p := httputil.NewSingleHostReverseProxy(target)
	p.Transport = transport
	return p
}

// mount registers the handler for a path prefix and everything under it.
func mount(mux *http.ServeMux, prefix string, h http.Handler) {
	mux.Handle(prefix, h)
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix+"/", h)
	}
}

// requireAuth verifies the bearer token and forwards the caller's identity
// to the backend through X-Resident-* headers. Whatever the client sent in
// those headers is replaced with the verified claims.
func requireAuth(next http.Handler, jwtSecret string, jwksClient *auth.JWKSClient) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}
		claims, err := verifyToken(token, jwtSecret, jwksClient)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		r.Header.Set("X-Resident-Id", claims.Sub)
		r.Header.Set("X-Resident-Unit", claims.Unit)
		r.Header.Set("X-Resident-Role", claims.Role)
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, prefix))
	return token, token != ""
}

// verifyToken prefers RS256 through JWKS when the token names a key id;
// everything else falls back to the shared HS256 secret.
func verifyToken(token, jwtSecret string, jwksClient *auth.JWKSClient) (*auth.Claims, error) {
	if jwksClient != nil {
		header, err := auth.ParseHeader(token)
		if err != nil {
			return nil, err
		}
		if header.Alg == "RS256" && header.Kid != "" {
			pub, err := jwksClient.Get(header.Kid)
			if err != nil {
				return nil, err
			}
			return auth.VerifyRS256(token, pub)
		}
	}
	return auth.ParseAndVerifyHS256(token, jwtSecret)
}

// requireRole gates a route on the role requireAuth resolved. It must sit
// inside requireAuth, which owns the X-Resident-Role header.
func requireRole(next http.Handler, roles ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !slices.Contains(roles, r.Header.Get("X-Resident-Role")) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
