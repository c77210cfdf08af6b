package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"inference-gateway/inference"
	"inference-gateway/inference/application"
	"inference-gateway/inference/domain"
	"inference-gateway/inference/infra"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// backing store: estado do pool + cache
	var kv domain.KVStore
	var rdb *redis.Client
	switch cfg.storeBackend {
	case "redis":
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			log.Fatalf("redis ping error: %v", err)
		}
		kv = infra.NewRedisKV(rdb, infra.WithKVPrefix(cfg.storePrefix))
	case "memory":
		mem := infra.NewMemoryKV()
		mem.StartJanitor(ctx)
		kv = mem
	}

	// métricas
	reader, metricsHandler, err := infra.NewMetricsReader(cfg.metricsExporter)
	if err != nil {
		log.Fatalf("metrics error: %v", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mp.Shutdown(shutdownCtx)
	}()
	otel.SetMeterProvider(mp)

	otelStats, err := infra.NewOtelStats(otel.Meter("inference-gateway"))
	if err != nil {
		log.Fatalf("metrics error: %v", err)
	}
	stats := domain.MultiStats{otelStats}
	if cfg.statsEnabled && rdb != nil {
		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.storePrefix+":stats"),
			infra.WithStatsTTL(cfg.statsTTL),
		))
	}

	pool := application.CredentialPool{
		Credentials: cfg.apiKeys,
		Store:       infra.NewKVPoolStateStore(kv),
		Stats:       stats,
		Cooldown:    cfg.poolCooldown,
	}

	var slots domain.SlotPool
	if cfg.upstreamConcurrency > 0 {
		slots = infra.NewChanPool(cfg.upstreamConcurrency)
	}
	upstream := application.UpstreamService{
		Upstream: infra.GeminiClient{
			BaseURL:    cfg.upstreamURL,
			Model:      cfg.upstreamModel,
			HTTPClient: &http.Client{},
		},
		Pool:             pool,
		Slots:            slots,
		Timeout:          cfg.upstreamTimeout,
		PenalizeTimeouts: cfg.penalizeTimeouts,
		Stats:            stats,
	}

	cache, err := application.NewResponseCache(kv, cfg.cacheTTL, cfg.cacheStoreTTL)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	cache.Stats = stats

	var h http.Handler = inference.NewHandler(inference.HandlerOptions{
		Extractor:    upstream,
		Colors:       application.NewColorService(cache, upstream),
		Health:       &inference.HealthHandler{Store: kv, Pool: pool},
		Metrics:      metricsHandler,
		MaxBodyBytes: cfg.ocrMaxBody,
	})
	h = inference.Concurrency(inference.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)
	if cfg.rateEnabled {
		rates := infra.NewRateStore(cfg.rateRPS, cfg.rateBurst)
		rates.StartJanitor(ctx)
		h = inference.RateLimit(inference.RateLimitOptions{
			Store:               rates,
			Stats:               stats,
			KeyHeader:           cfg.rateKeyHeader,
			TrustXForwardedFor:  cfg.trustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			RetryAfter:          1 * time.Second,
			AddRateLimitHeaders: cfg.addHeaders,
		})(h)
	}
	h = inference.RequestID(h)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// precisa cobrir o timeout do upstream
		WriteTimeout: cfg.upstreamTimeout + 15*time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if st, err := pool.Status(ctx); err == nil {
		log.Printf("credentials: total=%d available=%d coolingDown=%d permanentlyFailed=%d",
			st.Total, st.Available, st.CoolingDown, st.PermanentlyDown)
	} else {
		log.Printf("credentials: status unavailable: %v", err)
	}
	log.Printf("gateway listening on %s -> %s model=%s", cfg.listenAddr, cfg.upstreamURL, upstream.Source())
	log.Printf("upstream: timeout=%s concurrency=%d penalizeTimeouts=%v cooldown=%s", cfg.upstreamTimeout, cfg.upstreamConcurrency, cfg.penalizeTimeouts, cfg.poolCooldown)
	log.Printf("store: backend=%s redisAddr=%q prefix=%q cacheTTL=%s storeTTL=%s", cfg.storeBackend, cfg.redisAddr, cfg.storePrefix, cfg.cacheTTL, cfg.cacheStoreTTL)
	log.Printf("rate: enabled=%v rps=%.3f burst=%d keyHeader=%q trustXFF=%v", cfg.rateEnabled, cfg.rateRPS, cfg.rateBurst, cfg.rateKeyHeader, cfg.trustXFF)
	log.Printf("concurrency: max=%d acquireTimeout=%s", cfg.concurrencyMax, cfg.concurrencyTimeout)
	log.Printf("stats: redis=%v ttl=%s metrics=%s", cfg.statsEnabled, cfg.statsTTL, cfg.metricsExporter)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

type config struct {
	listenAddr          string
	upstreamURL         string
	upstreamModel       string
	apiKeys             []domain.Credential
	upstreamTimeout     time.Duration
	upstreamConcurrency int
	penalizeTimeouts    bool
	poolCooldown        time.Duration

	cacheTTL      time.Duration
	cacheStoreTTL time.Duration
	storeBackend  string
	redisAddr     string
	redisPassword string
	redisDB       int
	storePrefix   string

	rateEnabled        bool
	rateRPS            float64
	rateBurst          int
	rateKeyHeader      string
	trustXFF           bool
	addHeaders         bool
	concurrencyMax     int
	concurrencyTimeout time.Duration

	statsEnabled    bool
	statsTTL        time.Duration
	metricsExporter string
	ocrMaxBody      int64
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = getenvDefault("UPSTREAM_URL", "https://generativelanguage.googleapis.com")
	cfg.upstreamModel = getenvDefault("UPSTREAM_MODEL", "gemini-2.0-flash")
	cfg.apiKeys = parseCredentials(os.Getenv("UPSTREAM_API_KEYS"))
	cfg.upstreamTimeout = getenvDurationDefault("UPSTREAM_TIMEOUT", application.DefaultUpstreamTimeout)
	cfg.upstreamConcurrency = getenvIntDefault("UPSTREAM_CONCURRENCY", 0)
	cfg.penalizeTimeouts = getenvBoolDefault("PENALIZE_TIMEOUTS", false)
	cfg.poolCooldown = getenvDurationDefault("POOL_COOLDOWN", domain.DefaultCooldown)

	cfg.cacheTTL = getenvDurationDefault("CACHE_TTL", domain.DefaultCacheTTL)
	cfg.cacheStoreTTL = getenvDurationDefault("CACHE_STORE_TTL", domain.DefaultCacheStoreTTL)
	cfg.storeBackend = strings.ToLower(getenvDefault("STORE_BACKEND", "redis"))
	cfg.redisAddr = getenvDefault("REDIS_ADDR", "localhost:6379")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)
	cfg.storePrefix = getenvDefault("STORE_PREFIX", "inference")

	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", true)
	cfg.rateRPS = getenvFloatDefault("RATE_RPS", 10)
	// IMPORTANTE: o "burst" permite uma rajada inicial de requisições.
	// Com RPS muito baixo (ex: 0.02) o padrão 20 deixa passar as primeiras ~20.
	if burst, ok := getenvInt("RATE_BURST"); ok {
		cfg.rateBurst = burst
	} else {
		cfg.rateBurst = 20
		if getenvIsSet("RATE_RPS") && cfg.rateRPS > 0 && cfg.rateRPS < 1 {
			cfg.rateBurst = 1
		}
	}
	cfg.rateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)
	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.metricsExporter = strings.ToLower(getenvDefault("METRICS_EXPORTER", "prometheus"))
	cfg.ocrMaxBody = int64(getenvIntDefault("OCR_MAX_BODY", inference.DefaultMaxBodyBytes))

	if len(cfg.apiKeys) == 0 {
		return config{}, errors.New("UPSTREAM_API_KEYS is required")
	}
	if cfg.storeBackend != "redis" && cfg.storeBackend != "memory" {
		return config{}, errors.New("STORE_BACKEND must be redis or memory")
	}
	if cfg.storeBackend == "redis" && strings.TrimSpace(cfg.redisAddr) == "" {
		return config{}, errors.New("REDIS_ADDR is required when STORE_BACKEND=redis")
	}
	if cfg.statsEnabled && cfg.storeBackend != "redis" {
		return config{}, errors.New("STATS_ENABLED=true requires STORE_BACKEND=redis")
	}
	if cfg.upstreamTimeout <= 0 {
		return config{}, errors.New("UPSTREAM_TIMEOUT must be > 0")
	}
	if cfg.cacheStoreTTL <= cfg.cacheTTL {
		return config{}, errors.New("CACHE_STORE_TTL must be > CACHE_TTL")
	}
	if cfg.rateRPS <= 0 {
		return config{}, errors.New("RATE_RPS must be > 0")
	}
	if cfg.rateBurst <= 0 {
		return config{}, errors.New("RATE_BURST must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

// parseCredentials lê a lista separada por vírgula, sem vazios nem duplicatas,
// preservando a ordem (a ordem define o fallback).
func parseCredentials(raw string) []domain.Credential {
	var out []domain.Credential
	seen := make(map[domain.Credential]struct{})
	for _, part := range strings.Split(raw, ",") {
		c := domain.Credential(strings.TrimSpace(part))
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvIsSet(k string) bool {
	v, ok := os.LookupEnv(k)
	return ok && v != ""
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
