package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"inference-gateway/inference"
	"inference-gateway/inference/application"
	"inference-gateway/inference/domain"
	"inference-gateway/inference/infra"
)

func main() {
	// Exemplo: embutindo o gateway no seu webserver, com store em memória
	// (sem Redis; estado do pool e cache morrem com o processo).
	var creds []domain.Credential
	for _, k := range strings.Split(os.Getenv("UPSTREAM_API_KEYS"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			creds = append(creds, domain.Credential(k))
		}
	}
	if len(creds) == 0 {
		log.Fatalf("UPSTREAM_API_KEYS is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kv := infra.NewMemoryKV()
	kv.StartJanitor(ctx)
	stats := infra.NewMemoryStatsStore()

	pool := application.CredentialPool{
		Credentials: creds,
		Store:       infra.NewKVPoolStateStore(kv),
		Stats:       stats,
	}
	upstream := application.UpstreamService{
		Upstream: infra.GeminiClient{},
		Pool:     pool,
		Stats:    stats,
	}
	cache, err := application.NewResponseCache(kv, 0, 0)
	if err != nil {
		log.Fatalf("cache error: %v", err)
	}
	cache.Stats = stats

	gw := inference.NewHandler(inference.HandlerOptions{
		Extractor: upstream,
		Colors:    application.NewColorService(cache, upstream),
		Health:    &inference.HealthHandler{Store: kv, Pool: pool},
	})

	mux := http.NewServeMux()
	mux.Handle("/ocr", gw)
	mux.Handle("/hex", gw)
	mux.Handle("/healthz", gw)
	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats.Counts())
	})

	h := http.Handler(mux)
	h = inference.Concurrency(inference.ConcurrencyOptions{Max: 50})(h)
	h = inference.RequestID(h)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example server listening on %s (%d credentials, memory store)", addr, len(creds))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
