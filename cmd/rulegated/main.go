// Command rulegated runs the rule-gate host process: the HTTP surface
// over a disk-backed RuleDefinition store and the forward-chaining
// evaluation engine, per the EXTERNAL INTERFACES host-process contract.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruleforge/engine/internal/api"
	"github.com/ruleforge/engine/internal/config"
	"github.com/ruleforge/engine/internal/middleware"
	"github.com/ruleforge/engine/internal/observability"
	"github.com/ruleforge/engine/internal/storage"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to a rulegated config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	var shutdownTelemetry func(context.Context) error = func(context.Context) error { return nil }
	if cfg.Observability.TracingOn {
		shutdownTelemetry = observability.InitOpenTelemetryOrNoop(ctx, cfg.Observability.ServiceName, version)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Printf("telemetry shutdown error: %v", err)
		}
	}()

	if cfg.Observability.MetricsOn {
		if err := observability.InitMetrics(); err != nil {
			log.Printf("warning: failed to init OTel metric instruments: %v", err)
		}
	}

	if err := os.MkdirAll(cfg.Storage.RulesDir, 0o755); err != nil {
		log.Fatalf("storage: failed to create rules dir %s: %v", cfg.Storage.RulesDir, err)
	}

	ruleStore, err := storage.NewDiskRuleStore(cfg.Storage.RulesDir)
	if err != nil {
		log.Fatalf("storage: failed to open rule store: %v", err)
	}
	log.Printf("rule store loaded: %d definition(s) from %s", ruleStore.Count(), cfg.Storage.RulesDir)

	var tracer = observability.Tracer

	ruleHandlers := api.NewRuleHandlers(ruleStore, tracer)
	sessionHandlers := api.NewSessionHandlers(ruleStore, tracer)
	healthHandlers := api.NewHealthHandlers(version, ruleStore)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandlers.Health)
	mux.HandleFunc("GET /ready", healthHandlers.Ready)
	mux.Handle("GET /metrics", observability.PrometheusHandler())

	mux.HandleFunc("GET /api/rules", ruleHandlers.GetRules)
	mux.HandleFunc("POST /api/rules", ruleHandlers.CreateRule)
	mux.HandleFunc("GET /api/rules/{id}", ruleHandlers.GetRuleByID)
	mux.HandleFunc("PUT /api/rules/{id}", ruleHandlers.UpdateRule)
	mux.HandleFunc("DELETE /api/rules/{id}", ruleHandlers.DeleteRule)
	mux.HandleFunc("POST /api/rules/validate", ruleHandlers.ValidateRule)
	mux.HandleFunc("POST /api/rules/import", ruleHandlers.ImportRules)

	mux.HandleFunc("POST /api/facts", sessionHandlers.SubmitFact)
	mux.HandleFunc("POST /api/evaluate", sessionHandlers.Evaluate)
	mux.HandleFunc("GET /api/results/{session}", sessionHandlers.GetResults)

	handler := middleware.Logging(tracer)(middleware.CORS(mux))
	handler = middleware.BodyLimitMiddleware(int64(cfg.HTTP.MaxBodyBytes))(handler)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:        handler,
		ReadTimeout:    time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
		IdleTimeout:    time.Duration(cfg.HTTP.IdleTimeout) * time.Second,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("rulegated %s (%s) listening on :%d", version, commit, cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-stop
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown error: %v", err)
	}

	log.Println("stopped gracefully")
}
