// Command example runs a small demo host for the cascade router: three
// mock providers standing in for cheap/mid/premium vendors, two tier
// policies (free and pro), one domain strategy, a per-user daily budget, and an HTTP
// endpoint that accepts a query and returns the ExecutionResult as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	cascaderouter "github.com/cascadehq/cascaderouter"
	"github.com/cascadehq/cascaderouter/budget"
	"github.com/cascadehq/cascaderouter/callback"
	"github.com/cascadehq/cascaderouter/cascade"
	"github.com/cascadehq/cascaderouter/core"
	"github.com/cascadehq/cascaderouter/provider"
	"github.com/cascadehq/cascaderouter/routing"
	"github.com/cascadehq/cascaderouter/telemetry"
	"github.com/cascadehq/cascaderouter/validate"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML model roster; built-in defaults are used when empty")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("received shutdown signal, draining...")
		cancel()
	}()

	logger := telemetry.NewLogger("cascaderouter-example")

	tracer, shutdownTracer, err := telemetry.NewTracer(ctx, telemetry.UseProfile(telemetry.ProfileDevelopment))
	if err != nil {
		log.Fatalf("telemetry init failed: %v", err)
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	providers := provider.NewRegistry()
	providers.Register(provider.NewMockAdapter("openai"))
	providers.Register(provider.NewMockAdapter("anthropic"))
	providers.Register(provider.NewMockAdapter("local"))

	models := []core.ModelConfig{
		{
			Name: "local-small", Provider: "local", ModelID: "local-7b",
			InputCostPerToken: 0.0000001, OutputCostPerToken: 0.0000002,
			ContextWindow: 8192,
			Capabilities:  core.ModelCapabilities{SupportsTools: true, SupportsSystemMessages: true},
		},
		{
			Name: "gpt-mini", Provider: "openai", ModelID: "gpt-4o-mini",
			InputCostPerToken: 0.00000015, OutputCostPerToken: 0.0000006,
			ContextWindow: 128000,
			Capabilities:  core.ModelCapabilities{SupportsTools: true, SupportsStreaming: true, SupportsSystemMessages: true},
		},
		{
			Name: "claude-sonnet", Provider: "anthropic", ModelID: "claude-3-5-sonnet",
			InputCostPerToken: 0.000003, OutputCostPerToken: 0.000015,
			ContextWindow: 200000,
			Capabilities: core.ModelCapabilities{
				SupportsTools: true, SupportsStreaming: true, SupportsSystemMessages: true, IsReasoning: true,
			},
		},
	}
	if *configPath != "" {
		loaded, err := loadModelsFromFile(*configPath)
		if err != nil {
			log.Fatalf("loading model config: %v", err)
		}
		models = loaded
	}

	tiers := routing.NewTierRegistry()
	if err := tiers.Register(routing.TierPolicy{
		Name:      "free",
		AllowList: []string{"local-small", "gpt-mini"},
		MaxCost:   0.02,
		MinQuality: 0.3,
	}); err != nil {
		log.Fatalf("tier registration failed: %v", err)
	}
	if err := tiers.Register(routing.TierPolicy{
		Name:      "pro",
		AllowList: []string{"*"},
		MaxCost:   1.0,
		MinQuality: 0.4,
	}); err != nil {
		log.Fatalf("tier registration failed: %v", err)
	}

	strategies := cascade.NewStrategyRegistry()
	if err := strategies.Register(cascade.DomainStrategy{
		Domain: core.DomainCode,
		Steps: []cascade.CascadeStep{
			{Name: "draft", ModelName: "gpt-mini", ValidationMethod: validate.MethodSyntaxCheck, QualityThreshold: 0.6},
			{Name: "verify", ModelName: "claude-sonnet", ValidationMethod: validate.MethodFullQuality, FallbackOnly: true, UseDraftContext: true},
		},
		RequireVerifier: true,
	}); err != nil {
		log.Fatalf("strategy registration failed: %v", err)
	}

	budgetStore := budget.NewStore()
	budgetStore.Configure("demo-user", budget.WindowDay, 5.00, 0.8, 1.0, time.Now())

	router := cascaderouter.NewRouter(cascaderouter.Config{
		Models:         models,
		Providers:      providers,
		Strategies:     strategies,
		Tiers:          tiers,
		Budget:         budgetStore,
		Logger:         logger,
		Telemetry:      tracer,
		CascadeEnabled: true,
	})

	router.Bus().Subscribe(callback.KindBudgetWarning, func(e callback.Event) {
		logger.Warn("budget warning", map[string]interface{}{"query_id": e.QueryID, "payload": e.Payload})
	})
	router.Bus().Subscribe(callback.KindCascadeDecision, func(e callback.Event) {
		logger.Info("cascade decision", map[string]interface{}{"query_id": e.QueryID, "payload": e.Payload})
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/query", handleQuery(router))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := otelhttp.NewHandler(mux, "cascaderouter")

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Println("cascade router demo listening on :8080")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
	log.Println("server stopped gracefully")
}

type queryRequest struct {
	Text     string `json:"text"`
	UserID   string `json:"user_id"`
	UserTier string `json:"user_tier"`
}

func handleQuery(router *cascaderouter.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		query, err := core.NewQuery(req.Text, core.WithUser(req.UserID, req.UserTier), core.WithTimeout(120*time.Second))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := router.Run(r.Context(), query)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if rerr, ok := err.(*core.RouterError); ok {
		switch rerr.Kind {
		case core.KindBudgetExceeded, core.KindTierNoModels, core.KindConfiguration:
			status = http.StatusBadRequest
		case core.KindTimeout:
			status = http.StatusGatewayTimeout
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
