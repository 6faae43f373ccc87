package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"negofactory/internal/config"
	"negofactory/internal/export"
	"negofactory/internal/generate"
	"negofactory/internal/history"
	"negofactory/internal/insights"
	"negofactory/internal/llm"
	"negofactory/internal/profile"
	"negofactory/internal/refdata"
	"negofactory/internal/server"
	"negofactory/internal/warehouse"
	"negofactory/internal/workflow"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if cfg.Warehouse.DSN == "" {
		logger.Fatal("WAREHOUSE_DSN (or DATABASE_URL) is required")
	}

	facade, err := warehouse.Open(cfg.Warehouse.DSN, logger)
	if err != nil {
		logger.Fatalf("warehouse: %v", err)
	}
	defer facade.Close()

	hist, err := history.Open(cfg.History.DSN, cfg.History.CacheSize, logger)
	if err != nil {
		logger.Fatalf("history: %v", err)
	}
	defer hist.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model, fast, retriever := buildModels(ctx, cfg, facade, logger)
	if model != nil {
		defer model.Close()
	}
	if fast != nil {
		defer fast.Close()
	}

	profiles, err := profile.New(facade, logger, cfg.Model.MaxSKUsInSupplierProfile, cfg.Model.SupplierFuzzyCandidates)
	if err != nil {
		logger.Fatalf("profile: %v", err)
	}
	extractor := insights.New(facade, fast, logger)

	var exporter *export.Exporter
	if cfg.Artifact.Enabled && cfg.Artifact.Endpoint != "" {
		exporter, err = export.New(export.Config{
			Endpoint:  cfg.Artifact.Endpoint,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		}, logger)
		if err != nil {
			logger.Fatalf("export: %v", err)
		}
		if err := exporter.EnsureBucket(ctx); err != nil {
			logger.Printf("export: %v", err)
		}
	}

	orch := workflow.NewOrchestrator(workflow.Options{
		History:      hist,
		Classifier:   fast,
		Logger:       logger,
		Window:       cfg.Model.ConversationWindow,
		CTAThreshold: cfg.Model.ArgumentCTAThreshold,
	})
	generate.New(generate.Deps{
		Reader:    facade,
		Profiles:  profiles,
		Extractor: extractor,
		Model:     model,
		Fast:      fast,
		Retriever: retriever,
		Exporter:  exporter,
		Config:    cfg.Model,
		Logger:    logger,
	}).Register(orch)

	reference, err := refdata.OpenLoader(cfg.Warehouse.DSN, logger)
	if err != nil {
		logger.Fatalf("refdata: %v", err)
	}
	defer reference.Close()

	handler := server.NewHandler(orch, reference, logger)
	srv := server.New(cfg.Port, withCORS(handler.Routes()), logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		logger.Print("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Fatalf("server: %v", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}

// buildModels wires the Gemini clients and the knowledge retriever.
// Without an API key the service still runs on deterministic fallbacks.
func buildModels(ctx context.Context, cfg *config.Config, facade *warehouse.Facade, logger *log.Logger) (llm.Client, llm.Client, *llm.Retriever) {
	if cfg.LLM.APIKey == "" {
		logger.Print("GEMINI_API_KEY not set, running without a model")
		return nil, nil, nil
	}

	gem, err := llm.NewGemini(ctx, cfg.LLM.APIKey, cfg.Model.ModelName, cfg.Model.SimilarityModel)
	if err != nil {
		logger.Fatalf("llm: %v", err)
	}
	fastGem, err := llm.NewGemini(ctx, cfg.LLM.APIKey, cfg.Model.FastModelName, cfg.Model.SimilarityModel)
	if err != nil {
		logger.Fatalf("llm: %v", err)
	}

	model := llm.Chain(gem, llm.WithRetry(3, 500*time.Millisecond), llm.WithLogging(logger))
	fast := llm.Chain(fastGem, llm.WithRetry(2, 250*time.Millisecond), llm.WithLogging(logger))

	retriever := &llm.Retriever{
		Reader:   facade,
		Embedder: gem,
		Fast:     fast,
		Spec: warehouse.VectorSpec{
			Table:           cfg.Model.KnowledgeTable,
			ChunkColumn:     "CHUNK_CONTENT",
			PageColumn:      "PAGE",
			EmbeddingColumn: "EMBEDDING",
			CategoryColumn:  "CATEGORY_NAME",
		},
		K:       cfg.Model.ArgRetrieverK,
		MaxDocs: cfg.Model.MaxRetrievedDocuments,
	}
	return model, fast, retriever
}

// withCORS answers preflight requests and reflects the caller's origin,
// for the browser front end.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
