package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/franckEinstein90/union-steward-api/config"
	"github.com/franckEinstein90/union-steward-api/db"
	"github.com/franckEinstein90/union-steward-api/logging"
	"github.com/franckEinstein90/union-steward-api/server"
	"github.com/franckEinstein90/union-steward-api/services/document_store"
	"github.com/franckEinstein90/union-steward-api/services/llm_service"
	"github.com/franckEinstein90/union-steward-api/services/rag_service"
)

func main() {
	cfg := config.Load()

	logger := setupLogger(cfg.LogDir)

	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer pool.Close()

	store := document_store.New(pool, logger)
	if err := store.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Schema setup failed: %v", err)
	}

	completionService := llm_service.NewOpenAIService(cfg.CompletionsURL, cfg.OpenAIAPIKey, logger)
	embedder := rag_service.NewOpenAIEmbedder(cfg.EmbeddingsURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel, logger)
	extractor := rag_service.NewDocumentExtractor(logger)
	queryEngine := rag_service.NewQueryEngine(embedder, completionService, cfg.CompletionModel, logger)
	ingestor := rag_service.NewIngestor(extractor, embedder, queryEngine, cfg.VectorstoreRoot, logger)

	r := server.SetupRoutes(server.Dependencies{
		Ingestor:        ingestor,
		QueryEngine:     queryEngine,
		Embedder:        embedder,
		Store:           store,
		VectorstoreRoot: cfg.VectorstoreRoot,
		Logger:          logger,
	})
	n := setupNegroni(r)

	serverCfg := server.Config{
		Domains:      cfg.Domains,
		CertCacheDir: cfg.CertCacheDir,
		HTTPPort:     cfg.HTTPPort,
		HTTPSPort:    cfg.HTTPSPort,
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Starting server",
		slog.String("environment", cfg.Environment),
		slog.String("http_port", cfg.HTTPPort))

	if cfg.Environment == "production" {
		server.ServeProduction(n, serverCfg)
	} else {
		server.ServeDevelopment(n, serverCfg)
	}
}

func setupLogger(logDir string) *slog.Logger {
	handler, err := logging.NewDailyFileHandler(logDir, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	return slog.New(handler)
}

func setupNegroni(r *mux.Router) *negroni.Negroni {
	n := negroni.New()

	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())

	n.UseHandler(r)
	return n
}
