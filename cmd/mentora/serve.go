package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mentora-ai/mentora/pkg/auth"
	"github.com/mentora-ai/mentora/pkg/config"
	"github.com/mentora-ai/mentora/pkg/course"
	"github.com/mentora-ai/mentora/pkg/databases"
	"github.com/mentora-ai/mentora/pkg/embedders"
	"github.com/mentora-ai/mentora/pkg/fileserver"
	"github.com/mentora-ai/mentora/pkg/lemma"
	"github.com/mentora-ai/mentora/pkg/llms"
	"github.com/mentora-ai/mentora/pkg/logger"
	"github.com/mentora-ai/mentora/pkg/observability"
	"github.com/mentora-ai/mentora/pkg/qcm"
	"github.com/mentora-ai/mentora/pkg/rag"
	"github.com/mentora-ai/mentora/pkg/retriever"
	"github.com/mentora-ai/mentora/pkg/server"
)

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	LemmaDict string `name:"lemma-dict" help:"Optional JSON form-to-lemma table for BM25 query normalization." type:"path"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Log.Format = cli.LogFormat
	}

	output := os.Stderr
	if cli.LogFile != "" {
		file, closeFile, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			return err
		}
		defer closeFile()
		output = file
	}
	logger.Init(logger.ParseLevel(cfg.Log.Level), output, cfg.Log.Format)

	registry, err := config.LoadRegistry(cfg.CollectionsFile)
	if err != nil {
		return err
	}
	slog.Info("collection registry loaded", "collections", registry.Names())

	metrics := observability.NewMetrics()

	qdrantStore, err := databases.NewQdrantStore(cfg.Qdrant)
	if err != nil {
		return fmt.Errorf("qdrant: %w", err)
	}
	defer qdrantStore.Close()

	esStore, err := databases.NewESStore(cfg.Elasticsearch)
	if err != nil {
		return fmt.Errorf("elasticsearch: %w", err)
	}

	normalizer := lemma.New()
	if c.LemmaDict != "" {
		normalizer, err = lemma.NewFromFile(c.LemmaDict)
		if err != nil {
			return fmt.Errorf("lemma dictionary: %w", err)
		}
	}

	retr := retriever.New(
		registry,
		embedders.NewOllamaEmbedder(cfg.Embedding),
		qdrantStore,
		esStore,
		normalizer.Normalize,
		retriever.Weights{BM25: cfg.Retriever.BM25Weight, Vector: cfg.Retriever.VectorWeight},
		retriever.WithMetrics(metrics),
	)

	llm := llms.NewClient(cfg.LLM, cfg.RAG, llms.WithMetrics(metrics))
	files := fileserver.New(cfg.Fileserver)

	engine := rag.NewEngine(retr, llm, files, cfg.RAG, cfg.Retriever)
	courses := course.NewOrchestrator(retr, llm, files, cfg.Course)
	quizzes := qcm.NewOrchestrator(retr, llm, files, files, cfg.QCM)

	validator, err := auth.ParseTokens(cfg.Auth.Tokens)
	if err != nil {
		return fmt.Errorf("auth tokens: %w", err)
	}

	srv := server.New(cfg, registry, engine, courses, quizzes,
		server.WithAuth(validator),
		server.WithMetrics(metrics),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}
