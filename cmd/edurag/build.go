package main

import (
	"context"
	"fmt"
	"time"

	"edurag/internal/chunker"
	"edurag/internal/config"
	"edurag/internal/domain"
	"edurag/internal/embedding/hash"
	"edurag/internal/embedding/openai"
	"edurag/internal/extract"
	"edurag/internal/generation/extractive"
	"edurag/internal/generation/gemini"
	"edurag/internal/logger"
	"edurag/internal/modulestore"
	"edurag/internal/service"
	"edurag/internal/vectorstore"
	memorystore "edurag/internal/vectorstore/memory"
	qdrantstore "edurag/internal/vectorstore/qdrant"
)

// app holds the wired components of one process. store is nil on the
// query-only path, which never touches the course document store.
type app struct {
	cfg      *config.AppConfig
	log      *logger.Logger
	store    modulestore.Store
	vectors  vectorstore.Storage
	embedder domain.Embedder
}

// buildApp wires everything the indexing path needs, including the
// course document store connection.
func buildApp(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (*app, error) {
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build modulestore: %w", err)
	}
	a, err := wireCommon(cfg, log)
	if err != nil {
		store.Close(ctx)
		return nil, err
	}
	a.store = store
	return a, nil
}

// buildQueryApp wires the components the ask and chat paths need.
func buildQueryApp(cfg *config.AppConfig, log *logger.Logger) (*app, error) {
	return wireCommon(cfg, log)
}

func wireCommon(cfg *config.AppConfig, log *logger.Logger) (*app, error) {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}
	vectors, err := buildVectorStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("build vector store: %w", err)
	}
	return &app{cfg: cfg, log: log, vectors: vectors, embedder: embedder}, nil
}

func (a *app) Close() {
	if a.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.store.Close(ctx); err != nil {
			a.log.Warn("closing modulestore", "error", err)
		}
	}
}

func (a *app) Indexer(filter []domain.CourseKey) (*service.Indexer, error) {
	tc, err := chunker.NewTextChunker(a.cfg.Chunker.MaxChars, a.cfg.Chunker.OverlapChars)
	if err != nil {
		return nil, fmt.Errorf("build chunker: %w", err)
	}
	extractor := extract.NewExtractor(a.store, a.log, a.cfg.Index.MinBlockChars, a.cfg.Index.PreserveDuplicatePositions)
	return service.NewIndexer(a.store, extractor, tc, a.embedder, a.vectors, a.log, service.IndexerOptions{
		CourseConcurrency: a.cfg.Index.CourseConcurrency,
		EmbedBatchSize:    a.cfg.Index.EmbedBatchSize,
		CourseFilter:      filter,
	}), nil
}

func (a *app) QA() (*service.QAService, error) {
	generator, err := buildGenerator(a.cfg)
	if err != nil {
		return nil, fmt.Errorf("build generator: %w", err)
	}
	return service.NewQAService(a.embedder, a.vectors, generator, a.log, service.QAOptions{
		TopK:            a.cfg.Query.TopK,
		MaxContextChars: a.cfg.Query.MaxContextChars,
	}), nil
}

func buildStore(ctx context.Context, cfg *config.AppConfig) (modulestore.Store, error) {
	switch cfg.Modulestore.Type {
	case "mongo", "":
		m := cfg.Modulestore.Mongo
		if m == nil {
			return nil, fmt.Errorf("mongo modulestore selected but not configured")
		}
		return modulestore.NewMongoStore(ctx, modulestore.MongoConfig{
			URI:      m.URI,
			Database: m.Database,
			Timeout:  time.Duration(m.TimeoutSecs) * time.Second,
		})
	case "memory":
		return modulestore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown modulestore type %q", cfg.Modulestore.Type)
	}
}

func buildEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "openai":
		o := cfg.Embedder.OpenAI
		return openai.NewClient(openai.Config{
			BaseURL:    o.BaseURL,
			APIKeyEnv:  o.APIKeyEnv,
			Model:      o.Model,
			Dimension:  o.Dimension,
			Timeout:    time.Duration(o.TimeoutSecs) * time.Second,
			BatchSize:  o.BatchSize,
			MaxRetries: o.MaxRetries,
		})
	case "hash", "":
		return hash.NewEmbedder(cfg.Embedder.Hash.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Embedder.Type)
	}
}

func buildVectorStore(cfg *config.AppConfig) (vectorstore.Storage, error) {
	switch cfg.VectorStore.Type {
	case "qdrant", "":
		q := cfg.VectorStore.Qdrant
		if q == nil {
			return nil, fmt.Errorf("qdrant vector store selected but not configured")
		}
		return qdrantstore.NewStorage(qdrantstore.Config{
			URL:        q.URL,
			APIKeyEnv:  q.APIKeyEnv,
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
			MaxRetries: q.MaxRetries,
		}), nil
	case "memory":
		return memorystore.NewStorage(), nil
	default:
		return nil, fmt.Errorf("unknown vector store type %q", cfg.VectorStore.Type)
	}
}

func buildGenerator(cfg *config.AppConfig) (domain.Generator, error) {
	switch cfg.Generator.Type {
	case "gemini":
		g := cfg.Generator.Gemini
		return gemini.NewClient(gemini.Config{
			BaseURL:    g.BaseURL,
			APIKeyEnv:  g.APIKeyEnv,
			Model:      g.Model,
			Timeout:    time.Duration(g.TimeoutSecs) * time.Second,
			MaxRetries: g.MaxRetries,
		})
	case "extractive", "":
		return extractive.NewGenerator(cfg.Generator.Extractive.MaxSentences), nil
	default:
		return nil, fmt.Errorf("unknown generator type %q", cfg.Generator.Type)
	}
}
