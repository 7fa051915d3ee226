package service

import (
	"context"
	"fmt"
	"strings"

	"edurag/internal/domain"
	"edurag/internal/generation"
	"edurag/internal/logger"
	"edurag/internal/vectorstore"
)

// Answer is the result of one question: the generated text, the source
// paths that grounded it, and the raw retrieval results for display.
type Answer struct {
	Text      string
	Citations []string
	Results   []domain.SearchResult
}

// QAOptions tune the online query path.
type QAOptions struct {
	TopK            int
	MaxContextChars int
}

// QAService answers questions over the indexed content. It is stateless
// per request; concurrent calls share only the read-only vector store.
type QAService struct {
	embedder  domain.Embedder
	vectors   vectorstore.Storage
	generator domain.Generator
	log       *logger.Logger
	opts      QAOptions
}

func NewQAService(embedder domain.Embedder, vectors vectorstore.Storage, generator domain.Generator, log *logger.Logger, opts QAOptions) *QAService {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 12000
	}
	return &QAService{embedder: embedder, vectors: vectors, generator: generator, log: log, opts: opts}
}

// Ask retrieves the top-k chunks for the question and generates a
// grounded answer. courseID optionally restricts retrieval to one
// course. Zero retrieved chunks still produce an answer that states no
// grounding was found.
func (s *QAService) Ask(ctx context.Context, question, courseID string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("empty question")
	}

	vectors, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return Answer{}, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) != 1 {
		return Answer{}, fmt.Errorf("embedder returned %d vectors for one question", len(vectors))
	}

	results, err := s.vectors.Search(ctx, vectors[0], s.opts.TopK, courseID)
	if err != nil {
		return Answer{}, fmt.Errorf("search: %w", err)
	}

	prompt, citations := generation.BuildPrompt(question, results, s.opts.MaxContextChars)
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	s.log.Debug("question answered",
		"retrieved", len(results), "cited", len(citations), "generator", s.generator.Name())
	return Answer{Text: text, Citations: citations, Results: results}, nil
}
