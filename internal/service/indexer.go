// Package service wires the extraction, chunking, embedding and retrieval
// components into the two application paths: the offline indexing run and
// the online question-answering service.
package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"edurag/internal/domain"
	"edurag/internal/extract"
	"edurag/internal/logger"
	"edurag/internal/modulestore"
	"edurag/internal/vectorstore"
)

// IndexerOptions tune one extraction run. CourseFilter restricts the run
// to the given courses; empty means all published courses.
type IndexerOptions struct {
	CourseConcurrency int
	EmbedBatchSize    int
	CourseFilter      []domain.CourseKey
}

// Indexer drives the offline path: resolve courses, walk structures, join
// definitions, extract and clean text, chunk, embed, and upsert into the
// vector store.
type Indexer struct {
	store     modulestore.Store
	extractor *extract.Extractor
	chunker   domain.Chunker
	embedder  domain.Embedder
	vectors   vectorstore.Storage
	log       *logger.Logger
	opts      IndexerOptions
}

func NewIndexer(store modulestore.Store, extractor *extract.Extractor, chunker domain.Chunker, embedder domain.Embedder, vectors vectorstore.Storage, log *logger.Logger, opts IndexerOptions) *Indexer {
	if opts.CourseConcurrency <= 0 {
		opts.CourseConcurrency = 4
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = 32
	}
	return &Indexer{
		store:     store,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectors:   vectors,
		log:       log,
		opts:      opts,
	}
}

// Run executes one extraction run and returns its summary. Courses are
// processed concurrently; cancellation takes effect between course
// boundaries and leaves the index in a resumable state because upserts
// are idempotent per chunk id.
func (ix *Indexer) Run(ctx context.Context) (extract.Snapshot, error) {
	counters := &extract.Counters{}

	// Dimensionality mismatch or an unreachable store aborts here,
	// before any extraction work.
	if err := ix.vectors.Init(ctx, ix.embedder.Dimension()); err != nil {
		return counters.Snapshot(), fmt.Errorf("init vector store: %w", err)
	}

	courses, err := extract.Resolve(ctx, ix.store, ix.opts.CourseFilter, counters, ix.log)
	if err != nil {
		return counters.Snapshot(), err
	}
	ix.log.Info("extraction run starting", "courses", len(courses), "embedder", ix.embedder.Name())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.CourseConcurrency)
	for _, course := range courses {
		course := course
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Courses are independent units: a course that keeps failing
			// after the per-request retries is counted and skipped, never
			// allowed to cancel its siblings. Only cancellation stops the
			// run.
			if err := ix.indexCourse(gctx, course, counters); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				counters.FailedItems.Add(1)
				ix.log.Error("course indexing failed", "course_id", course.Key.ID(), "error", err)
				return nil
			}
			counters.CoursesProcessed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return counters.Snapshot(), err
	}

	snap := counters.Snapshot()
	ix.log.Info("extraction run finished",
		"courses_processed", snap.CoursesProcessed,
		"courses_skipped", snap.CoursesSkipped,
		"blocks_extracted", snap.BlocksExtracted,
		"not_extractable", snap.NotExtractable,
		"missing_definitions", snap.MissingDefinitions,
		"skipped_children", snap.SkippedChildren,
		"duplicate_definitions", snap.DuplicateDefinitions,
		"below_min_length", snap.BelowMinLength,
		"chunks_indexed", snap.ChunksIndexed,
		"failed_items", snap.FailedItems,
	)
	return snap, nil
}

func (ix *Indexer) indexCourse(ctx context.Context, course domain.CourseVersion, counters *extract.Counters) error {
	courseID := course.Key.ID()
	log := ix.log.With("course_id", courseID)

	tree, err := ix.store.Structure(ctx, course.TreeID)
	if err != nil {
		if err == modulestore.ErrNotFound {
			counters.CoursesSkipped.Add(1)
			log.Warn("published structure missing", "tree_id", course.TreeID)
			return nil
		}
		return fmt.Errorf("fetch structure: %w", err)
	}

	var leaves []extract.Leaf
	extract.Walk(tree, counters, func(l extract.Leaf) {
		leaves = append(leaves, l)
	})

	defs, err := ix.store.Definitions(ctx, extract.DefinitionIDs(leaves))
	if err != nil {
		return fmt.Errorf("fetch definitions: %w", err)
	}

	blocks := ix.extractor.Course(ctx, courseID, leaves, defs, counters)
	var chunks []domain.Chunk
	for _, block := range blocks {
		cs, err := ix.chunker.Chunk(block)
		if err != nil {
			return fmt.Errorf("chunk block %s: %w", block.ID, err)
		}
		chunks = append(chunks, cs...)
	}
	if len(chunks) == 0 {
		log.Info("no indexable content", "leaves", len(leaves))
		return nil
	}

	indexed, err := ix.embedAndUpsert(ctx, chunks, counters)
	if err != nil {
		return err
	}
	log.Info("course indexed", "blocks", len(blocks), "chunks", indexed)
	return nil
}

// embedAndUpsert embeds chunks in batches and upserts them. A failed
// batch falls back to per-item embedding so one bad item cannot sink its
// neighbors; items that still fail are counted and skipped.
func (ix *Indexer) embedAndUpsert(ctx context.Context, chunks []domain.Chunk, counters *extract.Counters) (int, error) {
	indexed := 0
	for start := 0; start < len(chunks); start += ix.opts.EmbedBatchSize {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		end := start + ix.opts.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		records, err := ix.embedBatch(ctx, batch, counters)
		if err != nil {
			return indexed, err
		}
		if len(records) == 0 {
			continue
		}
		if err := ix.vectors.Upsert(ctx, records); err != nil {
			return indexed, fmt.Errorf("upsert %d records: %w", len(records), err)
		}
		indexed += len(records)
		counters.ChunksIndexed.Add(int64(len(records)))
	}
	return indexed, nil
}

func (ix *Indexer) embedBatch(ctx context.Context, batch []domain.Chunk, counters *extract.Counters) ([]domain.VectorRecord, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err == nil {
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
		}
		records := make([]domain.VectorRecord, len(batch))
		for i := range batch {
			records[i] = domain.VectorRecord{Chunk: batch[i], Vector: vectors[i]}
		}
		return records, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Per-item isolation: retry items one by one so a single poisoned
	// input does not abort the batch.
	ix.log.Warn("embedding batch failed, retrying items individually", "batch_size", len(batch), "error", err)
	var records []domain.VectorRecord
	for _, c := range batch {
		vecs, err := ix.embedder.Embed(ctx, []string{c.Text})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			counters.FailedItems.Add(1)
			ix.log.Warn("embedding failed for chunk", "chunk_id", c.ID, "error", err)
			continue
		}
		if len(vecs) != 1 {
			counters.FailedItems.Add(1)
			continue
		}
		records = append(records, domain.VectorRecord{Chunk: c, Vector: vecs[0]})
	}
	return records, nil
}
