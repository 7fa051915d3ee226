// Package modulestore reads the split course document store: active-version
// pointers, versioned structure trees, and content definitions, plus the
// file store holding video transcripts. The core only ever reads.
package modulestore

import (
	"context"
	"errors"

	"edurag/internal/domain"
)

// ErrNotFound is returned when a requested tree or transcript does not
// exist. Missing data is non-fatal to callers; they count and continue.
var ErrNotFound = errors.New("modulestore: not found")

// Store is the read-only interface over the three logical collections and
// the transcript file store.
type Store interface {
	// ActiveVersions resolves the published structure-tree pointer for
	// every known course, or only for the given keys when filter is
	// non-empty. Courses without a published branch are returned with an
	// empty TreeID.
	ActiveVersions(ctx context.Context, filter []domain.CourseKey) ([]domain.CourseVersion, error)

	// Structure fetches a structure tree by id. Structure documents are
	// immutable per version id, so a pointer-then-tree read sequence sees
	// a stable snapshot even across a concurrent publish.
	Structure(ctx context.Context, treeID string) (*domain.StructureTree, error)

	// Definitions batch-fetches content definitions. Ids absent from the
	// result were unresolved; that is not an error.
	Definitions(ctx context.Context, ids []string) (map[string]domain.Definition, error)

	// Transcript fetches a transcript file by name from the file store.
	Transcript(ctx context.Context, filename string) (string, error)

	Close(ctx context.Context) error
}
