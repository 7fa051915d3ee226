package extract

import "sync/atomic"

// Counters accumulate the non-fatal conditions of one extraction run.
// Each run owns its own instance; fields are atomic because courses are
// processed concurrently.
type Counters struct {
	CoursesProcessed     atomic.Int64
	CoursesSkipped       atomic.Int64
	BlocksExtracted      atomic.Int64
	NotExtractable       atomic.Int64
	MissingDefinitions   atomic.Int64
	SkippedChildren      atomic.Int64
	DuplicateDefinitions atomic.Int64
	BelowMinLength       atomic.Int64
	ChunksIndexed        atomic.Int64
	FailedItems          atomic.Int64
}

// Snapshot is a plain-value copy of the counters for reporting.
type Snapshot struct {
	CoursesProcessed     int64
	CoursesSkipped       int64
	BlocksExtracted      int64
	NotExtractable       int64
	MissingDefinitions   int64
	SkippedChildren      int64
	DuplicateDefinitions int64
	BelowMinLength       int64
	ChunksIndexed        int64
	FailedItems          int64
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		CoursesProcessed:     c.CoursesProcessed.Load(),
		CoursesSkipped:       c.CoursesSkipped.Load(),
		BlocksExtracted:      c.BlocksExtracted.Load(),
		NotExtractable:       c.NotExtractable.Load(),
		MissingDefinitions:   c.MissingDefinitions.Load(),
		SkippedChildren:      c.SkippedChildren.Load(),
		DuplicateDefinitions: c.DuplicateDefinitions.Load(),
		BelowMinLength:       c.BelowMinLength.Load(),
		ChunksIndexed:        c.ChunksIndexed.Load(),
		FailedItems:          c.FailedItems.Load(),
	}
}
