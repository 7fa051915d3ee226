// Package extract reconstructs logical course content from the split
// document store: it resolves published versions, walks structure trees,
// joins content definitions and extracts normalized text blocks.
package extract

import (
	"context"
	"fmt"

	"edurag/internal/domain"
	"edurag/internal/logger"
	"edurag/internal/modulestore"
)

// Resolve returns the courses that have a published structure tree.
// Courses without one are skipped, counted and logged, never fatal.
func Resolve(ctx context.Context, store modulestore.Store, filter []domain.CourseKey, c *Counters, log *logger.Logger) ([]domain.CourseVersion, error) {
	versions, err := store.ActiveVersions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("resolve active versions: %w", err)
	}
	out := versions[:0]
	for _, v := range versions {
		if v.TreeID == "" {
			c.CoursesSkipped.Add(1)
			log.Warn("course has no published version", "course_id", v.Key.ID())
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
