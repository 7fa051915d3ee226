package domain

import (
	"fmt"
	"strings"
)

// CourseKey identifies a course by its organization, course code and run.
type CourseKey struct {
	Org    string
	Course string
	Run    string
}

// ID renders the canonical course identifier, e.g. "course-v1:MIT+8.01+2024".
func (k CourseKey) ID() string {
	return fmt.Sprintf("course-v1:%s+%s+%s", k.Org, k.Course, k.Run)
}

// ParseCourseID parses a canonical course identifier back into its parts.
func ParseCourseID(id string) (CourseKey, error) {
	const prefix = "course-v1:"
	if !strings.HasPrefix(id, prefix) {
		return CourseKey{}, fmt.Errorf("invalid course id %q", id)
	}
	parts := strings.Split(id[len(prefix):], "+")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return CourseKey{}, fmt.Errorf("invalid course id %q", id)
	}
	return CourseKey{Org: parts[0], Course: parts[1], Run: parts[2]}, nil
}

// CourseVersion is the resolved active-version pointer for one course.
// TreeID is empty when the course has no published branch.
type CourseVersion struct {
	Key    CourseKey
	TreeID string
}

// BlockNode is one typed node of a structure tree. Children holds the local
// keys of child nodes; DefinitionID references the content payload and may
// be empty for purely structural nodes.
type BlockNode struct {
	Key          string
	Type         string
	DefinitionID string
	DisplayName  string
	Children     []string
}

// StructureTree is a published snapshot of a course hierarchy: an explicit
// key-to-node map plus the root key. Nodes not reachable from Root are not
// part of the course.
type StructureTree struct {
	ID     string
	Root   string
	Blocks map[string]BlockNode
}

// Definition holds the type-specific raw payload referenced by one or more
// block nodes. Data carries HTML or problem markup; Transcripts maps a
// language code to a transcript filename for video definitions.
type Definition struct {
	ID          string
	Type        string
	DisplayName string
	Data        string
	Transcripts map[string]string
}

// ContentBlock is a cleaned, extracted unit of course text. SourcePath is
// the human-readable ancestor chain used for citation.
type ContentBlock struct {
	ID          string
	CourseID    string
	BlockType   string
	DisplayName string
	SourcePath  string
	Text        string
}

// Chunk is a bounded span of a content block's text. ID is deterministic
// for a given block and ordinal, so re-indexing overwrites rather than
// duplicates. Overlap is the number of leading bytes shared with the
// previous chunk of the same block.
type Chunk struct {
	ID          string
	BlockID     string
	CourseID    string
	BlockType   string
	DisplayName string
	SourcePath  string
	Text        string
	Ordinal     int
	Overlap     int
}

// VectorRecord pairs a chunk with its embedding for storage.
type VectorRecord struct {
	Chunk  Chunk
	Vector []float32
}

// SearchResult is a retrieved chunk with its similarity score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}
