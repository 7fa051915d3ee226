package extract

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sort"
	"strings"

	"edurag/internal/domain"
	"edurag/internal/logger"
	"edurag/internal/modulestore"
	"edurag/internal/textclean"
)

// Extractor turns joined (block, definition) pairs into cleaned content
// blocks. It is safe for concurrent use across courses; per-course state
// (the shared-definition dedupe set) lives in the Course call.
type Extractor struct {
	store              modulestore.Store
	log                *logger.Logger
	minChars           int
	preserveDuplicates bool
}

func NewExtractor(store modulestore.Store, log *logger.Logger, minChars int, preserveDuplicates bool) *Extractor {
	if minChars < 0 {
		minChars = 0
	}
	return &Extractor{store: store, log: log, minChars: minChars, preserveDuplicates: preserveDuplicates}
}

// DefinitionIDs collects the unique definition ids referenced by the
// walked leaves, preserving first-seen order for a single batched fetch.
func DefinitionIDs(leaves []Leaf) []string {
	seen := make(map[string]struct{}, len(leaves))
	out := make([]string, 0, len(leaves))
	for _, l := range leaves {
		id := l.Node.DefinitionID
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Course extracts content blocks for one course from its walked leaves and
// the batch-fetched definitions. Leaves whose definition is unresolved are
// counted as missing; extraction continues for the rest.
func (e *Extractor) Course(ctx context.Context, courseID string, leaves []Leaf, defs map[string]domain.Definition, c *Counters) []domain.ContentBlock {
	var out []domain.ContentBlock
	seenDefs := make(map[string]struct{})
	for _, leaf := range leaves {
		if err := ctx.Err(); err != nil {
			return out
		}
		defID := leaf.Node.DefinitionID
		if defID == "" {
			c.NotExtractable.Add(1)
			continue
		}
		def, ok := defs[defID]
		if !ok {
			c.MissingDefinitions.Add(1)
			continue
		}
		if !e.preserveDuplicates {
			if _, dup := seenDefs[defID]; dup {
				c.DuplicateDefinitions.Add(1)
				continue
			}
			seenDefs[defID] = struct{}{}
		}

		text, extractable := e.blockText(ctx, leaf.Node, def, c)
		if !extractable {
			c.NotExtractable.Add(1)
			continue
		}
		if len(text) < e.minChars {
			c.BelowMinLength.Add(1)
			continue
		}

		displayName := displayName(leaf.Node, def)
		sourcePath := sourcePath(courseID, leaf, displayName)
		block := domain.ContentBlock{
			ID:          e.blockID(courseID, defID, sourcePath),
			CourseID:    courseID,
			BlockType:   leaf.Node.Type,
			DisplayName: displayName,
			SourcePath:  sourcePath,
			Text:        text,
		}
		out = append(out, block)
		c.BlocksExtracted.Add(1)
	}
	return out
}

// blockText dispatches on the closed set of content block types. The
// second return is false when the block carries no extractable text.
func (e *Extractor) blockText(ctx context.Context, node domain.BlockNode, def domain.Definition, c *Counters) (string, bool) {
	switch node.Type {
	case "html":
		text := textclean.HTML(def.Data)
		return text, text != ""
	case "problem":
		text := textclean.Problem(def.Data)
		return text, text != ""
	case "video":
		return e.transcriptText(ctx, def, c)
	default:
		// Unknown block types are skipped, not errors.
		return "", false
	}
}

func (e *Extractor) transcriptText(ctx context.Context, def domain.Definition, c *Counters) (string, bool) {
	filename := pickTranscript(def.Transcripts)
	if filename == "" {
		return "", false
	}
	raw, err := e.store.Transcript(ctx, filename)
	if errors.Is(err, modulestore.ErrNotFound) {
		return "", false
	}
	if err != nil {
		c.FailedItems.Add(1)
		e.log.Warn("transcript read failed", "filename", filename, "error", err)
		return "", false
	}
	text := textclean.Transcript(raw)
	return text, text != ""
}

// pickTranscript prefers the English transcript, then falls back to the
// lexically first language so the choice is deterministic.
func pickTranscript(transcripts map[string]string) string {
	if len(transcripts) == 0 {
		return ""
	}
	if f, ok := transcripts["en"]; ok && f != "" {
		return f
	}
	langs := make([]string, 0, len(transcripts))
	for lang := range transcripts {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		if f := transcripts[lang]; f != "" {
			return f
		}
	}
	return ""
}

func displayName(node domain.BlockNode, def domain.Definition) string {
	if node.DisplayName != "" {
		return node.DisplayName
	}
	if def.DisplayName != "" {
		return def.DisplayName
	}
	return node.Key
}

// sourcePath renders the citation path: course id, ancestor names (the
// course root is implied by the id), block type and display name.
func sourcePath(courseID string, leaf Leaf, displayName string) string {
	parts := []string{courseID}
	for _, a := range leaf.Path {
		if a.Type == "course" {
			continue
		}
		name := a.DisplayName
		if name == "" {
			name = a.Key
		}
		parts = append(parts, name)
	}
	parts = append(parts, leaf.Node.Type, displayName)
	return strings.Join(parts, "/")
}

func (e *Extractor) blockID(courseID, defID, sourcePath string) string {
	key := courseID + "|" + defID
	if e.preserveDuplicates {
		key += "|" + sourcePath
	}
	h := sha1.Sum([]byte(key))
	return hex.EncodeToString(h[:8])
}
