// Package generation composes grounded prompts from retrieved chunks and
// defines the generation providers that answer them.
package generation

import (
	"strings"
	"unicode/utf8"

	"edurag/internal/domain"
)

// NoGroundingContext is the context used when retrieval returned nothing.
// The generator is instructed to say so rather than fabricate an answer.
const NoGroundingContext = "No relevant course content was retrieved from the knowledge base."

const (
	contextMarker  = "Context:\n"
	questionMarker = "\nQuestion:\n"
)

// BuildPrompt assembles the grounded prompt from the ranked results,
// bounding total context size: once the budget is reached the remaining
// (lower-ranked) chunks are dropped. A top-ranked chunk that alone
// exceeds the budget is truncated rather than dropped, so a successful
// retrieval never produces an ungrounded prompt. The returned citations
// are exactly the source paths of the chunks that made it into the
// prompt.
func BuildPrompt(question string, results []domain.SearchResult, maxContextChars int) (string, []string) {
	if maxContextChars <= 0 {
		maxContextChars = 12000
	}
	var sections []string
	var citations []string
	cited := map[string]struct{}{}
	used := 0
	for _, r := range results {
		section := "[" + r.Chunk.SourcePath + "]\n" + r.Chunk.Text
		if used+len(section) > maxContextChars {
			if len(sections) > 0 {
				break
			}
			section = truncateRunes(section, maxContextChars)
		}
		used += len(section)
		sections = append(sections, section)
		if _, ok := cited[r.Chunk.SourcePath]; !ok {
			cited[r.Chunk.SourcePath] = struct{}{}
			citations = append(citations, r.Chunk.SourcePath)
		}
	}

	context := NoGroundingContext
	if len(sections) > 0 {
		context = strings.Join(sections, "\n\n---\n\n")
	}

	var b strings.Builder
	b.WriteString("You are a helpful assistant answering questions about course content based on the given context.\n\n")
	b.WriteString(contextMarker)
	b.WriteString(context)
	b.WriteString("\n")
	b.WriteString(questionMarker)
	b.WriteString(question)
	b.WriteString("\n\nAnswer in a clear and concise way, using the context where relevant.\n")
	b.WriteString("If the answer is not in the context, say that explicitly.\n")
	return b.String(), citations
}

// truncateRunes cuts s to at most max bytes without splitting a rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// PromptContext recovers the context section from a prompt built by
// BuildPrompt. The extractive generator uses it to answer locally.
func PromptContext(prompt string) string {
	start := strings.Index(prompt, contextMarker)
	if start < 0 {
		return prompt
	}
	rest := prompt[start+len(contextMarker):]
	if end := strings.Index(rest, questionMarker); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
