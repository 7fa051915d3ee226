// Package extractive is a local fallback generator: instead of calling a
// model it answers with the most relevant sentences of the retrieved
// context, ranked by question-weighted token frequency. No API required.
package extractive

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"edurag/internal/generation"
)

type Generator struct {
	maxSentences int
	tokenPattern *regexp.Regexp
	sentenceRe   *regexp.Regexp
	stopwords    map[string]struct{}
}

func NewGenerator(maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	return &Generator{
		maxSentences: maxSentences,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		sentenceRe:   regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
		stopwords:    defaultStopwords(),
	}
}

func (g *Generator) Name() string { return "extractive" }

func (g *Generator) Generate(_ context.Context, prompt string) (string, error) {
	grounded := generation.PromptContext(prompt)
	if grounded == "" || grounded == generation.NoGroundingContext {
		return "No relevant course content was found for this question, so I cannot answer it from the indexed material.", nil
	}

	text := stripHeaders(grounded)
	sentences := g.sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range g.tokens(sent) {
			if _, ok := g.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := g.tokens(sent)
		score := 0.0
		for _, tok := range toks {
			if v, ok := freq[tok]; ok {
				score += v
			}
		}
		// Normalize by sentence length to avoid bias toward long sentences.
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := g.maxSentences
	if n > len(scores) {
		n = len(scores)
	}
	// Keep original order among the selected sentences.
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, strings.TrimSpace(sentences[idx]))
	}
	return strings.Join(out, " "), nil
}

// stripHeaders drops the citation header lines and section separators the
// prompt builder adds, leaving only content sentences.
func stripHeaders(context string) string {
	lines := strings.Split(context, "\n")
	out := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == "---" {
			continue
		}
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func (g *Generator) tokens(text string) []string {
	return g.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
