// Package textclean turns raw course payloads (HTML fragments, problem
// markup, SRT transcripts) into plain text suitable for chunking.
package textclean

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Block-level elements whose boundaries become paragraph breaks. The
// chunker relies on the single-newline paragraph boundaries downstream.
var blockElements = map[string]struct{}{
	"p": {}, "div": {}, "br": {}, "li": {}, "ul": {}, "ol": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"table": {}, "tr": {}, "section": {}, "article": {}, "blockquote": {},
	"pre": {}, "hr": {},
}

// Elements whose entire subtree is dropped from any payload.
var droppedElements = map[string]struct{}{
	"script": {}, "style": {},
}

// Answer-bearing elements of problem markup. Their subtrees are never
// extracted so correct-answer data cannot leak into the index.
var answerElements = map[string]struct{}{
	"choicegroup": {}, "checkboxgroup": {}, "optioninput": {},
	"radiogroup": {}, "solution": {}, "answer": {}, "correcthint": {},
	"additional_answer": {}, "demandhint": {},
}

var (
	spaceRunRe  = regexp.MustCompile(`[ \t\r\f]+`)
	timestampRe = regexp.MustCompile(`^\s*\d{2}:\d{2}:\d{2},\d{3}\s*-->\s*\d{2}:\d{2}:\d{2},\d{3}.*$`)
	cueNumberRe = regexp.MustCompile(`^\s*\d+\s*$`)
)

// HTML strips markup from an HTML fragment, decodes entities, collapses
// whitespace runs and preserves paragraph boundaries as single newlines.
// Pure markup with no text content yields "".
func HTML(raw string) string {
	return stripMarkup(raw, droppedElements)
}

// Problem extracts the question/prompt text from problem markup. Answer
// choices, solutions and hints are excluded.
func Problem(raw string) string {
	skip := make(map[string]struct{}, len(droppedElements)+len(answerElements))
	for k := range droppedElements {
		skip[k] = struct{}{}
	}
	for k := range answerElements {
		skip[k] = struct{}{}
	}
	return stripMarkup(raw, skip)
}

// Transcript cleans an SRT transcript: cue sequence numbers and timestamp
// lines are removed, consecutive duplicate caption fragments (overlapping
// caption frames) are collapsed, and the remaining lines are joined into
// continuous prose.
func Transcript(srt string) string {
	var out []string
	prev := ""
	for _, line := range strings.Split(srt, "\n") {
		if timestampRe.MatchString(line) || cueNumberRe.MatchString(line) {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" || line == prev {
			continue
		}
		out = append(out, line)
		prev = line
	}
	return strings.Join(out, " ")
}

func stripMarkup(raw string, skip map[string]struct{}) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	var b strings.Builder
	tok := html.NewTokenizer(strings.NewReader(raw))
	skipDepth := 0
	var skipTag string
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			break
		}
		name, _ := tok.TagName()
		tag := string(name)
		switch tt {
		case html.StartTagToken:
			if skipDepth > 0 {
				if tag == skipTag {
					skipDepth++
				}
				continue
			}
			if _, drop := skip[tag]; drop {
				skipDepth = 1
				skipTag = tag
				continue
			}
			if _, block := blockElements[tag]; block {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			if skipDepth > 0 {
				if tag == skipTag {
					skipDepth--
				}
				continue
			}
			if _, block := blockElements[tag]; block {
				b.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			if skipDepth > 0 {
				continue
			}
			if _, block := blockElements[tag]; block {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			b.Write(tok.Text())
		}
	}
	return collapse(b.String())
}

// collapse normalizes whitespace: runs of spaces become one space, runs of
// newlines become one newline, lines are trimmed and empties dropped.
func collapse(s string) string {
	s = spaceRunRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
