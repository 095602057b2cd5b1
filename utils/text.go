package utils

import (
	"regexp"
	"strings"
)

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
	blankLinesRe = regexp.MustCompile(`\n\s*\n`)
)

// CleanOCRText normalizes raw model output: drops echoed prompt
// instructions, strips markup tags, and collapses runs of whitespace.
func CleanOCRText(text string) string {
	if text == "" {
		return ""
	}
	// Some local models echo the prompt back before the answer.
	if idx := strings.LastIndex(text, "Instructions:"); idx >= 0 {
		text = text[idx+len("Instructions:"):]
	}
	text = tagRe.ReplaceAllString(text, " ")
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// HeaderLines joins the first n lines of text, lowercased, for
// header-weighted keyword matching.
func HeaderLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.ToLower(strings.Join(lines, "\n"))
}
