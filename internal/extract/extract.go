// Package extract pulls YouTube references out of free-form text.
package extract

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

// refPattern matches the canonical YouTube URL shapes: watch URLs, youtu.be
// short URLs, and shorts URLs. Matches never span whitespace, so surrounding
// prose is excluded.
var refPattern = regexp.MustCompile(
	`(?:https?://)?(?:www\.|m\.)?` +
		`(?:youtube\.com/(?:watch\?[^\s<>]*v=[\w-]+[^\s<>]*|shorts/[\w-]+[^\s<>]*)|youtu\.be/[\w-]+[^\s<>]*)`,
)

// Extract returns all non-overlapping references in text, in left-to-right
// order. Malformed or empty input yields an empty result.
func Extract(text string) []string {
	if text == "" {
		return nil
	}
	return refPattern.FindAllString(text, -1)
}

// Valid reports whether ref is exactly one reference and nothing else.
func Valid(ref string) bool {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return false
	}
	return refPattern.FindString(trimmed) == trimmed
}

// ExtractLines applies Extract to each line of r and concatenates the results
// in file order. This is the upload path for line-delimited reference lists.
func ExtractLines(r io.Reader) ([]string, error) {
	var refs []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		refs = append(refs, Extract(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}
