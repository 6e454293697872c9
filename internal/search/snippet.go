package search

import (
	"strings"
	"unicode"
)

// Snippet window geometry, in runes.
const (
	SnippetWindow          = 80
	SnippetLead            = 30
	InventorySnippetLength = 60
	snippetSeparator       = " … "
)

// itemSnippet builds a snippet from an item's content preview: one window
// around the first occurrence of each term, duplicates dropped. Without any
// occurrence the leading window is used.
func itemSnippet(preview string, terms []string) string {
	if preview == "" {
		return ""
	}
	runes := []rune(preview)
	folded := make([]rune, len(runes))
	for i, r := range runes {
		folded[i] = unicode.ToLower(r)
	}

	var windows []string
	seen := make(map[string]struct{})
	for _, term := range terms {
		at := indexRunes(folded, []rune(strings.ToLower(term)))
		if at < 0 {
			continue
		}
		start := max(0, at-SnippetLead)
		end := min(len(runes), start+SnippetWindow)
		w := string(runes[start:end])
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		windows = append(windows, w)
	}
	if len(windows) == 0 {
		return string(runes[:min(len(runes), SnippetWindow)])
	}
	return strings.Join(windows, snippetSeparator)
}

// inventorySnippet is the start of the description.
func inventorySnippet(description string) string {
	runes := []rune(description)
	return string(runes[:min(len(runes), InventorySnippetLength)])
}

// indexRunes returns the first index of needle in haystack, or -1.
func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
outer:
	for i := 0; i <= len(haystack)-len(needle); i++ {
		for j, r := range needle {
			if haystack[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}
