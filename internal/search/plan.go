package search

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/invsearch/internal/config"
	"github.com/Aman-CERP/invsearch/internal/index"
)

// fieldPrefix matches "field:" for the fields a query string may name.
var fieldPrefix = regexp.MustCompile(`(?i)\b(customId|title|description|content)\s*:`)

// querySyntax are the characters with meaning in a query string.
const querySyntax = `+-=&|><!(){}[]^"~*?:\/`

// plan is an analysed query, ready to be turned into bleve queries.
type plan struct {
	terms []string
	// fielded is the parsed query string, nil when the input has no field
	// syntax or could not be parsed even after escaping.
	fielded query.Query
}

func (p *plan) empty() bool { return len(p.terms) == 0 && p.fielded == nil }

// newPlan analyses text with the index analyzer.
func newPlan(a analysis.Analyzer, text string) *plan {
	p := &plan{}
	plain := text
	if strings.Contains(text, ":") {
		p.fielded = parseFielded(text)
		plain = fieldPrefix.ReplaceAllString(text, " ")
	}
	p.terms = analyzeTerms(a, plain)
	return p
}

// analyzeTerms returns the distinct terms of text in order of appearance.
func analyzeTerms(a analysis.Analyzer, text string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, tok := range a.Analyze([]byte(text)) {
		term := string(tok.Term)
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}

// parseFielded parses text as a query string. A syntax error is recovered
// by escaping every special character and parsing again.
func parseFielded(text string) query.Query {
	for _, candidate := range []string{text, escapeQueryString(text)} {
		qs := bleve.NewQueryStringQuery(candidate)
		if q, err := qs.Parse(); err == nil {
			return q
		}
	}
	return nil
}

func escapeQueryString(text string) string {
	var b strings.Builder
	for _, r := range text {
		if strings.ContainsRune(querySyntax, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// minShouldMatch returns how many of n optional term clauses must match:
// 1 of 1, 2 of 2 to 4, and 60% (rounded down) from 5 on.
func minShouldMatch(n int) int {
	switch {
	case n <= 0:
		return 0
	case n == 1:
		return 1
	case n <= 4:
		return 2
	default:
		return n * 6 / 10
	}
}

// build returns the query for one document type. With fuzzy set the fuzzy
// fallback tier is added.
func (p *plan) build(docType string, cfg config.SearchConfig, fuzzy bool) query.Query {
	b := cfg.Boosts
	var alternatives []query.Query

	if len(p.terms) > 0 {
		alternatives = append(alternatives, strongTier(p.terms, b), weakTier(p.terms, b))
		// The prefix tier keeps the weak tier's threshold: every term is
		// its own prefix, so an ungated tier would let a single incidental
		// term match. The fuzzy tier only runs after zero hits and needs
		// one term.
		threshold := minShouldMatch(len(p.terms))
		if q := expansionTier(p.terms, cfg.PrefixMinLength, threshold, func(term string) query.Query {
			return prefixClause(term, b.Prefix)
		}); q != nil {
			alternatives = append(alternatives, q)
		}
		if fuzzy {
			if q := expansionTier(p.terms, cfg.PrefixMinLength, 1, func(term string) query.Query {
				return fuzzyClause(term, b.Fuzzy)
			}); q != nil {
				alternatives = append(alternatives, q)
			}
		}
	}
	if p.fielded != nil {
		alternatives = append(alternatives, p.fielded)
	}

	root := bleve.NewDisjunctionQuery(alternatives...)
	root.SetMin(1)

	filter := bleve.NewTermQuery(docType)
	filter.SetField(index.FieldDocType)
	return bleve.NewConjunctionQuery(root, filter)
}

// canFuzz reports whether the fuzzy tier would add anything.
func (p *plan) canFuzz(cfg config.SearchConfig) bool {
	if cfg.DisableFuzzyFallback || len(p.terms) == 0 {
		return false
	}
	return countLong(p.terms, cfg.PrefixMinLength) > 0
}

func termQuery(field, term string, boost float64) query.Query {
	q := bleve.NewTermQuery(term)
	q.SetField(field)
	q.SetBoost(boost)
	return q
}

// strongTier requires every term in customId or title.
func strongTier(terms []string, b config.BoostConfig) query.Query {
	parts := make([]query.Query, len(terms))
	for i, term := range terms {
		parts[i] = bleve.NewDisjunctionQuery(
			termQuery(index.FieldCustomID, term, b.CustomID),
			termQuery(index.FieldTitle, term, b.Title),
		)
	}
	q := bleve.NewConjunctionQuery(parts...)
	q.SetBoost(b.Strong)
	return q
}

// weakTier requires minShouldMatch terms in description or content.
func weakTier(terms []string, b config.BoostConfig) query.Query {
	parts := make([]query.Query, len(terms))
	for i, term := range terms {
		parts[i] = bleve.NewDisjunctionQuery(
			termQuery(index.FieldDescription, term, b.Description),
			termQuery(index.FieldContent, term, b.Content),
		)
	}
	q := bleve.NewDisjunctionQuery(parts...)
	q.SetMin(float64(minShouldMatch(len(terms))))
	return q
}

// expansionTier builds one clause per term of at least minRunes runes and
// requires threshold of them. It returns nil when fewer clauses exist than
// the threshold, since such a tier could never match.
func expansionTier(terms []string, minRunes, threshold int, clause func(string) query.Query) query.Query {
	var parts []query.Query
	for _, term := range terms {
		if utf8.RuneCountInString(term) >= minRunes {
			parts = append(parts, clause(term))
		}
	}
	if len(parts) == 0 || len(parts) < threshold {
		return nil
	}
	q := bleve.NewDisjunctionQuery(parts...)
	q.SetMin(float64(threshold))
	return q
}

func prefixClause(term string, boost float64) query.Query {
	parts := make([]query.Query, len(index.SearchFields))
	for i, field := range index.SearchFields {
		q := bleve.NewPrefixQuery(term)
		q.SetField(field)
		q.SetBoost(boost)
		parts[i] = q
	}
	return bleve.NewDisjunctionQuery(parts...)
}

func fuzzyClause(term string, boost float64) query.Query {
	fields := []string{index.FieldDescription, index.FieldContent}
	parts := make([]query.Query, len(fields))
	for i, field := range fields {
		q := bleve.NewFuzzyQuery(term)
		q.SetField(field)
		q.SetFuzziness(1)
		q.SetPrefix(1)
		q.SetBoost(boost)
		parts[i] = q
	}
	return bleve.NewDisjunctionQuery(parts...)
}

func countLong(terms []string, minRunes int) int {
	n := 0
	for _, term := range terms {
		if utf8.RuneCountInString(term) >= minRunes {
			n++
		}
	}
	return n
}
