// Package search answers full-text queries over inventories and items.
//
// A query is analysed into terms and expanded into three alternative tiers:
// a strong conjunctive tier over identifiers and titles, a weak tier over
// descriptions and item content gated by a minimum-should-match threshold,
// and a low-boost prefix tier. When nothing matches, a fuzzy tier is added
// and the query re-run. Inventories and items are searched independently
// with their own limits.
package search

import (
	"github.com/google/uuid"
)

// MaxLimit caps the number of hits per document type.
const MaxLimit = 100

// InventoryHit is one matching inventory.
type InventoryHit struct {
	ID      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	Snippet string    `json:"snippet"`
	Score   float64   `json:"score"`
}

// ItemHit is one matching item.
type ItemHit struct {
	ID             uuid.UUID `json:"id"`
	InventoryID    uuid.UUID `json:"inventoryId"`
	InventoryTitle string    `json:"inventoryTitle"`
	CustomID       string    `json:"customId"`
	Snippet        string    `json:"snippet"`
	Score          float64   `json:"score"`
}

// Hits is the raw output of the query engine.
type Hits struct {
	Inventories []InventoryHit
	Items       []ItemHit
	// Terms are the analysed query terms.
	Terms []string
	// Fielded is set when the input carried field syntax.
	Fielded bool
	// Fuzzy is set when the result came from the fuzzy fallback.
	Fuzzy bool
}

// Total returns the number of hits across both document types.
func (h *Hits) Total() int { return len(h.Inventories) + len(h.Items) }

// Result is a search answer as returned to callers.
type Result struct {
	Query       string         `json:"query"`
	Inventories []InventoryHit `json:"inventories"`
	Items       []ItemHit      `json:"items"`
}

// Empty reports whether nothing matched.
func (r *Result) Empty() bool { return len(r.Inventories) == 0 && len(r.Items) == 0 }

func emptyResult(query string) *Result {
	return &Result{Query: query, Inventories: []InventoryHit{}, Items: []ItemHit{}}
}
