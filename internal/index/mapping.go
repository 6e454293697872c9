// Package index maintains the full-text search index over inventories and
// items.
//
// The index is a projection of the system of record. One coordinator
// goroutine owns every mutation; searches read the same bleve index
// concurrently and see consistent snapshots.
package index

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"
)

// Document types.
const (
	TypeInventory = "Inventory"
	TypeItem      = "Item"
)

// Field names.
const (
	FieldDocType        = "docType"
	FieldID             = "id"
	FieldInventoryID    = "inventoryId"
	FieldTitle          = "title"
	FieldCustomID       = "customId"
	FieldDescription    = "description"
	FieldContent        = "content"
	FieldContentPreview = "contentPreview"
)

// SearchFields are the analysed fields queries run against.
var SearchFields = []string{FieldCustomID, FieldTitle, FieldDescription, FieldContent}

// Analyzer is the analyzer used for every searchable field. Queries must be
// tokenised with the same analyzer.
const Analyzer = standard.Name

// PreviewLength is the number of runes of content kept for snippets.
const PreviewLength = 400

// InventoryDocID returns the document id of an inventory.
func InventoryDocID(id uuid.UUID) string { return "inventory:" + id.String() }

// ItemDocID returns the document id of an item.
func ItemDocID(id uuid.UUID) string { return "item:" + id.String() }

// ParseDocID splits a document id into its type and entity id.
func ParseDocID(docID string) (string, uuid.UUID, bool) {
	kind, raw, ok := strings.Cut(docID, ":")
	if !ok {
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", uuid.Nil, false
	}
	switch kind {
	case "inventory":
		return TypeInventory, id, true
	case "item":
		return TypeItem, id, true
	}
	return "", uuid.Nil, false
}

// NewMapping builds the index mapping. Nothing is indexed into the
// composite _all field; queries always name their fields.
func NewMapping() *mapping.IndexMappingImpl {
	keywordField := func() *mapping.FieldMapping {
		f := bleve.NewKeywordFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		f.IncludeInAll = false
		f.IncludeTermVectors = false
		return f
	}
	textField := func(store bool) *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = Analyzer
		f.Store = store
		f.IncludeInAll = false
		f.IncludeTermVectors = false
		return f
	}
	previewField := bleve.NewTextFieldMapping()
	previewField.Index = false
	previewField.Store = true
	previewField.IncludeInAll = false
	previewField.IncludeTermVectors = false

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt(FieldDocType, keywordField())
	doc.AddFieldMappingsAt(FieldID, keywordField())
	doc.AddFieldMappingsAt(FieldInventoryID, keywordField())
	doc.AddFieldMappingsAt(FieldTitle, textField(true))
	doc.AddFieldMappingsAt(FieldCustomID, textField(true))
	doc.AddFieldMappingsAt(FieldDescription, textField(true))
	doc.AddFieldMappingsAt(FieldContent, textField(false))
	doc.AddFieldMappingsAt(FieldContentPreview, previewField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = Analyzer
	m.StoreDynamic = false
	m.IndexDynamic = false
	m.DocValuesDynamic = false
	return m
}
