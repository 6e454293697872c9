package index

import (
	"strings"

	"github.com/Aman-CERP/invsearch/internal/store"
)

// Document is the indexed projection of an inventory or an item.
// Field paths follow the json tags.
type Document struct {
	DocType        string `json:"docType"`
	ID             string `json:"id"`
	InventoryID    string `json:"inventoryId,omitempty"`
	Title          string `json:"title,omitempty"`
	CustomID       string `json:"customId,omitempty"`
	Description    string `json:"description,omitempty"`
	Content        string `json:"content,omitempty"`
	ContentPreview string `json:"contentPreview,omitempty"`

	docID string
}

// DocID returns the index document id.
func (d *Document) DocID() string {
	if d.docID != "" {
		return d.docID
	}
	return strings.ToLower(d.DocType) + ":" + d.ID
}

// InventoryDocument projects an inventory.
func InventoryDocument(inv *store.Inventory) *Document {
	return &Document{
		DocType:     TypeInventory,
		ID:          inv.ID.String(),
		Title:       inv.Title,
		Description: inv.Description,
		docID:       InventoryDocID(inv.ID),
	}
}

// ItemDocument projects an item. Each non-empty field value contributes its
// raw value and "<field name> <value>", so both "Red" and "Color Red" match.
func ItemDocument(item *store.Item) *Document {
	content := ItemContent(item.FieldValues)
	return &Document{
		DocType:        TypeItem,
		ID:             item.ID.String(),
		InventoryID:    item.InventoryID.String(),
		CustomID:       item.CustomID,
		Content:        content,
		ContentPreview: truncateRunes(content, PreviewLength),
		docID:          ItemDocID(item.ID),
	}
}

// ItemContent builds the searchable text of an item's field values.
func ItemContent(values []store.FieldValue) string {
	parts := make([]string, 0, len(values)*2)
	for _, v := range values {
		val := v.Canonical()
		if val == "" {
			continue
		}
		parts = append(parts, val)
		if name := strings.TrimSpace(v.FieldName); name != "" {
			parts = append(parts, name+" "+val)
		}
	}
	return strings.Join(parts, " ")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
