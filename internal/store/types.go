package store

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Inventory is a user-owned collection of items.
type Inventory struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	IsPublic    bool      `json:"isPublic"`
}

// FieldType is the value type of a custom field.
type FieldType string

const (
	FieldSingleLineText FieldType = "SingleLineText"
	FieldMultiLineText  FieldType = "MultiLineText"
	FieldDocumentLink   FieldType = "DocumentLink"
	FieldNumber         FieldType = "Number"
	FieldBoolean        FieldType = "Boolean"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldSingleLineText, FieldMultiLineText, FieldDocumentLink, FieldNumber, FieldBoolean:
		return true
	}
	return false
}

// IsText reports whether values of this type are stored as text.
func (t FieldType) IsText() bool {
	return t == FieldSingleLineText || t == FieldMultiLineText || t == FieldDocumentLink
}

// CustomField is an inventory-defined attribute of its items.
type CustomField struct {
	ID          int64     `json:"id"`
	InventoryID uuid.UUID `json:"inventoryId"`
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Position    int       `json:"position"`
	IsRequired  bool      `json:"isRequired"`
}

// FieldValue is one item's value for one custom field. Exactly one of
// Text, Number and Bool is set, matching FieldType.
type FieldValue struct {
	FieldID   int64            `json:"fieldId"`
	FieldName string           `json:"fieldName,omitempty"`
	FieldType FieldType        `json:"fieldType,omitempty"`
	Text      *string          `json:"text,omitempty"`
	Number    *decimal.Decimal `json:"number,omitempty"`
	Bool      *bool            `json:"bool,omitempty"`
}

// Canonical renders the value as it is indexed and displayed.
// Numbers use their shortest exact decimal form; booleans are true/false.
func (v FieldValue) Canonical() string {
	switch {
	case v.Text != nil:
		return strings.TrimSpace(*v.Text)
	case v.Number != nil:
		return v.Number.String()
	case v.Bool != nil:
		if *v.Bool {
			return "true"
		}
		return "false"
	}
	return ""
}

// Item is one record of an inventory.
type Item struct {
	ID             uuid.UUID    `json:"id"`
	InventoryID    uuid.UUID    `json:"inventoryId"`
	CustomID       string       `json:"customId"`
	SequenceNumber *int64       `json:"sequenceNumber,omitempty"`
	CreatedBy      string       `json:"createdBy,omitempty"`
	FieldValues    []FieldValue `json:"fieldValues"`
}

// ElementKind identifies a custom-ID template element.
type ElementKind string

const (
	KindFixedText     ElementKind = "FixedText"
	KindSequence      ElementKind = "Sequence"
	KindDateTime      ElementKind = "DateTime"
	KindGuid          ElementKind = "Guid"
	KindRandom6Digits ElementKind = "Random6Digits"
	KindRandom9Digits ElementKind = "Random9Digits"
	KindRandom20Bit   ElementKind = "Random20Bit"
	KindRandom32Bit   ElementKind = "Random32Bit"
)

// Valid reports whether k is a known element kind.
func (k ElementKind) Valid() bool {
	switch k {
	case KindFixedText, KindSequence, KindDateTime, KindGuid,
		KindRandom6Digits, KindRandom9Digits, KindRandom20Bit, KindRandom32Bit:
		return true
	}
	return false
}

// Element is one ordered piece of an inventory's custom-ID template.
type Element struct {
	ID          int64       `json:"id"`
	InventoryID uuid.UUID   `json:"inventoryId"`
	Position    int         `json:"position"`
	Kind        ElementKind `json:"kind"`
	Text        string      `json:"text,omitempty"`
	Format      string      `json:"format,omitempty"`
}
