// Package catalog performs inventory, field and item mutations against the
// system of record and keeps the search index in step with every commit.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Aman-CERP/invsearch/internal/customid"
	apperr "github.com/Aman-CERP/invsearch/internal/errors"
	"github.com/Aman-CERP/invsearch/internal/store"
	"github.com/Aman-CERP/invsearch/internal/validation"
)

// Store is the persistence the catalog mutates.
type Store interface {
	store.Reader
	store.Writer
}

// Indexer projects committed entities into the search index.
type Indexer interface {
	IndexInventory(ctx context.Context, id uuid.UUID) error
	RemoveInventory(ctx context.Context, id uuid.UUID) error
	IndexItem(ctx context.Context, id uuid.UUID) error
	RemoveItem(ctx context.Context, id uuid.UUID) error
}

// IDs generates custom item IDs and claims supplied ones.
type IDs interface {
	Generate(ctx context.Context, inventoryID uuid.UUID) (customid.Result, error)
	Claim(ctx context.Context, inventoryID uuid.UUID, candidate string) (*int64, error)
}

// InventoryInput creates or updates an inventory.
type InventoryInput struct {
	OwnerID     string `json:"ownerId" validate:"max=450"`
	Title       string `json:"title" validate:"required,max=250"`
	Description string `json:"description" validate:"max=1000"`
	Category    string `json:"category" validate:"max=100"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url,max=2048"`
	IsPublic    bool   `json:"isPublic"`
}

// FieldInput adds a custom field to an inventory.
type FieldInput struct {
	Name       string          `json:"name" validate:"required,max=100"`
	Type       store.FieldType `json:"type" validate:"required,field_type"`
	Position   int             `json:"position" validate:"gte=0"`
	IsRequired bool            `json:"isRequired"`
}

// ValueInput is one field value of an item. Exactly one of Text, Number and
// Bool must be set, matching the field's type.
type ValueInput struct {
	FieldID int64            `json:"fieldId" validate:"required,gt=0"`
	Text    *string          `json:"text" validate:"omitempty,max=4000"`
	Number  *decimal.Decimal `json:"number"`
	Bool    *bool            `json:"bool"`
}

// ItemInput creates or updates an item. An empty CustomID on create asks
// for a generated one; on update it keeps the current one.
type ItemInput struct {
	CustomID  string       `json:"customId" validate:"max=255"`
	CreatedBy string       `json:"createdBy" validate:"max=450"`
	Values    []ValueInput `json:"fieldValues" validate:"dive"`
}

// Catalog is the mutation entry point used by the API and the CLI.
type Catalog struct {
	store   Store
	indexer Indexer
	ids     IDs
}

// New creates a catalog.
func New(s Store, indexer Indexer, ids IDs) *Catalog {
	return &Catalog{store: s, indexer: indexer, ids: ids}
}

// ---------------------------------------------------------------------------
// inventories
// ---------------------------------------------------------------------------

// CreateInventory stores a new inventory and indexes it.
func (c *Catalog) CreateInventory(ctx context.Context, in InventoryInput) (*store.Inventory, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	inv := inventoryFrom(uuid.New(), in)
	if err := c.store.CreateInventory(ctx, inv); err != nil {
		return nil, err
	}
	slog.Info("inventory_created", slog.String("inventory_id", inv.ID.String()))
	c.sync(ctx, "inventory", inv.ID, c.indexer.IndexInventory)
	return inv, nil
}

// UpdateInventory replaces the inventory's attributes and reindexes it.
func (c *Catalog) UpdateInventory(ctx context.Context, id uuid.UUID, in InventoryInput) (*store.Inventory, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	inv := inventoryFrom(id, in)
	if err := c.store.UpdateInventory(ctx, inv); err != nil {
		return nil, err
	}
	c.sync(ctx, "inventory", id, c.indexer.IndexInventory)
	return inv, nil
}

// DeleteInventory removes the inventory with its items, fields and
// template, then drops their documents.
func (c *Catalog) DeleteInventory(ctx context.Context, id uuid.UUID) error {
	if err := c.store.DeleteInventory(ctx, id); err != nil {
		return err
	}
	slog.Info("inventory_deleted", slog.String("inventory_id", id.String()))
	c.sync(ctx, "inventory", id, c.indexer.RemoveInventory)
	return nil
}

func inventoryFrom(id uuid.UUID, in InventoryInput) *store.Inventory {
	return &store.Inventory{
		ID:          id,
		OwnerID:     in.OwnerID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    in.Category,
		ImageURL:    in.ImageURL,
		IsPublic:    in.IsPublic,
	}
}

// ---------------------------------------------------------------------------
// fields
// ---------------------------------------------------------------------------

// AddField adds a custom field. Existing items are not reindexed since they
// carry no value for it yet.
func (c *Catalog) AddField(ctx context.Context, inventoryID uuid.UUID, in FieldInput) (*store.CustomField, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := c.store.GetInventory(ctx, inventoryID); err != nil {
		return nil, err
	}
	f := &store.CustomField{
		InventoryID: inventoryID,
		Name:        strings.TrimSpace(in.Name),
		Type:        in.Type,
		Position:    in.Position,
		IsRequired:  in.IsRequired,
	}
	if err := c.store.CreateField(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Fields lists the inventory's custom fields.
func (c *Catalog) Fields(ctx context.Context, inventoryID uuid.UUID) ([]*store.CustomField, error) {
	return c.store.ListFields(ctx, inventoryID)
}

// ---------------------------------------------------------------------------
// items
// ---------------------------------------------------------------------------

// CreateItem stores a new item. Without a custom ID one is generated from
// the inventory's template; a supplied one must match the template when the
// inventory has one, and its sequence number is kept and never generated
// again.
func (c *Catalog) CreateItem(ctx context.Context, inventoryID uuid.UUID, in ItemInput) (*store.Item, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	values, err := c.resolveValues(ctx, inventoryID, in.Values)
	if err != nil {
		return nil, err
	}

	item := &store.Item{
		ID:          uuid.New(),
		InventoryID: inventoryID,
		CustomID:    strings.TrimSpace(in.CustomID),
		CreatedBy:   in.CreatedBy,
		FieldValues: values,
	}
	if item.CustomID == "" {
		res, err := c.ids.Generate(ctx, inventoryID)
		if err != nil {
			return nil, err
		}
		item.CustomID = res.CustomID
		item.SequenceNumber = res.SequenceNumber
	} else {
		seq, err := c.checkCustomID(ctx, inventoryID, item.CustomID)
		if err != nil {
			return nil, err
		}
		item.SequenceNumber = seq
	}

	if err := c.store.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	slog.Info("item_created",
		slog.String("item_id", item.ID.String()),
		slog.String("inventory_id", inventoryID.String()),
		slog.String("custom_id", item.CustomID))
	c.sync(ctx, "item", item.ID, c.indexer.IndexItem)
	return item, nil
}

// UpdateItem replaces the item's values and, when given, its custom ID.
func (c *Catalog) UpdateItem(ctx context.Context, id uuid.UUID, in ItemInput) (*store.Item, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	item, err := c.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	values, err := c.resolveValues(ctx, item.InventoryID, in.Values)
	if err != nil {
		return nil, err
	}

	if customID := strings.TrimSpace(in.CustomID); customID != "" && customID != item.CustomID {
		seq, err := c.checkCustomID(ctx, item.InventoryID, customID)
		if err != nil {
			return nil, err
		}
		item.CustomID = customID
		item.SequenceNumber = seq
	}
	item.FieldValues = values
	if err := c.store.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	c.sync(ctx, "item", id, c.indexer.IndexItem)
	return item, nil
}

// DeleteItem removes the item and its document.
func (c *Catalog) DeleteItem(ctx context.Context, id uuid.UUID) error {
	if err := c.store.DeleteItem(ctx, id); err != nil {
		return err
	}
	slog.Info("item_deleted", slog.String("item_id", id.String()))
	c.sync(ctx, "item", id, c.indexer.RemoveItem)
	return nil
}

// checkCustomID validates a supplied ID and claims its sequence number.
// Inventories without a template accept any ID.
func (c *Catalog) checkCustomID(ctx context.Context, inventoryID uuid.UUID, candidate string) (*int64, error) {
	seq, err := c.ids.Claim(ctx, inventoryID, candidate)
	if apperr.GetCode(err) == apperr.ErrCodeTemplateNotConfigured {
		return nil, nil
	}
	return seq, err
}

// resolveValues checks the values against the inventory's fields: known
// field, matching type, at most one value per field and every required
// field present.
func (c *Catalog) resolveValues(ctx context.Context, inventoryID uuid.UUID, in []ValueInput) ([]store.FieldValue, error) {
	if _, err := c.store.GetInventory(ctx, inventoryID); err != nil {
		return nil, err
	}
	fields, err := c.store.ListFields(ctx, inventoryID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*store.CustomField, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}

	seen := make(map[int64]bool, len(in))
	out := make([]store.FieldValue, 0, len(in))
	for _, v := range in {
		f, ok := byID[v.FieldID]
		if !ok {
			return nil, invalidValue(v.FieldID, "unknown field")
		}
		if seen[v.FieldID] {
			return nil, invalidValue(v.FieldID, "duplicate value")
		}
		seen[v.FieldID] = true
		if err := checkType(f, v); err != nil {
			return nil, err
		}
		out = append(out, store.FieldValue{
			FieldID:   f.ID,
			FieldName: f.Name,
			FieldType: f.Type,
			Text:      v.Text,
			Number:    v.Number,
			Bool:      v.Bool,
		})
	}

	for _, f := range fields {
		if f.IsRequired && !seen[f.ID] {
			return nil, apperr.ValidationError(fmt.Sprintf("field %q is required", f.Name), nil).
				WithDetail(f.Name, "this field is required")
		}
	}
	return out, nil
}

func checkType(f *store.CustomField, v ValueInput) error {
	set := 0
	for _, ok := range []bool{v.Text != nil, v.Number != nil, v.Bool != nil} {
		if ok {
			set++
		}
	}
	var ok bool
	switch {
	case f.Type.IsText():
		ok = v.Text != nil
	case f.Type == store.FieldNumber:
		ok = v.Number != nil
	case f.Type == store.FieldBoolean:
		ok = v.Bool != nil
	}
	if set != 1 || !ok {
		return invalidValue(f.ID, fmt.Sprintf("field %q expects a single %s value", f.Name, f.Type))
	}
	return nil
}

func invalidValue(fieldID int64, msg string) error {
	return apperr.ValidationError(msg, nil).
		WithDetail("fieldId", fmt.Sprintf("%d", fieldID))
}

// sync runs an index operation after a commit. The store stays the system
// of record, so a failure is logged and left for the consistency check.
func (c *Catalog) sync(ctx context.Context, entity string, id uuid.UUID, op func(context.Context, uuid.UUID) error) {
	if c.indexer == nil {
		return
	}
	if err := op(ctx, id); err != nil {
		slog.Warn("index_sync_failed",
			slog.String("entity", entity),
			slog.String("id", id.String()),
			slog.String("error", err.Error()))
	}
}
