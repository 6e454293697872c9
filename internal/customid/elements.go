package customid

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Aman-CERP/invsearch/internal/store"
	"github.com/Aman-CERP/invsearch/internal/validation"
)

// ElementInput describes a template element to add or update.
type ElementInput struct {
	Kind   store.ElementKind `json:"kind" validate:"required,element_kind"`
	Text   string            `json:"text" validate:"required_if=Kind FixedText,max=200"`
	Format string            `json:"format" validate:"max=50"`
	// Position is the 1-based order; 0 appends.
	Position int `json:"position" validate:"gte=0"`
}

// ReorderInput lists every element id of a template in its new order.
type ReorderInput struct {
	ElementIDs []int64 `json:"elementIds" validate:"required,min=1,unique"`
}

// Elements returns the template ordered by position.
func (s *Service) Elements(ctx context.Context, inventoryID uuid.UUID) ([]*store.Element, error) {
	return s.store.ListElements(ctx, inventoryID)
}

// AddElement appends or inserts an element. Adding a Sequence element
// creates the inventory's counter when it does not exist yet.
func (s *Service) AddElement(ctx context.Context, inventoryID uuid.UUID, in ElementInput) (*store.Element, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	el := &store.Element{
		InventoryID: inventoryID,
		Position:    in.Position,
		Kind:        in.Kind,
		Text:        in.Text,
		Format:      in.Format,
	}
	if err := s.store.AddElement(ctx, el); err != nil {
		return nil, err
	}
	slog.Info("custom_id_element_added",
		slog.String("inventory_id", inventoryID.String()),
		slog.Int64("element_id", el.ID),
		slog.String("kind", string(el.Kind)),
		slog.Int("position", el.Position))
	return el, nil
}

// UpdateElement replaces an element's definition. A zero position keeps
// the current one.
func (s *Service) UpdateElement(ctx context.Context, inventoryID uuid.UUID, elementID int64, in ElementInput) (*store.Element, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	el := &store.Element{
		ID:          elementID,
		InventoryID: inventoryID,
		Position:    in.Position,
		Kind:        in.Kind,
		Text:        in.Text,
		Format:      in.Format,
	}
	if err := s.store.UpdateElement(ctx, el); err != nil {
		return nil, err
	}
	return el, nil
}

// DeleteElement removes an element. Positions of the remaining elements are
// left as they are; gaps do not affect ordering.
func (s *Service) DeleteElement(ctx context.Context, inventoryID uuid.UUID, elementID int64) error {
	return s.store.DeleteElement(ctx, inventoryID, elementID)
}

// Reorder assigns positions 1..n following in.ElementIDs.
func (s *Service) Reorder(ctx context.Context, inventoryID uuid.UUID, in ReorderInput) ([]*store.Element, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := s.store.ReorderElements(ctx, inventoryID, in.ElementIDs); err != nil {
		return nil, err
	}
	return s.store.ListElements(ctx, inventoryID)
}
