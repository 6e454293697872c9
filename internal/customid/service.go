// Package customid generates and validates template-driven custom item IDs.
//
// A template is an ordered list of elements (fixed text, sequence, date/time,
// GUID and random numbers). Each element is compiled into format tokens that
// drive both rendering and the anchored validation pattern, so every
// generated ID matches its own template.
package customid

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	apperr "github.com/Aman-CERP/invsearch/internal/errors"
	"github.com/Aman-CERP/invsearch/internal/sequence"
	"github.com/Aman-CERP/invsearch/internal/store"
)

// DefaultCacheSize is the number of compiled templates kept in memory.
const DefaultCacheSize = 256

// TemplateStore is the persistence used by the service.
type TemplateStore interface {
	ListElements(ctx context.Context, inventoryID uuid.UUID) ([]*store.Element, error)
	AddElement(ctx context.Context, el *store.Element) error
	UpdateElement(ctx context.Context, el *store.Element) error
	DeleteElement(ctx context.Context, inventoryID uuid.UUID, elementID int64) error
	ReorderElements(ctx context.Context, inventoryID uuid.UUID, ids []int64) error
}

// Result is a generated identifier.
type Result struct {
	CustomID       string `json:"customId"`
	SequenceNumber *int64 `json:"sequenceNumber,omitempty"`
}

// Service generates, previews and validates custom IDs.
type Service struct {
	store    TemplateStore
	sequence sequence.Source
	cache    *lru.Cache[string, *Template]
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithCacheSize sets the compiled template cache size.
func WithCacheSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.cache, _ = lru.New[string, *Template](size)
		}
	}
}

// NewService creates a custom-ID service.
func NewService(ts TemplateStore, seq sequence.Source, opts ...Option) *Service {
	cache, _ := lru.New[string, *Template](DefaultCacheSize)
	s := &Service{
		store:    ts,
		sequence: seq,
		cache:    cache,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Template loads and compiles the inventory's template. Compiled templates
// are cached by fingerprint, so any edit produces a fresh compile.
func (s *Service) Template(ctx context.Context, inventoryID uuid.UUID) (*Template, error) {
	elements, err := s.store.ListElements(ctx, inventoryID)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, apperr.New(apperr.ErrCodeTemplateNotConfigured,
			fmt.Sprintf("inventory %s has no custom ID template", inventoryID), nil).
			WithDetail("inventory_id", inventoryID.String()).
			WithSuggestion("Add at least one element to the inventory's custom ID template")
	}

	key := Fingerprint(elements)
	if t, ok := s.cache.Get(key); ok {
		return t, nil
	}
	t, err := Compile(elements)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, t)
	return t, nil
}

// Generate renders a new ID. When the template has a Sequence element the
// counter is advanced exactly once and the number is returned with the ID.
func (s *Service) Generate(ctx context.Context, inventoryID uuid.UUID) (Result, error) {
	t, err := s.Template(ctx, inventoryID)
	if err != nil {
		return Result{}, err
	}

	var seq *int64
	if t.HasSequence() {
		n, err := s.sequence.AllocateNext(ctx, inventoryID)
		if err != nil {
			return Result{}, err
		}
		seq = &n
	}

	id, err := t.Render(s.now(), deref(seq))
	if err != nil {
		return Result{}, err
	}
	slog.Debug("custom_id_generated",
		slog.String("inventory_id", inventoryID.String()),
		slog.String("custom_id", id))
	return Result{CustomID: id, SequenceNumber: seq}, nil
}

// Preview renders an example ID without advancing the counter.
func (s *Service) Preview(ctx context.Context, inventoryID uuid.UUID) (Result, error) {
	t, err := s.Template(ctx, inventoryID)
	if err != nil {
		return Result{}, err
	}

	var seq *int64
	if t.HasSequence() {
		n, err := s.sequence.Current(ctx, inventoryID)
		if err != nil {
			return Result{}, err
		}
		seq = &n
	}

	id, err := t.Render(s.now(), deref(seq))
	if err != nil {
		return Result{}, err
	}
	return Result{CustomID: id, SequenceNumber: seq}, nil
}

// Matches reports whether candidate fits the inventory's template.
func (s *Service) Matches(ctx context.Context, inventoryID uuid.UUID, candidate string) (bool, error) {
	t, err := s.Template(ctx, inventoryID)
	if err != nil {
		return false, err
	}
	return t.Matches(candidate), nil
}

// Validate returns ErrCustomIDMismatch when candidate does not fit the
// template. On success the captured sequence number, if any, is returned.
func (s *Service) Validate(ctx context.Context, inventoryID uuid.UUID, candidate string) (*int64, error) {
	t, err := s.Template(ctx, inventoryID)
	if err != nil {
		return nil, err
	}
	if !t.Matches(candidate) {
		return nil, apperr.New(apperr.ErrCodeCustomIDMismatch,
			fmt.Sprintf("custom ID %q does not match the inventory's template", candidate), nil).
			WithDetail("customId", "does not match the expected format").
			WithDetail("pattern", t.Pattern())
	}
	if n, ok := t.SequenceOf(candidate); ok {
		return &n, nil
	}
	return nil, nil
}

// Claim validates a supplied candidate like Validate and moves the counter
// past its sequence number, so a later Generate cannot hand it out again.
func (s *Service) Claim(ctx context.Context, inventoryID uuid.UUID, candidate string) (*int64, error) {
	seq, err := s.Validate(ctx, inventoryID, candidate)
	if err != nil || seq == nil {
		return seq, err
	}
	if err := s.sequence.AdvancePast(ctx, inventoryID, *seq); err != nil {
		return nil, err
	}
	return seq, nil
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
