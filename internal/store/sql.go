package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperr "github.com/Aman-CERP/invsearch/internal/errors"
)

// SQLStore implements Store over database/sql.
type SQLStore struct {
	db *sql.DB
	d  dialect
	sb sq.StatementBuilderType
}

// Verify interface implementation at compile time
var _ Store = (*SQLStore)(nil)

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{
		db: db,
		d:  d,
		sb: sq.StatementBuilder.PlaceholderFormat(d.placeholder),
	}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Backend names the dialect.
func (s *SQLStore) Backend() string { return s.d.name }

// DB returns the underlying handle.
func (s *SQLStore) DB() DBTX { return s.db }

// Builder returns a statement builder using the dialect's placeholders.
func (s *SQLStore) Builder() sq.StatementBuilderType { return s.sb }

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperr.IOError("database unreachable", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type sqlizer interface {
	ToSql() (string, []any, error)
}

func (s *SQLStore) exec(ctx context.Context, q DBTX, b sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, apperr.InternalError("build statement", err)
	}
	return q.ExecContext(ctx, query, args...)
}

func (s *SQLStore) query(ctx context.Context, q DBTX, b sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, apperr.InternalError("build query", err)
	}
	return q.QueryContext(ctx, query, args...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// errRow defers a statement build error to Scan.
type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

func (s *SQLStore) queryRow(ctx context.Context, q DBTX, b sqlizer) rowScanner {
	query, args, err := b.ToSql()
	if err != nil {
		return errRow{apperr.InternalError("build query", err)}
	}
	return q.QueryRowContext(ctx, query, args...)
}

// nullable dereferences p for use as a statement argument.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// inTx runs fn in a transaction with the given options.
// Rollback uses a fresh context so it still runs after cancellation.
func (s *SQLStore) inTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return s.classify("begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return s.classify("commit transaction", err)
	}
	return nil
}

// classify maps driver errors onto the error taxonomy.
func (s *SQLStore) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	if s.d.isConflict(err) {
		return apperr.ConflictError(op+": serialization conflict", err)
	}
	return apperr.IOError(op, err)
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// ---------------------------------------------------------------------------
// inventories
// ---------------------------------------------------------------------------

var inventoryColumns = []string{"id", "owner_id", "title", "description", "category", "image_url", "is_public"}

func scanInventory(row rowScanner) (*Inventory, error) {
	var inv Inventory
	if err := row.Scan(&inv.ID, &inv.OwnerID, &inv.Title, &inv.Description, &inv.Category, &inv.ImageURL, &inv.IsPublic); err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetInventory loads one inventory.
func (s *SQLStore) GetInventory(ctx context.Context, id uuid.UUID) (*Inventory, error) {
	inv, err := scanInventory(s.queryRow(ctx, s.db,
		s.sb.Select(inventoryColumns...).From("inventories").Where(sq.Eq{"id": id.String()})))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundError("inventory", id.String())
	}
	if err != nil {
		return nil, s.classify("get inventory", err)
	}
	return inv, nil
}

// ListInventories returns every inventory.
func (s *SQLStore) ListInventories(ctx context.Context) ([]*Inventory, error) {
	rows, err := s.query(ctx, s.db, s.sb.Select(inventoryColumns...).From("inventories").OrderBy("title", "id"))
	if err != nil {
		return nil, s.classify("list inventories", err)
	}
	defer rows.Close()

	var out []*Inventory
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, s.classify("scan inventory", err)
		}
		out = append(out, inv)
	}
	return out, s.classify("list inventories", rows.Err())
}

// InventoryTitles resolves titles for a batch of ids.
func (s *SQLStore) InventoryTitles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	titles := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}

	rows, err := s.query(ctx, s.db,
		s.sb.Select("id", "title").From("inventories").Where(sq.Eq{"id": idStrings(ids)}))
	if err != nil {
		return nil, s.classify("inventory titles", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, s.classify("scan title", err)
		}
		titles[id] = title
	}
	return titles, s.classify("inventory titles", rows.Err())
}

// CreateInventory inserts inv, assigning an id when unset.
func (s *SQLStore) CreateInventory(ctx context.Context, inv *Inventory) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	_, err := s.exec(ctx, s.db, s.sb.Insert("inventories").
		Columns(inventoryColumns...).
		Values(inv.ID.String(), inv.OwnerID, inv.Title, inv.Description, inv.Category, inv.ImageURL, inv.IsPublic))
	return s.classify("create inventory", err)
}

// UpdateInventory overwrites the mutable inventory columns.
func (s *SQLStore) UpdateInventory(ctx context.Context, inv *Inventory) error {
	res, err := s.exec(ctx, s.db, s.sb.Update("inventories").
		Set("owner_id", inv.OwnerID).
		Set("title", inv.Title).
		Set("description", inv.Description).
		Set("category", inv.Category).
		Set("image_url", inv.ImageURL).
		Set("is_public", inv.IsPublic).
		Where(sq.Eq{"id": inv.ID.String()}))
	if err != nil {
		return s.classify("update inventory", err)
	}
	return requireAffected(res, "inventory", inv.ID.String())
}

// DeleteInventory removes an inventory and, by cascade, its dependents.
func (s *SQLStore) DeleteInventory(ctx context.Context, id uuid.UUID) error {
	res, err := s.exec(ctx, s.db, s.sb.Delete("inventories").Where(sq.Eq{"id": id.String()}))
	if err != nil {
		return s.classify("delete inventory", err)
	}
	return requireAffected(res, "inventory", id.String())
}

func requireAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.IOError("rows affected", err)
	}
	if n == 0 {
		return apperr.NotFoundError(entity, id)
	}
	return nil
}

// ---------------------------------------------------------------------------
// custom fields
// ---------------------------------------------------------------------------

// ListFields returns the inventory's fields ordered by position.
func (s *SQLStore) ListFields(ctx context.Context, inventoryID uuid.UUID) ([]*CustomField, error) {
	rows, err := s.query(ctx, s.db, s.sb.
		Select("id", "inventory_id", "name", "field_type", "position", "is_required").
		From("custom_fields").
		Where(sq.Eq{"inventory_id": inventoryID.String()}).
		OrderBy("position", "id"))
	if err != nil {
		return nil, s.classify("list fields", err)
	}
	defer rows.Close()

	var out []*CustomField
	for rows.Next() {
		var f CustomField
		if err := rows.Scan(&f.ID, &f.InventoryID, &f.Name, &f.Type, &f.Position, &f.IsRequired); err != nil {
			return nil, s.classify("scan field", err)
		}
		out = append(out, &f)
	}
	return out, s.classify("list fields", rows.Err())
}

// CreateField inserts f and assigns its id.
func (s *SQLStore) CreateField(ctx context.Context, f *CustomField) error {
	err := s.queryRow(ctx, s.db, s.sb.Insert("custom_fields").
		Columns("inventory_id", "name", "field_type", "position", "is_required").
		Values(f.InventoryID.String(), f.Name, string(f.Type), f.Position, f.IsRequired).
		Suffix("RETURNING id")).Scan(&f.ID)
	if err != nil && s.d.isUniqueViolation(err) {
		return apperr.ValidationError(fmt.Sprintf("field %q already exists", f.Name), err)
	}
	return s.classify("create field", err)
}

// ---------------------------------------------------------------------------
// items
// ---------------------------------------------------------------------------

var itemColumns = []string{"id", "inventory_id", "custom_id", "sequence_number", "created_by"}

func scanItem(row rowScanner) (*Item, error) {
	var it Item
	var seq sql.NullInt64
	if err := row.Scan(&it.ID, &it.InventoryID, &it.CustomID, &seq, &it.CreatedBy); err != nil {
		return nil, err
	}
	if seq.Valid {
		v := seq.Int64
		it.SequenceNumber = &v
	}
	return &it, nil
}

// GetItem loads one item with its field values.
func (s *SQLStore) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	it, err := scanItem(s.queryRow(ctx, s.db,
		s.sb.Select(itemColumns...).From("items").Where(sq.Eq{"id": id.String()})))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundError("item", id.String())
	}
	if err != nil {
		return nil, s.classify("get item", err)
	}

	values, err := s.loadValues(ctx, sq.Eq{"v.item_id": id.String()})
	if err != nil {
		return nil, err
	}
	it.FieldValues = values[it.ID]
	return it, nil
}

// ListItems returns every item with field values, for index rebuilds.
func (s *SQLStore) ListItems(ctx context.Context) ([]*Item, error) {
	rows, err := s.query(ctx, s.db, s.sb.Select(itemColumns...).From("items").OrderBy("inventory_id", "id"))
	if err != nil {
		return nil, s.classify("list items", err)
	}
	var items []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return nil, s.classify("scan item", err)
		}
		items = append(items, it)
	}
	// Close before the next query: SQLite runs on a single connection.
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, s.classify("list items", err)
	}

	values, err := s.loadValues(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		it.FieldValues = values[it.ID]
	}
	return items, nil
}

// ListItemIDs returns the ids of an inventory's items.
func (s *SQLStore) ListItemIDs(ctx context.Context, inventoryID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.query(ctx, s.db, s.sb.Select("id").From("items").Where(sq.Eq{"inventory_id": inventoryID.String()}))
	if err != nil {
		return nil, s.classify("list item ids", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, s.classify("scan item id", err)
		}
		ids = append(ids, id)
	}
	return ids, s.classify("list item ids", rows.Err())
}

// loadValues loads field values joined with field metadata, grouped by item.
// A nil filter loads everything.
func (s *SQLStore) loadValues(ctx context.Context, filter sq.Sqlizer) (map[uuid.UUID][]FieldValue, error) {
	b := s.sb.Select("v.item_id", "v.field_id", "f.name", "f.field_type", "v.text_value", "v.number_value", "v.bool_value").
		From("item_field_values v").
		Join("custom_fields f ON f.id = v.field_id").
		OrderBy("v.item_id", "f.position", "f.id")
	if filter != nil {
		b = b.Where(filter)
	}

	rows, err := s.query(ctx, s.db, b)
	if err != nil {
		return nil, s.classify("load field values", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]FieldValue)
	for rows.Next() {
		var (
			itemID uuid.UUID
			v      FieldValue
			text   sql.NullString
			number decimal.NullDecimal
			flag   sql.NullBool
		)
		if err := rows.Scan(&itemID, &v.FieldID, &v.FieldName, &v.FieldType, &text, &number, &flag); err != nil {
			return nil, s.classify("scan field value", err)
		}
		if text.Valid {
			v.Text = &text.String
		}
		if number.Valid {
			n := number.Decimal
			v.Number = &n
		}
		if flag.Valid {
			b := flag.Bool
			v.Bool = &b
		}
		out[itemID] = append(out[itemID], v)
	}
	return out, s.classify("load field values", rows.Err())
}

// CreateItem inserts the item and its values in one transaction, assigning
// an id when unset. A duplicate custom ID yields ErrDuplicateCustomID.
func (s *SQLStore) CreateItem(ctx context.Context, item *Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return s.inTx(ctx, nil, func(tx *sql.Tx) error {
		_, err := s.exec(ctx, tx, s.sb.Insert("items").
			Columns(itemColumns...).
			Values(item.ID.String(), item.InventoryID.String(), item.CustomID, nullable(item.SequenceNumber), item.CreatedBy))
		if err != nil {
			return s.itemWriteError("create item", item, err)
		}
		return s.insertValues(ctx, tx, item)
	})
}

// UpdateItem replaces the item's custom ID, its sequence number and all of
// its field values.
func (s *SQLStore) UpdateItem(ctx context.Context, item *Item) error {
	return s.inTx(ctx, nil, func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, s.sb.Update("items").
			Set("custom_id", item.CustomID).
			Set("sequence_number", nullable(item.SequenceNumber)).
			Where(sq.Eq{"id": item.ID.String()}))
		if err != nil {
			return s.itemWriteError("update item", item, err)
		}
		if err := requireAffected(res, "item", item.ID.String()); err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, s.sb.Delete("item_field_values").Where(sq.Eq{"item_id": item.ID.String()})); err != nil {
			return s.classify("clear field values", err)
		}
		return s.insertValues(ctx, tx, item)
	})
}

func (s *SQLStore) itemWriteError(op string, item *Item, err error) error {
	if s.d.isUniqueViolation(err) {
		return apperr.New(apperr.ErrCodeDuplicateCustomID,
			fmt.Sprintf("custom ID %q already exists in inventory", item.CustomID), err).
			WithDetail("custom_id", item.CustomID).
			WithDetail("inventory_id", item.InventoryID.String())
	}
	return s.classify(op, err)
}

func (s *SQLStore) insertValues(ctx context.Context, tx *sql.Tx, item *Item) error {
	if len(item.FieldValues) == 0 {
		return nil
	}
	b := s.sb.Insert("item_field_values").
		Columns("item_id", "field_id", "text_value", "number_value", "bool_value")
	for _, v := range item.FieldValues {
		var number any
		if v.Number != nil {
			number = v.Number.String()
		}
		b = b.Values(item.ID.String(), v.FieldID, nullable(v.Text), number, nullable(v.Bool))
	}
	_, err := s.exec(ctx, tx, b)
	return s.classify("insert field values", err)
}

// DeleteItem removes an item and its values.
func (s *SQLStore) DeleteItem(ctx context.Context, id uuid.UUID) error {
	res, err := s.exec(ctx, s.db, s.sb.Delete("items").Where(sq.Eq{"id": id.String()}))
	if err != nil {
		return s.classify("delete item", err)
	}
	return requireAffected(res, "item", id.String())
}

// ---------------------------------------------------------------------------
// custom-ID template
// ---------------------------------------------------------------------------

var elementColumns = []string{"id", "inventory_id", "position", "kind", "text", "format"}

// ListElements returns the template in position order.
func (s *SQLStore) ListElements(ctx context.Context, inventoryID uuid.UUID) ([]*Element, error) {
	return s.listElements(ctx, s.db, inventoryID)
}

func (s *SQLStore) listElements(ctx context.Context, q DBTX, inventoryID uuid.UUID) ([]*Element, error) {
	rows, err := s.query(ctx, q, s.sb.Select(elementColumns...).
		From("custom_id_elements").
		Where(sq.Eq{"inventory_id": inventoryID.String()}).
		OrderBy("position", "id"))
	if err != nil {
		return nil, s.classify("list elements", err)
	}
	defer rows.Close()

	var out []*Element
	for rows.Next() {
		var el Element
		if err := rows.Scan(&el.ID, &el.InventoryID, &el.Position, &el.Kind, &el.Text, &el.Format); err != nil {
			return nil, s.classify("scan element", err)
		}
		out = append(out, &el)
	}
	return out, s.classify("list elements", rows.Err())
}

// AddElement appends or inserts an element.
func (s *SQLStore) AddElement(ctx context.Context, el *Element) error {
	return s.inTx(ctx, nil, func(tx *sql.Tx) error {
		if el.Position == 0 {
			var maxPos sql.NullInt64
			err := s.queryRow(ctx, tx, s.sb.Select("MAX(position)").
				From("custom_id_elements").
				Where(sq.Eq{"inventory_id": el.InventoryID.String()})).Scan(&maxPos)
			if err != nil {
				return s.classify("next element position", err)
			}
			el.Position = int(maxPos.Int64) + 1
		}

		err := s.queryRow(ctx, tx, s.sb.Insert("custom_id_elements").
			Columns("inventory_id", "position", "kind", "text", "format").
			Values(el.InventoryID.String(), el.Position, string(el.Kind), el.Text, el.Format).
			Suffix("RETURNING id")).Scan(&el.ID)
		if err != nil {
			return s.elementWriteError("add element", el, err)
		}

		if el.Kind == KindSequence {
			return s.ensureSequence(ctx, tx, el.InventoryID)
		}
		return nil
	})
}

// UpdateElement overwrites an element's kind, text and format, and its
// position unless el.Position is zero.
func (s *SQLStore) UpdateElement(ctx context.Context, el *Element) error {
	return s.inTx(ctx, nil, func(tx *sql.Tx) error {
		upd := s.sb.Update("custom_id_elements").
			Set("kind", string(el.Kind)).
			Set("text", el.Text).
			Set("format", el.Format).
			Where(sq.Eq{"id": el.ID, "inventory_id": el.InventoryID.String()})
		if el.Position > 0 {
			upd = upd.Set("position", el.Position)
		}
		res, err := s.exec(ctx, tx, upd)
		if err != nil {
			return s.elementWriteError("update element", el, err)
		}
		if err := requireAffected(res, "element", fmt.Sprint(el.ID)); err != nil {
			return err
		}
		if el.Position == 0 {
			err := s.queryRow(ctx, tx, s.sb.Select("position").
				From("custom_id_elements").
				Where(sq.Eq{"id": el.ID})).Scan(&el.Position)
			if err != nil {
				return s.classify("read element position", err)
			}
		}
		if el.Kind == KindSequence {
			return s.ensureSequence(ctx, tx, el.InventoryID)
		}
		return nil
	})
}

func (s *SQLStore) elementWriteError(op string, el *Element, err error) error {
	if s.d.isUniqueViolation(err) {
		return apperr.New(apperr.ErrCodeOrderConflict,
			fmt.Sprintf("position %d is already used in this template", el.Position), err).
			WithDetail("position", fmt.Sprint(el.Position))
	}
	return s.classify(op, err)
}

// DeleteElement removes one element. The counter is kept so re-adding a
// Sequence element continues numbering.
func (s *SQLStore) DeleteElement(ctx context.Context, inventoryID uuid.UUID, elementID int64) error {
	res, err := s.exec(ctx, s.db, s.sb.Delete("custom_id_elements").
		Where(sq.Eq{"id": elementID, "inventory_id": inventoryID.String()}))
	if err != nil {
		return s.classify("delete element", err)
	}
	return requireAffected(res, "element", fmt.Sprint(elementID))
}

// ReorderElements rewrites positions to follow ids.
func (s *SQLStore) ReorderElements(ctx context.Context, inventoryID uuid.UUID, ids []int64) error {
	return s.inTx(ctx, nil, func(tx *sql.Tx) error {
		current, err := s.listElements(ctx, tx, inventoryID)
		if err != nil {
			return err
		}
		if !samePermutation(current, ids) {
			return apperr.ValidationError("reorder must list every element of the template exactly once", nil)
		}

		// Park every row on a negative position first so the unique
		// (inventory_id, position) constraint never sees a transient clash.
		if _, err := s.exec(ctx, tx, s.sb.Update("custom_id_elements").
			Set("position", sq.Expr("-position - 1")).
			Where(sq.Eq{"inventory_id": inventoryID.String()})); err != nil {
			return s.classify("park positions", err)
		}
		for i, id := range ids {
			if _, err := s.exec(ctx, tx, s.sb.Update("custom_id_elements").
				Set("position", i+1).
				Where(sq.Eq{"id": id, "inventory_id": inventoryID.String()})); err != nil {
				return s.classify("reorder element", err)
			}
		}
		return nil
	})
}

func samePermutation(current []*Element, ids []int64) bool {
	if len(current) != len(ids) {
		return false
	}
	have := make([]int64, len(current))
	for i, el := range current {
		have[i] = el.ID
	}
	want := append([]int64(nil), ids...)
	sort.Slice(have, func(i, j int) bool { return have[i] < have[j] })
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	for i := range have {
		if have[i] != want[i] {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// sequences
// ---------------------------------------------------------------------------

// EnsureSequence creates the inventory's counter at 1 if absent.
func (s *SQLStore) EnsureSequence(ctx context.Context, inventoryID uuid.UUID) error {
	return s.ensureSequence(ctx, s.db, inventoryID)
}

func (s *SQLStore) ensureSequence(ctx context.Context, q DBTX, inventoryID uuid.UUID) error {
	_, err := s.exec(ctx, q, s.sb.Insert("inventory_sequences").
		Columns("inventory_id", "next_value").
		Values(inventoryID.String(), 1).
		Suffix("ON CONFLICT (inventory_id) DO NOTHING"))
	return s.classify("ensure sequence", err)
}

// CurrentSequence reads the next value without advancing it.
func (s *SQLStore) CurrentSequence(ctx context.Context, inventoryID uuid.UUID) (int64, error) {
	var next int64
	err := s.queryRow(ctx, s.db, s.sb.Select("next_value").
		From("inventory_sequences").
		Where(sq.Eq{"inventory_id": inventoryID.String()})).Scan(&next)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, missingSequence(inventoryID)
	}
	if err != nil {
		return 0, s.classify("read sequence", err)
	}
	return next, nil
}

// MaxSequenceNumber returns the highest item sequence number, or 0.
func (s *SQLStore) MaxSequenceNumber(ctx context.Context, inventoryID uuid.UUID) (int64, error) {
	var maxSeq sql.NullInt64
	err := s.queryRow(ctx, s.db, s.sb.Select("MAX(sequence_number)").
		From("items").
		Where(sq.Eq{"inventory_id": inventoryID.String()})).Scan(&maxSeq)
	if err != nil {
		return 0, s.classify("max sequence number", err)
	}
	return maxSeq.Int64, nil
}

// InSerializableTx runs fn in a serializable transaction.
func (s *SQLStore) InSerializableTx(ctx context.Context, fn func(tx SequenceTx) error) error {
	return s.inTx(ctx, s.d.txOptions, func(tx *sql.Tx) error {
		return fn(&sequenceTx{s: s, tx: tx})
	})
}

func missingSequence(inventoryID uuid.UUID) error {
	return apperr.New(apperr.ErrCodeSequenceNotConfigured,
		"inventory has a Sequence element but no sequence counter", nil).
		WithDetail("inventory_id", inventoryID.String()).
		WithSuggestion("re-add the Sequence element or create the counter")
}

// sequenceTx confines counter access to one transaction. It must never touch
// s.db: with SQLite's single connection that would deadlock.
type sequenceTx struct {
	s  *SQLStore
	tx *sql.Tx
}

func (t *sequenceTx) ReadSequence(ctx context.Context, inventoryID uuid.UUID) (int64, bool, error) {
	var next int64
	err := t.s.queryRow(ctx, t.tx, t.s.sb.Select("next_value").
		From("inventory_sequences").
		Where(sq.Eq{"inventory_id": inventoryID.String()})).Scan(&next)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, t.s.classify("read sequence", err)
	}
	return next, true, nil
}

func (t *sequenceTx) WriteSequence(ctx context.Context, inventoryID uuid.UUID, next int64) error {
	_, err := t.s.exec(ctx, t.tx, t.s.sb.Update("inventory_sequences").
		Set("next_value", next).
		Where(sq.Eq{"inventory_id": inventoryID.String()}))
	return t.s.classify("write sequence", err)
}
