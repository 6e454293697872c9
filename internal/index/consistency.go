package index

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Aman-CERP/invsearch/internal/async"
	"github.com/Aman-CERP/invsearch/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphan is an index document whose entity no longer exists.
	InconsistencyOrphan InconsistencyType = iota
	// InconsistencyMissing is an entity without an index document.
	InconsistencyMissing
)

// String returns a human-readable description of the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphan:
		return "orphan"
	case InconsistencyMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Inconsistency represents a detected drift between store and index.
type Inconsistency struct {
	Type  InconsistencyType
	DocID string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of entities in the store.
	Checked int
	// Indexed is the number of documents in the index.
	Indexed int
	// Inconsistencies contains all detected issues, ordered by doc id.
	Inconsistencies []Inconsistency
	// Duration is how long the check took.
	Duration time.Duration
}

// Consistent reports whether no issue was found.
func (r *CheckResult) Consistent() bool { return len(r.Inconsistencies) == 0 }

// ConsistencyChecker compares the system of record with the index.
type ConsistencyChecker struct {
	store   store.Reader
	indexer *Indexer
}

// NewConsistencyChecker creates a checker.
func NewConsistencyChecker(r store.Reader, indexer *Indexer) *ConsistencyChecker {
	return &ConsistencyChecker{store: r, indexer: indexer}
}

// Check lists every entity and every document and reports the difference.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	expected, err := c.expectedIDs(ctx)
	if err != nil {
		return nil, err
	}
	indexed, err := c.indexer.Writer().AllIDs(ctx)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(indexed))
	var issues []Inconsistency
	for _, id := range indexed {
		present[id] = true
		if !expected[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphan, DocID: id})
		}
	}
	for id := range expected {
		if !present[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyMissing, DocID: id})
		}
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].DocID < issues[j].DocID })

	return &CheckResult{
		Checked:         len(expected),
		Indexed:         len(indexed),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// Repair deletes orphan documents and indexes missing entities.
// Individual failures are logged and skipped.
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) (int, error) {
	var orphans []string
	repaired := 0

	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphan:
			orphans = append(orphans, issue.DocID)
		case InconsistencyMissing:
			kind, id, ok := ParseDocID(issue.DocID)
			if !ok {
				continue
			}
			var err error
			if kind == TypeInventory {
				err = c.indexer.IndexInventory(ctx, id)
			} else {
				err = c.indexer.IndexItem(ctx, id)
			}
			if err != nil {
				slog.Warn("consistency_repair_failed",
					slog.String("doc_id", issue.DocID),
					slog.String("error", err.Error()))
				continue
			}
			repaired++
		}
	}

	if len(orphans) > 0 {
		if err := c.indexer.Writer().Delete(ctx, orphans...); err != nil {
			return repaired, err
		}
		repaired += len(orphans)
		slog.Info("deleted orphan index documents", slog.Int("count", len(orphans)))
	}
	return repaired, nil
}

// Reconcile brings the index in line with the store. It rebuilds everything
// when force is set or the index was freshly created; otherwise it repairs
// only the drifted documents.
func (c *ConsistencyChecker) Reconcile(ctx context.Context, force bool, p *async.Progress) error {
	if force || c.indexer.Writer().NeedsRebuild() {
		p.SetStage(async.StageRebuilding)
		n, err := c.indexer.RebuildAll(ctx)
		if err != nil {
			return err
		}
		p.SetIndexed(n)
		return nil
	}

	p.SetStage(async.StageChecking)
	res, err := c.Check(ctx)
	if err != nil {
		return err
	}
	if res.Consistent() {
		return nil
	}
	slog.Warn("index_drift_detected",
		slog.Int("issues", len(res.Inconsistencies)),
		slog.Int("store", res.Checked),
		slog.Int("index", res.Indexed))

	p.SetStage(async.StageRepairing)
	repaired, err := c.Repair(ctx, res.Inconsistencies)
	p.SetRepaired(repaired)
	return err
}

// QuickCheck compares counts only.
func (c *ConsistencyChecker) QuickCheck(ctx context.Context) (bool, error) {
	expected, err := c.expectedIDs(ctx)
	if err != nil {
		return false, err
	}
	count, err := c.indexer.Writer().DocCount()
	if err != nil {
		return false, err
	}
	consistent := uint64(len(expected)) == count
	if !consistent {
		slog.Debug("index counts mismatch",
			slog.Int("store", len(expected)),
			slog.Uint64("index", count))
	}
	return consistent, nil
}

func (c *ConsistencyChecker) expectedIDs(ctx context.Context) (map[string]bool, error) {
	inventories, err := c.store.ListInventories(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool)
	for _, inv := range inventories {
		ids[InventoryDocID(inv.ID)] = true
		itemIDs, err := c.store.ListItemIDs(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		for _, id := range itemIDs {
			ids[ItemDocID(id)] = true
		}
	}
	return ids, nil
}
