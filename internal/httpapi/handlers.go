package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Aman-CERP/invsearch/internal/catalog"
	"github.com/Aman-CERP/invsearch/internal/customid"
	apperr "github.com/Aman-CERP/invsearch/internal/errors"
	"github.com/Aman-CERP/invsearch/pkg/version"
)

// ---------------------------------------------------------------------------
// health and search
// ---------------------------------------------------------------------------

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := map[string]string{"status": "ok", "database": "ok", "version": version.Short()}
	status := http.StatusOK
	if a.Store != nil {
		if err := a.Store.Ping(ctx); err != nil {
			resp["status"] = "degraded"
			resp["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	// A background reconcile leaves search usable, so it does not
	// degrade the status.
	if a.IndexProgress != nil {
		resp["index"] = a.IndexProgress.Snapshot().Status
	}
	writeJSON(w, status, resp)
}

func (a *api) search(w http.ResponseWriter, r *http.Request) {
	// A blank q yields an empty result set, like Suggest.
	q := r.URL.Query().Get("q")
	inventories, err := limitParam(r, "inventories")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := limitParam(r, "items")
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := a.Search.Search(r.Context(), q, inventories, items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) suggest(w http.ResponseWriter, r *http.Request) {
	res, err := a.Search.Suggest(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) reindex(w http.ResponseWriter, r *http.Request) {
	n, err := a.Indexer.RebuildAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"indexed": n})
}

type statsResponse struct {
	TotalQueries     int64            `json:"totalQueries"`
	ZeroResultRate   float64          `json:"zeroResultPercentage"`
	FallbackRate     float64          `json:"fallbackRate"`
	PathCounts       map[string]int64 `json:"pathCounts"`
	Latency          map[string]int64 `json:"latency"`
	TopTerms         map[string]int64 `json:"topTerms"`
	ZeroResultSample []string         `json:"zeroResultQueries"`
	Since            time.Time        `json:"since"`
}

func (a *api) stats(w http.ResponseWriter, r *http.Request) {
	if a.Metrics == nil {
		writeError(w, r, apperr.NotFoundError("telemetry", "query metrics"))
		return
	}
	s := a.Metrics.Snapshot()
	resp := statsResponse{
		TotalQueries:     s.TotalQueries,
		ZeroResultRate:   s.ZeroResultPercentage(),
		FallbackRate:     s.FallbackRate(),
		PathCounts:       make(map[string]int64, len(s.PathCounts)),
		Latency:          make(map[string]int64, len(s.LatencyDistribution)),
		TopTerms:         make(map[string]int64, len(s.TopTerms)),
		ZeroResultSample: s.ZeroResultQueries,
		Since:            s.Since,
	}
	for p, n := range s.PathCounts {
		resp.PathCounts[string(p)] = n
	}
	for b, n := range s.LatencyDistribution {
		resp.Latency[string(b)] = n
	}
	for _, tc := range s.TopTerms {
		resp.TopTerms[tc.Term] = tc.Count
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---------------------------------------------------------------------------
// catalog
// ---------------------------------------------------------------------------

func (a *api) createInventory(w http.ResponseWriter, r *http.Request) {
	var in catalog.InventoryInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := a.Catalog.CreateInventory(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (a *api) updateInventory(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "inventoryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in catalog.InventoryInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := a.Catalog.UpdateInventory(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (a *api) deleteInventory(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "inventoryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.Catalog.DeleteInventory(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) listFields(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "inventoryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	fields, err := a.Catalog.Fields(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func (a *api) addField(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "inventoryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in catalog.FieldInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := a.Catalog.AddField(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (a *api) createItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "inventoryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in catalog.ItemInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := a.Catalog.CreateItem(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *api) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "itemID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in catalog.ItemInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := a.Catalog.UpdateItem(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *api) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "itemID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.Catalog.DeleteItem(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// custom-ID template
// ---------------------------------------------------------------------------

func (a *api) listElements(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "inventoryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	elements, err := a.CustomID.Elements(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, elements)
}

func (a *api) addElement(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "inventoryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in customid.ElementInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	el, err := a.CustomID.AddElement(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, el)
}

func (a *api) updateElement(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "inventoryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	elementID, err := int64Param(r, "elementID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in customid.ElementInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	el, err := a.CustomID.UpdateElement(r.Context(), id, elementID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, el)
}

func (a *api) deleteElement(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "inventoryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	elementID, err := int64Param(r, "elementID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.CustomID.DeleteElement(r.Context(), id, elementID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) reorderElements(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "inventoryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in customid.ReorderInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	elements, err := a.CustomID.Reorder(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, elements)
}

func (a *api) previewCustomID(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "inventoryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.CustomID.Preview(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type validateRequest struct {
	CustomID string `json:"customId"`
}

type validateResponse struct {
	Valid bool `json:"valid"`
}

func (a *api) validateCustomID(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "inventoryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in validateRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	ok, err := a.CustomID.Matches(r.Context(), id, in.CustomID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: ok})
}
