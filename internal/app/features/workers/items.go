// internal/app/features/workers/items.go
package workers

import (
	"net/http"

	"github.com/dalemusser/fermehub/internal/app/lifecycle"
	"github.com/dalemusser/fermehub/internal/app/system/limits"
)

type allocateBody struct {
	ItemName string `json:"item_name"`
}

type returnBody struct {
	StockItemID string `json:"stock_item_id"`
}

// allocate handles POST /workers/{workerID}/items.
func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := idParam(r, "workerID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body allocateBody
	if err := decode(w, r, limits.MaxWorkerBodySize, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	a, err := h.Svc.AllocateItem(r.Context(), lifecycle.AllocateItemRequest{Actor: actor, WorkerID: id, ItemName: body.ItemName})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// giveBack handles POST /workers/{workerID}/items/return.
func (h *Handler) giveBack(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := idParam(r, "workerID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body returnBody
	if err := decode(w, r, limits.MaxWorkerBodySize, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	itemID, err := parseID(body.StockItemID, "stock_item_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	a, err := h.Svc.ReturnItem(r.Context(), lifecycle.ReturnItemRequest{Actor: actor, WorkerID: id, StockItemID: itemID})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
