// internal/app/features/workers/workers.go
package workers

import (
	"net/http"

	"github.com/dalemusser/fermehub/internal/app/lifecycle"
	"github.com/dalemusser/fermehub/internal/app/system/limits"
	"github.com/dalemusser/fermehub/internal/app/system/paging"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// workerBody is the JSON shape of a worker's editable fields. Dates are
// calendar days.
type workerBody struct {
	NationalID   string `json:"national_id"`
	Matricule    string `json:"matricule"`
	FullName     string `json:"full_name"`
	Gender       string `json:"gender"`
	BirthDate    string `json:"birth_date"`
	Phone        string `json:"phone"`
	RoomNumber   string `json:"room_number"`
	SupervisorID string `json:"supervisor_id"`
	EntryDate    string `json:"entry_date"`
}

func (b workerBody) input() (lifecycle.WorkerInput, error) {
	in := lifecycle.WorkerInput{
		NationalID: b.NationalID,
		Matricule:  b.Matricule,
		FullName:   b.FullName,
		Gender:     b.Gender,
		Phone:      b.Phone,
		RoomNumber: b.RoomNumber,
	}
	var err error
	if in.BirthDate, err = parseDate(b.BirthDate, "birth_date"); err != nil {
		return in, err
	}
	if in.EntryDate, err = dateOrZero(b.EntryDate, "entry_date"); err != nil {
		return in, err
	}
	if b.SupervisorID != "" {
		id, err := parseID(b.SupervisorID, "supervisor_id")
		if err != nil {
			return in, err
		}
		in.SupervisorID = &id
	}
	return in, nil
}

type createBody struct {
	workerBody
	ApplyResolution bool `json:"apply_resolution"`
}

type editBody struct {
	workerBody
	FarmID     string `json:"farm_id"`
	ExitDate   string `json:"exit_date"`
	ExitReason string `json:"exit_reason"`
}

type reopenBody struct {
	ToFarmID   string `json:"to_farm_id"`
	EntryDate  string `json:"entry_date"`
	RoomNumber string `json:"room_number"`
}

type bulkDeleteBody struct {
	WorkerIDs []string `json:"worker_ids"`
}

type listResponse struct {
	Workers    []models.Worker `json:"workers"`
	HasPrev    bool            `json:"has_prev"`
	HasNext    bool            `json:"has_next"`
	PrevCursor string          `json:"prev_cursor,omitempty"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// list handles GET /farms/{farmID}/workers?status=&limit=&after=&before=.
// Without a pager the whole farm comes back in one response.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	farmID, err := idParam(r, "farmID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := query.Get(r, "status")
	if status != "" && status != models.StatusActive && status != models.StatusInactive {
		h.writeError(w, r, badRequest("status must be active or inactive"))
		return
	}

	if h.Pager != nil {
		page, err := h.Pager.ListPage(r.Context(), farmID, status, query.Get(r, "before"), query.Get(r, "after"), paging.ParseSize(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse{
			Workers:    nonNil(page.Workers),
			HasPrev:    page.HasPrev,
			HasNext:    page.HasNext,
			PrevCursor: page.PrevCursor,
			NextCursor: page.NextCursor,
		})
		return
	}

	ws, err := h.Svc.ListWorkers(r.Context(), farmID, status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Workers: nonNil(ws)})
}

func nonNil(ws []models.Worker) []models.Worker {
	if ws == nil {
		return []models.Worker{}
	}
	return ws
}

// create handles POST /farms/{farmID}/workers.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	farmID, err := idParam(r, "farmID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body createBody
	if err := decode(w, r, limits.MaxWorkerBodySize, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := body.input()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.Svc.CreateWorker(r.Context(), lifecycle.CreateRequest{
		Actor:           actor,
		FarmID:          farmID,
		Worker:          in,
		ApplyResolution: body.ApplyResolution,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, resultStatus(res, true), res)
}

// get handles GET /workers/{workerID}.
func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "workerID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	wk, err := h.Svc.GetWorker(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wk)
}

// edit handles PUT /workers/{workerID}.
func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
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
	var body editBody
	if err := decode(w, r, limits.MaxWorkerBodySize, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := body.input()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	farmID, err := optionalID(body.FarmID, "farm_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	exit, err := parseDate(body.ExitDate, "exit_date")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.Svc.EditWorker(r.Context(), lifecycle.EditRequest{
		Actor:      actor,
		WorkerID:   id,
		FarmID:     farmID,
		Worker:     in,
		ExitDate:   exit,
		ExitReason: body.ExitReason,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, resultStatus(res, false), res)
}

// reactivate handles POST /workers/{workerID}/reactivate.
func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	h.reopen(w, r, false)
}

// transfer handles POST /workers/{workerID}/transfer.
func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	h.reopen(w, r, true)
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request, transfer bool) {
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
	var body reopenBody
	if err := decode(w, r, limits.MaxWorkerBodySize, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	entry, err := dateOrZero(body.EntryDate, "entry_date")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var res lifecycle.Result
	if transfer {
		var to primitive.ObjectID
		if to, err = parseID(body.ToFarmID, "to_farm_id"); err != nil {
			h.writeError(w, r, err)
			return
		}
		res, err = h.Svc.TransferWorker(r.Context(), lifecycle.TransferRequest{
			Actor: actor, WorkerID: id, ToFarmID: to, EntryDate: entry, RoomNumber: body.RoomNumber,
		})
	} else {
		res, err = h.Svc.ReactivateWorker(r.Context(), lifecycle.ReactivateRequest{
			Actor: actor, WorkerID: id, EntryDate: entry, RoomNumber: body.RoomNumber,
		})
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// remove handles DELETE /workers/{workerID}.
func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
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
	res, err := h.Svc.DeleteWorker(r.Context(), lifecycle.DeleteRequest{Actor: actor, WorkerID: id})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// bulkDelete handles POST /workers/bulk-delete.
func (h *Handler) bulkDelete(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body bulkDeleteBody
	if err := decode(w, r, limits.MaxBulkBodySize, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	ids := make([]primitive.ObjectID, 0, len(body.WorkerIDs))
	for _, raw := range body.WorkerIDs {
		id, err := parseID(raw, "worker_ids")
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		ids = append(ids, id)
	}

	res, err := h.Svc.BulkDeleteWorkers(r.Context(), lifecycle.BulkDeleteRequest{Actor: actor, WorkerIDs: ids})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
