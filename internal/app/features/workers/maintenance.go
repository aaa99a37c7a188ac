// internal/app/features/workers/maintenance.go
package workers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dalemusser/fermehub/internal/app/lifecycle"
	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	notificationstore "github.com/dalemusser/fermehub/internal/app/store/notifications"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
)

// timeline handles GET /workers/{workerID}/timeline.
func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "workerID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tl, err := h.Svc.WorkTimeline(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

// sweep handles POST /farms/{farmID}/maintenance/sweep.
func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	farmID, err := idParam(r, "farmID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rep, err := h.Svc.SweepOccupancy(r.Context(), farmID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// heal handles POST /farms/{farmID}/maintenance/heal.
func (h *Handler) heal(w http.ResponseWriter, r *http.Request) {
	farmID, err := idParam(r, "farmID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rep, err := h.Svc.HealLifecycle(r.Context(), farmID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// notifications handles GET /farms/{farmID}/notifications?recipient=&unread=1&limit=.
func (h *Handler) notifications(w http.ResponseWriter, r *http.Request) {
	if h.Inbox == nil {
		h.writeError(w, r, errors.Join(lifecycle.ErrNotFound, errors.New("notification inbox is not enabled")))
		return
	}
	farmID, err := idParam(r, "farmID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	recipient, err := optionalID(query.Get(r, "recipient"), "recipient")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f := notificationstore.Filter{UnreadOnly: query.Get(r, "unread") == "1"}
	if !recipient.IsZero() {
		f.RecipientID = &recipient
	}
	if n, err := strconv.Atoi(query.Get(r, "limit")); err == nil && n > 0 {
		f.Limit = int64(n)
	}

	notes, err := h.Inbox.ListForFarm(r.Context(), farmID, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if notes == nil {
		notes = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notes})
}

// markRead handles POST /notifications/{notificationID}/read.
func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	if h.Inbox == nil {
		h.writeError(w, r, errors.Join(lifecycle.ErrNotFound, errors.New("notification inbox is not enabled")))
		return
	}
	id, err := idParam(r, "notificationID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Inbox.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = errors.Join(lifecycle.ErrNotFound, err)
		}
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
