// internal/app/features/workers/handler.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/fermehub/internal/app/lifecycle"
	notificationstore "github.com/dalemusser/fermehub/internal/app/store/notifications"
	workerstore "github.com/dalemusser/fermehub/internal/app/store/workers"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ActorHeader names the caller of a mutating request. Authentication sits in
// front of this service; the header carries the authenticated identity.
const ActorHeader = "X-Fermehub-Actor"

// RequestIDHeader echoes (or assigns) a request id.
const RequestIDHeader = "X-Request-ID"

// Pager serves keyset pages of a farm's workers. Only the Mongo backend has one.
type Pager interface {
	ListPage(ctx context.Context, farmID primitive.ObjectID, status, before, after string, size int) (workerstore.Page, error)
}

// Inbox exposes stored notifications. Only the Mongo backend has one.
type Inbox interface {
	ListForFarm(ctx context.Context, farmID primitive.ObjectID, f notificationstore.Filter) ([]models.Notification, error)
	MarkRead(ctx context.Context, id primitive.ObjectID) error
}

// Handler exposes the lifecycle operations as JSON endpoints.
type Handler struct {
	Svc   *lifecycle.Service
	Pager Pager
	Inbox Inbox
	Log   *zap.Logger
}

// NewHandler creates the handler. pager and inbox may be nil.
func NewHandler(svc *lifecycle.Service, pager Pager, inbox Inbox, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Pager: pager, Inbox: inbox, Log: logger}
}

type ctxKey int

const requestIDKey ctxKey = iota

// requestID tags each request with an id, reusing the caller's when given.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}

/* ------------------------------ responses ------------------------------ */

type errorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code"`
	RequestID string         `json:"request_id,omitempty"`
	Existing  *models.Worker `json:"existing,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors to HTTP statuses. Unknown errors are logged
// and reported as 500 without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error(), RequestID: requestIDFrom(r)}
	status := http.StatusInternalServerError

	var dup *lifecycle.DuplicateError
	switch {
	case errors.As(err, &dup):
		status, resp.Code = http.StatusConflict, "duplicate"
		existing := dup.Existing
		resp.Existing = &existing
	case errors.Is(err, lifecycle.ErrInvalidRequest):
		status, resp.Code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		status, resp.Code = http.StatusBadRequest, "invalid_transition"
	case errors.Is(err, lifecycle.ErrNotFound):
		status, resp.Code = http.StatusNotFound, "not_found"
	default:
		h.Log.Error("worker request failed",
			zap.String("request_id", resp.RequestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		resp.Code = "internal"
		resp.Error = "an internal error occurred"
	}
	writeJSON(w, status, resp)
}

// resultStatus: created 201, pending 202, everything else 200.
func resultStatus(res lifecycle.Result, created bool) int {
	switch {
	case res.Pending:
		return http.StatusAccepted
	case created && res.Worker != nil:
		return http.StatusCreated
	}
	return http.StatusOK
}

/* ------------------------------- inputs ------------------------------- */

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", lifecycle.ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func actorOf(r *http.Request) (string, error) {
	a := strings.TrimSpace(r.Header.Get(ActorHeader))
	if a == "" {
		return "", badRequest("missing %s header", ActorHeader)
	}
	return a, nil
}

// decode reads a JSON body of at most limit bytes.
func decode(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("malformed JSON body: %v", err)
	}
	return nil
}

func idParam(r *http.Request, name string) (primitive.ObjectID, error) {
	return parseID(chi.URLParam(r, name), name)
}

func parseID(raw, field string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, badRequest("%s is not a valid id", field)
	}
	return id, nil
}

func optionalID(raw, field string) (primitive.ObjectID, error) {
	if strings.TrimSpace(raw) == "" {
		return primitive.NilObjectID, nil
	}
	return parseID(raw, field)
}

// parseDate accepts a calendar day (2006-01-02) or an RFC 3339 timestamp.
func parseDate(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, badRequest("%s must be a date like 2024-01-31", field)
}

func dateOrZero(raw, field string) (time.Time, error) {
	t, err := parseDate(raw, field)
	if err != nil || t == nil {
		return time.Time{}, err
	}
	return *t, nil
}
