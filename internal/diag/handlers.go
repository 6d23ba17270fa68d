// internal/diag/handlers.go
package diag

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tamzrod/mattebox/internal/assoc"
	"github.com/tamzrod/mattebox/internal/filter"
)

type handler struct {
	d   Deps
	log *zap.Logger
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("diag request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}

// Live handles GET /health/live.
func (h *handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Section handles GET /api/section.
func (h *handler) Section(w http.ResponseWriter, _ *http.Request) {
	out := toSectionDTO(h.d.Controller.View())
	if h.d.Flags != nil {
		if pending := h.d.Flags.Peek(); pending != 0 {
			out.PendingEvents = pending.String()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// PressButton handles POST /api/buttons/{k}?press=short|long.
// The press is raised already classified.
func (h *handler) PressButton(w http.ResponseWriter, r *http.Request) {
	k, ok := h.button(w, r)
	if !ok {
		return
	}

	var long bool
	switch r.URL.Query().Get("press") {
	case "", "short":
	case "long":
		long = true
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("press must be short or long"))
		return
	}

	bit := h.d.Buttons.Tap(k, long)
	writeJSON(w, http.StatusAccepted, map[string]string{"raised": bit.String()})
}

// ButtonDown handles POST /api/buttons/{k}/down: the leading edge.
func (h *handler) ButtonDown(w http.ResponseWriter, r *http.Request) {
	k, ok := h.button(w, r)
	if !ok {
		return
	}
	h.d.Buttons.Press(k)
	writeJSON(w, http.StatusAccepted, map[string]uint8{"down": k})
}

// ButtonUp handles POST /api/buttons/{k}/up: the trailing edge. The hold
// time since the matching down edge decides short or long.
func (h *handler) ButtonUp(w http.ResponseWriter, r *http.Request) {
	k, ok := h.button(w, r)
	if !ok {
		return
	}
	bit := h.d.Buttons.Release(k)
	if bit == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"raised": bit.String()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"raised": bit.String()})
}

// button parses {k} and checks a classifier is wired.
func (h *handler) button(w http.ResponseWriter, r *http.Request) (uint8, bool) {
	k, err := strconv.ParseUint(chi.URLParam(r, "k"), 10, 8)
	if err != nil || !filter.ValidPosition(uint8(k)) {
		writeJSON(w, http.StatusBadRequest, errorBody("button must be 1..3"))
		return 0, false
	}
	if h.d.Buttons == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("buttons not available"))
		return 0, false
	}
	return uint8(k), true
}

// Media handles POST /api/media/{insert|remove}.
func (h *handler) Media(w http.ResponseWriter, r *http.Request) {
	var present bool
	switch chi.URLParam(r, "action") {
	case "insert":
		present = true
	case "remove":
	default:
		writeJSON(w, http.StatusNotFound, errorBody("action must be insert or remove"))
		return
	}

	if h.d.Media == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("media detect not available"))
		return
	}
	h.d.Media.Edge(present)
	writeJSON(w, http.StatusAccepted, map[string]bool{"present": present})
}

// ListAssociations handles GET /api/associations.
func (h *handler) ListAssociations(w http.ResponseWriter, r *http.Request) {
	var (
		list   []assoc.Association
		counts storeCounts
	)
	err := h.d.Controller.Exec(r.Context(), func() error {
		var err error
		if list, err = h.d.Store.Associations(); err != nil {
			return err
		}
		counts.Names, counts.UIDs, err = h.d.Store.Counts()
		return err
	})
	if err != nil {
		h.storeError(w, err)
		return
	}

	layout := h.d.Store.Layout()
	counts.NameCapacity = layout.NameCapacity
	counts.UIDCapacity = layout.UIDCapacity

	items := make([]associationDTO, 0, len(list))
	for _, a := range list {
		items = append(items, toAssociationDTO(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"associations": items,
		"counts":       counts,
	})
}

// GetAssociation handles GET /api/associations/{uid}.
func (h *handler) GetAssociation(w http.ResponseWriter, r *http.Request) {
	uid, err := filter.ParseTagID(chi.URLParam(r, "uid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	var (
		name  filter.Name
		found bool
	)
	err = h.d.Controller.Exec(r.Context(), func() error {
		var err error
		name, found, err = h.d.Store.FindName(uid)
		return err
	})
	if err != nil {
		h.storeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uid": uid.String(), "name": name.String()})
}

// PutAssociation handles PUT /api/associations/{uid}.
func (h *handler) PutAssociation(w http.ResponseWriter, r *http.Request) {
	uid, err := filter.ParseTagID(chi.URLParam(r, "uid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	var req associateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	name, err := filter.ParseName(req.Name)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	var idx uint16
	err = h.d.Controller.Exec(r.Context(), func() error {
		var err error
		idx, err = h.d.Store.Associate(uid, name)
		return err
	})
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.log.Info("association stored", zap.Stringer("uid", uid), zap.Stringer("name", name))
	writeJSON(w, http.StatusOK, associationDTO{UID: uid.String(), Name: name.String(), NameIndex: idx})
}

// History handles GET /api/history?limit=N.
func (h *handler) History(w http.ResponseWriter, r *http.Request) {
	if h.d.History == nil {
		writeJSON(w, http.StatusNotFound, errorBody("history disabled"))
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be a positive integer"))
			return
		}
		limit = n
	}

	recs, err := h.d.History.Recent(r.Context(), limit)
	if err != nil {
		h.log.Warn("history query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

func (h *handler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assoc.ErrInvalidUID), errors.Is(err, assoc.ErrEmptyName):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, assoc.ErrCapacityExceeded):
		writeJSON(w, http.StatusInsufficientStorage, errorBody(err.Error()))
	case errors.Is(err, assoc.ErrCorrupt):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	default:
		h.log.Warn("store request failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorBody("store unavailable"))
	}
}
