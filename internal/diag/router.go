// internal/diag/router.go
package diag

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tamzrod/mattebox/internal/assoc"
	"github.com/tamzrod/mattebox/internal/datalog"
	"github.com/tamzrod/mattebox/internal/events"
	"github.com/tamzrod/mattebox/internal/filter"
	"github.com/tamzrod/mattebox/internal/machine"
)

// Controller is the running machine as seen by the diagnostic port.
type Controller interface {
	View() machine.View
	Exec(ctx context.Context, fn func() error) error
}

// Store is the association store surface exposed over HTTP.
type Store interface {
	FindName(uid filter.TagID) (filter.Name, bool, error)
	Associate(uid filter.TagID, name filter.Name) (uint16, error)
	Associations() ([]assoc.Association, error)
	Counts() (names, uids uint16, err error)
	Layout() assoc.Layout
}

// History is the optional datalog history reader.
type History interface {
	Recent(ctx context.Context, limit int) ([]datalog.Record, error)
}

// Deps wires the handlers. Flags and History may be nil.
type Deps struct {
	Controller Controller
	Flags      *events.Flags
	Buttons    *events.Buttons
	Media      *events.MediaDetect
	Store      Store
	History    History
	Log        *zap.Logger
}

// NewRouter creates a chi router with all diagnostic routes mounted.
// Button and media routes act as interrupt producers; store routes run on
// the controller loop through Exec.
func NewRouter(d Deps) chi.Router {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	h := &handler{d: d, log: d.Log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/health/live", h.Live)

	r.Route("/api", func(r chi.Router) {
		r.Get("/section", h.Section)

		// Inputs.
		r.Post("/buttons/{k}", h.PressButton)
		r.Post("/buttons/{k}/down", h.ButtonDown)
		r.Post("/buttons/{k}/up", h.ButtonUp)
		r.Post("/media/{action}", h.Media)

		// Associations.
		r.Get("/associations", h.ListAssociations)
		r.Get("/associations/{uid}", h.GetAssociation)
		r.Put("/associations/{uid}", h.PutAssociation)

		// History.
		r.Get("/history", h.History)
	})

	return r
}
