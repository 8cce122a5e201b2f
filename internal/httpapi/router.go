// Package httpapi exposes a calculation session over JSON.
package httpapi

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"idemat/internal"
	"idemat/internal/logging"
	"idemat/internal/session"
)

// RunStore lists logged calculations.
type RunStore interface {
	ListRuns(limit int) ([]internal.RunRecord, error)
}

// Preferences keeps small values across restarts.
type Preferences interface {
	SetMetadata(key, value string) error
}

// LastSheetKey is the preference under which the active sheet is saved.
const LastSheetKey = "session.sheet"

// Handler groups dependencies for route handlers. All session access goes
// through mu: the server handles one action at a time.
type Handler struct {
	mu    sync.Mutex
	sess  *session.Session
	runs  RunStore
	prefs Preferences
	log   *slog.Logger
}

// NewRouter wires the routes; runs and prefs may be nil.
func NewRouter(sess *session.Session, runs RunStore, prefs Preferences, log *slog.Logger) http.Handler {
	if log == nil {
		log = logging.Discard()
	}
	h := &Handler{sess: sess, runs: runs, prefs: prefs, log: log}
	r := chi.NewRouter()

	r.Get("/health", h.health)

	r.Get("/sheets", h.listSheets)
	r.Put("/sheet", h.selectSheet)

	r.Get("/pickers", h.getPickers)
	r.Put("/pickers/{level}", h.setPicker)

	r.Get("/impact-categories", h.getImpactCategories)
	r.Put("/impact-categories", h.setImpactCategories)

	r.Route("/selections", func(r chi.Router) {
		r.Get("/", h.listSelections)
		r.Post("/", h.addSelection)
		r.Delete("/", h.clearSelections)
		r.Post("/import", h.importBill)
		r.Get("/bill.csv", h.exportBill)
		r.Patch("/{id}", h.updateSelection)
		r.Delete("/{id}", h.deleteSelection)
	})

	r.Post("/calculate", h.calculate)
	r.Get("/export.xlsx", h.export)
	r.Get("/runs", h.listRuns)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
