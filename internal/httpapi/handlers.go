package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"idemat/internal"
	"idemat/internal/report"
	"idemat/internal/selection"
	"idemat/internal/session"
)

type pickersView struct {
	Sheet      string        `json:"sheet"`
	Picks      session.Picks `json:"picks"`
	Categories []string      `json:"categories"`
	Processes  []string      `json:"processes"`
	Units      []string      `json:"units"`
}

type impactCategoriesView struct {
	Options []string `json:"options"`
	Chosen  []string `json:"chosen"`
}

func (h *Handler) listSheets(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sheets, err := h.sess.Sheets()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sheets": sheets, "active": h.sess.Sheet()})
}

func (h *Handler) selectSheet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.sess.SelectSheet(body.Name); err != nil {
		h.fail(w, r, err)
		return
	}
	if h.prefs != nil {
		if err := h.prefs.SetMetadata(LastSheetKey, body.Name); err != nil {
			h.log.Warn("save active sheet", "err", err)
		}
	}
	h.writePickers(w, r)
}

func (h *Handler) getPickers(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writePickers(w, r)
}

func (h *Handler) setPicker(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if !decode(w, r, &body) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	switch level := chi.URLParam(r, "level"); level {
	case "category":
		err = h.sess.SelectCategory(body.Value)
	case "process":
		err = h.sess.SelectProcess(body.Value)
	case "unit":
		err = h.sess.SelectUnit(body.Value)
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown picker %q", level))
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writePickers(w, r)
}

// writePickers renders the picker state; callers hold h.mu.
func (h *Handler) writePickers(w http.ResponseWriter, r *http.Request) {
	view := pickersView{Sheet: h.sess.Sheet(), Picks: h.sess.Picks()}
	var err error
	if view.Categories, err = h.sess.Categories(); err != nil {
		h.fail(w, r, err)
		return
	}
	if view.Processes, err = h.sess.Processes(); err != nil {
		h.fail(w, r, err)
		return
	}
	if view.Units, err = h.sess.Units(); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) getImpactCategories(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	options, err := h.sess.ImpactCategoryOptions()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, impactCategoriesView{Options: options, Chosen: h.sess.ImpactCategories()})
}

func (h *Handler) setImpactCategories(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Categories []string `json:"categories"`
	}
	if !decode(w, r, &body) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.sess.ChooseImpactCategories(body.Categories)
	options, err := h.sess.ImpactCategoryOptions()
	if err != nil {
		options = []string{}
	}
	writeJSON(w, http.StatusOK, impactCategoriesView{Options: options, Chosen: h.sess.ImpactCategories()})
}

func (h *Handler) listSelections(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	writeJSON(w, http.StatusOK, h.sess.Selections())
}

// addSelection appends the current picks. An optional body sets the
// quantity in the same step.
func (h *Handler) addSelection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity *string `json:"quantity"`
	}
	if r.ContentLength != 0 && !decode(w, r, &body) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rec, err := h.sess.AddSelection()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if body.Quantity != nil {
		if err := h.sess.SetQuantityByID(rec.ID, *body.Quantity); err != nil {
			h.fail(w, r, err)
			return
		}
		rec.Quantity = *body.Quantity
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) updateSelection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity string `json:"quantity"`
	}
	if !decode(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.sess.SetQuantityByID(id, body.Quantity); err != nil {
		h.fail(w, r, err)
		return
	}
	for _, rec := range h.sess.Selections() {
		if rec.ID == id {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	writeError(w, http.StatusNotFound, "selection vanished")
}

func (h *Handler) deleteSelection(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, err := h.sess.RemoveSelectionByID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) clearSelections(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sess.ClearSelections()
	w.WriteHeader(http.StatusNoContent)
}

// importBill appends the records of a CSV bill sent as the request body.
func (h *Handler) importBill(w http.ResponseWriter, r *http.Request) {
	records, err := selection.ReadBill(r.Body)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	added, err := h.sess.ImportSelections(records)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (h *Handler) exportBill(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	records := h.sess.Selections()
	h.mu.Unlock()

	w.Header().Set("Content-Type", "text/csv")
	if err := selection.WriteBill(w, records); err != nil {
		h.log.Warn("write bill", "err", err)
	}
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	result, err := h.sess.Calculate()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	result, err := h.sess.Totals()
	selections := h.sess.Selections()
	h.mu.Unlock()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteTotalsXLSX(&buf, result, selections); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="idemat-totals.xlsx"`)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusOK, []internal.RunRecord{})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := h.runs.ListRuns(limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "requestId", middleware.GetReqID(r.Context()), "path", r.URL.Path, "err", err)
	} else {
		h.log.Debug("request rejected", "requestId", middleware.GetReqID(r.Context()), "path", r.URL.Path, "err", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, internal.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, internal.ErrMalformedSheet),
		errors.Is(err, internal.ErrColumnNotFound),
		errors.Is(err, internal.ErrInvalidCoefficient):
		return http.StatusUnprocessableEntity
	case errors.Is(err, internal.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, internal.ErrProcessNotFound):
		return http.StatusConflict
	case errors.Is(err, internal.ErrInvalidChoice),
		errors.Is(err, internal.ErrIncompleteSelection):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
