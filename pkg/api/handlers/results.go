package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"resultdb/pkg/ingest"
	"resultdb/pkg/logger"
	"resultdb/pkg/models"
	"resultdb/pkg/store"
	"resultdb/pkg/utils"
	"resultdb/pkg/validation"
)

// Results serves the single-result write path and all result reads. Writes
// go through the ingest registry; the handler only validates and acks.
type Results struct {
	Store    *store.Store
	Registry *ingest.Registry
	Writer   string
}

func (h *Results) Register(r *mux.Router) {
	r.HandleFunc("/result", h.create).Methods(http.MethodPost)
	r.HandleFunc("/result/{id:[0-9]+}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/result/{id:[0-9]+}/status", h.updateStatus).Methods(http.MethodPatch)
	r.HandleFunc("/execution/{id:[0-9]+}/result", h.listForExecution).Methods(http.MethodGet)
}

func (h *Results) create(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	if len(raw) > maxPayloadBytes {
		utils.JSONError(w, http.StatusRequestEntityTooLarge, "payload exceeds 1 MiB")
		return
	}

	var rec models.ResultRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := validation.Struct(&rec); err != nil {
		writeValidationError(w, err)
		return
	}

	ok, err := h.Store.ExecutionExists(r.Context(), rec.ExecutionID)
	if err != nil {
		logger.Error("execution_lookup_failed", "err", err, "execution_id", rec.ExecutionID)
		utils.JSONError(w, http.StatusInternalServerError, "could not verify execution")
		return
	}
	if !ok {
		utils.JSONFieldError(w, http.StatusBadRequest,
			fmt.Sprintf("execution %d does not exist", rec.ExecutionID), "execution_id")
		return
	}

	rec.TimeCreated = time.Now().Unix()
	if err := h.Registry.Enqueue(r.Context(), h.Writer, &rec, raw); err != nil {
		logger.Error("result_enqueue_failed", "err", err, "writer", h.Writer, "execution_id", rec.ExecutionID)
		utils.JSONError(w, http.StatusInternalServerError, "could not accept result")
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, map[string]string{"status": "delivered"})
}

func (h *Results) get(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	res, err := h.Store.GetResult(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		utils.JSONError(w, http.StatusNotFound, fmt.Sprintf("result %d not found", id))
		return
	}
	if err != nil {
		logger.Error("result_get_failed", "err", err, "id", id)
		utils.JSONError(w, http.StatusInternalServerError, "could not load result")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, res)
}

func (h *Results) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	var in struct {
		Status models.Status `json:"status"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes)).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if in.Status == "" {
		utils.JSONFieldError(w, http.StatusBadRequest, "status is required", "status")
		return
	}

	err := h.Store.UpdateResultStatus(r.Context(), id, in.Status)
	if errors.Is(err, store.ErrNotFound) {
		utils.JSONError(w, http.StatusNotFound, fmt.Sprintf("result %d not found", id))
		return
	}
	if err != nil {
		logger.Error("result_status_update_failed", "err", err, "id", id)
		utils.JSONError(w, http.StatusInternalServerError, "could not update status")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resultPage struct {
	Items   []models.TestResult  `json:"items"`
	Summary *store.ResultSummary `json:"summary,omitempty"`
}

func (h *Results) listForExecution(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	q := r.URL.Query()

	f := store.ResultFilter{Status: q.Get("status"), Platform: q.Get("platform")}
	if f.Status != "" && !models.Status(f.Status).Valid() {
		utils.JSONFieldError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", f.Status), "status")
		return
	}

	ok, err := h.Store.ExecutionExists(r.Context(), id)
	if err != nil {
		logger.Error("execution_lookup_failed", "err", err, "execution_id", id)
		utils.JSONError(w, http.StatusInternalServerError, "could not verify execution")
		return
	}
	if !ok {
		utils.JSONError(w, http.StatusNotFound, fmt.Sprintf("execution %d not found", id))
		return
	}

	items, err := h.Store.ListResults(r.Context(), id, f)
	if err != nil {
		logger.Error("result_list_failed", "err", err, "execution_id", id)
		utils.JSONError(w, http.StatusInternalServerError, "could not list results")
		return
	}
	page := resultPage{Items: items}
	if withSummary, _ := strconv.ParseBool(q.Get("include_summary")); withSummary {
		sum, err := h.Store.SummarizeResults(r.Context(), id, f)
		if err != nil {
			logger.Error("result_summary_failed", "err", err, "execution_id", id)
			utils.JSONError(w, http.StatusInternalServerError, "could not summarize results")
			return
		}
		page.Summary = sum
	}
	_ = utils.JSONWrite(w, http.StatusOK, page)
}
