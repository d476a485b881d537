package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"resultdb/pkg/logger"
	"resultdb/pkg/models"
	"resultdb/pkg/store"
	"resultdb/pkg/suggest"
	"resultdb/pkg/utils"
	"resultdb/pkg/validation"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Executions serves execution creation, listing and name suggestions.
type Executions struct {
	Store *store.Store
	Trie  *suggest.Trie // nil when suggestions are disabled
}

// Register mounts the execution routes. The suggest route is only mounted
// when a trie is present, so a disabled feature 404s like any unknown path.
func (h *Executions) Register(r *mux.Router) {
	r.HandleFunc("/execution", h.create).Methods(http.MethodPost)
	r.HandleFunc("/executions", h.list).Methods(http.MethodGet)
	if h.Trie != nil {
		r.HandleFunc("/executions/suggest", h.suggest).Methods(http.MethodGet)
	}
}

func (h *Executions) create(w http.ResponseWriter, r *http.Request) {
	var in models.CreateExecution
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes)).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := validation.Struct(&in); err != nil {
		writeValidationError(w, err)
		return
	}
	exec, err := h.Store.CreateExecution(r.Context(), in)
	if err != nil {
		logger.Error("execution_create_failed", "err", err)
		utils.JSONError(w, http.StatusInternalServerError, "could not create execution")
		return
	}
	if h.Trie != nil {
		h.Trie.Insert(exec.Name, models.SuggestedItem{ID: strconv.FormatInt(exec.ID, 10), Name: exec.Name})
	}
	logger.Info("execution_created", "id", exec.ID, "name", exec.Name)
	_ = utils.JSONWrite(w, http.StatusCreated, exec)
}

type executionPage struct {
	Total   int64              `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
	HasNext bool               `json:"has_next"`
	Items   []models.Execution `json:"items"`
}

func (h *Executions) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := queryInt(q.Get("limit"), defaultPageSize)
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := queryInt(q.Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	items, total, err := h.Store.ListExecutions(r.Context(), store.ExecutionFilter{
		CreatedBy: q.Get("created_by"),
		Name:      q.Get("name"),
		TagPrefix: q.Get("tag"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		logger.Error("execution_list_failed", "err", err)
		utils.JSONError(w, http.StatusInternalServerError, "could not list executions")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, executionPage{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasNext: int64(offset+len(items)) < total,
		Items:   items,
	})
}

type suggestPage struct {
	Query       string                 `json:"query"`
	Suggestions []models.SuggestedItem `json:"suggestions"`
	Limit       int                    `json:"limit"`
}

func (h *Executions) suggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("query")
	_ = utils.JSONWrite(w, http.StatusOK, suggestPage{
		Query:       q,
		Suggestions: h.Trie.Search(q),
		Limit:       h.Trie.Limit(),
	})
}
