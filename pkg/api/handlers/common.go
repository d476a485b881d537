package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"resultdb/pkg/utils"
	"resultdb/pkg/validation"
)

// maxPayloadBytes bounds a single result document, whether it arrives as a
// request body or as one NDJSON line.
const maxPayloadBytes = 1 << 20

// pathID reads the {id} route variable. Routes constrain it to digits, so
// a parse failure can only mean overflow, which no row id will match.
func pathID(r *http.Request) int64 {
	n, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return n
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeValidationError(w http.ResponseWriter, err error) {
	var fe *validation.FieldError
	if errors.As(err, &fe) {
		utils.JSONFieldError(w, http.StatusBadRequest, fe.Message, fe.Field)
		return
	}
	utils.JSONError(w, http.StatusBadRequest, err.Error())
}
