package handlers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"resultdb/pkg/ingest"
	"resultdb/pkg/logger"
	"resultdb/pkg/models"
	"resultdb/pkg/utils"
	"resultdb/pkg/validation"
)

// maxFailedItems bounds the failed_items list in the closing report so a
// stream of garbage cannot balloon the response.
const maxFailedItems = 100

// Stream ingests newline-delimited JSON results for one execution. Each
// line is parsed and validated independently; a bad line is reported and
// skipped without aborting the stream.
type Stream struct {
	Registry *ingest.Registry
	Writer   string
}

func (h *Stream) Register(r *mux.Router) {
	r.HandleFunc("/executions/{id:[0-9]+}/result/stream", h.ingest).Methods(http.MethodPost)
}

func (h *Stream) ingest(w http.ResponseWriter, r *http.Request) {
	executionID := pathID(r)
	now := time.Now().Unix()
	report := models.StreamReport{ExecutionID: executionID}

	sc := bufio.NewScanner(r.Body)
	sc.Buffer(make([]byte, 64*1024), maxPayloadBytes)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		report.Received++
		// The scanner reuses its buffer across lines.
		raw := append([]byte(nil), line...)

		var rec models.ResultRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			reject(&report, rec.Name, err.Error(), raw)
			continue
		}
		// The body's execution_id, if any, is ignored: the path owns it.
		rec.ExecutionID = executionID
		rec.TimeCreated = now
		if err := validation.Struct(&rec); err != nil {
			reject(&report, rec.Name, err.Error(), raw)
			continue
		}
		if err := h.Registry.Enqueue(r.Context(), h.Writer, &rec, raw); err != nil {
			reject(&report, rec.Name, "enqueue failed: "+err.Error(), raw)
			continue
		}
		report.Inserted++
	}
	if err := sc.Err(); err != nil {
		logger.Warn("stream_read_aborted", "err", err, "execution_id", executionID, "received", report.Received)
		if report.Received == 0 {
			utils.JSONError(w, http.StatusBadRequest, "could not read request body: "+err.Error())
			return
		}
	}

	switch {
	case report.Failed == 0:
		report.Status = "C"
	case report.Inserted > 0:
		report.Status = "P"
	default:
		report.Status = "F"
	}
	logger.Info("stream_ingest_done",
		"execution_id", executionID,
		"received", report.Received,
		"inserted", report.Inserted,
		"failed", report.Failed,
		"status", report.Status)
	_ = utils.JSONWrite(w, http.StatusOK, report)
}

func reject(rep *models.StreamReport, name, msg string, raw []byte) {
	rep.Failed++
	if len(rep.FailedItems) >= maxFailedItems {
		return
	}
	rep.FailedItems = append(rep.FailedItems, models.FailedItem{
		TestName:   name,
		Error:      msg,
		RawPayload: string(raw),
	})
}
