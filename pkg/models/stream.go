package models

// FailedItem describes one rejected line from an NDJSON ingest stream.
// RawPayload carries the offending line verbatim so callers can fix and
// resubmit it.
type FailedItem struct {
	TestName   string `json:"test_name"`
	Error      string `json:"error"`
	RawPayload string `json:"raw_payload"`
}

// StreamReport is the closing summary of a streaming ingest request.
// Status is C when every line was accepted, P when some lines were
// accepted, F when none were.
type StreamReport struct {
	Status      string       `json:"status"`
	ExecutionID int64        `json:"execution_id"`
	Received    int          `json:"received"`
	Inserted    int          `json:"inserted"`
	Failed      int          `json:"failed"`
	FailedItems []FailedItem `json:"failed_items,omitempty"`
}
