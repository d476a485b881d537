package models

// Execution is a logical run of a test suite; the parent scope for test
// results. Rows are never mutated after creation (retention may delete
// them).
type Execution struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Tag         *string `json:"tag" db:"tag"`
	CreatedBy   *string `json:"created_by" db:"created_by"`
	TimeCreated int64   `json:"time_created" db:"time_created"`
}

// CreateExecution is the inbound payload for POST /api/execution.
// TimeCreated defaults to the server clock when omitted.
type CreateExecution struct {
	Name        string  `json:"name" validate:"required"`
	Tag         *string `json:"tag"`
	CreatedBy   *string `json:"created_by"`
	TimeCreated int64   `json:"time_created"`
}

// SuggestedItem is the payload carried by the execution-name suggestion
// trie: the execution id (stringified) and its display name.
type SuggestedItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
