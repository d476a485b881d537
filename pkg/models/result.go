package models

// TestResult is one persisted outcome row. (execution_id, name) is the
// natural key; counter counts how many times that pair has been ingested.
type TestResult struct {
	ID            int64   `json:"id" db:"id"`
	ExecutionID   int64   `json:"execution_id" db:"execution_id"`
	Name          string  `json:"name" db:"name"`
	Platform      string  `json:"platform" db:"platform"`
	Description   *string `json:"description" db:"description"`
	Status        Status  `json:"status" db:"status"`
	ExecutionTime *int64  `json:"execution_time" db:"execution_time"`
	Counter       int64   `json:"counter" db:"counter"`
	Log           *string `json:"log" db:"log"`
	ScreenshotID  *string `json:"screenshot_id" db:"screenshot_id"`
	CreatedBy     *string `json:"created_by" db:"created_by"`
	TimeCreated   int64   `json:"time_created" db:"time_created"`
}

// ResultRecord is the inbound shape accepted by the write pipeline. The
// single-create route takes execution_id from the body; the streaming route
// injects it from the URL path before validation.
type ResultRecord struct {
	ExecutionID   int64   `json:"execution_id" validate:"gt=0"`
	Name          string  `json:"name" validate:"required"`
	Platform      string  `json:"platform"`
	Description   *string `json:"description"`
	Status        Status  `json:"status" validate:"required"`
	ExecutionTime *int64  `json:"execution_time"`
	Log           *string `json:"log"`
	ScreenshotID  *string `json:"screenshot_id"`
	CreatedBy     *string `json:"created_by"`

	// TimeCreated is stamped at acceptance time, never taken from clients.
	TimeCreated int64 `json:"-"`
}
