package models

import (
	"encoding/json"
	"fmt"
)

// Status is the outcome of a single test within an execution. The set is
// closed: P (passed), F (failed), I (ignored).
type Status string

const (
	StatusPassed  Status = "P"
	StatusFailed  Status = "F"
	StatusIgnored Status = "I"
)

// Valid reports whether s is one of the closed status values.
func (s Status) Valid() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusIgnored:
		return true
	}
	return false
}

// UnmarshalJSON rejects any token outside the closed set so an invalid
// status never reaches the write pipeline.
func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v := Status(raw)
	if !v.Valid() {
		return fmt.Errorf("unknown status %q, expected one of %q, %q, %q", raw, StatusPassed, StatusFailed, StatusIgnored)
	}
	*s = v
	return nil
}
