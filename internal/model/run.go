package model

import "time"

// SolveRun is one persisted encode/solve/decode pass.
type SolveRun struct {
	ID         string      `json:"id"`
	CreatedAt  time.Time   `json:"createdAt"`
	Status     SolveStatus `json:"status"`
	DurationMs int64       `json:"durationMs"`
	Request    *Request    `json:"request,omitempty"`
	SolverData *SolverData `json:"solverData,omitempty"`
	Response   *Response   `json:"response,omitempty"`
	Error      string      `json:"error,omitempty"`
}
