package model

import (
	"encoding/json"
	"fmt"
)

// SolveStatus is the closed set of outcomes reported by the routing engine.
type SolveStatus int

const (
	StatusNotSolved SolveStatus = iota
	StatusSuccess
	StatusPartialSuccess
	StatusFail
	StatusTimeout
	StatusInvalid
	StatusInfeasible
	StatusOptimal
	StatusUnknown SolveStatus = -1
)

var statusNames = map[SolveStatus]string{
	StatusNotSolved:      "ROUTING_NOT_SOLVED",
	StatusSuccess:        "ROUTING_SUCCESS",
	StatusPartialSuccess: "ROUTING_PARTIAL_SUCCESS_LOCAL_OPTIMUM_NOT_REACHED",
	StatusFail:           "ROUTING_FAIL",
	StatusTimeout:        "ROUTING_FAIL_TIMEOUT",
	StatusInvalid:        "ROUTING_INVALID",
	StatusInfeasible:     "ROUTING_INFEASIBLE",
	StatusOptimal:        "ROUTING_OPTIMAL",
	StatusUnknown:        "UNKNOWN_STATUS",
}

// StatusFromCode maps an engine status code. Codes outside 0..7 map to StatusUnknown.
func StatusFromCode(code int) SolveStatus {
	s := SolveStatus(code)
	if code < int(StatusNotSolved) || code > int(StatusOptimal) {
		return StatusUnknown
	}
	return s
}

// Code is the engine status code, -1 for StatusUnknown.
func (s SolveStatus) Code() int { return int(s) }

func (s SolveStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return statusNames[StatusUnknown]
}

// Solved reports whether the status comes with an assignment.
func (s SolveStatus) Solved() bool {
	return s == StatusSuccess || s == StatusPartialSuccess || s == StatusOptimal
}

func (s SolveStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SolveStatus) UnmarshalJSON(b []byte) error {
	var code int
	if err := json.Unmarshal(b, &code); err == nil {
		*s = StatusFromCode(code)
		return nil
	}
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	for k, v := range statusNames {
		if v == name {
			*s = k
			return nil
		}
	}
	*s = StatusUnknown
	return nil
}
