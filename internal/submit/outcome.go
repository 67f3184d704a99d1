// Package submit performs the actual step submission: one HTTP attempt with
// outcome classification, and a confidence-scored retry loop on top of it.
package submit

import (
	"encoding/json"
	"fmt"
)

// Status is the three-way trustworthiness classification of one attempt.
type Status int

const (
	// StatusFailed: transport error, validation failure or explicit
	// rejection by the endpoint.
	StatusFailed Status = iota
	// StatusSuspicious: transport succeeded but the response is absent,
	// malformed or inconclusive.
	StatusSuspicious
	// StatusConfirmed: the response unambiguously indicates acceptance.
	StatusConfirmed
)

func (s Status) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusSuspicious:
		return "suspicious"
	default:
		return "failed"
	}
}

// Reply is the structured response the endpoint is supposed to return.
// Fields beyond code/data are kept loose; the endpoint is not consistent.
type Reply struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Msg     string          `json:"msg"`
	Success *bool           `json:"success"`
}

// DataText renders the data field for humans: unquoted when it is a JSON
// string, raw otherwise.
func (r *Reply) DataText() string {
	if r == nil || len(r.Data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Data, &s); err == nil {
		return s
	}
	return string(r.Data)
}

// Outcome records everything known about a single submission attempt.
type Outcome struct {
	Status     Status
	HTTPStatus int    // 0 when no response was received
	Body       string // raw response body, possibly truncated
	Reply      *Reply // decoded response, nil when undecodable
	Message    string
}

func failedf(format string, args ...any) Outcome {
	return Outcome{Status: StatusFailed, Message: fmt.Sprintf(format, args...)}
}
