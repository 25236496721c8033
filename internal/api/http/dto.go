package http

import (
	"time"

	"aci-dispatcher/internal/dispatch"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	State          string            `json:"state"`
	Queue          string            `json:"queue"`
	Cycles         uint64            `json:"cycles"`
	Received       uint64            `json:"received"`
	Dispatched     uint64            `json:"dispatched"`
	LastUnit       string            `json:"last_unit,omitempty"`
	LastDispatchAt *time.Time        `json:"last_dispatch_at,omitempty"`
	Errors         map[string]uint64 `json:"errors"`
}

// NewStatusResponse converts a loop snapshot to its wire form.
func NewStatusResponse(queue string, s dispatch.Stats) StatusResponse {
	resp := StatusResponse{
		State:      string(s.State),
		Queue:      queue,
		Cycles:     s.Cycles,
		Received:   s.Received,
		Dispatched: s.Dispatched,
		LastUnit:   s.LastUnit,
		Errors:     make(map[string]uint64, len(s.Errors)),
	}
	if !s.LastDispatchAt.IsZero() {
		t := s.LastDispatchAt
		resp.LastDispatchAt = &t
	}
	for k, v := range s.Errors {
		resp.Errors[string(k)] = v
	}
	return resp
}
