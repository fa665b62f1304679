package model

import "time"

// Response is the envelope every sherpa endpoint returns. Study, trial,
// observation, and worker payloads ride in Data; list endpoints add
// Pagination; error responses carry Error and a null Data.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination accompanies study and trial listings.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListOptions configures study and trial list queries.
type ListOptions struct {
	Limit  int
	Offset int
	State  string // Optional state filter (e.g. ACTIVE, COMPLETED)
}

// DefaultListOptions returns the page size used when the query string
// carries no limit.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 20, Offset: 0}
}

// Clamp enforces limits (max 100, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}
