package models

import (
	"time"
)

// FetchResponse is the result of a completed HTTP round-trip, whatever its status
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Latency    time.Duration
}

// OK reports a 2xx status
func (r *FetchResponse) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}
