package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/geofilter"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/normalize"
)

type Phase string

const (
	Idle           Phase = "idle"
	Fetching       Phase = "fetching"
	Normalizing    Phase = "normalizing"
	Filtering      Phase = "filtering"
	Deduplicating  Phase = "deduplicating"
	Committed      Phase = "committed"
	PartialFailure Phase = "partial_failure"
	Failed         Phase = "failed"
)

// Terminal reports whether p ends a cycle.
func (p Phase) Terminal() bool {
	return p == Committed || p == PartialFailure || p == Failed
}

// ConnectorFailure records one connector excluded from a cycle.
type ConnectorFailure struct {
	Source string
	Err    error
}

func (f *ConnectorFailure) Error() string { return fmt.Sprintf("connector %s: %v", f.Source, f.Err) }
func (f *ConnectorFailure) Unwrap() error { return f.Err }

func (f ConnectorFailure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Source string `json:"source"`
		Error  string `json:"error"`
	}{f.Source, msg})
}

// Report is the outcome of one cycle.
type Report struct {
	CycleID     string                   `json:"cycle_id"`
	Country     string                   `json:"country"`
	State       Phase                    `json:"state"`
	StartedAt   time.Time                `json:"started_at"`
	FinishedAt  time.Time                `json:"finished_at"`
	Fetched     int                      `json:"fetched"`
	Normalized  int                      `json:"normalized"`
	Dropped     map[normalize.Reason]int `json:"dropped,omitempty"`
	FilteredOut map[geofilter.Reason]int `json:"filtered_out,omitempty"`
	Kept        int                      `json:"kept"`
	Inserted    int                      `json:"inserted"`
	Merged      int                      `json:"merged"`
	Ambiguous   int                      `json:"ambiguous"`
	Failures    []ConnectorFailure       `json:"failures,omitempty"`
	Cancelled   bool                     `json:"cancelled,omitempty"`
	Err         string                   `json:"error,omitempty"`
}

func (r Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

func (r Report) DroppedTotal() int {
	n := 0
	for _, v := range r.Dropped {
		n += v
	}
	return n
}

func (r Report) FilteredTotal() int {
	n := 0
	for _, v := range r.FilteredOut {
		n += v
	}
	return n
}
