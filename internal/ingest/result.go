package ingest

import "fmt"

// Result is the outcome of ingesting one item: Accepted, Rejected or Failed.
type Result interface {
	ItemName() string
	result()
}

// Accepted means the item's content is stored. Created is false when the
// content was already present; ChunkCount is then zero.
type Accepted struct {
	Name       string
	ID         string
	Created    bool
	ChunkCount int
}

// Rejected means the item was refused and nothing was stored.
// Err wraps apperr.ErrValidationRejected or a *source.TransportError.
type Rejected struct {
	Name   string
	Reason string
	Err    error
}

// Failed means the store could not complete the call.
type Failed struct {
	Name string
	Err  error
}

func (r Accepted) ItemName() string { return r.Name }
func (r Rejected) ItemName() string { return r.Name }
func (r Failed) ItemName() string   { return r.Name }

func (Accepted) result() {}
func (Rejected) result() {}
func (Failed) result()   {}

// Report is the wire form of a Result.
type Report struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	ID      string `json:"id,omitempty"`
	Created *bool  `json:"created,omitempty"`
	// Chunks is the stored chunk count, or "existing" for a duplicate.
	Chunks any    `json:"chunks,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// NewReport converts a Result to its wire form.
func NewReport(r Result) Report {
	switch v := r.(type) {
	case Accepted:
		created := v.Created
		rep := Report{Name: v.Name, OK: true, ID: v.ID, Created: &created, Chunks: "existing"}
		if v.Created {
			rep.Chunks = v.ChunkCount
		}
		return rep
	case Rejected:
		return Report{Name: v.Name, Reason: v.Reason}
	case Failed:
		return Report{Name: v.Name, Reason: errMessage(v.Err)}
	default:
		return Report{Name: r.ItemName(), Reason: "unknown result"}
	}
}

// Reports converts results in order.
func Reports(results []Result) []Report {
	out := make([]Report, len(results))
	for i, r := range results {
		out[i] = NewReport(r)
	}
	return out
}

// Line renders the report as a single status line.
func (r Report) Line() string {
	if r.OK {
		return fmt.Sprintf("✓ %s → indexed (%v chunks)", r.Name, r.Chunks)
	}
	return fmt.Sprintf("✗ %s → %s", r.Name, r.Reason)
}

func errMessage(err error) string {
	if err == nil {
		return "failed"
	}
	return err.Error()
}
