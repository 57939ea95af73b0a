package sse

import (
	"strconv"

	"github.com/starford/codex/internal/ingest"
)

// ObserveIngest publishes the event matching an ingest result.
// It has the shape expected by ingest.WithObserver.
func (b *Broker) ObserveIngest(r ingest.Result) {
	switch v := r.(type) {
	case ingest.Accepted:
		data := map[string]string{"id": v.ID, "name": v.Name}
		if v.Created {
			data["chunks"] = strconv.Itoa(v.ChunkCount)
			b.PublishDocumentEvent(KindCreated, data)
			return
		}
		b.PublishDocumentEvent(KindExisting, data)
	case ingest.Rejected:
		b.PublishDocumentEvent(KindRejected, map[string]string{"name": v.Name, "reason": v.Reason})
	}
}
