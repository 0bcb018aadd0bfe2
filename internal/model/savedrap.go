package model

import "encoding/json"

// SavedRapRequest is an opaque JSON archive of the original client
// request, keyed by rap_id, used for telemetry enrichment (spec.md §3).
type SavedRapRequest struct {
	RapID     string
	Original  json.RawMessage
	CreatedAt int64 // s
}
