// Package fetcher queries the parcel lookup service by coordinate.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
)

// Fetcher looks up the parcels covering a coordinate.
type Fetcher interface {
	// Lookup issues one request for (lat, lng). A body that is not a JSON
	// object yields an empty Response, not an error.
	Lookup(ctx context.Context, lat, lng float64) (Response, error)
}

// Response is the top-level JSON object returned by the lookup service.
type Response map[string]json.RawMessage

var emptyArray = json.RawMessage("[]")

// Parcels returns the raw "parcels" array, or an empty array when the key
// is missing, null, or holds anything other than an array.
func (r Response) Parcels() json.RawMessage {
	raw, ok := r["parcels"]
	if !ok {
		return emptyArray
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return emptyArray
	}
	return trimmed
}

// ParcelCount returns the number of parcels in the payload, 0 if it is not an array.
func (r Response) ParcelCount() int {
	var items []json.RawMessage
	if err := json.Unmarshal(r.Parcels(), &items); err != nil {
		return 0
	}
	return len(items)
}
