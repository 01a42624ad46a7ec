package persistence

import (
	"encoding/json"

	"github.com/petrijr/grafo/pkg/api"
)

// State snapshots are stored as JSON rather than gob: snapshot payloads are
// maps of plain values, and JSON keeps the rows inspectable with any sqlite
// client. Values that survive a round trip come back as JSON's types
// (float64 numbers, []any slices), which is acceptable for audit records.

// EncodeState serializes a snapshot. A nil state encodes to nil, which
// stores as NULL and marks a failed invocation's missing output.
func EncodeState(s *api.State) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// DecodeState deserializes a snapshot produced by EncodeState.
func DecodeState(data []byte) (*api.State, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var s api.State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
