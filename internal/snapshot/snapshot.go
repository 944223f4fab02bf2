// Package snapshot implements the persisted high-water-mark record and
// change-notification stream described in spec.md 4.K: a single object
// at key "snapshot" the segmenter owns writing, everything else reads.
package snapshot

import (
	"encoding/json"
	"fmt"

	"dnaindex/internal/chainmodel"
)

// Key is the fixed object-store path the snapshot record lives at.
const Key = "snapshot"

// wireSnapshot is the JSON shape of a persisted snapshot, matching the
// {revision, first_block, segmented?, grouped?, segment_options} record
// spec.md 4.K names. JSON mirrors how chainmodel.Cursor already encodes
// itself for the external stream contracts (spec.md 6.3) — there is no
// reason for this small record to use a different wire format.
type wireSnapshot struct {
	Revision          uint64                   `json:"revision"`
	FirstBlock        uint64                   `json:"firstBlock"`
	Finalized         uint64                   `json:"finalized"`
	Segmented         *uint64                  `json:"segmented,omitempty"`
	Grouped           *uint64                  `json:"grouped,omitempty"`
	PendingGeneration *uint64                  `json:"pendingGeneration,omitempty"`
	SegmentOptions    chainmodel.SegmentOptions `json:"segmentOptions"`
}

// Encode renders a snapshot as its persisted JSON form.
func Encode(s chainmodel.Snapshot) ([]byte, error) {
	data, err := json.Marshal(wireSnapshot{
		Revision:          s.Revision,
		FirstBlock:        s.FirstBlock,
		Finalized:         s.Finalized,
		Segmented:         s.Segmented,
		Grouped:           s.Grouped,
		PendingGeneration: s.PendingGeneration,
		SegmentOptions:    s.SegmentOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return data, nil
}

// Decode parses a persisted snapshot record.
func Decode(data []byte) (chainmodel.Snapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return chainmodel.Snapshot{}, fmt.Errorf("snapshot: decode: %w", err)
	}
	return chainmodel.Snapshot{
		Revision:          w.Revision,
		FirstBlock:        w.FirstBlock,
		Finalized:         w.Finalized,
		Segmented:         w.Segmented,
		Grouped:           w.Grouped,
		PendingGeneration: w.PendingGeneration,
		SegmentOptions:    w.SegmentOptions,
	}, nil
}
