package chainmodel

// SegmentOptions fixes the geometry of a deployment for its lifetime
// (spec.md 3.2). SegmentSize and GroupSize are block/segment counts
// respectively; StartingBlock is the first block ever ingested.
type SegmentOptions struct {
	StartingBlock uint64
	SegmentSize   uint64
	GroupSize     uint64
}

// GroupBlockSize is the number of blocks spanned by one index group.
func (o SegmentOptions) GroupBlockSize() uint64 { return o.SegmentSize * o.GroupSize }

// SegmentStartBlock returns the first block of the segment containing n.
func (o SegmentOptions) SegmentStartBlock(n uint64) uint64 {
	offset := (n - o.StartingBlock) / o.SegmentSize * o.SegmentSize
	return o.StartingBlock + offset
}

// SegmentEndBlock returns the last block (inclusive) of the segment
// containing n.
func (o SegmentOptions) SegmentEndBlock(n uint64) uint64 {
	return o.SegmentStartBlock(n) + o.SegmentSize - 1
}

// GroupStartBlock returns the first block of the group containing n.
func (o SegmentOptions) GroupStartBlock(n uint64) uint64 {
	span := o.GroupBlockSize()
	offset := (n - o.StartingBlock) / span * span
	return o.StartingBlock + offset
}

// GroupEndBlock returns the last block (inclusive) of the group
// containing n.
func (o SegmentOptions) GroupEndBlock(n uint64) uint64 {
	return o.GroupStartBlock(n) + o.GroupBlockSize() - 1
}

// IsSegmentAligned reports whether n is the first block of a segment.
func (o SegmentOptions) IsSegmentAligned(n uint64) bool {
	return (n-o.StartingBlock)%o.SegmentSize == 0
}

// IsGroupAligned reports whether n is the first block of a group.
func (o SegmentOptions) IsGroupAligned(n uint64) bool {
	return (n-o.StartingBlock)%o.GroupBlockSize() == 0
}

// HasSegmentFor reports whether the segment covering block n is fully
// contained in [starting_block, segmented] (invariant 3).
func (o SegmentOptions) HasSegmentFor(n, segmented uint64) bool {
	return o.SegmentEndBlock(n) <= segmented
}

// HasGroupFor reports whether the group covering block n is fully
// contained in [starting_block, grouped] (invariant 4).
func (o SegmentOptions) HasGroupFor(n, grouped uint64) bool {
	return o.GroupEndBlock(n) <= grouped
}

// Snapshot is the persisted high-water-mark record (spec.md 3.6).
type Snapshot struct {
	FirstBlock        uint64
	Finalized         uint64
	Segmented         *uint64
	Grouped           *uint64
	PendingGeneration *uint64
	SegmentOptions    SegmentOptions
	Revision          uint64
}

// Clone returns a deep copy so callers can mutate it without aliasing
// the original's pointer fields.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Segmented != nil {
		v := *s.Segmented
		out.Segmented = &v
	}
	if s.Grouped != nil {
		v := *s.Grouped
		out.Grouped = &v
	}
	if s.PendingGeneration != nil {
		v := *s.PendingGeneration
		out.PendingGeneration = &v
	}
	return out
}
