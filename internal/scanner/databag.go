package scanner

// DataBag tracks, for one block's materialization pass, which rows a
// filter's include_* requests still need and which have already been
// resolved, per spec.md 4.H: "The scanner carries a DataBag that records
// which rows are needed and which are 'deferred' ... the final pass
// drains deferred rows from their segment files."
//
// Row-level data in this implementation is always available in memory
// once a block's fragment RowSets are opened (FilterBlock re-scans them
// directly rather than trusting the coarser block-granularity bitmap
// index for anything finer than "which blocks to look at"), so nothing
// here is ever deferred past the current block and there is no second
// loading pass. Nothing in this package calls Defer: Scan's deferOrFatal
// downgrade of a missing join index in group mode returns without
// recording anything, so Deferred stays empty.
type DataBag struct {
	RequiredTransactions map[uint32]bool
	RequiredLogs         map[uint32]bool
	RequiredReceipts     map[uint32]bool
	RequiredBlobs        map[uint32]bool

	Deferred []string
}

// NewDataBag returns an empty bag.
func NewDataBag() *DataBag {
	return &DataBag{
		RequiredTransactions: make(map[uint32]bool),
		RequiredLogs:         make(map[uint32]bool),
		RequiredReceipts:     make(map[uint32]bool),
		RequiredBlobs:        make(map[uint32]bool),
	}
}

func (d *DataBag) needTransaction(index uint32) { d.RequiredTransactions[index] = true }
func (d *DataBag) needLog(index uint32)         { d.RequiredLogs[index] = true }
func (d *DataBag) needReceipt(index uint32)     { d.RequiredReceipts[index] = true }
func (d *DataBag) needBlob(index uint32)        { d.RequiredBlobs[index] = true }

// Defer records that a join index was missing at group scope and the
// corresponding include_* request is being resolved later, at segment
// scope, instead (spec.md 4.H's is_group downgrade).
func (d *DataBag) Defer(what string) {
	d.Deferred = append(d.Deferred, what)
}
