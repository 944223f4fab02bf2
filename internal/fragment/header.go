package fragment

// Header is the row view of the "header" fragment every chain family
// produces (spec.md 3.1).
type Header struct{ RowTable }

func OpenHeaderRowSet(buf []byte) *RowSet                { return OpenRowSet(buf, HeaderSchema) }
func (rs *RowSet) AsHeader(rowID uint32) Header          { return Header{rs.Row(rowID)} }

func (h Header) Number() uint64     { return h.Uint64("number") }
func (h Header) Hash() []byte       { return h.Bytes("hash") }
func (h Header) ParentHash() []byte { return h.Bytes("parent_hash") }
func (h Header) Timestamp() uint64  { return h.Uint64("timestamp") }
func (h Header) StateRoot() []byte  { return h.Bytes("state_root") }

type HeaderFields struct {
	Number     uint64
	Hash       []byte
	ParentHash []byte
	Timestamp  uint64
	StateRoot  []byte
}

func BuildHeaderRow(rsb *RowSetBuilder, f HeaderFields) uint32 {
	return rsb.AddRow(func(r *rowRecorder) {
		r.Uint64("number", f.Number)
		r.Bytes("hash", f.Hash)
		r.Bytes("parent_hash", f.ParentHash)
		r.Uint64("timestamp", f.Timestamp)
		r.Bytes("state_root", f.StateRoot)
	})
}
