package fragment

import flatbuffers "github.com/google/flatbuffers/go"

// rootSchema is the fixed 3-field schema of every fragment file's root
// table, independent of the row schema it carries: first_block_number and
// first_block_hash identify the segment this fragment belongs to
// (spec.md 3.4), rows is the vector of per-row tables.
var rootSchema = Schema{
	{"first_block_number", FieldUint64},
	{"first_block_hash", FieldBytes},
	{"rows", FieldBytes}, // vector-of-tables; read via the vector path, not Bytes()
}

const (
	rootSlotFirstBlockNumber = 0
	rootSlotFirstBlockHash   = 1
	rootSlotRows             = 2
)

// RowSetBuilder assembles one fragment file: a header (first block number
// and hash) plus an ordered vector of rows sharing one Schema.
type RowSetBuilder struct {
	b      *flatbuffers.Builder
	schema Schema
	rows   []flatbuffers.UOffsetT
}

// NewRowSetBuilder starts a fragment file builder for the given row
// schema (e.g. TransactionSchema).
func NewRowSetBuilder(schema Schema) *RowSetBuilder {
	return &RowSetBuilder{b: flatbuffers.NewBuilder(1024), schema: schema}
}

// AddRow appends a row built by fn against a fresh rowBuilder, returning
// its row_id (spec.md 4.C: "rows addressable by row_id: u32").
func (rsb *RowSetBuilder) AddRow(fn func(rb *rowRecorder)) uint32 {
	rec := &rowRecorder{rb: newRowBuilder(rsb.b, rsb.schema)}
	fn(rec)
	off := rec.rb.finish()
	rsb.rows = append(rsb.rows, off)
	return uint32(len(rsb.rows) - 1)
}

// Finish emits the complete fragment file: row vector, root table, and
// the flatbuffers file trailer, returning the encoded bytes ready for
// internal/blockstore.PutSegment.
func (rsb *RowSetBuilder) Finish(firstBlockNumber uint64, firstBlockHash []byte) []byte {
	rsb.b.StartVector(4, len(rsb.rows), 4)
	for i := len(rsb.rows) - 1; i >= 0; i-- {
		rsb.b.PrependUOffsetT(rsb.rows[i])
	}
	rowsVec := rsb.b.EndVector(len(rsb.rows))

	hashOff := rsb.b.CreateByteVector(firstBlockHash)

	rsb.b.StartObject(len(rootSchema))
	rsb.b.PrependUOffsetTSlot(rootSlotRows, rowsVec, 0)
	rsb.b.PrependUOffsetTSlot(rootSlotFirstBlockHash, hashOff, 0)
	rsb.b.PrependUint64Slot(rootSlotFirstBlockNumber, firstBlockNumber, 0)
	root := rsb.b.EndObject()

	rsb.b.Finish(root)
	return rsb.b.FinishedBytes()
}

// OpenSegmentSlotRowSet maps an encoded segment-level fragment file built
// under SegmentSlotSchema.
func OpenSegmentSlotRowSet(buf []byte) *RowSet { return OpenRowSet(buf, SegmentSlotSchema) }

// BuildSegmentSlotRow appends one block's worth of nested fragment bytes
// to a segment-level slot builder. data is nil when the block at this
// position had zero rows of the wrapped fragment kind.
func BuildSegmentSlotRow(rsb *RowSetBuilder, data []byte) uint32 {
	return rsb.AddRow(func(r *rowRecorder) {
		r.Bytes("data", data)
	})
}

// SegmentSlotData returns the nested fragment bytes for block position
// relativeIndex, or nil if that block had no rows of this kind.
func (rs *RowSet) SegmentSlotData(relativeIndex uint32) []byte {
	if int(relativeIndex) >= rs.Len() {
		return nil
	}
	return rs.Row(relativeIndex).Bytes("data")
}

// rowRecorder is the narrow view AddRow's callback gets: set-only, one
// call per field, in any order.
type rowRecorder struct {
	rb *rowBuilder
}

func (r *rowRecorder) Uint8(name string, v uint8)   { r.rb.setUint8(name, v) }
func (r *rowRecorder) Uint32(name string, v uint32) { r.rb.setUint32(name, v) }
func (r *rowRecorder) Uint64(name string, v uint64) { r.rb.setUint64(name, v) }
func (r *rowRecorder) Bool(name string, v bool)     { r.rb.setBool(name, v) }
func (r *rowRecorder) Bytes(name string, v []byte)  { r.rb.setBytes(name, v) }
func (r *rowRecorder) String(name string, v string) { r.rb.setString(name, v) }

// RowSet is a read-only, zero-copy view of an encoded fragment file.
type RowSet struct {
	root   flatbuffers.Table
	schema Schema
	rows   flatbuffers.UOffsetT // vector start position, 0 if empty
	length int
}

// OpenRowSet maps buf (typically an mmap'd or in-memory object-store
// payload) without copying or bulk-parsing it.
func OpenRowSet(buf []byte, schema Schema) *RowSet {
	// buf[0:4] holds a uoffset_t pointing directly at the root table,
	// the same convention GetRootAsX-generated accessors rely on.
	rootPos := flatbuffers.GetUOffsetT(buf)
	root := flatbuffers.Table{Bytes: buf, Pos: rootPos}

	rs := &RowSet{root: root, schema: schema}
	if o := root.Offset(vtableOffset(rootSlotRows)); o != 0 {
		vecPos := flatbuffers.UOffsetT(o) + root.Pos
		rs.rows = root.Vector(vecPos)
		rs.length = root.VectorLen(vecPos)
	}
	return rs
}

// FirstBlockNumber returns the segment's starting block number.
func (rs *RowSet) FirstBlockNumber() uint64 {
	if o := rs.root.Offset(vtableOffset(rootSlotFirstBlockNumber)); o != 0 {
		return rs.root.GetUint64(flatbuffers.UOffsetT(o) + rs.root.Pos)
	}
	return 0
}

// FirstBlockHash returns the segment's starting block hash, zero-copy.
func (rs *RowSet) FirstBlockHash() []byte {
	if o := rs.root.Offset(vtableOffset(rootSlotFirstBlockHash)); o != 0 {
		return rs.root.ByteVector(flatbuffers.UOffsetT(o) + rs.root.Pos)
	}
	return nil
}

// Len returns the number of rows in the fragment.
func (rs *RowSet) Len() int { return rs.length }

// Row returns a zero-copy view of row rowID. Callers index only what they
// need — no row before it is ever parsed (spec.md 4.C's "traversed
// without allocation").
func (rs *RowSet) Row(rowID uint32) RowTable {
	elemPos := rs.rows + flatbuffers.UOffsetT(rowID)*4
	tablePos := rs.root.Indirect(elemPos)
	return newRowTable(rs.root.Bytes, tablePos, rs.schema)
}
