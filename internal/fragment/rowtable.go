package fragment

import flatbuffers "github.com/google/flatbuffers/go"

// vtableOffset converts a schema field index into the vtable byte offset
// the flatbuffers runtime expects (slot 0 lives at byte 4, every further
// slot adds 2 bytes — the same arithmetic flatc-generated accessors use).
func vtableOffset(slot int) flatbuffers.VOffsetT {
	return flatbuffers.VOffsetT(4 + 2*slot)
}

// RowTable is a zero-copy view of one row: a flatbuffers table plus the
// schema that gives its slots names. Reading a field touches only the
// bytes for that field; nothing is parsed up front.
type RowTable struct {
	tab    flatbuffers.Table
	schema Schema
}

func newRowTable(buf []byte, pos flatbuffers.UOffsetT, schema Schema) RowTable {
	return RowTable{tab: flatbuffers.Table{Bytes: buf, Pos: pos}, schema: schema}
}

func (r RowTable) offset(name string) flatbuffers.UOffsetT {
	slot := r.schema.indexOf(name)
	if slot < 0 {
		return 0
	}
	return flatbuffers.UOffsetT(r.tab.Offset(vtableOffset(slot)))
}

// Uint8 reads a uint8 field, or 0 if absent.
func (r RowTable) Uint8(name string) uint8 {
	if o := r.offset(name); o != 0 {
		return r.tab.GetUint8(o + r.tab.Pos)
	}
	return 0
}

// Uint32 reads a uint32 field, or 0 if absent.
func (r RowTable) Uint32(name string) uint32 {
	if o := r.offset(name); o != 0 {
		return r.tab.GetUint32(o + r.tab.Pos)
	}
	return 0
}

// Uint64 reads a uint64 field, or 0 if absent.
func (r RowTable) Uint64(name string) uint64 {
	if o := r.offset(name); o != 0 {
		return r.tab.GetUint64(o + r.tab.Pos)
	}
	return 0
}

// Bool reads a bool field, or false if absent.
func (r RowTable) Bool(name string) bool {
	if o := r.offset(name); o != 0 {
		return r.tab.GetBool(o + r.tab.Pos)
	}
	return false
}

// Bytes reads a byte-vector field, zero-copy (a slice into the backing
// buffer, not a fresh allocation), or nil if absent.
func (r RowTable) Bytes(name string) []byte {
	o := r.offset(name)
	if o == 0 {
		return nil
	}
	return r.tab.ByteVector(o + r.tab.Pos)
}

// String reads a string field, or "" if absent.
func (r RowTable) String(name string) string {
	o := r.offset(name)
	if o == 0 {
		return ""
	}
	return r.tab.String(o + r.tab.Pos)
}

// rowBuilder accumulates one row's fields before the enclosing RowSet
// vector is built. Field values are supplied in schema order by the
// typed per-fragment constructors (transaction.go, receipt.go, ...).
type rowBuilder struct {
	b      *flatbuffers.Builder
	schema Schema
	// offsets for any Bytes/String fields, created before StartObject
	// since flatbuffers requires nested objects to be built before the
	// object that slots them in.
	strOrVec map[int]flatbuffers.UOffsetT
	scalars  map[int]any
}

func newRowBuilder(b *flatbuffers.Builder, schema Schema) *rowBuilder {
	return &rowBuilder{b: b, schema: schema, strOrVec: map[int]flatbuffers.UOffsetT{}, scalars: map[int]any{}}
}

func (rb *rowBuilder) setBytes(name string, v []byte) {
	slot := rb.schema.indexOf(name)
	if slot < 0 || v == nil {
		return
	}
	rb.strOrVec[slot] = rb.b.CreateByteVector(v)
}

func (rb *rowBuilder) setString(name string, v string) {
	slot := rb.schema.indexOf(name)
	if slot < 0 || v == "" {
		return
	}
	rb.strOrVec[slot] = rb.b.CreateString(v)
}

func (rb *rowBuilder) setUint8(name string, v uint8)   { rb.setScalar(name, v) }
func (rb *rowBuilder) setUint32(name string, v uint32) { rb.setScalar(name, v) }
func (rb *rowBuilder) setUint64(name string, v uint64) { rb.setScalar(name, v) }
func (rb *rowBuilder) setBool(name string, v bool)     { rb.setScalar(name, v) }

func (rb *rowBuilder) setScalar(name string, v any) {
	slot := rb.schema.indexOf(name)
	if slot < 0 {
		return
	}
	rb.scalars[slot] = v
}

// finish emits the row's table and returns its offset for the enclosing
// row vector.
func (rb *rowBuilder) finish() flatbuffers.UOffsetT {
	rb.b.StartObject(len(rb.schema))
	for slot, off := range rb.strOrVec {
		rb.b.PrependUOffsetTSlot(slot, off, 0)
	}
	for slot, v := range rb.scalars {
		switch x := v.(type) {
		case uint8:
			rb.b.PrependUint8Slot(slot, x, 0)
		case uint32:
			rb.b.PrependUint32Slot(slot, x, 0)
		case uint64:
			rb.b.PrependUint64Slot(slot, x, 0)
		case bool:
			rb.b.PrependBoolSlot(slot, x, false)
		}
	}
	return flatbuffers.UOffsetT(rb.b.EndObject())
}
