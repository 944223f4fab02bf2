package fragment

// BuildBlockFile assembles the per-block file (spec.md §3.3): a single
// BlockFileSchema row carrying one already-encoded RowSet per fragment
// kind this block populates, under the block's own number and hash.
func BuildBlockFile(number uint64, hash []byte, fragments map[string][]byte) []byte {
	rsb := NewRowSetBuilder(BlockFileSchema)
	rsb.AddRow(func(r *rowRecorder) {
		for _, f := range BlockFileSchema {
			if b, ok := fragments[f.Name]; ok && b != nil {
				r.Bytes(f.Name, b)
			}
		}
	})
	return rsb.Finish(number, hash)
}

// OpenBlockFile maps an encoded per-block file without copying it.
func OpenBlockFile(buf []byte) *RowSet { return OpenRowSet(buf, BlockFileSchema) }

// BlockFragment returns the raw encoded RowSet bytes for one fragment
// kind within the block file, or nil if the block carries none of that
// kind.
func (rs *RowSet) BlockFragment(name string) []byte {
	return rs.Row(0).Bytes(name)
}
