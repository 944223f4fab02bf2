package fragment

// Blob is the row view of the "blob" fragment (EIP-4844 sidecar data,
// beacon chain).
type Blob struct{ RowTable }

func OpenBlobRowSet(buf []byte) *RowSet   { return OpenRowSet(buf, BlobSchema) }
func (rs *RowSet) AsBlob(rowID uint32) Blob { return Blob{rs.Row(rowID)} }

func (b Blob) TxHash() []byte        { return b.Bytes("tx_hash") }
func (b Blob) Index() uint32         { return b.Uint32("index") }
func (b Blob) KZGCommitment() []byte { return b.Bytes("kzg_commitment") }
func (b Blob) KZGProof() []byte      { return b.Bytes("kzg_proof") }
func (b Blob) BlobData() []byte      { return b.Bytes("blob") }

type BlobFields struct {
	TxHash        []byte
	Index         uint32
	KZGCommitment []byte
	KZGProof      []byte
	Blob          []byte
}

func BuildBlobRow(rsb *RowSetBuilder, f BlobFields) uint32 {
	return rsb.AddRow(func(r *rowRecorder) {
		r.Bytes("tx_hash", f.TxHash)
		r.Uint32("index", f.Index)
		r.Bytes("kzg_commitment", f.KZGCommitment)
		r.Bytes("kzg_proof", f.KZGProof)
		r.Bytes("blob", f.Blob)
	})
}
