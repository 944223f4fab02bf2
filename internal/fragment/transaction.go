package fragment

// Transaction is a zero-copy view of one row of the "transaction"
// fragment (spec.md 3.1), field layout grounded on
// original_source/dna/evm/src/segment/store/transaction_generated.rs.
type Transaction struct{ RowTable }

// OpenTransactionRowSet maps an encoded transaction fragment file.
func OpenTransactionRowSet(buf []byte) *RowSet { return OpenRowSet(buf, TransactionSchema) }

// AsTransaction returns the typed view of row rowID.
func (rs *RowSet) AsTransaction(rowID uint32) Transaction { return Transaction{rs.Row(rowID)} }

func (t Transaction) Hash() []byte                  { return t.Bytes("hash") }
func (t Transaction) Nonce() uint64                 { return t.Uint64("nonce") }
func (t Transaction) TransactionIndex() uint32      { return t.Uint32("transaction_index") }
func (t Transaction) From() []byte                  { return t.Bytes("from") }
func (t Transaction) To() []byte                    { return t.Bytes("to") }
func (t Transaction) Value() []byte                 { return t.Bytes("value") }
func (t Transaction) GasPrice() []byte              { return t.Bytes("gas_price") }
func (t Transaction) Gas() uint64                   { return t.Uint64("gas") }
func (t Transaction) MaxFeePerGas() []byte          { return t.Bytes("max_fee_per_gas") }
func (t Transaction) MaxPriorityFeePerGas() []byte  { return t.Bytes("max_priority_fee_per_gas") }
func (t Transaction) Input() []byte                 { return t.Bytes("input") }
func (t Transaction) Signature() []byte             { return t.Bytes("signature") }
func (t Transaction) ChainID() uint64                { return t.Uint64("chain_id") }
func (t Transaction) TransactionType() uint8        { return t.Uint8("transaction_type") }

// BuildTransactionRow writes one transaction row. Byte-slice fields left
// nil are simply absent from the row (flatbuffers' default-value
// elision), not zero-filled.
func BuildTransactionRow(rsb *RowSetBuilder, tx TransactionFields) uint32 {
	return rsb.AddRow(func(r *rowRecorder) {
		r.Bytes("hash", tx.Hash)
		r.Uint64("nonce", tx.Nonce)
		r.Uint32("transaction_index", tx.TransactionIndex)
		r.Bytes("from", tx.From)
		r.Bytes("to", tx.To)
		r.Bytes("value", tx.Value)
		r.Bytes("gas_price", tx.GasPrice)
		r.Uint64("gas", tx.Gas)
		r.Bytes("max_fee_per_gas", tx.MaxFeePerGas)
		r.Bytes("max_priority_fee_per_gas", tx.MaxPriorityFeePerGas)
		r.Bytes("input", tx.Input)
		r.Bytes("signature", tx.Signature)
		r.Uint64("chain_id", tx.ChainID)
		r.Uint8("transaction_type", tx.TransactionType)
	})
}

// TransactionFields is the plain-Go staging struct ingestion assembles
// before handing rows to BuildTransactionRow.
type TransactionFields struct {
	Hash                  []byte
	Nonce                 uint64
	TransactionIndex      uint32
	From                  []byte
	To                    []byte
	Value                 []byte
	GasPrice              []byte
	Gas                   uint64
	MaxFeePerGas          []byte
	MaxPriorityFeePerGas  []byte
	Input                 []byte
	Signature             []byte
	ChainID               uint64
	TransactionType       uint8
}
