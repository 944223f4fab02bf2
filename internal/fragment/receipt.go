package fragment

// Receipt is the row view of the "receipt" fragment (Ethereum family).
type Receipt struct{ RowTable }

func OpenReceiptRowSet(buf []byte) *RowSet       { return OpenRowSet(buf, ReceiptSchema) }
func (rs *RowSet) AsReceipt(rowID uint32) Receipt { return Receipt{rs.Row(rowID)} }

func (r Receipt) TransactionHash() []byte  { return r.Bytes("transaction_hash") }
func (r Receipt) TransactionIndex() uint32 { return r.Uint32("transaction_index") }
func (r Receipt) Status() uint8            { return r.Uint8("status") }
func (r Receipt) CumulativeGasUsed() uint64 { return r.Uint64("cumulative_gas_used") }
func (r Receipt) GasUsed() uint64          { return r.Uint64("gas_used") }
func (r Receipt) ContractAddress() []byte  { return r.Bytes("contract_address") }
func (r Receipt) LogsBloom() []byte        { return r.Bytes("logs_bloom") }

type ReceiptFields struct {
	TransactionHash    []byte
	TransactionIndex   uint32
	Status             uint8
	CumulativeGasUsed  uint64
	GasUsed            uint64
	ContractAddress    []byte
	LogsBloom          []byte
}

func BuildReceiptRow(rsb *RowSetBuilder, f ReceiptFields) uint32 {
	return rsb.AddRow(func(rec *rowRecorder) {
		rec.Bytes("transaction_hash", f.TransactionHash)
		rec.Uint32("transaction_index", f.TransactionIndex)
		rec.Uint8("status", f.Status)
		rec.Uint64("cumulative_gas_used", f.CumulativeGasUsed)
		rec.Uint64("gas_used", f.GasUsed)
		rec.Bytes("contract_address", f.ContractAddress)
		rec.Bytes("logs_bloom", f.LogsBloom)
	})
}
