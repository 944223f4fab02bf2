package fragment

// Withdrawal is the row view of the "withdrawal" fragment (post-Shapella
// EVM beacon withdrawals folded into execution blocks).
type Withdrawal struct{ RowTable }

func OpenWithdrawalRowSet(buf []byte) *RowSet          { return OpenRowSet(buf, WithdrawalSchema) }
func (rs *RowSet) AsWithdrawal(rowID uint32) Withdrawal { return Withdrawal{rs.Row(rowID)} }

func (w Withdrawal) Index() uint64          { return w.Uint64("index") }
func (w Withdrawal) ValidatorIndex() uint64 { return w.Uint64("validator_index") }
func (w Withdrawal) Address() []byte        { return w.Bytes("address") }
func (w Withdrawal) Amount() uint64         { return w.Uint64("amount") }

type WithdrawalFields struct {
	Index          uint64
	ValidatorIndex uint64
	Address        []byte
	Amount         uint64
}

func BuildWithdrawalRow(rsb *RowSetBuilder, f WithdrawalFields) uint32 {
	return rsb.AddRow(func(r *rowRecorder) {
		r.Uint64("index", f.Index)
		r.Uint64("validator_index", f.ValidatorIndex)
		r.Bytes("address", f.Address)
		r.Uint64("amount", f.Amount)
	})
}
