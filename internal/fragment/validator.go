package fragment

// Validator is the row view of the "validator" fragment (beacon chain).
type Validator struct{ RowTable }

func OpenValidatorRowSet(buf []byte) *RowSet         { return OpenRowSet(buf, ValidatorSchema) }
func (rs *RowSet) AsValidator(rowID uint32) Validator { return Validator{rs.Row(rowID)} }

func (v Validator) Index() uint64            { return v.Uint64("index") }
func (v Validator) Pubkey() []byte           { return v.Bytes("pubkey") }
func (v Validator) Status() string           { return v.String("status") }
func (v Validator) EffectiveBalance() uint64 { return v.Uint64("effective_balance") }
func (v Validator) Slashed() bool            { return v.Bool("slashed") }

type ValidatorFields struct {
	Index             uint64
	Pubkey            []byte
	Status            string
	EffectiveBalance  uint64
	Slashed           bool
}

func BuildValidatorRow(rsb *RowSetBuilder, f ValidatorFields) uint32 {
	return rsb.AddRow(func(r *rowRecorder) {
		r.Uint64("index", f.Index)
		r.Bytes("pubkey", f.Pubkey)
		r.String("status", f.Status)
		r.Uint64("effective_balance", f.EffectiveBalance)
		r.Bool("slashed", f.Slashed)
	})
}
