package fragment

// Message is the row view of the "message" fragment (Starknet L1<->L2
// messaging).
type Message struct{ RowTable }

func OpenMessageRowSet(buf []byte) *RowSet       { return OpenRowSet(buf, MessageSchema) }
func (rs *RowSet) AsMessage(rowID uint32) Message { return Message{rs.Row(rowID)} }

func (m Message) FromAddress() []byte { return m.Bytes("from_address") }
func (m Message) ToAddress() []byte   { return m.Bytes("to_address") }
func (m Message) Selector() []byte    { return m.Bytes("selector") }
func (m Message) Payload() []byte     { return m.Bytes("payload") }
func (m Message) Nonce() uint64       { return m.Uint64("nonce") }
func (m Message) IsL1ToL2() bool      { return m.Bool("is_l1_to_l2") }

type MessageFields struct {
	FromAddress []byte
	ToAddress   []byte
	Selector    []byte
	Payload     []byte
	Nonce       uint64
	IsL1ToL2    bool
}

func BuildMessageRow(rsb *RowSetBuilder, f MessageFields) uint32 {
	return rsb.AddRow(func(r *rowRecorder) {
		r.Bytes("from_address", f.FromAddress)
		r.Bytes("to_address", f.ToAddress)
		r.Bytes("selector", f.Selector)
		r.Bytes("payload", f.Payload)
		r.Uint64("nonce", f.Nonce)
		r.Bool("is_l1_to_l2", f.IsL1ToL2)
	})
}
