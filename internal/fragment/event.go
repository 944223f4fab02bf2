package fragment

// Event is the row view of the "event" fragment (EVM logs, Starknet
// events).
type Event struct{ RowTable }

func OpenEventRowSet(buf []byte) *RowSet     { return OpenRowSet(buf, EventSchema) }
func (rs *RowSet) AsEvent(rowID uint32) Event { return Event{rs.Row(rowID)} }

func (e Event) Address() []byte         { return e.Bytes("address") }
func (e Event) TransactionHash() []byte { return e.Bytes("transaction_hash") }
func (e Event) LogIndex() uint32        { return e.Uint32("log_index") }
func (e Event) Topic0() []byte          { return e.Bytes("topic0") }
func (e Event) Topic1() []byte          { return e.Bytes("topic1") }
func (e Event) Topic2() []byte          { return e.Bytes("topic2") }
func (e Event) Topic3() []byte          { return e.Bytes("topic3") }
func (e Event) Data() []byte            { return e.Bytes("data") }

type EventFields struct {
	Address         []byte
	TransactionHash []byte
	LogIndex        uint32
	Topics          [][]byte // up to 4, EVM-style topic0..topic3
	Data            []byte
}

func BuildEventRow(rsb *RowSetBuilder, f EventFields) uint32 {
	topic := func(i int) []byte {
		if i < len(f.Topics) {
			return f.Topics[i]
		}
		return nil
	}
	return rsb.AddRow(func(r *rowRecorder) {
		r.Bytes("address", f.Address)
		r.Bytes("transaction_hash", f.TransactionHash)
		r.Uint32("log_index", f.LogIndex)
		r.Bytes("topic0", topic(0))
		r.Bytes("topic1", topic(1))
		r.Bytes("topic2", topic(2))
		r.Bytes("topic3", topic(3))
		r.Bytes("data", f.Data)
	})
}
