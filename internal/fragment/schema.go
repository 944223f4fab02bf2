// Package fragment implements the zero-copy columnar row model described
// in spec.md 4.C: each fragment file is one FlatBuffer whose root table
// holds a vector of row tables, addressable by row_id with no bulk
// deserialization. flatc codegen is out of scope (the RPC wire framing it
// normally feeds is explicitly excluded, spec.md 1), so this package plays
// the role flatc would: a hand-built schema-driven builder/reader pair
// over github.com/google/flatbuffers's runtime Builder/Table, instead of
// eight near-identical generated accessor files.
package fragment

// FieldType tags a schema field's flatbuffers wire representation.
type FieldType int

const (
	FieldUint8 FieldType = iota
	FieldUint32
	FieldUint64
	FieldBool
	FieldBytes  // length-prefixed byte vector (hashes, addresses, RLP blobs)
	FieldString // UTF-8 string (message payload text, validator status)
)

// FieldSpec names one column of a fragment's row schema.
type FieldSpec struct {
	Name string
	Type FieldType
}

// Schema is the ordered field list shared by every row in one fragment
// file — the flatbuffers vtable slot for field i is always i, so readers
// and writers agree on layout purely by schema order.
type Schema []FieldSpec

// indexOf returns the slot for name, or -1 if the schema has no such
// field.
func (s Schema) indexOf(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Fragment kind schemas, grounded on spec.md 3.1's fragment catalogue and
// original_source/dna/evm/src/segment/store/transaction_generated.rs's
// field set (hash, nonce, transaction_index, from, to, value, gas_price,
// gas, max_fee_per_gas, max_priority_fee_per_gas, input, signature,
// chain_id, access_list, transaction_type) for the Ethereum-family
// fragments, supplemented with the Starknet/beacon fields spec.md 3.1
// names.
var (
	HeaderSchema = Schema{
		{"number", FieldUint64},
		{"hash", FieldBytes},
		{"parent_hash", FieldBytes},
		{"timestamp", FieldUint64},
		{"state_root", FieldBytes},
	}

	TransactionSchema = Schema{
		{"hash", FieldBytes},
		{"nonce", FieldUint64},
		{"transaction_index", FieldUint32},
		{"from", FieldBytes},
		{"to", FieldBytes},
		{"value", FieldBytes},
		{"gas_price", FieldBytes},
		{"gas", FieldUint64},
		{"max_fee_per_gas", FieldBytes},
		{"max_priority_fee_per_gas", FieldBytes},
		{"input", FieldBytes},
		{"signature", FieldBytes},
		{"chain_id", FieldUint64},
		{"transaction_type", FieldUint8},
	}

	ReceiptSchema = Schema{
		{"transaction_hash", FieldBytes},
		{"transaction_index", FieldUint32},
		{"status", FieldUint8},
		{"cumulative_gas_used", FieldUint64},
		{"gas_used", FieldUint64},
		{"contract_address", FieldBytes},
		{"logs_bloom", FieldBytes},
	}

	EventSchema = Schema{
		{"address", FieldBytes},
		{"transaction_hash", FieldBytes},
		{"log_index", FieldUint32},
		{"topic0", FieldBytes},
		{"topic1", FieldBytes},
		{"topic2", FieldBytes},
		{"topic3", FieldBytes},
		{"data", FieldBytes},
	}

	WithdrawalSchema = Schema{
		{"index", FieldUint64},
		{"validator_index", FieldUint64},
		{"address", FieldBytes},
		{"amount", FieldUint64},
	}

	MessageSchema = Schema{
		{"from_address", FieldBytes},
		{"to_address", FieldBytes},
		{"selector", FieldBytes},
		{"payload", FieldBytes},
		{"nonce", FieldUint64},
		{"is_l1_to_l2", FieldBool},
	}

	ValidatorSchema = Schema{
		{"index", FieldUint64},
		{"pubkey", FieldBytes},
		{"status", FieldString},
		{"effective_balance", FieldUint64},
		{"slashed", FieldBool},
	}

	BlobSchema = Schema{
		{"tx_hash", FieldBytes},
		{"index", FieldUint32},
		{"kzg_commitment", FieldBytes},
		{"kzg_proof", FieldBytes},
		{"blob", FieldBytes},
	}

	// SegmentSlotSchema backs a segment-level fragment file for any
	// variable-cardinality-per-block fragment kind (every kind but
	// header): one row per block position in the segment, each row's
	// "data" field holding that block's own nested fragment-schema
	// RowSet bytes, or absent when that block had zero rows of this
	// kind. Row position == block position within the segment, so the
	// scanner recovers a block's rows by relative index without needing
	// a per-row block number column, mirroring
	// original_source/dna/evm/src/server/filter.rs's
	// "block_segment.transactions.blocks().get(relative_index)"
	// structure. Header skips this wrapping since every block carries
	// exactly one header row, so a flat merge already preserves the
	// block <-> row correspondence.
	SegmentSlotSchema = Schema{
		{"data", FieldBytes},
	}
)

// SchemaFor returns the row schema for a fragment kind (spec.md 3.1's
// FragmentID catalogue).
func SchemaFor(name string) (Schema, bool) {
	switch name {
	case "header":
		return HeaderSchema, true
	case "transaction":
		return TransactionSchema, true
	case "receipt":
		return ReceiptSchema, true
	case "event":
		return EventSchema, true
	case "withdrawal":
		return WithdrawalSchema, true
	case "message":
		return MessageSchema, true
	case "validator":
		return ValidatorSchema, true
	case "blob":
		return BlobSchema, true
	default:
		return nil, false
	}
}

// BlockFileSchema is the root schema of the per-block file (spec.md
// §3.3): one bytes field per fragment kind that block might carry. Each
// field, when present, holds that kind's own encoded RowSet bytes for
// just this block's rows — a per-block file is a RowSet with exactly one
// row under BlockFileSchema, whose "first_block_number"/"first_block_hash"
// root fields double as the block's own number and hash.
var BlockFileSchema = Schema{
	{"header", FieldBytes},
	{"transaction", FieldBytes},
	{"receipt", FieldBytes},
	{"event", FieldBytes},
	{"withdrawal", FieldBytes},
	{"message", FieldBytes},
	{"validator", FieldBytes},
	{"blob", FieldBytes},
}
