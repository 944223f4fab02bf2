package scanner

import "dnaindex/internal/fragment"

// Block is one materialized scan result: the rows of a single block that
// matched at least one sub-filter, each tagged with the FilterIDs of
// every sub-filter that matched it (spec.md 4.H: "filter_ids so matching
// rows can be attributed back to the filter that matched them").
type Block struct {
	Number uint64
	Hash   []byte

	Header *fragment.HeaderFields

	Transactions []TransactionResult
	Receipts     map[uint32]fragment.ReceiptFields // keyed by transaction_index
	Logs         []LogResult
	Withdrawals  []WithdrawalResult
	Validators   []ValidatorResult
	Blobs        []BlobResult
	Messages     []MessageResult
}

// IsEmpty reports whether nothing in this block actually matched (every
// slice is empty and the header was not force-included).
func (b *Block) IsEmpty() bool {
	return b.Header == nil &&
		len(b.Transactions) == 0 &&
		len(b.Logs) == 0 &&
		len(b.Withdrawals) == 0 &&
		len(b.Validators) == 0 &&
		len(b.Blobs) == 0 &&
		len(b.Messages) == 0
}

type TransactionResult struct {
	fragment.TransactionFields
	FilterIDs []uint32
}

type LogResult struct {
	fragment.EventFields
	FilterIDs []uint32
}

type WithdrawalResult struct {
	fragment.WithdrawalFields
	FilterIDs []uint32
}

type ValidatorResult struct {
	fragment.ValidatorFields
	FilterIDs []uint32
}

type BlobResult struct {
	fragment.BlobFields
	FilterIDs []uint32
}

type MessageResult struct {
	fragment.MessageFields
	FilterIDs []uint32
}
