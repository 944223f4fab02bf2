// Package provider defines the chain-specific capability the ingestion
// engine polls (spec.md 4.F): get_head, get_finalized, get_block_by_number,
// get_block_by_hash, plus the Ethereum-family extras get_receipts,
// get_logs, get_withdrawals.
package provider

import "context"

// BlockRef is a lightweight (number, hash) pointer, used for head/finalized
// polling where the full block body isn't needed yet.
type BlockRef struct {
	Number uint64
	Hash   []byte
}

// RawBlock is the provider-agnostic block body ingestion assembles
// fragments from. Fields not populated by a given chain family are left
// nil/zero.
type RawBlock struct {
	Number     uint64
	Hash       []byte
	ParentHash []byte
	Timestamp  uint64
	StateRoot  []byte

	Transactions []RawTransaction
	Withdrawals  []RawWithdrawal

	// Starknet-family
	Messages []RawMessage

	// Beacon-family
	Slot       uint64
	Missed     bool
	Validators []RawValidator
	Blobs      []RawBlob
}

// RawTransaction mirrors fragment.TransactionFields at the provider
// boundary, before chain-family assembly assigns row ids.
type RawTransaction struct {
	Hash                 []byte
	Nonce                uint64
	TransactionIndex     uint32
	From                 []byte
	To                   []byte
	Value                []byte
	GasPrice             []byte
	Gas                  uint64
	MaxFeePerGas         []byte
	MaxPriorityFeePerGas []byte
	Input                []byte
	Signature            []byte
	ChainID              uint64
	TransactionType      uint8
}

// RawReceipt is returned by the Ethereum-family get_receipts call.
type RawReceipt struct {
	TransactionHash   []byte
	TransactionIndex  uint32
	Status            uint8
	CumulativeGasUsed uint64
	GasUsed           uint64
	ContractAddress   []byte
	LogsBloom         []byte
}

// RawLog is returned by the Ethereum-family get_logs call.
type RawLog struct {
	Address         []byte
	TransactionHash []byte
	LogIndex        uint32
	Topics          [][]byte
	Data            []byte
}

// RawWithdrawal is returned by the Ethereum-family get_withdrawals call.
type RawWithdrawal struct {
	Index          uint64
	ValidatorIndex uint64
	Address        []byte
	Amount         uint64
}

// RawMessage is a Starknet L1<->L2 message.
type RawMessage struct {
	FromAddress []byte
	ToAddress   []byte
	Selector    []byte
	Payload     []byte
	Nonce       uint64
	IsL1ToL2    bool
}

// RawValidator is a beacon-chain validator record.
type RawValidator struct {
	Index             uint64
	Pubkey            []byte
	Status            string
	EffectiveBalance  uint64
	Slashed           bool
}

// RawBlob is a beacon-chain EIP-4844 blob sidecar entry.
type RawBlob struct {
	TxHash        []byte
	Index         uint32
	KZGCommitment []byte
	KZGProof      []byte
	Blob          []byte
}

// Provider is the capability every chain family must implement.
type Provider interface {
	GetHead(ctx context.Context) (BlockRef, error)
	GetFinalized(ctx context.Context) (BlockRef, error)
	GetBlockByNumber(ctx context.Context, number uint64) (RawBlock, error)
	GetBlockByHash(ctx context.Context, hash []byte) (RawBlock, error)
}

// EthereumExtras is implemented by Ethereum-family providers, which fetch
// receipts/logs/withdrawals out of band from the block body itself.
type EthereumExtras interface {
	GetReceipts(ctx context.Context, blockHash []byte) ([]RawReceipt, error)
	GetLogs(ctx context.Context, blockHash []byte) ([]RawLog, error)
	GetWithdrawals(ctx context.Context, blockHash []byte) ([]RawWithdrawal, error)
}
