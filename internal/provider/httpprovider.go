package provider

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// EthereumRPCProvider speaks plain JSON-RPC 2.0 over HTTP to an
// Ethereum-family execution node (eth_blockNumber, eth_getBlockByNumber,
// eth_getBlockByHash, eth_getBlockReceipts, eth_getLogs). Built
// directly on net/http and encoding/json rather than a generated or
// third-party Ethereum client: the teacher drops its go-ethereum
// dependency (see DESIGN.md), and the rest of the pack has no JSON-RPC
// client library either, so a small hand-rolled client in the teacher's
// own HTTP-gateway style (core/storage.go's IPFS gateway wrapper) is the
// grounded choice.
type EthereumRPCProvider struct {
	endpoint string
	client   *http.Client
	idSeq    int
}

// NewEthereumRPCProvider builds a provider against endpoint with the
// given request timeout.
func NewEthereumRPCProvider(endpoint string, timeout time.Duration) *EthereumRPCProvider {
	return &EthereumRPCProvider{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (p *EthereumRPCProvider) call(ctx context.Context, method string, params []any, out any) error {
	p.idSeq++
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: p.idSeq, Method: method, Params: params})
	if err != nil {
		return newErr(KindDecode, method, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return newErr(KindRequest, method, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return newErr(KindRequest, method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return newErr(KindRequest, method, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return newErr(KindRateLimited, method, fmt.Errorf("http %d: %s", resp.StatusCode, string(raw)))
	}
	if resp.StatusCode != http.StatusOK {
		return newErr(KindRequest, method, fmt.Errorf("http %d: %s", resp.StatusCode, string(raw)))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return newErr(KindDecode, method, fmt.Errorf("decode envelope: %w", err))
	}
	if rpcResp.Error != nil {
		return newErr(KindRequest, method, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return newErr(KindDecode, method, err)
	}
	return nil
}

func hexToUint64(s string) uint64 {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0
	}
	v, _ := strconv.ParseUint(s, 16, 64)
	return v
}

func hexToBytes(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil
	}
	b, _ := hex.DecodeString(s)
	return b
}

func blockNumberParam(number uint64) string {
	return "0x" + strconv.FormatUint(number, 16)
}

type rpcBlock struct {
	Number       string     `json:"number"`
	Hash         string     `json:"hash"`
	ParentHash   string     `json:"parentHash"`
	Timestamp    string     `json:"timestamp"`
	StateRoot    string     `json:"stateRoot"`
	Transactions []rpcTx    `json:"transactions"`
	Withdrawals  []rpcWthdl `json:"withdrawals"`
}

type rpcTx struct {
	Hash                 string `json:"hash"`
	Nonce                string `json:"nonce"`
	TransactionIndex     string `json:"transactionIndex"`
	From                 string `json:"from"`
	To                   string `json:"to"`
	Value                string `json:"value"`
	GasPrice             string `json:"gasPrice"`
	Gas                  string `json:"gas"`
	MaxFeePerGas         string `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
	Input                string `json:"input"`
	ChainID              string `json:"chainId"`
	Type                 string `json:"type"`
}

type rpcWthdl struct {
	Index          string `json:"index"`
	ValidatorIndex string `json:"validatorIndex"`
	Address        string `json:"address"`
	Amount         string `json:"amount"`
}

func (b rpcBlock) toRawBlock() RawBlock {
	out := RawBlock{
		Number:     hexToUint64(b.Number),
		Hash:       hexToBytes(b.Hash),
		ParentHash: hexToBytes(b.ParentHash),
		Timestamp:  hexToUint64(b.Timestamp),
		StateRoot:  hexToBytes(b.StateRoot),
	}
	for i, tx := range b.Transactions {
		out.Transactions = append(out.Transactions, RawTransaction{
			Hash:                 hexToBytes(tx.Hash),
			Nonce:                hexToUint64(tx.Nonce),
			TransactionIndex:     uint32(i),
			From:                 hexToBytes(tx.From),
			To:                   hexToBytes(tx.To),
			Value:                hexToBytes(tx.Value),
			GasPrice:             hexToBytes(tx.GasPrice),
			Gas:                  hexToUint64(tx.Gas),
			MaxFeePerGas:         hexToBytes(tx.MaxFeePerGas),
			MaxPriorityFeePerGas: hexToBytes(tx.MaxPriorityFeePerGas),
			Input:                hexToBytes(tx.Input),
			ChainID:              hexToUint64(tx.ChainID),
			TransactionType:      uint8(hexToUint64(tx.Type)),
		})
	}
	for _, w := range b.Withdrawals {
		out.Withdrawals = append(out.Withdrawals, RawWithdrawal{
			Index:          hexToUint64(w.Index),
			ValidatorIndex: hexToUint64(w.ValidatorIndex),
			Address:        hexToBytes(w.Address),
			Amount:         hexToUint64(w.Amount),
		})
	}
	return out
}

func (p *EthereumRPCProvider) GetHead(ctx context.Context) (BlockRef, error) {
	var hexNum string
	if err := p.call(ctx, "eth_blockNumber", nil, &hexNum); err != nil {
		return BlockRef{}, err
	}
	number := hexToUint64(hexNum)
	var blk rpcBlock
	if err := p.call(ctx, "eth_getBlockByNumber", []any{blockNumberParam(number), false}, &blk); err != nil {
		return BlockRef{}, err
	}
	return BlockRef{Number: number, Hash: hexToBytes(blk.Hash)}, nil
}

func (p *EthereumRPCProvider) GetFinalized(ctx context.Context) (BlockRef, error) {
	var blk rpcBlock
	if err := p.call(ctx, "eth_getBlockByNumber", []any{"finalized", false}, &blk); err != nil {
		return BlockRef{}, err
	}
	return BlockRef{Number: hexToUint64(blk.Number), Hash: hexToBytes(blk.Hash)}, nil
}

func (p *EthereumRPCProvider) GetBlockByNumber(ctx context.Context, number uint64) (RawBlock, error) {
	var blk rpcBlock
	if err := p.call(ctx, "eth_getBlockByNumber", []any{blockNumberParam(number), true}, &blk); err != nil {
		return RawBlock{}, err
	}
	return blk.toRawBlock(), nil
}

func (p *EthereumRPCProvider) GetBlockByHash(ctx context.Context, hash []byte) (RawBlock, error) {
	var blk rpcBlock
	if err := p.call(ctx, "eth_getBlockByHash", []any{"0x" + hex.EncodeToString(hash), true}, &blk); err != nil {
		return RawBlock{}, err
	}
	return blk.toRawBlock(), nil
}

type rpcReceipt struct {
	TransactionHash   string `json:"transactionHash"`
	TransactionIndex  string `json:"transactionIndex"`
	Status            string `json:"status"`
	CumulativeGasUsed string `json:"cumulativeGasUsed"`
	GasUsed           string `json:"gasUsed"`
	ContractAddress   string `json:"contractAddress"`
	LogsBloom         string `json:"logsBloom"`
}

func (p *EthereumRPCProvider) GetReceipts(ctx context.Context, blockHash []byte) ([]RawReceipt, error) {
	var receipts []rpcReceipt
	if err := p.call(ctx, "eth_getBlockReceipts", []any{"0x" + hex.EncodeToString(blockHash)}, &receipts); err != nil {
		return nil, err
	}
	out := make([]RawReceipt, 0, len(receipts))
	for _, r := range receipts {
		out = append(out, RawReceipt{
			TransactionHash:   hexToBytes(r.TransactionHash),
			TransactionIndex:  uint32(hexToUint64(r.TransactionIndex)),
			Status:            uint8(hexToUint64(r.Status)),
			CumulativeGasUsed: hexToUint64(r.CumulativeGasUsed),
			GasUsed:           hexToUint64(r.GasUsed),
			ContractAddress:   hexToBytes(r.ContractAddress),
			LogsBloom:         hexToBytes(r.LogsBloom),
		})
	}
	return out, nil
}

type rpcLog struct {
	Address         string   `json:"address"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        string   `json:"logIndex"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
}

func (p *EthereumRPCProvider) GetLogs(ctx context.Context, blockHash []byte) ([]RawLog, error) {
	filter := map[string]string{"blockHash": "0x" + hex.EncodeToString(blockHash)}
	var logs []rpcLog
	if err := p.call(ctx, "eth_getLogs", []any{filter}, &logs); err != nil {
		return nil, err
	}
	out := make([]RawLog, 0, len(logs))
	for _, l := range logs {
		topics := make([][]byte, 0, len(l.Topics))
		for _, t := range l.Topics {
			topics = append(topics, hexToBytes(t))
		}
		out = append(out, RawLog{
			Address:         hexToBytes(l.Address),
			TransactionHash: hexToBytes(l.TransactionHash),
			LogIndex:        uint32(hexToUint64(l.LogIndex)),
			Topics:          topics,
			Data:            hexToBytes(l.Data),
		})
	}
	return out, nil
}

func (p *EthereumRPCProvider) GetWithdrawals(ctx context.Context, blockHash []byte) ([]RawWithdrawal, error) {
	var blk rpcBlock
	if err := p.call(ctx, "eth_getBlockByHash", []any{"0x" + hex.EncodeToString(blockHash), false}, &blk); err != nil {
		return nil, err
	}
	out := make([]RawWithdrawal, 0, len(blk.Withdrawals))
	for _, w := range blk.Withdrawals {
		out = append(out, RawWithdrawal{
			Index:          hexToUint64(w.Index),
			ValidatorIndex: hexToUint64(w.ValidatorIndex),
			Address:        hexToBytes(w.Address),
			Amount:         hexToUint64(w.Amount),
		})
	}
	return out, nil
}

var _ EthereumExtras = (*EthereumRPCProvider)(nil)
var _ Provider = (*EthereumRPCProvider)(nil)
