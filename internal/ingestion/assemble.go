package ingestion

import (
	"dnaindex/internal/fragment"
	"dnaindex/internal/provider"
)

// AssembleBlockFile builds the per-block archival file (spec.md 3.3) from
// a provider's raw block plus the Ethereum-family extras (receipts,
// logs) fetched separately. Which fragment kinds end up present is
// driven entirely by which RawBlock fields the provider populated, so
// the same assembler serves every chain family without a family switch:
// an Ethereum block carries transaction/receipt/event/withdrawal, a
// beacon block carries transaction/validator/blob, a Starknet block
// carries transaction/message/event.
func AssembleBlockFile(raw provider.RawBlock, receipts []provider.RawReceipt, logs []provider.RawLog) []byte {
	fragments := map[string][]byte{}

	hdr := fragment.NewRowSetBuilder(fragment.HeaderSchema)
	fragment.BuildHeaderRow(hdr, fragment.HeaderFields{
		Number:     raw.Number,
		Hash:       raw.Hash,
		ParentHash: raw.ParentHash,
		Timestamp:  raw.Timestamp,
		StateRoot:  raw.StateRoot,
	})
	fragments["header"] = hdr.Finish(raw.Number, raw.Hash)

	if len(raw.Transactions) > 0 {
		txs := fragment.NewRowSetBuilder(fragment.TransactionSchema)
		for _, tx := range raw.Transactions {
			fragment.BuildTransactionRow(txs, fragment.TransactionFields{
				Hash:                 tx.Hash,
				Nonce:                tx.Nonce,
				TransactionIndex:     tx.TransactionIndex,
				From:                 tx.From,
				To:                   tx.To,
				Value:                tx.Value,
				GasPrice:             tx.GasPrice,
				Gas:                  tx.Gas,
				MaxFeePerGas:         tx.MaxFeePerGas,
				MaxPriorityFeePerGas: tx.MaxPriorityFeePerGas,
				Input:                tx.Input,
				Signature:            tx.Signature,
				ChainID:              tx.ChainID,
				TransactionType:      tx.TransactionType,
			})
		}
		fragments["transaction"] = txs.Finish(raw.Number, raw.Hash)
	}

	if len(receipts) > 0 {
		rs := fragment.NewRowSetBuilder(fragment.ReceiptSchema)
		for _, r := range receipts {
			fragment.BuildReceiptRow(rs, fragment.ReceiptFields{
				TransactionHash:   r.TransactionHash,
				TransactionIndex:  r.TransactionIndex,
				Status:            r.Status,
				CumulativeGasUsed: r.CumulativeGasUsed,
				GasUsed:           r.GasUsed,
				ContractAddress:   r.ContractAddress,
				LogsBloom:         r.LogsBloom,
			})
		}
		fragments["receipt"] = rs.Finish(raw.Number, raw.Hash)
	}

	if len(logs) > 0 {
		evs := fragment.NewRowSetBuilder(fragment.EventSchema)
		for _, l := range logs {
			fragment.BuildEventRow(evs, fragment.EventFields{
				Address:         l.Address,
				TransactionHash: l.TransactionHash,
				LogIndex:        l.LogIndex,
				Topics:          l.Topics,
				Data:            l.Data,
			})
		}
		fragments["event"] = evs.Finish(raw.Number, raw.Hash)
	}

	if len(raw.Withdrawals) > 0 {
		ws := fragment.NewRowSetBuilder(fragment.WithdrawalSchema)
		for _, w := range raw.Withdrawals {
			fragment.BuildWithdrawalRow(ws, fragment.WithdrawalFields{
				Index:          w.Index,
				ValidatorIndex: w.ValidatorIndex,
				Address:        w.Address,
				Amount:         w.Amount,
			})
		}
		fragments["withdrawal"] = ws.Finish(raw.Number, raw.Hash)
	}

	if len(raw.Messages) > 0 {
		ms := fragment.NewRowSetBuilder(fragment.MessageSchema)
		for _, m := range raw.Messages {
			fragment.BuildMessageRow(ms, fragment.MessageFields{
				FromAddress: m.FromAddress,
				ToAddress:   m.ToAddress,
				Selector:    m.Selector,
				Payload:     m.Payload,
				Nonce:       m.Nonce,
				IsL1ToL2:    m.IsL1ToL2,
			})
		}
		fragments["message"] = ms.Finish(raw.Number, raw.Hash)
	}

	if len(raw.Validators) > 0 {
		vs := fragment.NewRowSetBuilder(fragment.ValidatorSchema)
		for _, v := range raw.Validators {
			fragment.BuildValidatorRow(vs, fragment.ValidatorFields{
				Index:            v.Index,
				Pubkey:           v.Pubkey,
				Status:           v.Status,
				EffectiveBalance: v.EffectiveBalance,
				Slashed:          v.Slashed,
			})
		}
		fragments["validator"] = vs.Finish(raw.Number, raw.Hash)
	}

	if len(raw.Blobs) > 0 {
		bs := fragment.NewRowSetBuilder(fragment.BlobSchema)
		for _, b := range raw.Blobs {
			fragment.BuildBlobRow(bs, fragment.BlobFields{
				TxHash:        b.TxHash,
				Index:         b.Index,
				KZGCommitment: b.KZGCommitment,
				KZGProof:      b.KZGProof,
				Blob:          b.Blob,
			})
		}
		fragments["blob"] = bs.Finish(raw.Number, raw.Hash)
	}

	return fragment.BuildBlockFile(raw.Number, raw.Hash, fragments)
}
