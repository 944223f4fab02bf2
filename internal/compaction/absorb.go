package compaction

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"dnaindex/internal/bitmapindex"
	"dnaindex/internal/chainmodel"
	"dnaindex/internal/fragment"
)

// absorbBlock copies one block's per-block fragments into the segment
// accumulator and records the block's secondary-index attributes into
// the in-progress group. It mirrors
// internal/ingestion.AssembleBlockFile's per-fragment-kind construction,
// just reading rows back out of an already-encoded block file instead of
// a provider's raw types, and re-nesting everything but header under a
// per-block slot (see segmentAccumulator's doc).
//
// Index bitmap elements are absolute block numbers throughout (see
// internal/bitmapindex's domain note), so absorbing the same block twice
// — as compaction's reorg-rewind path deliberately does when replaying a
// retained prefix — adds the same block number to the same bitmaps
// twice, which roaring bitmaps treat as a no-op.
func absorbBlock(acc *segmentAccumulator, group *bitmapindex.IndexGroup, number uint64, blockBody []byte) {
	blockFile := fragment.OpenBlockFile(blockBody)

	if raw := blockFile.BlockFragment("header"); raw != nil {
		copyHeaderRow(acc, group, number, raw)
	}

	var txIndexByHash map[string]uint32
	if b, ok := acc.slots[chainmodel.FragmentTransaction]; ok {
		txIndexByHash = absorbTransactionSlot(b, group, number, blockFile.BlockFragment("transaction"))
	}
	if b, ok := acc.slots[chainmodel.FragmentReceipt]; ok {
		absorbReceiptSlot(b, number, blockFile.BlockFragment("receipt"))
	}
	if b, ok := acc.slots[chainmodel.FragmentEvent]; ok {
		absorbEventSlot(b, group, number, blockFile.BlockFragment("event"))
	}
	if b, ok := acc.slots[chainmodel.FragmentWithdrawal]; ok {
		absorbWithdrawalSlot(b, group, number, blockFile.BlockFragment("withdrawal"))
	}
	if b, ok := acc.slots[chainmodel.FragmentMessage]; ok {
		absorbMessageSlot(b, group, number, blockFile.BlockFragment("message"))
	}
	if b, ok := acc.slots[chainmodel.FragmentValidator]; ok {
		absorbValidatorSlot(b, group, number, blockFile.BlockFragment("validator"))
	}
	if b, ok := acc.slots[chainmodel.FragmentBlob]; ok {
		absorbBlobSlot(b, group, number, blockFile.BlockFragment("blob"), txIndexByHash)
	}
}

func copyHeaderRow(acc *segmentAccumulator, group *bitmapindex.IndexGroup, number uint64, raw []byte) {
	rs := fragment.OpenHeaderRowSet(raw)
	for i := 0; i < rs.Len(); i++ {
		h := rs.AsHeader(uint32(i))
		fragment.BuildHeaderRow(acc.header, fragment.HeaderFields{
			Number:     h.Number(),
			Hash:       h.Hash(),
			ParentHash: h.ParentHash(),
			Timestamp:  h.Timestamp(),
			StateRoot:  h.StateRoot(),
		})
	}
	group.MarkBlockHasFragment(chainmodel.FragmentHeader, number)
}

// absorbTransactionSlot folds one block's transaction rows into slot's
// next position, returning a tx-hash -> transaction-index lookup for
// this block, consumed by absorbBlobSlot to build the blob_by_tx /
// tx_by_blob join indices.
func absorbTransactionSlot(slot *fragment.RowSetBuilder, group *bitmapindex.IndexGroup, number uint64, raw []byte) map[string]uint32 {
	if raw == nil {
		fragment.BuildSegmentSlotRow(slot, nil)
		return nil
	}
	rs := fragment.OpenTransactionRowSet(raw)
	nested := fragment.NewRowSetBuilder(fragment.TransactionSchema)
	byHash := make(map[string]uint32, rs.Len())
	for i := 0; i < rs.Len(); i++ {
		t := rs.AsTransaction(uint32(i))
		fragment.BuildTransactionRow(nested, fragment.TransactionFields{
			Hash:                 t.Hash(),
			Nonce:                t.Nonce(),
			TransactionIndex:     t.TransactionIndex(),
			From:                 t.From(),
			To:                   t.To(),
			Value:                t.Value(),
			GasPrice:             t.GasPrice(),
			Gas:                  t.Gas(),
			MaxFeePerGas:         t.MaxFeePerGas(),
			MaxPriorityFeePerGas: t.MaxPriorityFeePerGas(),
			Input:                t.Input(),
			Signature:            t.Signature(),
			ChainID:              t.ChainID(),
			TransactionType:      t.TransactionType(),
		})
		if from := t.From(); len(from) > 0 {
			group.Index(chainmodel.FragmentTransaction, "from").Add(hex.EncodeToString(from), uint32(number))
		}
		if to := t.To(); len(to) > 0 {
			group.Index(chainmodel.FragmentTransaction, "to").Add(hex.EncodeToString(to), uint32(number))
		}
		if hash := t.Hash(); len(hash) > 0 {
			byHash[hex.EncodeToString(hash)] = t.TransactionIndex()
		}
	}
	group.MarkBlockHasFragment(chainmodel.FragmentTransaction, number)
	fragment.BuildSegmentSlotRow(slot, nested.Finish(number, nil))
	return byHash
}

func absorbReceiptSlot(slot *fragment.RowSetBuilder, number uint64, raw []byte) {
	if raw == nil {
		fragment.BuildSegmentSlotRow(slot, nil)
		return
	}
	rs := fragment.OpenReceiptRowSet(raw)
	nested := fragment.NewRowSetBuilder(fragment.ReceiptSchema)
	for i := 0; i < rs.Len(); i++ {
		r := rs.AsReceipt(uint32(i))
		fragment.BuildReceiptRow(nested, fragment.ReceiptFields{
			TransactionHash:   r.TransactionHash(),
			TransactionIndex:  r.TransactionIndex(),
			Status:            r.Status(),
			CumulativeGasUsed: r.CumulativeGasUsed(),
			GasUsed:           r.GasUsed(),
			ContractAddress:   r.ContractAddress(),
			LogsBloom:         r.LogsBloom(),
		})
	}
	fragment.BuildSegmentSlotRow(slot, nested.Finish(number, nil))
}

func absorbEventSlot(slot *fragment.RowSetBuilder, group *bitmapindex.IndexGroup, number uint64, raw []byte) {
	if raw == nil {
		fragment.BuildSegmentSlotRow(slot, nil)
		return
	}
	rs := fragment.OpenEventRowSet(raw)
	nested := fragment.NewRowSetBuilder(fragment.EventSchema)
	for i := 0; i < rs.Len(); i++ {
		e := rs.AsEvent(uint32(i))
		topics := [][]byte{e.Topic0(), e.Topic1(), e.Topic2(), e.Topic3()}
		fragment.BuildEventRow(nested, fragment.EventFields{
			Address:         e.Address(),
			TransactionHash: e.TransactionHash(),
			LogIndex:        e.LogIndex(),
			Topics:          topics,
			Data:            e.Data(),
		})
		if addr := e.Address(); len(addr) > 0 {
			group.Index(chainmodel.FragmentEvent, "address").Add(hex.EncodeToString(addr), uint32(number))
		}
		for i, topic := range topics {
			if len(topic) == 0 {
				continue
			}
			name := fmt.Sprintf("topic%d", i)
			group.Index(chainmodel.FragmentEvent, name).Add(hex.EncodeToString(topic), uint32(number))
		}
	}
	group.MarkBlockHasFragment(chainmodel.FragmentEvent, number)
	fragment.BuildSegmentSlotRow(slot, nested.Finish(number, nil))
}

func absorbWithdrawalSlot(slot *fragment.RowSetBuilder, group *bitmapindex.IndexGroup, number uint64, raw []byte) {
	if raw == nil {
		fragment.BuildSegmentSlotRow(slot, nil)
		return
	}
	rs := fragment.OpenWithdrawalRowSet(raw)
	nested := fragment.NewRowSetBuilder(fragment.WithdrawalSchema)
	for i := 0; i < rs.Len(); i++ {
		w := rs.AsWithdrawal(uint32(i))
		fragment.BuildWithdrawalRow(nested, fragment.WithdrawalFields{
			Index:          w.Index(),
			ValidatorIndex: w.ValidatorIndex(),
			Address:        w.Address(),
			Amount:         w.Amount(),
		})
		if addr := w.Address(); len(addr) > 0 {
			group.Index(chainmodel.FragmentWithdrawal, "address").Add(hex.EncodeToString(addr), uint32(number))
		}
		group.Index(chainmodel.FragmentWithdrawal, "validator_index").Add(strconv.FormatUint(w.ValidatorIndex(), 10), uint32(number))
	}
	group.MarkBlockHasFragment(chainmodel.FragmentWithdrawal, number)
	fragment.BuildSegmentSlotRow(slot, nested.Finish(number, nil))
}

func absorbMessageSlot(slot *fragment.RowSetBuilder, group *bitmapindex.IndexGroup, number uint64, raw []byte) {
	if raw == nil {
		fragment.BuildSegmentSlotRow(slot, nil)
		return
	}
	rs := fragment.OpenMessageRowSet(raw)
	nested := fragment.NewRowSetBuilder(fragment.MessageSchema)
	for i := 0; i < rs.Len(); i++ {
		m := rs.AsMessage(uint32(i))
		fragment.BuildMessageRow(nested, fragment.MessageFields{
			FromAddress: m.FromAddress(),
			ToAddress:   m.ToAddress(),
			Selector:    m.Selector(),
			Payload:     m.Payload(),
			Nonce:       m.Nonce(),
			IsL1ToL2:    m.IsL1ToL2(),
		})
		if from := m.FromAddress(); len(from) > 0 {
			group.Index(chainmodel.FragmentMessage, "from_address").Add(hex.EncodeToString(from), uint32(number))
		}
		if to := m.ToAddress(); len(to) > 0 {
			group.Index(chainmodel.FragmentMessage, "to_address").Add(hex.EncodeToString(to), uint32(number))
		}
	}
	group.MarkBlockHasFragment(chainmodel.FragmentMessage, number)
	fragment.BuildSegmentSlotRow(slot, nested.Finish(number, nil))
}

func absorbValidatorSlot(slot *fragment.RowSetBuilder, group *bitmapindex.IndexGroup, number uint64, raw []byte) {
	if raw == nil {
		fragment.BuildSegmentSlotRow(slot, nil)
		return
	}
	rs := fragment.OpenValidatorRowSet(raw)
	nested := fragment.NewRowSetBuilder(fragment.ValidatorSchema)
	for i := 0; i < rs.Len(); i++ {
		v := rs.AsValidator(uint32(i))
		fragment.BuildValidatorRow(nested, fragment.ValidatorFields{
			Index:            v.Index(),
			Pubkey:           v.Pubkey(),
			Status:           v.Status(),
			EffectiveBalance: v.EffectiveBalance(),
			Slashed:          v.Slashed(),
		})
		group.Index(chainmodel.FragmentValidator, "index").Add(strconv.FormatUint(v.Index(), 10), uint32(number))
		if status := v.Status(); status != "" {
			group.Index(chainmodel.FragmentValidator, "status").Add(status, uint32(number))
		}
	}
	group.MarkBlockHasFragment(chainmodel.FragmentValidator, number)
	fragment.BuildSegmentSlotRow(slot, nested.Finish(number, nil))
}

func absorbBlobSlot(slot *fragment.RowSetBuilder, group *bitmapindex.IndexGroup, number uint64, raw []byte, txIndexByHash map[string]uint32) {
	if raw == nil {
		fragment.BuildSegmentSlotRow(slot, nil)
		return
	}
	rs := fragment.OpenBlobRowSet(raw)
	nested := fragment.NewRowSetBuilder(fragment.BlobSchema)
	for i := 0; i < rs.Len(); i++ {
		blob := rs.AsBlob(uint32(i))
		fragment.BuildBlobRow(nested, fragment.BlobFields{
			TxHash:        blob.TxHash(),
			Index:         blob.Index(),
			KZGCommitment: blob.KZGCommitment(),
			KZGProof:      blob.KZGProof(),
			Blob:          blob.BlobData(),
		})
		txHash := blob.TxHash()
		if len(txHash) == 0 {
			continue
		}
		group.Index(chainmodel.FragmentBlob, "tx_hash").Add(hex.EncodeToString(txHash), uint32(number))
		if txIndexByHash != nil {
			if txIndex, ok := txIndexByHash[hex.EncodeToString(txHash)]; ok {
				group.Join("blob_by_tx").Add(txIndex, uint32(number))
				group.Join("tx_by_blob").Add(blob.Index(), uint32(number))
			}
		}
	}
	group.MarkBlockHasFragment(chainmodel.FragmentBlob, number)
	fragment.BuildSegmentSlotRow(slot, nested.Finish(number, nil))
}
