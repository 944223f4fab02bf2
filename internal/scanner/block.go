package scanner

import (
	"bytes"

	"dnaindex/internal/chainmodel"
	"dnaindex/internal/fragment"
)

// BlockData gathers one block's fragment RowSets, opened but otherwise
// untouched, ready for FilterBlock's row-level re-scan. A nil field means
// that block carried zero rows of that kind (or the caller never loaded
// it because no sub-filter needs it).
type BlockData struct {
	Number uint64
	Hash   []byte

	HasHeader bool
	Header    fragment.Header

	Transactions *fragment.RowSet
	Receipts     *fragment.RowSet
	Events       *fragment.RowSet
	Withdrawals  *fragment.RowSet
	Messages     *fragment.RowSet
	Validators   *fragment.RowSet
	Blobs        *fragment.RowSet
}

// BlockDataFromBlockFile opens a single assembled per-block file (spec.md
// 3.3), the shape ingestion and the cursor producer's Block(cursor) path
// both hand the scanner before a block is ever segmented.
func BlockDataFromBlockFile(number uint64, hash []byte, raw []byte) BlockData {
	bf := fragment.OpenBlockFile(raw)
	bd := BlockData{Number: number, Hash: hash}
	if hb := bf.BlockFragment("header"); hb != nil {
		hrs := fragment.OpenHeaderRowSet(hb)
		if hrs.Len() > 0 {
			bd.HasHeader = true
			bd.Header = hrs.AsHeader(0)
		}
	}
	bd.Transactions = openFragment(chainmodel.FragmentTransaction, bf.BlockFragment("transaction"))
	bd.Receipts = openFragment(chainmodel.FragmentReceipt, bf.BlockFragment("receipt"))
	bd.Events = openFragment(chainmodel.FragmentEvent, bf.BlockFragment("event"))
	bd.Withdrawals = openFragment(chainmodel.FragmentWithdrawal, bf.BlockFragment("withdrawal"))
	bd.Messages = openFragment(chainmodel.FragmentMessage, bf.BlockFragment("message"))
	bd.Validators = openFragment(chainmodel.FragmentValidator, bf.BlockFragment("validator"))
	bd.Blobs = openFragment(chainmodel.FragmentBlob, bf.BlockFragment("blob"))
	return bd
}

// BlockDataFromSegmentSlots recovers one block's rows out of a segment's
// fragment files by relative position, mirroring
// original_source/dna/evm/src/server/filter.rs's
// "block_segment.transactions.blocks().get(relative_index)" access
// pattern. header is the segment's flat header RowSet (row position
// already equals block position); slots holds the SegmentSlotSchema
// RowSet for every other fragment kind the caller opened, keyed by
// fragment id — a kind the filter doesn't need can simply be omitted
// from the map.
func BlockDataFromSegmentSlots(relativeIndex uint32, header *fragment.RowSet, slots map[chainmodel.FragmentID]*fragment.RowSet) BlockData {
	var bd BlockData
	if header != nil && int(relativeIndex) < header.Len() {
		h := header.AsHeader(relativeIndex)
		bd.HasHeader = true
		bd.Header = h
		bd.Number = h.Number()
		bd.Hash = h.Hash()
	}
	if rs, ok := slots[chainmodel.FragmentTransaction]; ok {
		bd.Transactions = openFragment(chainmodel.FragmentTransaction, rs.SegmentSlotData(relativeIndex))
	}
	if rs, ok := slots[chainmodel.FragmentReceipt]; ok {
		bd.Receipts = openFragment(chainmodel.FragmentReceipt, rs.SegmentSlotData(relativeIndex))
	}
	if rs, ok := slots[chainmodel.FragmentEvent]; ok {
		bd.Events = openFragment(chainmodel.FragmentEvent, rs.SegmentSlotData(relativeIndex))
	}
	if rs, ok := slots[chainmodel.FragmentWithdrawal]; ok {
		bd.Withdrawals = openFragment(chainmodel.FragmentWithdrawal, rs.SegmentSlotData(relativeIndex))
	}
	if rs, ok := slots[chainmodel.FragmentMessage]; ok {
		bd.Messages = openFragment(chainmodel.FragmentMessage, rs.SegmentSlotData(relativeIndex))
	}
	if rs, ok := slots[chainmodel.FragmentValidator]; ok {
		bd.Validators = openFragment(chainmodel.FragmentValidator, rs.SegmentSlotData(relativeIndex))
	}
	if rs, ok := slots[chainmodel.FragmentBlob]; ok {
		bd.Blobs = openFragment(chainmodel.FragmentBlob, rs.SegmentSlotData(relativeIndex))
	}
	return bd
}

func openFragment(f chainmodel.FragmentID, data []byte) *fragment.RowSet {
	if data == nil {
		return nil
	}
	switch f {
	case chainmodel.FragmentTransaction:
		return fragment.OpenTransactionRowSet(data)
	case chainmodel.FragmentReceipt:
		return fragment.OpenReceiptRowSet(data)
	case chainmodel.FragmentEvent:
		return fragment.OpenEventRowSet(data)
	case chainmodel.FragmentWithdrawal:
		return fragment.OpenWithdrawalRowSet(data)
	case chainmodel.FragmentMessage:
		return fragment.OpenMessageRowSet(data)
	case chainmodel.FragmentValidator:
		return fragment.OpenValidatorRowSet(data)
	case chainmodel.FragmentBlob:
		return fragment.OpenBlobRowSet(data)
	default:
		return nil
	}
}

// FilterBlock re-filters one block's rows against every sub-filter in f,
// grounded directly on filter.rs's WorkItem.filter_block: the bitmap
// layer (scan.go) only narrowed which blocks to look at, so actual
// per-row matching (transaction from/to, log address/topics, and
// cross-fragment include_* resolution) happens here by a direct scan of
// this block's own rows, not by consulting the bitmap index again.
func FilterBlock(bd BlockData, f Filter) (*Block, *DataBag) {
	bag := NewDataBag()
	out := &Block{Number: bd.Number, Hash: bd.Hash}

	if f.Header != nil && f.Header.Always && bd.HasHeader {
		hf := fragment.HeaderFields{
			Number:     bd.Header.Number(),
			Hash:       bd.Header.Hash(),
			ParentHash: bd.Header.ParentHash(),
			Timestamp:  bd.Header.Timestamp(),
			StateRoot:  bd.Header.StateRoot(),
		}
		out.Header = &hf
	}

	requiredReceipts := make(map[uint32][]uint32) // transaction_index -> filter ids wanting its receipt
	requiredLogsFor := make(map[uint32][]uint32)   // transaction_index -> filter ids wanting its logs

	filterTransactions(bd, append(append([]TransactionFilter{}, f.Transactions...), f.BeaconTransactions...), out, bag, requiredReceipts, requiredLogsFor)
	filterLogs(bd, f.Logs, out, bag, requiredReceipts)
	filterWithdrawals(bd, f.Withdrawals, out)
	filterValidators(bd, f.Validators, out)
	filterBlobs(bd, f.Blobs, out, bag)
	filterMessages(bd, f.Messages, out)

	resolveReceipts(bd, requiredReceipts, out, bag)
	resolveLogsForTransactions(bd, requiredLogsFor, out, bag)

	return out, bag
}

func filterTransactions(bd BlockData, filters []TransactionFilter, out *Block, bag *DataBag, requiredReceipts, requiredLogsFor map[uint32][]uint32) {
	if len(filters) == 0 || bd.Transactions == nil {
		return
	}
	seen := make(map[uint32]int) // transaction_index -> index into out.Transactions
	for i := 0; i < bd.Transactions.Len(); i++ {
		t := bd.Transactions.AsTransaction(uint32(i))
		idx := t.TransactionIndex()
		for _, tf := range filters {
			if existing, ok := seen[idx]; ok {
				out.Transactions[existing].FilterIDs = appendUnique(out.Transactions[existing].FilterIDs, tf.FilterID)
				addIncludes(tf, idx, bag, requiredReceipts, requiredLogsFor)
				continue
			}
			if !matchesTransaction(tf, t) {
				continue
			}
			tr := TransactionResult{
				TransactionFields: fragment.TransactionFields{
					Hash:                 t.Hash(),
					Nonce:                t.Nonce(),
					TransactionIndex:     idx,
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
				},
				FilterIDs: []uint32{tf.FilterID},
			}
			out.Transactions = append(out.Transactions, tr)
			seen[idx] = len(out.Transactions) - 1
			bag.needTransaction(idx)
			addIncludes(tf, idx, bag, requiredReceipts, requiredLogsFor)
		}
	}
}

func addIncludes(tf TransactionFilter, idx uint32, bag *DataBag, requiredReceipts, requiredLogsFor map[uint32][]uint32) {
	if tf.IncludeReceipt {
		bag.needReceipt(idx)
		requiredReceipts[idx] = appendUnique(requiredReceipts[idx], tf.FilterID)
	}
	if tf.IncludeLogs {
		bag.needLog(idx)
		requiredLogsFor[idx] = appendUnique(requiredLogsFor[idx], tf.FilterID)
	}
}

func matchesTransaction(tf TransactionFilter, t fragment.Transaction) bool {
	from, to := t.From(), t.To()
	if tf.IsCreate && len(to) != 0 {
		return false
	}
	if tf.From != nil && !bytes.Equal(tf.From, from) {
		return false
	}
	if tf.To != nil && !bytes.Equal(tf.To, to) {
		return false
	}
	return true
}

func filterLogs(bd BlockData, filters []LogFilter, out *Block, bag *DataBag, requiredReceipts map[uint32][]uint32) {
	if len(filters) == 0 || bd.Events == nil {
		return
	}
	seen := make(map[uint32]int) // log_index -> index into out.Logs
	for i := 0; i < bd.Events.Len(); i++ {
		e := bd.Events.AsEvent(uint32(i))
		logIdx := e.LogIndex()
		for _, lf := range filters {
			if existing, ok := seen[logIdx]; ok {
				out.Logs[existing].FilterIDs = appendUnique(out.Logs[existing].FilterIDs, lf.FilterID)
				continue
			}
			if !matchesLog(lf, e) {
				continue
			}
			lr := LogResult{
				EventFields: fragment.EventFields{
					Address:         e.Address(),
					TransactionHash: e.TransactionHash(),
					LogIndex:        logIdx,
					Topics:          [][]byte{e.Topic0(), e.Topic1(), e.Topic2(), e.Topic3()},
					Data:            e.Data(),
				},
				FilterIDs: []uint32{lf.FilterID},
			}
			out.Logs = append(out.Logs, lr)
			seen[logIdx] = len(out.Logs) - 1
			bag.needLog(logIdx)
			if lf.IncludeReceipt && bd.Receipts != nil {
				if idx, ok := transactionIndexByHash(bd, e.TransactionHash()); ok {
					requiredReceipts[idx] = appendUnique(requiredReceipts[idx], lf.FilterID)
				}
			}
		}
	}
	resolveTransactionsForLogs(bd, filters, out, bag)
}

func matchesLog(lf LogFilter, e fragment.Event) bool {
	if lf.Address != nil && !bytes.Equal(lf.Address, e.Address()) {
		return false
	}
	topics := [4][]byte{e.Topic0(), e.Topic1(), e.Topic2(), e.Topic3()}
	for i, want := range lf.Topics {
		if want == nil {
			continue
		}
		if !bytes.Equal(want, topics[i]) {
			return false
		}
	}
	return true
}

// resolveTransactionsForLogs pulls in the owning transaction for any log
// result whose filter requested include_transaction, matched by
// transaction hash since the event fragment carries no transaction index.
func resolveTransactionsForLogs(bd BlockData, filters []LogFilter, out *Block, bag *DataBag) {
	anyIncludeTransaction := false
	for _, lf := range filters {
		if lf.IncludeTransaction {
			anyIncludeTransaction = true
			break
		}
	}
	if !anyIncludeTransaction || bd.Transactions == nil {
		return
	}
	byHash := make(map[string]bool, len(out.Logs))
	for _, lr := range out.Logs {
		byHash[string(lr.TransactionHash)] = true
	}
	present := make(map[string]bool, len(out.Transactions))
	for _, tr := range out.Transactions {
		present[string(tr.Hash)] = true
	}
	for i := 0; i < bd.Transactions.Len(); i++ {
		t := bd.Transactions.AsTransaction(uint32(i))
		if !byHash[string(t.Hash())] || present[string(t.Hash())] {
			continue
		}
		out.Transactions = append(out.Transactions, TransactionResult{
			TransactionFields: fragment.TransactionFields{
				Hash: t.Hash(), Nonce: t.Nonce(), TransactionIndex: t.TransactionIndex(),
				From: t.From(), To: t.To(), Value: t.Value(), GasPrice: t.GasPrice(), Gas: t.Gas(),
				MaxFeePerGas: t.MaxFeePerGas(), MaxPriorityFeePerGas: t.MaxPriorityFeePerGas(),
				Input: t.Input(), Signature: t.Signature(), ChainID: t.ChainID(), TransactionType: t.TransactionType(),
			},
		})
		present[string(t.Hash())] = true
		bag.needTransaction(t.TransactionIndex())
	}
}

func transactionIndexByHash(bd BlockData, hash []byte) (uint32, bool) {
	if bd.Transactions == nil || len(hash) == 0 {
		return 0, false
	}
	for i := 0; i < bd.Transactions.Len(); i++ {
		t := bd.Transactions.AsTransaction(uint32(i))
		if bytes.Equal(t.Hash(), hash) {
			return t.TransactionIndex(), true
		}
	}
	return 0, false
}

func resolveReceipts(bd BlockData, wanted map[uint32][]uint32, out *Block, bag *DataBag) {
	if len(wanted) == 0 || bd.Receipts == nil {
		return
	}
	out.Receipts = make(map[uint32]fragment.ReceiptFields, len(wanted))
	for i := 0; i < bd.Receipts.Len(); i++ {
		r := bd.Receipts.AsReceipt(uint32(i))
		idx := r.TransactionIndex()
		if _, ok := wanted[idx]; !ok {
			continue
		}
		out.Receipts[idx] = fragment.ReceiptFields{
			TransactionHash:   r.TransactionHash(),
			TransactionIndex:  idx,
			Status:            r.Status(),
			CumulativeGasUsed: r.CumulativeGasUsed(),
			GasUsed:           r.GasUsed(),
			ContractAddress:   r.ContractAddress(),
			LogsBloom:         r.LogsBloom(),
		}
		bag.needReceipt(idx)
	}
}

func resolveLogsForTransactions(bd BlockData, wanted map[uint32][]uint32, out *Block, bag *DataBag) {
	if len(wanted) == 0 || bd.Events == nil || bd.Transactions == nil {
		return
	}
	hashByIndex := make(map[uint32][]byte, len(wanted))
	for i := 0; i < bd.Transactions.Len(); i++ {
		t := bd.Transactions.AsTransaction(uint32(i))
		if _, ok := wanted[t.TransactionIndex()]; ok {
			hashByIndex[t.TransactionIndex()] = t.Hash()
		}
	}
	present := make(map[uint32]bool, len(out.Logs))
	for _, lr := range out.Logs {
		present[lr.LogIndex] = true
	}
	for i := 0; i < bd.Events.Len(); i++ {
		e := bd.Events.AsEvent(uint32(i))
		if present[e.LogIndex()] {
			continue
		}
		matched := false
		for _, hash := range hashByIndex {
			if bytes.Equal(hash, e.TransactionHash()) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		out.Logs = append(out.Logs, LogResult{
			EventFields: fragment.EventFields{
				Address: e.Address(), TransactionHash: e.TransactionHash(), LogIndex: e.LogIndex(),
				Topics: [][]byte{e.Topic0(), e.Topic1(), e.Topic2(), e.Topic3()}, Data: e.Data(),
			},
		})
		present[e.LogIndex()] = true
		bag.needLog(e.LogIndex())
	}
}

func filterWithdrawals(bd BlockData, filters []WithdrawalFilter, out *Block) {
	if len(filters) == 0 || bd.Withdrawals == nil {
		return
	}
	for i := 0; i < bd.Withdrawals.Len(); i++ {
		w := bd.Withdrawals.AsWithdrawal(uint32(i))
		var ids []uint32
		for _, wf := range filters {
			if wf.Address != nil && !bytes.Equal(wf.Address, w.Address()) {
				continue
			}
			if wf.Validator != nil && *wf.Validator != w.ValidatorIndex() {
				continue
			}
			ids = append(ids, wf.FilterID)
		}
		if len(ids) == 0 {
			continue
		}
		out.Withdrawals = append(out.Withdrawals, WithdrawalResult{
			WithdrawalFields: fragment.WithdrawalFields{
				Index: w.Index(), ValidatorIndex: w.ValidatorIndex(), Address: w.Address(), Amount: w.Amount(),
			},
			FilterIDs: ids,
		})
	}
}

func filterValidators(bd BlockData, filters []ValidatorFilter, out *Block) {
	if len(filters) == 0 || bd.Validators == nil {
		return
	}
	for i := 0; i < bd.Validators.Len(); i++ {
		v := bd.Validators.AsValidator(uint32(i))
		var ids []uint32
		for _, vf := range filters {
			if vf.Index != nil && *vf.Index != v.Index() {
				continue
			}
			if vf.Status != "" && vf.Status != v.Status() {
				continue
			}
			ids = append(ids, vf.FilterID)
		}
		if len(ids) == 0 {
			continue
		}
		out.Validators = append(out.Validators, ValidatorResult{
			ValidatorFields: fragment.ValidatorFields{
				Index: v.Index(), Pubkey: v.Pubkey(), Status: v.Status(),
				EffectiveBalance: v.EffectiveBalance(), Slashed: v.Slashed(),
			},
			FilterIDs: ids,
		})
	}
}

func filterBlobs(bd BlockData, filters []BlobFilter, out *Block, bag *DataBag) {
	if len(filters) == 0 || bd.Blobs == nil {
		return
	}
	for i := 0; i < bd.Blobs.Len(); i++ {
		b := bd.Blobs.AsBlob(uint32(i))
		var ids []uint32
		for _, bf := range filters {
			if bf.TxHash != nil && !bytes.Equal(bf.TxHash, b.TxHash()) {
				continue
			}
			ids = append(ids, bf.FilterID)
		}
		if len(ids) == 0 {
			continue
		}
		out.Blobs = append(out.Blobs, BlobResult{
			BlobFields: fragment.BlobFields{
				TxHash: b.TxHash(), Index: b.Index(), KZGCommitment: b.KZGCommitment(),
				KZGProof: b.KZGProof(), Blob: b.BlobData(),
			},
			FilterIDs: ids,
		})
		bag.needBlob(b.Index())
	}
}

func filterMessages(bd BlockData, filters []MessageFilter, out *Block) {
	if len(filters) == 0 || bd.Messages == nil {
		return
	}
	for i := 0; i < bd.Messages.Len(); i++ {
		m := bd.Messages.AsMessage(uint32(i))
		var ids []uint32
		for _, mf := range filters {
			if mf.From != nil && !bytes.Equal(mf.From, m.FromAddress()) {
				continue
			}
			if mf.To != nil && !bytes.Equal(mf.To, m.ToAddress()) {
				continue
			}
			ids = append(ids, mf.FilterID)
		}
		if len(ids) == 0 {
			continue
		}
		out.Messages = append(out.Messages, MessageResult{
			MessageFields: fragment.MessageFields{
				FromAddress: m.FromAddress(), ToAddress: m.ToAddress(), Selector: m.Selector(),
				Payload: m.Payload(), Nonce: m.Nonce(), IsL1ToL2: m.IsL1ToL2(),
			},
			FilterIDs: ids,
		})
	}
}

func appendUnique(ids []uint32, id uint32) []uint32 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
