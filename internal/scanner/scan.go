package scanner

import (
	"encoding/hex"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"dnaindex/internal/bitmapindex"
	"dnaindex/internal/chainmodel"
)

// MatchSet maps a sub-filter's FilterID to the block numbers (within the
// scanned group or segment) it matched, per spec.md 4.H step 4:
// "matches[filter.id] |= local".
type MatchSet map[uint32]*roaring.Bitmap

func (m MatchSet) add(id uint32, bm *roaring.Bitmap) {
	cur, ok := m[id]
	if !ok {
		m[id] = bm.Clone()
		return
	}
	cur.Or(bm)
}

// Union returns the set of every block number matched by any sub-filter,
// the candidate set the materialization pass iterates.
func (m MatchSet) Union() *roaring.Bitmap {
	out := roaring.New()
	for _, bm := range m {
		out.Or(bm)
	}
	return out
}

// Scan runs the per-filter scan algorithm from spec.md 4.H's "Scan
// algorithm (per block or per group)" section against one IndexGroup (a
// whole group in group mode, or a single block's IndexGroup projection in
// segment mode — the caller decides which by what it passes as group).
// isGroup controls whether a missing include_* join index downgrades to
// a deferred lookup (true) or is fatal (false).
func Scan(group *bitmapindex.IndexGroup, f Filter, isGroup bool) (MatchSet, error) {
	matches := make(MatchSet)

	for _, tx := range f.Transactions {
		if err := scanTransaction(group, tx, matches, isGroup); err != nil {
			return nil, err
		}
	}
	for _, tx := range f.BeaconTransactions {
		if err := scanTransaction(group, tx, matches, isGroup); err != nil {
			return nil, err
		}
	}
	for _, lg := range f.Logs {
		if err := scanLog(group, lg, matches, isGroup); err != nil {
			return nil, err
		}
	}
	for _, w := range f.Withdrawals {
		scanWithdrawal(group, w, matches)
	}
	for _, v := range f.Validators {
		scanValidator(group, v, matches)
	}
	for _, b := range f.Blobs {
		if err := scanBlob(group, b, matches, isGroup); err != nil {
			return nil, err
		}
	}
	for _, mf := range f.Messages {
		scanMessage(group, mf, matches)
	}

	return matches, nil
}

func scanTransaction(group *bitmapindex.IndexGroup, tx TransactionFilter, matches MatchSet, isGroup bool) error {
	local := group.RangeFor(chainmodel.FragmentTransaction).Clone()
	if tx.From != nil {
		local.And(group.Index(chainmodel.FragmentTransaction, "from").GetBitmap(hex.EncodeToString(tx.From)))
	}
	if tx.To != nil {
		local.And(group.Index(chainmodel.FragmentTransaction, "to").GetBitmap(hex.EncodeToString(tx.To)))
	}
	if tx.IsCreate {
		// Contract creations carry no "to" address; the from/to index
		// can't express absence, so a create filter only narrows by
		// "from" above and leaves the create-vs-call distinction to the
		// block-level re-filter (block.go), matching
		// filter.rs's should_include_by_to treatment of a missing "to".
	}
	matches.add(tx.FilterID, local)

	if tx.IncludeLogs {
		if err := deferOrFatal(group, chainmodel.FragmentEvent, "", isGroup); err != nil {
			return err
		}
	}
	return nil
}

func scanLog(group *bitmapindex.IndexGroup, lg LogFilter, matches MatchSet, isGroup bool) error {
	local := group.RangeFor(chainmodel.FragmentEvent).Clone()
	if lg.Address != nil {
		local.And(group.Index(chainmodel.FragmentEvent, "address").GetBitmap(hex.EncodeToString(lg.Address)))
	}
	for i, topic := range lg.Topics {
		if topic == nil {
			continue
		}
		name := fmt.Sprintf("topic%d", i)
		local.And(group.Index(chainmodel.FragmentEvent, name).GetBitmap(hex.EncodeToString(topic)))
	}
	matches.add(lg.FilterID, local)

	if lg.IncludeTransaction {
		if err := deferOrFatal(group, chainmodel.FragmentTransaction, "", isGroup); err != nil {
			return err
		}
	}
	return nil
}

func scanWithdrawal(group *bitmapindex.IndexGroup, w WithdrawalFilter, matches MatchSet) {
	local := group.RangeFor(chainmodel.FragmentWithdrawal).Clone()
	if w.Address != nil {
		local.And(group.Index(chainmodel.FragmentWithdrawal, "address").GetBitmap(hex.EncodeToString(w.Address)))
	}
	if w.Validator != nil {
		key := fmt.Sprintf("%d", *w.Validator)
		local.And(group.Index(chainmodel.FragmentWithdrawal, "validator_index").GetBitmap(key))
	}
	matches.add(w.FilterID, local)
}

func scanValidator(group *bitmapindex.IndexGroup, v ValidatorFilter, matches MatchSet) {
	local := group.RangeFor(chainmodel.FragmentValidator).Clone()
	if v.Index != nil {
		key := fmt.Sprintf("%d", *v.Index)
		local.And(group.Index(chainmodel.FragmentValidator, "index").GetBitmap(key))
	}
	if v.Status != "" {
		local.And(group.Index(chainmodel.FragmentValidator, "status").GetBitmap(v.Status))
	}
	matches.add(v.FilterID, local)
}

func scanBlob(group *bitmapindex.IndexGroup, b BlobFilter, matches MatchSet, isGroup bool) error {
	local := group.RangeFor(chainmodel.FragmentBlob).Clone()
	if b.TxHash != nil {
		local.And(group.Index(chainmodel.FragmentBlob, "tx_hash").GetBitmap(hex.EncodeToString(b.TxHash)))
	}
	matches.add(b.FilterID, local)

	if b.IncludeTransaction {
		if err := deferOrFatal(group, chainmodel.FragmentTransaction, "tx_by_blob", isGroup); err != nil {
			return err
		}
	}
	if b.IncludeBlob {
		if err := deferOrFatal(group, chainmodel.FragmentBlob, "blob_by_tx", isGroup); err != nil {
			return err
		}
	}
	return nil
}

func scanMessage(group *bitmapindex.IndexGroup, mf MessageFilter, matches MatchSet) {
	local := group.RangeFor(chainmodel.FragmentMessage).Clone()
	if mf.From != nil {
		local.And(group.Index(chainmodel.FragmentMessage, "from_address").GetBitmap(hex.EncodeToString(mf.From)))
	}
	if mf.To != nil {
		local.And(group.Index(chainmodel.FragmentMessage, "to_address").GetBitmap(hex.EncodeToString(mf.To)))
	}
	matches.add(mf.FilterID, local)
}

// deferOrFatal implements spec.md 4.H's "Missing include_* join indices
// when is_group=true downgrade to deferred lookup at segment scope; when
// is_group=false, a missing required index is fatal." A present join
// index (joinName non-empty) or an existing range bitmap for fragment f
// both count as "the index exists" — the actual row lookup itself always
// happens later in the materialization pass (block.go), this only gates
// whether its absence is an error right now.
func deferOrFatal(group *bitmapindex.IndexGroup, f chainmodel.FragmentID, joinName string, isGroup bool) error {
	if joinName != "" {
		if _, ok := group.JoinIndexes[joinName]; ok {
			return nil
		}
	} else if _, ok := group.Ranges[f]; ok {
		return nil
	}
	if isGroup {
		return nil
	}
	return newErr(KindMissingJoinIndex, fmt.Sprintf("fragment %s join %q", f.Name(), joinName), bitmapindex.ErrMissingJoinIndex)
}
