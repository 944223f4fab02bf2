package fragment

import "fmt"

// SlotKind tags which arm of the Slot tagged variant is populated
// (spec.md 4.C: "Slot-style fragments (beacon-chain) wrap their payload
// in a tagged variant Slot = Missed { slot } | Proposed(payload)").
type SlotKind uint8

const (
	SlotMissed SlotKind = iota
	SlotProposed
)

// Slot is a beacon-chain slot row: either a missed slot (just the slot
// number) or a proposed one carrying a row_id into the block's
// transaction/validator fragments.
type Slot struct {
	Kind      SlotKind
	SlotNum   uint64
	RowID     uint32 // valid only when Kind == SlotProposed
}

// Missed constructs the Missed arm.
func Missed(slotNum uint64) Slot { return Slot{Kind: SlotMissed, SlotNum: slotNum} }

// Proposed constructs the Proposed arm, carrying the row_id of the
// associated payload row.
func Proposed(slotNum uint64, rowID uint32) Slot {
	return Slot{Kind: SlotProposed, SlotNum: slotNum, RowID: rowID}
}

func (s Slot) String() string {
	if s.Kind == SlotMissed {
		return fmt.Sprintf("Slot::Missed{%d}", s.SlotNum)
	}
	return fmt.Sprintf("Slot::Proposed{%d -> row %d}", s.SlotNum, s.RowID)
}

// slotSchema backs the index fragment's slot column for beacon chains:
// is_proposed distinguishes the two arms, row_id is meaningless (and
// absent) when is_proposed is false.
var slotSchema = Schema{
	{"slot", FieldUint64},
	{"is_proposed", FieldBool},
	{"row_id", FieldUint32},
}

// SlotSchema exposes slotSchema for callers building/reading a beacon
// "index" fragment's slot column directly.
func SlotSchema() Schema { return slotSchema }

// BuildSlotRow appends one Slot row.
func BuildSlotRow(rsb *RowSetBuilder, s Slot) uint32 {
	return rsb.AddRow(func(r *rowRecorder) {
		r.Uint64("slot", s.SlotNum)
		r.Bool("is_proposed", s.Kind == SlotProposed)
		if s.Kind == SlotProposed {
			r.Uint32("row_id", s.RowID)
		}
	})
}

// ReadSlotRow reconstructs a Slot from its row view.
func ReadSlotRow(row RowTable) Slot {
	if row.Bool("is_proposed") {
		return Proposed(row.Uint64("slot"), row.Uint32("row_id"))
	}
	return Missed(row.Uint64("slot"))
}
