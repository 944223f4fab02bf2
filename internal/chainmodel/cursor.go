// Package chainmodel holds the primitives shared by every component of the
// indexing pipeline: cursors, hashes, fragment ids and the finality enum.
package chainmodel

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Cursor is a client-visible pointer into the stream. Ordering is by
// OrderKey; UniqueKey empty means "any hash at this height".
type Cursor struct {
	OrderKey  uint64
	UniqueKey []byte
}

// NewCursor builds a Cursor from a block number and hash.
func NewCursor(number uint64, hash []byte) Cursor {
	return Cursor{OrderKey: number, UniqueKey: hash}
}

// Number is an alias for OrderKey read as a block number.
func (c Cursor) Number() uint64 { return c.OrderKey }

// HasHash reports whether the cursor pins a specific hash.
func (c Cursor) HasHash() bool { return len(c.UniqueKey) > 0 }

// Less orders cursors by OrderKey only, matching the "ordering by number"
// contract in spec.md 3.1.
func (c Cursor) Less(other Cursor) bool { return c.OrderKey < other.OrderKey }

// Equal reports whether two cursors address the same height and hash. Two
// cursors at the same height where either side has an empty hash are
// considered equal ("any block at this height").
func (c Cursor) Equal(other Cursor) bool {
	if c.OrderKey != other.OrderKey {
		return false
	}
	if !c.HasHash() || !other.HasHash() {
		return true
	}
	return string(c.UniqueKey) == string(other.UniqueKey)
}

func (c Cursor) String() string {
	if !c.HasHash() {
		return fmt.Sprintf("#%d", c.OrderKey)
	}
	return fmt.Sprintf("#%d(%s)", c.OrderKey, hexEncode(c.UniqueKey))
}

type cursorJSON struct {
	OrderKey  uint64 `json:"orderKey"`
	UniqueKey string `json:"uniqueKey"`
}

// MarshalJSON renders the cursor as {"orderKey": n, "uniqueKey": "0x..."}
// per spec.md 6.3.
func (c Cursor) MarshalJSON() ([]byte, error) {
	return json.Marshal(cursorJSON{
		OrderKey:  c.OrderKey,
		UniqueKey: hexEncode(c.UniqueKey),
	})
}

// UnmarshalJSON parses the {"orderKey", "uniqueKey"} wire shape.
func (c *Cursor) UnmarshalJSON(data []byte) error {
	var raw cursorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	hash, err := hexDecode(raw.UniqueKey)
	if err != nil {
		return fmt.Errorf("chainmodel: decode uniqueKey: %w", err)
	}
	c.OrderKey = raw.OrderKey
	c.UniqueKey = hash
	return nil
}

func hexEncode(b []byte) string {
	if len(b) == 0 {
		return "0x"
	}
	return "0x" + hex.EncodeToString(b)
}

func hexDecode(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}
