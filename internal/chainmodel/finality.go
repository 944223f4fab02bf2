package chainmodel

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Finality is a chain-finality stage, strictly increasing along a
// canonical chain (spec.md 6.4).
type Finality int

const (
	FinalityUnknown Finality = iota
	FinalityPending
	FinalityAccepted
	FinalityFinalized
)

func (f Finality) String() string {
	switch f {
	case FinalityPending:
		return "pending"
	case FinalityAccepted:
		return "accepted"
	case FinalityFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// ParseFinality accepts the four names case-insensitively, per spec.md
// scenario S3 ("FINALIZED" must parse the same as "finalized").
func ParseFinality(s string) (Finality, error) {
	switch strings.ToLower(s) {
	case "pending":
		return FinalityPending, nil
	case "accepted":
		return FinalityAccepted, nil
	case "finalized":
		return FinalityFinalized, nil
	case "unknown", "":
		return FinalityUnknown, nil
	default:
		return FinalityUnknown, fmt.Errorf("chainmodel: unknown finality %q", s)
	}
}

func (f Finality) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

func (f *Finality) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseFinality(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
