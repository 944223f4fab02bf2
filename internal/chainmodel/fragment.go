package chainmodel

import "fmt"

// FragmentID is the small integer tag identifying a fragment kind. Zero,
// one and two are reserved across every chain family (spec.md 3.1).
type FragmentID uint8

const (
	FragmentHeader FragmentID = 0
	FragmentIndex  FragmentID = 1
	FragmentJoin   FragmentID = 2

	// Chain-specific fragments start at 3. Numbering is shared across
	// families so a fragment id is stable once assigned, even though not
	// every family populates every id.
	FragmentTransaction FragmentID = 3
	FragmentReceipt     FragmentID = 4
	FragmentEvent       FragmentID = 5
	FragmentMessage     FragmentID = 6
	FragmentValidator   FragmentID = 7
	FragmentBlob        FragmentID = 8
	FragmentWithdrawal  FragmentID = 9
)

// fragmentNames gives every fragment id its stable human name, used as a
// path segment under segment/{first}/{fragment_name}.
var fragmentNames = map[FragmentID]string{
	FragmentHeader:      "header",
	FragmentIndex:       "index",
	FragmentJoin:        "join",
	FragmentTransaction: "transaction",
	FragmentReceipt:     "receipt",
	FragmentEvent:       "event",
	FragmentMessage:     "message",
	FragmentValidator:   "validator",
	FragmentBlob:        "blob",
	FragmentWithdrawal:  "withdrawal",
}

// Name returns the stable path segment for a fragment id, or "" if unknown.
func (f FragmentID) Name() string { return fragmentNames[f] }

// ChainFamily is a closed tag over the supported chain families. It is the
// "no reflection, no subtyping" dispatch mechanism called for in spec.md
// design note "Dynamic dispatch over chain families": scanner and
// fragment code switch on this tag rather than using an open interface
// registry.
type ChainFamily int

const (
	ChainFamilyEthereum ChainFamily = iota
	ChainFamilyStarknet
	ChainFamilyBeacon
)

func (c ChainFamily) String() string {
	switch c {
	case ChainFamilyEthereum:
		return "ethereum"
	case ChainFamilyStarknet:
		return "starknet"
	case ChainFamilyBeacon:
		return "beacon"
	default:
		return "unknown"
	}
}

// ParseChainFamily maps a config-file family name onto its tag, used by
// cmd/dnaindexd to turn pkg/config's Chain.Family string into the typed
// dispatch value every other package switches on.
func ParseChainFamily(s string) (ChainFamily, error) {
	switch s {
	case "ethereum":
		return ChainFamilyEthereum, nil
	case "starknet":
		return ChainFamilyStarknet, nil
	case "beacon":
		return ChainFamilyBeacon, nil
	default:
		return 0, fmt.Errorf("chainmodel: unknown chain family %q", s)
	}
}

// Fragments lists the fragment ids a chain family ever produces, in
// canonical order. Used by the scanner to build the "fragment ids needed
// to materialize results" set (spec.md 4.H).
func (c ChainFamily) Fragments() []FragmentID {
	switch c {
	case ChainFamilyEthereum:
		return []FragmentID{FragmentHeader, FragmentIndex, FragmentJoin, FragmentTransaction, FragmentReceipt, FragmentEvent, FragmentWithdrawal}
	case ChainFamilyBeacon:
		return []FragmentID{FragmentHeader, FragmentIndex, FragmentJoin, FragmentTransaction, FragmentValidator, FragmentBlob}
	case ChainFamilyStarknet:
		return []FragmentID{FragmentHeader, FragmentIndex, FragmentJoin, FragmentTransaction, FragmentMessage, FragmentEvent}
	default:
		return nil
	}
}
