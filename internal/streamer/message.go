package streamer

import (
	"dnaindex/internal/chainmodel"
	"dnaindex/internal/scanner"
)

// MessageKind is the StreamDataResponse.message variant spec.md 6.1
// names (Data | Invalidate | Heartbeat | SystemMessage).
type MessageKind int

const (
	MessageData MessageKind = iota
	MessageInvalidate
	MessageHeartbeat
	MessageSystem
)

func (k MessageKind) String() string {
	switch k {
	case MessageData:
		return "data"
	case MessageInvalidate:
		return "invalidate"
	case MessageHeartbeat:
		return "heartbeat"
	case MessageSystem:
		return "system"
	default:
		return "unknown"
	}
}

// StreamMessage is one frame of the logical StreamDataResponse stream
// (spec.md 6.1). One stream carries one aggregated scanner.Filter, so
// Data carries the single materialized scanner.Block rather than the
// "one body per requested filter" list the logical contract describes —
// FilterIDs already recorded on every row inside scanner.Block attribute
// each match back to the sub-filter that produced it.
type StreamMessage struct {
	Kind MessageKind

	// Data fields.
	Data      *scanner.Block
	Finality  chainmodel.Finality
	Cursor    *chainmodel.Cursor
	EndCursor chainmodel.Cursor

	// Invalidate fields.
	InvalidateCursor chainmodel.Cursor

	// SystemMessage fields.
	SystemText  string
	SystemIsErr bool
}

func dataMessage(b *scanner.Block, finality chainmodel.Finality, cursor *chainmodel.Cursor, end chainmodel.Cursor) StreamMessage {
	return StreamMessage{Kind: MessageData, Data: b, Finality: finality, Cursor: cursor, EndCursor: end}
}

func invalidateMessage(c chainmodel.Cursor) StreamMessage {
	return StreamMessage{Kind: MessageInvalidate, InvalidateCursor: c}
}

func heartbeatMessage() StreamMessage { return StreamMessage{Kind: MessageHeartbeat} }

func systemMessage(text string, isErr bool) StreamMessage {
	return StreamMessage{Kind: MessageSystem, SystemText: text, SystemIsErr: isErr}
}
