package statusapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"dnaindex/internal/chainmodel"
	"dnaindex/internal/scanner"
	"dnaindex/internal/streamer"
)

// StatusResponse mirrors spec.md 6.2's StatusRequest -> StatusResponse
// contract.
type StatusResponse struct {
	CurrentHead  chainmodel.Cursor `json:"currentHead"`
	LastIngested chainmodel.Cursor `json:"lastIngested"`
}

// debugFilter is the fixed filter /debug/stream drives: every block's
// header, always, with no row-level sub-filters — enough to exercise
// the stream producer loop without requiring callers to hand-encode a
// scanner.Filter over HTTP.
func debugFilter() scanner.Filter {
	return scanner.Filter{
		Family: chainmodel.ChainFamilyEthereum,
		Header: &scanner.HeaderFilter{Always: true},
	}
}

// handleStatus implements GET /status (spec.md 6.2): 412 Precondition
// Failed (the HTTP analogue of the logical FailedPrecondition status)
// if no block has been observed yet.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	head, ok := s.view.GetHead()
	if !ok {
		http.Error(w, "no block available yet", http.StatusPreconditionFailed)
		return
	}
	writeJSON(w, StatusResponse{CurrentHead: head, LastIngested: head})
}

// handleDebugStream implements GET /debug/stream?cursor=N (SPEC_FULL.md
// 4.J/6.6): drives one streamer.Producer against a fixed "always
// include header" filter and flushes each StreamMessage as one
// newline-delimited JSON object, a stand-in transport for exercising
// component J without a real RPC stream framing.
func (s *Server) handleDebugStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	startingBlock := s.opts.StartingBlock
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "bad cursor", http.StatusBadRequest)
			return
		}
		startingBlock = n
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	out := make(chan streamer.StreamMessage)
	permits := make(chan struct{}, 1)
	permits <- struct{}{}

	filter := debugFilter()
	prod := streamer.New(s.view, s.store, s.opts, filter, out, permits, streamer.Options{
		HeartbeatInterval: 10 * time.Second,
		Log:               s.log,
	})

	ctx := r.Context()
	done := make(chan error, 1)
	go func() { done <- prod.Run(ctx, chainmodel.NewCursor(startingBlock, nil)) }()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			<-done
			return
		case err := <-done:
			if err != nil {
				s.log.WithError(err).Warn("debug stream producer stopped")
			}
			return
		case msg := <-out:
			if err := enc.Encode(msg); err != nil {
				return
			}
			flusher.Flush()
			select {
			case permits <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}
