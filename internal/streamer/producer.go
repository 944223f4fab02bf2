// Package streamer implements the per-client stream producer loop of
// spec.md 4.J: repeatedly ask internal/cursor for NextBlock, materialize
// whatever it names through internal/scanner, and emit StreamMessage
// frames onto a backpressured per-client channel.
package streamer

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dnaindex/internal/blockstore"
	"dnaindex/internal/chainmodel"
	"dnaindex/internal/chainview"
	"dnaindex/internal/cursor"
	"dnaindex/internal/scanner"
)

// Options configures a Producer.
type Options struct {
	// HeartbeatInterval is how long the loop may go without sending a
	// Data frame before it emits an empty Heartbeat (spec.md 4.J, "so
	// TCP-level intermediaries don't drop the connection").
	HeartbeatInterval time.Duration

	// IdleBackoff is how long NotReady/HeadReached sleep before
	// re-asking the cursor producer (spec.md 4.J names 1-2s).
	IdleBackoff time.Duration

	Log *logrus.Entry
}

func (o *Options) setDefaults() {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 10 * time.Second
	}
	if o.IdleBackoff <= 0 {
		o.IdleBackoff = 2 * time.Second
	}
}

// Producer drives one client's stream. It holds no goroutine of its
// own — the caller runs Run on whatever task/connection owns the
// client, matching the teacher's preference for plain blocking loops
// over hidden background workers (internal/ingestion.Engine.Run is the
// same shape: one function, driven by the caller, cancelled by ctx).
type Producer struct {
	view   *chainview.View
	store  *blockstore.Store
	opts   chainmodel.SegmentOptions
	filter scanner.Filter

	out     chan<- StreamMessage
	permits <-chan struct{}

	cursorProducer *cursor.Producer
	sopts          Options
	log            *logrus.Entry
}

// New builds a Producer. out is the per-client frame channel; permits
// is the backpressure token bucket spec.md 4.J calls "a permit" — Run
// blocks on receiving one before every emission, so a slow client whose
// permits channel runs dry simply stalls the producer rather than
// growing an unbounded queue.
func New(view *chainview.View, store *blockstore.Store, opts chainmodel.SegmentOptions, filter scanner.Filter, out chan<- StreamMessage, permits <-chan struct{}, sopts Options) *Producer {
	sopts.setDefaults()
	log := sopts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Producer{
		view:           view,
		store:          store,
		opts:           opts,
		filter:         filter,
		out:            out,
		permits:        permits,
		cursorProducer: cursor.New(view, opts),
		sopts:          sopts,
		log:            log.WithField("component", "streamer"),
	}
}

// Run drives the loop until ctx is cancelled, the out channel's
// receiver disappears (send blocks forever and ctx cancellation is the
// only way out of that, mirroring spec.md 4.J's "if the client's
// response channel is closed, exit"), or an unrecoverable load error
// occurs.
func (p *Producer) Run(ctx context.Context, startingCursor chainmodel.Cursor) error {
	p.log.WithField("starting_cursor", startingCursor.String()).Info("stream producer started")
	current := startingCursor
	lastData := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		next, advanced := p.cursorProducer.Next(current)
		current = advanced

		switch next.Kind {
		case cursor.NotReady:
			if !p.send(ctx, systemMessage("not ready", false)) {
				return ctx.Err()
			}
			if !p.idle(ctx, &lastData) {
				return ctx.Err()
			}

		case cursor.HeadReached:
			if !p.idleNotify(ctx, &lastData) {
				return ctx.Err()
			}

		case cursor.SegmentGroup:
			if err := p.emitGroup(ctx, next, &lastData); err != nil {
				if err == errClientGone {
					return ctx.Err()
				}
				p.log.WithError(err).Warn("stream producer stopping on load error")
				return err
			}

		case cursor.Segment:
			if err := p.emitSegment(ctx, next, &lastData); err != nil {
				if err == errClientGone {
					return ctx.Err()
				}
				p.log.WithError(err).Warn("stream producer stopping on load error")
				return err
			}
			current = chainmodel.NewCursor(p.opts.SegmentEndBlock(next.SegmentFirst)+1, nil)

		case cursor.Block:
			if err := p.emitBlock(ctx, next.Cursor, &lastData); err != nil {
				if err == errClientGone {
					return ctx.Err()
				}
				p.log.WithError(err).Warn("stream producer stopping on load error")
				return err
			}
			current = chainmodel.NewCursor(next.Cursor.Number()+1, nil)

		case cursor.Invalidate:
			if !p.send(ctx, invalidateMessage(next.Cursor)) {
				return ctx.Err()
			}
			current = next.Cursor

		default:
			if !p.idle(ctx, &lastData) {
				return ctx.Err()
			}
		}
	}
}

// emitGroup handles the SegmentGroup transition: compute [real_start,
// group_end] clipped to the client's starting cursor, narrow candidates
// with scanner.ScanGroup's block bitmap, then row-filter only the
// matching blocks (spec.md 4.J).
func (p *Producer) emitGroup(ctx context.Context, next cursor.NextBlock, lastData *time.Time) error {
	groupEnd := p.opts.GroupEndBlock(next.GroupFirst)
	realStart := next.GroupFirst
	if realStart < p.opts.StartingBlock {
		realStart = p.opts.StartingBlock
	}

	matches, err := scanner.ScanGroup(ctx, p.store, next.GroupFirst, p.filter)
	if err != nil {
		return fmt.Errorf("streamer: scan group %d: %w", next.GroupFirst, err)
	}
	for _, raw := range matches.Union().ToArray() {
		n := uint64(raw)
		if n < realStart || n > groupEnd {
			continue
		}
		segmentFirst := p.opts.SegmentStartBlock(n)
		block, _, err := scanner.FilterSegmentBlockMatches(ctx, p.store, p.opts, segmentFirst, n, p.filter)
		if err != nil {
			return fmt.Errorf("streamer: filter block %d: %w", n, err)
		}
		if block.IsEmpty() {
			continue
		}
		cur := chainmodel.NewCursor(n, block.Hash)
		var prev *chainmodel.Cursor
		if n > 0 {
			pc := chainmodel.NewCursor(n-1, nil)
			prev = &pc
		}
		if !p.send(ctx, dataMessage(block, chainmodel.FinalityFinalized, prev, cur)) {
			return errClientGone
		}
		*lastData = time.Now()
	}
	return nil
}

// emitSegment handles the Segment transition: the same materialization
// as emitGroup but over every block in the segment, without the
// bitmap-index pre-filtering step (spec.md 4.J: "no index-group
// pre-filtering").
func (p *Producer) emitSegment(ctx context.Context, next cursor.NextBlock, lastData *time.Time) error {
	start := next.SegmentFirst
	if start < p.opts.StartingBlock {
		start = p.opts.StartingBlock
	}
	end := p.opts.SegmentEndBlock(next.SegmentFirst)

	for n := start; n <= end; n++ {
		block, _, err := scanner.FilterSegmentBlockMatches(ctx, p.store, p.opts, next.SegmentFirst, n, p.filter)
		if err != nil {
			return fmt.Errorf("streamer: filter block %d: %w", n, err)
		}
		if block.IsEmpty() {
			continue
		}
		cur := chainmodel.NewCursor(n, block.Hash)
		var prev *chainmodel.Cursor
		if n > 0 {
			pc := chainmodel.NewCursor(n-1, nil)
			prev = &pc
		}
		if !p.send(ctx, dataMessage(block, chainmodel.FinalityFinalized, prev, cur)) {
			return errClientGone
		}
		*lastData = time.Now()
	}
	return nil
}

// emitBlock handles the Block transition: one-block scan whose finality
// mirrors the chain view (spec.md 4.J).
func (p *Producer) emitBlock(ctx context.Context, c chainmodel.Cursor, lastData *time.Time) error {
	block, _, err := scanner.FilterSingleBlock(ctx, p.store, c, p.filter)
	if err != nil {
		return fmt.Errorf("streamer: filter single block %s: %w", c, err)
	}
	if block.IsEmpty() {
		return nil
	}
	var prev *chainmodel.Cursor
	if c.Number() > 0 {
		pc := chainmodel.NewCursor(c.Number()-1, nil)
		prev = &pc
	}
	if !p.send(ctx, dataMessage(block, p.blockFinality(c), prev, c)) {
		return errClientGone
	}
	*lastData = time.Now()
	return nil
}

// blockFinality mirrors the chain view's finalized/accepted/pending
// stages for a single replayed block (spec.md 4.J).
func (p *Producer) blockFinality(c chainmodel.Cursor) chainmodel.Finality {
	if finalized, ok := p.view.GetFinalizedCursor(); ok && c.Number() <= finalized.Number() {
		return chainmodel.FinalityFinalized
	}
	if head, ok := p.view.GetHead(); ok && c.Number() <= head.Number() {
		return chainmodel.FinalityAccepted
	}
	return chainmodel.FinalityPending
}

// idle sleeps IdleBackoff (or emits a heartbeat first if one is due),
// returning false if ctx was cancelled meanwhile.
func (p *Producer) idle(ctx context.Context, lastData *time.Time) bool {
	if d := time.Since(*lastData); d >= p.sopts.HeartbeatInterval {
		if !p.send(ctx, heartbeatMessage()) {
			return false
		}
		*lastData = time.Now()
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(p.sopts.IdleBackoff):
		return true
	}
}

// idleNotify is idle's HeadReached-specific twin: in addition to the
// plain backoff it also wakes early on a head or finalized change, so a
// client waiting at the tip notices new blocks without the full
// IdleBackoff delay.
func (p *Producer) idleNotify(ctx context.Context, lastData *time.Time) bool {
	if d := time.Since(*lastData); d >= p.sopts.HeartbeatInterval {
		if !p.send(ctx, heartbeatMessage()) {
			return false
		}
		*lastData = time.Now()
	}
	select {
	case <-ctx.Done():
		return false
	case <-p.view.WaitHeadChanged():
		return true
	case <-p.view.WaitFinalizedChanged():
		return true
	case <-time.After(p.sopts.IdleBackoff):
		return true
	}
}

// send acquires a permit and forwards msg, returning false if ctx was
// cancelled while waiting for either (spec.md 4.J backpressure: "every
// emission awaits a permit on the per-client channel; if the channel is
// closed during long work the task exits promptly").
func (p *Producer) send(ctx context.Context, msg StreamMessage) bool {
	select {
	case <-ctx.Done():
		return false
	case _, ok := <-p.permits:
		if !ok {
			return false
		}
	}
	select {
	case <-ctx.Done():
		return false
	case p.out <- msg:
		return true
	}
}

var errClientGone = fmt.Errorf("streamer: client channel closed")
