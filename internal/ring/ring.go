// Package ring doc: see spare.go for the package-level overview.
package ring

import (
	"context"
	"fmt"

	"nandring/internal/nand"
)

// BlockIndex identifies a physical block, absolute (not ring-relative).
type BlockIndex int

// PageIndex identifies a page within a block.
type PageIndex int

// State is a Ring's lifecycle stage.
type State int

const (
	StateUninit State = iota
	StateIdle
	StateMounted
	StateStop
)

func (s State) String() string {
	switch s {
	case StateUninit:
		return "UNINIT"
	case StateIdle:
		return "IDLE"
	case StateMounted:
		return "MOUNTED"
	case StateStop:
		return "STOP"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// Ring is a circular append-only log over a contiguous span of physical
// NAND blocks. It moves through the lifecycle
//
//	UNINIT --Start--> IDLE --Mount--> MOUNTED --Umount--> IDLE --Stop--> STOP
//
// and, once MOUNTED, accepts WritePage calls that append one record per
// NAND page. A single Ring instance is not safe for concurrent use — the
// caller serializes all public operations on it, per the spec's
// single-threaded cooperative model; see internal/telemetry's Service
// for the mutex-fronted multi-RPC-handler case.
//
// Grounded on the teacher's Pager: WritePage mirrors Pager.WritePage's
// "log, then mark durable" shape, with the buffer-pool cache dropped
// (there is nothing to cache in a pure append log) and the rescue retry
// loop standing in for it.
type Ring struct {
	cfg    Config
	driver nand.Driver
	clock  nand.Clock
	state  State

	curBlk        BlockIndex
	curPage       PageIndex
	curID         PageSeq
	utcCorrection uint32

	// scratch is a per-ring buffer used by the data-rescue mover, sized
	// PageDataSize+PageSpareSize. The spec's own design notes ask for
	// this to be ring-owned rather than a package-level global so two
	// Ring instances never contend over it; this field is that fix.
	scratch []byte
}

// New creates a Ring in the UNINIT state, bound to clock for header
// timestamps. clock is a collaborator out of scope per the
// specification; pass nand.NewSystemClock() for a standalone-usable
// default.
func New(clock nand.Clock) *Ring {
	return &Ring{state: StateUninit, clock: clock}
}

// mustState panics if the Ring is not in want. Caller misuse (calling a
// public operation in the wrong lifecycle state) is a fatal assertion
// per the spec's error-handling model, never a returned error — this is
// the thin stand-in for the host's debug-assertion mechanism, the same
// role the teacher's panic("buffer too small for PageHeader") plays for
// truly-impossible-at-runtime conditions.
func (r *Ring) mustState(want State) {
	if r.state != want {
		panic(fmt.Sprintf("ring: operation requires state %s, have %s", want, r.state))
	}
}

// Start binds cfg to the ring and validates its geometry. Must be
// called exactly once from UNINIT.
func (r *Ring) Start(cfg Config) error {
	r.mustState(StateUninit)
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.cfg = cfg
	r.driver = cfg.Nand
	r.scratch = make([]byte, r.driver.PageDataSize()+r.driver.PageSpareSize())
	r.state = StateIdle
	return nil
}

// Mount runs the recovery scan and session closer, then transitions to
// MOUNTED. It returns (false, nil) — not an error — when the ring has
// fewer than MinGoodBlocksToMount good blocks; this is the one
// recoverable caller-visible failure in the whole engine.
func (r *Ring) Mount(ctx context.Context) (bool, error) {
	r.mustState(StateIdle)

	good, err := r.TotalGood()
	if err != nil {
		return false, err
	}
	if good < MinGoodBlocksToMount {
		return false, nil
	}

	rec, err := r.recover(ctx)
	if err != nil {
		return false, fmt.Errorf("ring: recovery scan: %w", err)
	}

	if !rec.found {
		// Empty ring: mkfs path. The first good block becomes cur_blk;
		// cur_id starts at PageSeqFirst.
		first, err := r.firstGood()
		if err != nil {
			return false, fmt.Errorf("ring: mkfs: %w", err)
		}
		blk, err := r.eraseNext(ctx, first-1)
		if err != nil {
			return false, fmt.Errorf("ring: mkfs: %w", err)
		}
		r.curBlk = blk
		r.curPage = 0
		r.curID = PageSeqFirst
		r.state = StateMounted
		return true, nil
	}

	newBlk, err := r.closeSession(ctx, rec.lastBlk, rec.lastPage)
	if err != nil {
		return false, fmt.Errorf("ring: session closer: %w", err)
	}
	r.curBlk = newBlk
	r.curPage = 0
	r.curID = rec.lastID + 1
	r.state = StateMounted
	return true, nil
}

// WritePage appends data (exactly PageDataSize bytes) as the next page
// in the ring, stamping it with the current monotonic id. Program
// failures on either the data or spare write are handled entirely
// in-line: the failing block is rescued and the write retried, so
// WritePage either returns nil having consumed exactly one id, or
// returns a non-nil error only when the ring is fully exhausted of good
// blocks (ErrRingExhausted).
func (r *Ring) WritePage(ctx context.Context, data []byte) error {
	r.mustState(StateMounted)
	if len(data) != r.driver.PageDataSize() {
		panic(fmt.Sprintf("ring: WritePage requires exactly %d bytes of data, got %d",
			r.driver.PageDataSize(), len(data)))
	}

	for {
		ecc, status, err := r.driver.WritePageData(ctx, int(r.curBlk), int(r.curPage), data)
		if err != nil || status != nand.StatusOK {
			if rerr := r.rescue(ctx, int(r.curPage)); rerr != nil {
				return rerr
			}
			continue
		}

		h := Header{
			PageECC:       ecc,
			BadMark:       BadMarkGood,
			ID:            r.curID,
			UTCCorrection: r.utcCorrection,
			TimeBootUS:    r.clock.NowBootMicros(),
		}
		spare := make([]byte, r.driver.PageSpareSize())
		MarshalHeader(&h, spare)

		status, err = r.driver.WritePageSpare(ctx, int(r.curBlk), int(r.curPage), spare)
		if err != nil || status != nand.StatusOK {
			// The data page is already durable but unsealed; rescue must
			// preserve it too.
			if rerr := r.rescue(ctx, int(r.curPage)+1); rerr != nil {
				return rerr
			}
			continue
		}
		break
	}

	r.curID++
	r.curPage++
	if int(r.curPage) == r.driver.PagesPerBlock() {
		newBlk, err := r.eraseNext(ctx, r.curBlk)
		if err != nil {
			return err
		}
		r.curBlk = newBlk
		r.curPage = 0
	}
	return nil
}

// SetUTCCorrection updates the offset copied into the header of every
// subsequent WritePage call. The engine never interprets this value.
func (r *Ring) SetUTCCorrection(v uint32) {
	r.utcCorrection = v
}

// Umount returns the ring to IDLE. No on-media work happens here — all
// durability comes from the pages already sealed; a future Mount simply
// re-runs the recovery scan.
func (r *Ring) Umount() {
	r.mustState(StateMounted)
	r.state = StateIdle
}

// Stop transitions a ring from IDLE to STOP, its terminal state.
func (r *Ring) Stop() {
	r.mustState(StateIdle)
	r.state = StateStop
}

// State reports the ring's current lifecycle stage.
func (r *Ring) State() State { return r.state }

// CurID reports the id that will be stamped on the next written page.
// Exposed for diagnostics and tests; not part of the spec's public
// operation list.
func (r *Ring) CurID() PageSeq { return r.curID }

// CurBlk reports the block currently being appended to.
func (r *Ring) CurBlk() BlockIndex { return r.curBlk }

// CurPage reports the next page index to be written within CurBlk.
func (r *Ring) CurPage() PageIndex { return r.curPage }
