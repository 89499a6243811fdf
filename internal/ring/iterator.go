package ring

import (
	"context"
	"errors"
	"fmt"

	"nandring/internal/nand"
)

// ErrRingExhausted is returned when a full pass over the ring finds no
// good block to erase into. The spec's own design notes call the
// unbounded erase/rescue retry loop a known limitation; this sentinel is
// the fix, so callers can stop instead of spinning forever.
var ErrRingExhausted = errors.New("ring: no good blocks remain in the ring")

// errBlockNotFound is nextGood's internal "wrapped without finding a good
// block" signal. It never escapes this file — eraseNext translates it
// into ErrRingExhausted.
var errBlockNotFound = errors.New("ring: next-good search wrapped without finding a block")

// nextGood walks forward from current+1, wrapping at startBlk+len back to
// startBlk, and returns the first block the driver does not report bad.
// current itself is never a candidate — the walk covers only the other
// n-1 blocks in the ring — so it returns errBlockNotFound when every
// other block is bad, even if current is good.
func (r *Ring) nextGood(current BlockIndex) (BlockIndex, error) {
	n := r.cfg.Len
	start := r.cfg.StartBlk
	offset := int(current - start)
	for i := 1; i < n; i++ {
		cand := start + BlockIndex((offset+i)%n)
		if !r.driver.IsBad(int(cand)) {
			return cand, nil
		}
	}
	return 0, errBlockNotFound
}

// firstGood returns the first good block in ring order, defined as
// nextGood(startBlk + len - 1) so that it wraps to startBlk itself.
func (r *Ring) firstGood() (BlockIndex, error) {
	last := r.cfg.StartBlk + BlockIndex(r.cfg.Len) - 1
	return r.nextGood(last)
}

// eraseNext repeatedly finds the next good block and erases it; a failed
// erase marks its target bad and the search continues. The returned
// block is guaranteed erased. Bounded to one pass over the ring (every
// failure permanently removes a candidate from the good set, so a
// second pass can never succeed where the first did not) rather than
// looping forever, per the ring-exhaustion redesign.
func (r *Ring) eraseNext(ctx context.Context, cur BlockIndex) (BlockIndex, error) {
	for attempts := 0; attempts <= r.cfg.Len; attempts++ {
		blk, err := r.nextGood(cur)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRingExhausted, err)
		}
		status, err := r.driver.Erase(ctx, int(blk))
		if err == nil && status == nand.StatusOK {
			return blk, nil
		}
		r.driver.MarkBad(int(blk))
		cur = blk
	}
	return 0, ErrRingExhausted
}
