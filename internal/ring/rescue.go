package ring

import (
	"context"

	"nandring/internal/nand"
)

// rescue implements the data-rescue mover (component 4.5). It is
// invoked when a page program fails mid-block: it marks the failing
// block bad, obtains a fresh erased block, and migrates the pages
// already durable in the failing block — [0, goodPages) — forward into
// it via the driver's data-move primitive. It updates r.curBlk to the
// replacement; the caller retries the failing write at the same
// cur_page on the new block. cur_id is never decremented by a rescue,
// so identifiers may have gaps across a rescue but never go backwards.
//
// Grounded on the teacher's free-list reclaim shape in
// freeOldFreeListChain/gc.go: "walk the pages that still matter, copy
// them to where they will survive, discard the rest" — here "survive"
// means "fresh block" and "discard" means "mark bad."
func (r *Ring) rescue(ctx context.Context, goodPages int) error {
	failedBlk := r.curBlk
	r.driver.MarkBad(int(failedBlk))

	for {
		newBlk, err := r.eraseNext(ctx, failedBlk)
		if err != nil {
			return err
		}
		if goodPages == 0 {
			// Nothing durable in the failed block to preserve.
			r.curBlk = newBlk
			return nil
		}
		status, err := r.driver.DataMove(ctx, int(failedBlk), int(newBlk), goodPages, r.scratch)
		if err == nil && status == nand.StatusOK {
			r.curBlk = newBlk
			return nil
		}
		// The move target itself failed; mark it bad and retry with a
		// fresh block, still anchored at the original failedBlk.
		r.driver.MarkBad(int(newBlk))
	}
}
