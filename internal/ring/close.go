package ring

import (
	"context"

	"nandring/internal/nand"
)

// closeSession repairs a potentially corrupt tail after recovery has
// located (lastBlk, lastPage) as the most recently sealed page, then
// erases a fresh current block. It returns the new cur_blk; the caller
// resets cur_page to 0 and cur_id to lastID+1.
//
// Every page after lastPage is overwritten with a deterministic invalid
// pattern (data region zeroed, bad-mark bytes set to 0xFF, the rest —
// including spare_crc — left zero) using a whole-page write that
// bypasses header sealing. A page stamped this way can never pass
// header_crc_valid, so a future mount cannot mistake a partially- or
// never-programmed tail page for a newer record. Program failures
// during the overwrite mark the block bad and stop the overwrite early;
// they do not abort the close.
//
// Grounded on the teacher's Pager.Checkpoint flush-then-truncate shape:
// flush outstanding state, then truncate the write-ahead structure so a
// future recovery never rediscovers it. Here "truncate" becomes
// "program an invalid pattern over the tail pages following the last
// valid record."
func (r *Ring) closeSession(ctx context.Context, lastBlk BlockIndex, lastPage PageIndex) (BlockIndex, error) {
	ppb := r.driver.PagesPerBlock()
	data := make([]byte, r.driver.PageDataSize())
	spare := make([]byte, r.driver.PageSpareSize())
	spare[hdrBadMarkOff] = 0xFF
	spare[hdrBadMarkOff+1] = 0xFF

	for p := int(lastPage) + 1; p < ppb; p++ {
		status, err := r.driver.WritePageWhole(ctx, int(lastBlk), p, data, spare)
		if err != nil || status != nand.StatusOK {
			r.driver.MarkBad(int(lastBlk))
			break
		}
	}

	return r.eraseNext(ctx, lastBlk)
}
