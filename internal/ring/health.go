package ring

import "context"

// HealthReport summarizes a ring's physical condition, the diagnostics
// counterpart to the spec's total_good() operation. Grounded on the
// teacher's PageBackend.GC/GCResult shape: "walk reachable pages from
// roots, report what's there" becomes "walk good blocks from
// first_good(), report what's there" — there is no reachability graph
// in an append-only log, so the walk is a flat scan rather than a
// B+Tree traversal.
type HealthReport struct {
	TotalBlocks int
	GoodBlocks  int
	BadBlocks   int
	WastedPages int
	CurBlk      BlockIndex
	CurPage     PageIndex
}

// TotalGood returns the number of good (non-bad) blocks currently in
// the ring, the spec's total_good() operation.
func (r *Ring) TotalGood() (int, error) {
	good := 0
	for i := 0; i < r.cfg.Len; i++ {
		if !r.driver.IsBad(int(r.cfg.StartBlk) + i) {
			good++
		}
	}
	return good, nil
}

// Scan produces a HealthReport by walking every good block's pages and
// counting wasted (CRC-invalid) ones. It must only be called while
// MOUNTED, since it reads through the same driver the append path uses
// and assumes no concurrent writer — the same single-writer model the
// whole engine lives under.
func (r *Ring) Scan(ctx context.Context) (HealthReport, error) {
	r.mustState(StateMounted)

	rep := HealthReport{
		TotalBlocks: r.cfg.Len,
		CurBlk:      r.curBlk,
		CurPage:     r.curPage,
	}
	ppb := r.driver.PagesPerBlock()
	for i := 0; i < r.cfg.Len; i++ {
		blk := int(r.cfg.StartBlk) + i
		if r.driver.IsBad(blk) {
			rep.BadBlocks++
			continue
		}
		rep.GoodBlocks++
		for p := 0; p < ppb; p++ {
			res, err := r.readPageID(ctx, BlockIndex(blk), PageIndex(p))
			if err != nil {
				return HealthReport{}, err
			}
			if res.Wasted() {
				rep.WastedPages++
			}
		}
	}
	return rep, nil
}

// ReadPageHeaderRaw reads and classifies the spare header at (blk, page)
// for external inspection (internal/telemetry's ReadPageHeader RPC).
// Unlike the internal readPageID helper it takes absolute int indices,
// the shape a wire request naturally carries.
func (r *Ring) ReadPageHeaderRaw(ctx context.Context, blk, page int) (Header, PageSeqResult, error) {
	buf := make([]byte, r.driver.PageSpareSize())
	if err := r.driver.ReadPageSpare(ctx, blk, page, buf); err != nil {
		return Header{}, PageSeqResult{}, err
	}
	h, res := readHeaderChecked(buf)
	return h, res, nil
}
