package ring

import (
	"bytes"
	"context"
	"testing"

	"nandring/internal/nand"
)

// newTestRing builds a ring over a 64-block x 64-page x 2048+64-byte
// simulated NAND, the geometry the spec's boundary scenarios use.
func newTestRing(t *testing.T) (*Ring, *nand.Sim) {
	t.Helper()
	sim := nand.NewSim(64, 64, 2048, 64)
	r := New(nand.NewSystemClock())
	if err := r.Start(Config{Nand: sim, StartBlk: 0, Len: 64}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return r, sim
}

func mustMount(t *testing.T, r *Ring) {
	t.Helper()
	ok, err := r.Mount(context.Background())
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if !ok {
		t.Fatalf("Mount returned false")
	}
}

func pageOf(v byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = v
	}
	return b
}

// Scenario 1: cold mkfs.
func TestMount_ColdMkfs(t *testing.T) {
	r, _ := newTestRing(t)
	mustMount(t, r)
	if r.CurBlk() != 0 {
		t.Errorf("cur_blk = %d, want 0", r.CurBlk())
	}
	if r.CurPage() != 0 {
		t.Errorf("cur_page = %d, want 0", r.CurPage())
	}
	if r.CurID() != PageSeqFirst {
		t.Errorf("cur_id = %d, want %d", r.CurID(), PageSeqFirst)
	}
}

// Scenario 2: single-page append then remount.
func TestWritePage_ThenRemount(t *testing.T) {
	ctx := context.Background()
	r, sim := newTestRing(t)
	mustMount(t, r)

	data := pageOf(0xA5, 2048)
	if err := r.WritePage(ctx, data); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	r.Umount()

	r2 := New(nand.NewSystemClock())
	if err := r2.Start(Config{Nand: sim, StartBlk: 0, Len: 64}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	mustMount(t, r2)

	if r2.CurID() != 2 {
		t.Fatalf("cur_id after remount = %d, want 2", r2.CurID())
	}

	res, err := r2.readPageID(ctx, 0, 0)
	if err != nil {
		t.Fatalf("readPageID: %v", err)
	}
	id, ok := res.Valid()
	if !ok || id != 1 {
		t.Fatalf("page 0's id = %v (valid=%v), want 1", id, ok)
	}

	got := make([]byte, 2048)
	if err := sim.ReadPageData(ctx, 0, 0, got); err != nil {
		t.Fatalf("ReadPageData: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("page 0 data mismatch after remount")
	}
}

// Scenario 3: block rollover.
func TestBlockRollover(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRing(t)
	mustMount(t, r)

	ppb := 64
	for i := 0; i < ppb; i++ {
		if err := r.WritePage(ctx, pageOf(byte(i), 2048)); err != nil {
			t.Fatalf("WritePage %d: %v", i, err)
		}
	}

	wantBlk, err := r.nextGood(0)
	if err != nil {
		t.Fatalf("nextGood: %v", err)
	}
	if r.CurBlk() != wantBlk {
		t.Fatalf("cur_blk after rollover = %d, want %d", r.CurBlk(), wantBlk)
	}
	if r.CurPage() != 0 {
		t.Fatalf("cur_page after rollover = %d, want 0", r.CurPage())
	}

	res, err := r.readPageID(ctx, r.CurBlk(), 0)
	if err != nil {
		t.Fatalf("readPageID: %v", err)
	}
	if !res.Wasted() {
		t.Fatalf("successor block page 0 should read as wasted (erased), got valid id")
	}
}

// Scenario 4: program failure mid-block triggers rescue.
func TestProgramFailureMidBlock(t *testing.T) {
	ctx := context.Background()
	r, sim := newTestRing(t)
	mustMount(t, r)

	for i := 0; i < 17; i++ {
		if err := r.WritePage(ctx, pageOf(byte(i), 2048)); err != nil {
			t.Fatalf("WritePage %d: %v", i, err)
		}
	}

	failingBlk := r.CurBlk()
	sim.FailProgramAt(int(failingBlk), 17)

	if err := r.WritePage(ctx, pageOf(0xEE, 2048)); err != nil {
		t.Fatalf("WritePage 17 (triggers rescue): %v", err)
	}

	if !sim.IsBad(int(failingBlk)) {
		t.Fatalf("block %d should be marked bad after a failed program", failingBlk)
	}
	if r.CurBlk() == failingBlk {
		t.Fatalf("cur_blk should have moved off the failed block")
	}

	// Pages 0..16 must have survived the rescue, under their original ids.
	for i := 0; i < 17; i++ {
		res, err := r.readPageID(ctx, r.CurBlk(), PageIndex(i))
		if err != nil {
			t.Fatalf("readPageID %d: %v", i, err)
		}
		id, ok := res.Valid()
		if !ok || id != PageSeq(i+1) {
			t.Fatalf("page %d after rescue: id=%v valid=%v, want %d", i, id, ok, i+1)
		}
	}

	// The retried write landed at page 17 with the same id it failed at.
	res, err := r.readPageID(ctx, r.CurBlk(), 17)
	if err != nil {
		t.Fatalf("readPageID 17: %v", err)
	}
	id, ok := res.Valid()
	if !ok || id != 18 {
		t.Fatalf("rescued write's id = %v (valid=%v), want 18", id, ok)
	}
}

// Scenario 5: power loss mid-session (no clean umount before remount).
func TestPowerLossMidSession(t *testing.T) {
	ctx := context.Background()
	r, sim := newTestRing(t)
	mustMount(t, r)

	for i := 0; i < 10; i++ {
		if err := r.WritePage(ctx, pageOf(byte(i), 2048)); err != nil {
			t.Fatalf("WritePage %d: %v", i, err)
		}
	}
	oldBlk := r.CurBlk()
	// Simulate a crash: no Umount call, just mount a fresh Ring over the
	// same device state.

	r2 := New(nand.NewSystemClock())
	if err := r2.Start(Config{Nand: sim, StartBlk: 0, Len: 64}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	mustMount(t, r2)

	if r2.CurID() != 11 {
		t.Fatalf("cur_id after crash remount = %d, want 11", r2.CurID())
	}
	if r2.CurBlk() == oldBlk {
		t.Fatalf("new cur_blk should differ from the previous session's block")
	}

	for p := 10; p < 64; p++ {
		res, err := r2.readPageID(ctx, oldBlk, PageIndex(p))
		if err != nil {
			t.Fatalf("readPageID %d: %v", p, err)
		}
		if !res.Wasted() {
			t.Fatalf("page %d of the old block should read as wasted after close, got valid", p)
		}
	}
}

// Scenario 6: interrupted close converges on a second recovery.
//
// buildInterrupted writes 5 pages to a fresh ring, then hand-applies
// closeSession's own invalid pattern to the first overwriteCount pages
// of the tail block's residual range, standing in for a close that
// crashed after overwriting only that many tail pages.
func buildInterrupted(t *testing.T, overwriteCount int) *nand.Sim {
	t.Helper()
	ctx := context.Background()
	r, sim := newTestRing(t)
	mustMount(t, r)

	for i := 0; i < 5; i++ {
		if err := r.WritePage(ctx, pageOf(byte(i), 2048)); err != nil {
			t.Fatalf("WritePage %d: %v", i, err)
		}
	}
	lastBlk, lastPage := r.CurBlk(), r.CurPage()-1

	data := make([]byte, 2048)
	spare := make([]byte, 64)
	spare[hdrBadMarkOff] = 0xFF
	spare[hdrBadMarkOff+1] = 0xFF
	for p := int(lastPage) + 1; p < int(lastPage)+1+overwriteCount; p++ {
		if _, err := sim.WritePageWhole(ctx, int(lastBlk), p, data, spare); err != nil {
			t.Fatalf("simulate interrupted close at page %d: %v", p, err)
		}
	}
	return sim
}

func TestInterruptedClose_Converges(t *testing.T) {
	mountFresh := func(sim *nand.Sim) *Ring {
		r := New(nand.NewSystemClock())
		if err := r.Start(Config{Nand: sim, StartBlk: 0, Len: 64}); err != nil {
			t.Fatalf("Start: %v", err)
		}
		mustMount(t, r)
		return r
	}

	// One device whose close crashed after a single tail page, one whose
	// close crashed after overwriting most of the tail: both must settle
	// on the same recovered state, since recovery only ever trusts the
	// valid prefix and a partially-overwritten tail is just more wasted
	// pages either way.
	rFew := mountFresh(buildInterrupted(t, 1))
	rMany := mountFresh(buildInterrupted(t, 50))

	if rFew.CurBlk() != rMany.CurBlk() || rFew.CurID() != rMany.CurID() {
		t.Fatalf("interrupted close did not converge: (blk=%d id=%d) vs (blk=%d id=%d)",
			rFew.CurBlk(), rFew.CurID(), rMany.CurBlk(), rMany.CurID())
	}
}

// Property: ids are strictly monotonic across writes, including writes
// that require a rescue.
func TestMonotonicIDs(t *testing.T) {
	ctx := context.Background()
	r, sim := newTestRing(t)
	mustMount(t, r)

	sim.FailProgramAt(int(r.CurBlk()), 5)

	var lastID PageSeq
	for i := 0; i < 80; i++ {
		before := r.CurID()
		if err := r.WritePage(ctx, pageOf(byte(i), 2048)); err != nil {
			t.Fatalf("WritePage %d: %v", i, err)
		}
		if before <= lastID && i > 0 {
			t.Fatalf("id did not advance at step %d", i)
		}
		lastID = before
	}
}

// Property: bad blocks are never chosen by the block iterator.
func TestBlockIterator_SkipsBad(t *testing.T) {
	r, _ := newTestRing(t)
	r.driver.MarkBad(1)
	r.driver.MarkBad(2)

	blk, err := r.nextGood(0)
	if err != nil {
		t.Fatalf("nextGood: %v", err)
	}
	if blk == 1 || blk == 2 {
		t.Fatalf("nextGood returned a bad block: %d", blk)
	}
}

// Property: exhausting every block in the ring surfaces ErrRingExhausted
// instead of hanging.
func TestEraseNext_RingExhausted(t *testing.T) {
	r, _ := newTestRing(t)
	for i := 0; i < 64; i++ {
		r.driver.MarkBad(i)
	}
	_, err := r.eraseNext(context.Background(), 0)
	if err == nil {
		t.Fatalf("expected ErrRingExhausted")
	}
}

// Round-trip: every successfully written page reads back byte-for-byte
// with a validating spare CRC.
func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, sim := newTestRing(t)
	mustMount(t, r)

	want := pageOf(0x5A, 2048)
	blk, page := r.CurBlk(), r.CurPage()
	if err := r.WritePage(ctx, want); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got := make([]byte, 2048)
	if err := sim.ReadPageData(ctx, int(blk), int(page), got); err != nil {
		t.Fatalf("ReadPageData: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round-trip data mismatch")
	}
	res, err := r.readPageID(ctx, blk, page)
	if err != nil {
		t.Fatalf("readPageID: %v", err)
	}
	if res.Wasted() {
		t.Fatalf("expected valid spare CRC after write")
	}
}

// Mount fails cleanly when too few good blocks remain.
func TestMount_TooFewGoodBlocks(t *testing.T) {
	sim := nand.NewSim(64, 64, 2048, 64)
	for i := 0; i < 40; i++ {
		sim.MarkBadInitially(i)
	}
	r := New(nand.NewSystemClock())
	if err := r.Start(Config{Nand: sim, StartBlk: 0, Len: 64}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ok, err := r.Mount(context.Background())
	if err != nil {
		t.Fatalf("Mount returned error instead of false: %v", err)
	}
	if ok {
		t.Fatalf("Mount should have failed with only 24 good blocks")
	}
	if r.State() != StateIdle {
		t.Fatalf("ring should remain IDLE after a failed Mount")
	}
}
