package nand

import (
	"context"
	"fmt"
	"sync"
)

// page is one simulated NAND page: a data region and a spare region, plus
// a programmed flag (erased pages read back as all 0xFF, matching real
// NAND semantics, and must be distinguishable from "never touched").
type page struct {
	data      []byte
	spare     []byte
	programed bool
}

// Sim is an in-memory NAND device used by tests and the CLI/daemon demos.
// It reproduces the failure modes the ring engine must tolerate: program
// failures, erase failures, data-move failures, and permanently bad
// blocks, all injectable by the test harness.
//
// Sim is safe for concurrent use, mirroring the mutex-guarded in-memory
// backends the teacher repo uses in place of a real storage medium.
type Sim struct {
	mu sync.Mutex

	blocks   int
	ppb      int
	dataSize int
	spareSize int

	pages [][]page // [block][page]
	bad   map[int]bool

	// Fault injection. Each set is consumed (deleted) the first time it
	// fires, so a test can script "fail once, then succeed."
	failProgramAt map[[2]int]bool // [block][page]
	failEraseAt   map[int]bool
	failMoveAt    map[int]bool // keyed by destination block

	eccCounter uint32
}

// NewSim creates a simulated device with the given geometry. All blocks
// start erased and good.
func NewSim(blocks, pagesPerBlock, dataSize, spareSize int) *Sim {
	s := &Sim{
		blocks:        blocks,
		ppb:           pagesPerBlock,
		dataSize:      dataSize,
		spareSize:     spareSize,
		bad:           make(map[int]bool),
		failProgramAt: make(map[[2]int]bool),
		failEraseAt:   make(map[int]bool),
		failMoveAt:    make(map[int]bool),
	}
	s.pages = make([][]page, blocks)
	for b := range s.pages {
		s.resetBlockLocked(b)
	}
	return s
}

func (s *Sim) resetBlockLocked(b int) {
	ps := make([]page, s.ppb)
	for i := range ps {
		ps[i] = page{
			data:  bytesOf(0xFF, s.dataSize),
			spare: bytesOf(0xFF, s.spareSize),
		}
	}
	s.pages[b] = ps
}

func bytesOf(v byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = v
	}
	return b
}

// MarkBadInitially flags a set of blocks as bad before any use, simulating
// factory-marked bad blocks.
func (s *Sim) MarkBadInitially(blocks ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range blocks {
		s.bad[b] = true
	}
}

// FailProgramAt arranges for the next WritePageData/WritePageSpare/
// WritePageWhole call targeting (blk, page) to fail.
func (s *Sim) FailProgramAt(blk, page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failProgramAt[[2]int{blk, page}] = true
}

// FailEraseAt arranges for the next Erase call targeting blk to fail.
func (s *Sim) FailEraseAt(blk int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failEraseAt[blk] = true
}

// FailMoveAt arranges for the next DataMove call targeting dst to fail.
func (s *Sim) FailMoveAt(dst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failMoveAt[dst] = true
}

func (s *Sim) Blocks() int        { return s.blocks }
func (s *Sim) PagesPerBlock() int { return s.ppb }
func (s *Sim) PageDataSize() int  { return s.dataSize }
func (s *Sim) PageSpareSize() int { return s.spareSize }

func (s *Sim) checkBounds(blk, pg int) error {
	if blk < 0 || blk >= s.blocks {
		return fmt.Errorf("nand: block %d out of range [0,%d)", blk, s.blocks)
	}
	if pg < 0 || pg >= s.ppb {
		return fmt.Errorf("nand: page %d out of range [0,%d)", pg, s.ppb)
	}
	return nil
}

func (s *Sim) ReadPageSpare(_ context.Context, blk, pg int, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkBounds(blk, pg); err != nil {
		return err
	}
	copy(buf, s.pages[blk][pg].spare)
	return nil
}

func (s *Sim) ReadPageData(_ context.Context, blk, pg int, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkBounds(blk, pg); err != nil {
		return err
	}
	copy(buf, s.pages[blk][pg].data)
	return nil
}

func (s *Sim) WritePageData(_ context.Context, blk, pg int, buf []byte) (uint32, Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkBounds(blk, pg); err != nil {
		return 0, StatusFail, err
	}
	if s.bad[blk] {
		return 0, StatusFail, fmt.Errorf("nand: block %d is bad", blk)
	}
	key := [2]int{blk, pg}
	if s.failProgramAt[key] {
		delete(s.failProgramAt, key)
		return 0, StatusFail, nil
	}
	copy(s.pages[blk][pg].data, buf)
	s.pages[blk][pg].programed = true
	s.eccCounter++
	return s.eccCounter, StatusOK, nil
}

func (s *Sim) WritePageSpare(_ context.Context, blk, pg int, buf []byte) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkBounds(blk, pg); err != nil {
		return StatusFail, err
	}
	if s.bad[blk] {
		return StatusFail, fmt.Errorf("nand: block %d is bad", blk)
	}
	key := [2]int{blk, pg}
	if s.failProgramAt[key] {
		delete(s.failProgramAt, key)
		return StatusFail, nil
	}
	copy(s.pages[blk][pg].spare, buf)
	return StatusOK, nil
}

func (s *Sim) WritePageWhole(_ context.Context, blk, pg int, data, spare []byte) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkBounds(blk, pg); err != nil {
		return StatusFail, err
	}
	if s.bad[blk] {
		return StatusFail, fmt.Errorf("nand: block %d is bad", blk)
	}
	key := [2]int{blk, pg}
	if s.failProgramAt[key] {
		delete(s.failProgramAt, key)
		return StatusFail, nil
	}
	copy(s.pages[blk][pg].data, data)
	copy(s.pages[blk][pg].spare, spare)
	s.pages[blk][pg].programed = true
	return StatusOK, nil
}

func (s *Sim) Erase(_ context.Context, blk int) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if blk < 0 || blk >= s.blocks {
		return StatusFail, fmt.Errorf("nand: block %d out of range [0,%d)", blk, s.blocks)
	}
	if s.bad[blk] {
		return StatusFail, fmt.Errorf("nand: block %d is bad", blk)
	}
	if s.failEraseAt[blk] {
		delete(s.failEraseAt, blk)
		return StatusFail, nil
	}
	s.resetBlockLocked(blk)
	return StatusOK, nil
}

func (s *Sim) DataMove(_ context.Context, src, dst, nPages int, scratch []byte) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src < 0 || src >= s.blocks || dst < 0 || dst >= s.blocks {
		return StatusFail, fmt.Errorf("nand: data-move block out of range [0,%d) (src=%d dst=%d)", s.blocks, src, dst)
	}
	if nPages < 0 || nPages > s.ppb {
		return StatusFail, fmt.Errorf("nand: data-move nPages %d out of range [0,%d]", nPages, s.ppb)
	}
	if s.bad[dst] {
		return StatusFail, fmt.Errorf("nand: data-move target block %d is bad", dst)
	}
	if s.failMoveAt[dst] {
		delete(s.failMoveAt, dst)
		return StatusFail, nil
	}
	if len(scratch) < s.dataSize+s.spareSize {
		return StatusFail, fmt.Errorf("nand: scratch buffer too small for data-move")
	}
	for i := 0; i < nPages; i++ {
		copy(s.pages[dst][i].data, s.pages[src][i].data)
		copy(s.pages[dst][i].spare, s.pages[src][i].spare)
		s.pages[dst][i].programed = s.pages[src][i].programed
	}
	return StatusOK, nil
}

func (s *Sim) IsBad(blk int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bad[blk]
}

func (s *Sim) MarkBad(blk int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bad[blk] = true
}
