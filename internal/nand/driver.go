// Package nand defines the boundary between the ring engine and the raw
// NAND device. Everything in this package is, per the specification, an
// external collaborator: page program/read, block erase, bad-block
// marking, ECC, and data-move are all driver responsibilities. The ring
// engine never reaches past this interface.
package nand

import "context"

// Status is the outcome of a single driver primitive.
type Status int

const (
	// StatusOK means the primitive completed without error.
	StatusOK Status = iota
	// StatusFail means the primitive failed; the caller must treat the
	// target block as suspect and proceed through bad-block handling.
	StatusFail
)

// Driver abstracts the raw NAND part. Block and page indices are always
// absolute (not ring-relative); callers translate ring-relative positions
// before calling into the driver.
type Driver interface {
	// Blocks returns the total number of physical blocks on the device.
	Blocks() int
	// PagesPerBlock returns the number of pages in each block.
	PagesPerBlock() int
	// PageDataSize returns the size in bytes of a page's data region.
	PageDataSize() int
	// PageSpareSize returns the size in bytes of a page's spare region.
	PageSpareSize() int

	// ReadPageSpare reads the spare area of (blk, page) into buf, which
	// must be at least PageSpareSize() bytes.
	ReadPageSpare(ctx context.Context, blk, page int, buf []byte) error
	// ReadPageData reads the data area of (blk, page) into buf, which
	// must be at least PageDataSize() bytes.
	ReadPageData(ctx context.Context, blk, page int, buf []byte) error

	// WritePageData programs the data area of (blk, page). On success it
	// returns the driver-computed ECC for the page.
	WritePageData(ctx context.Context, blk, page int, buf []byte) (ecc uint32, status Status, err error)
	// WritePageSpare programs the spare area of (blk, page).
	WritePageSpare(ctx context.Context, blk, page int, buf []byte) (status Status, err error)
	// WritePageWhole programs both data and spare areas of (blk, page) in
	// a single operation that bypasses engine-side header sealing. Used
	// by the session closer to stamp deterministic tail patterns.
	WritePageWhole(ctx context.Context, blk, page int, data, spare []byte) (status Status, err error)

	// Erase erases an entire block.
	Erase(ctx context.Context, blk int) (status Status, err error)

	// DataMove copies the first nPages pages of src into dst using the
	// supplied scratch buffer (sized PageDataSize()+PageSpareSize()).
	DataMove(ctx context.Context, src, dst, nPages int, scratch []byte) (status Status, err error)

	// IsBad reports whether the driver has marked blk unreliable.
	IsBad(blk int) bool
	// MarkBad flags blk as unreliable. Once marked, a block is never
	// again the target of Erase, WritePageData/Spare/Whole, or DataMove.
	MarkBad(blk int)
}

// Clock abstracts the monotonic boot-time microsecond clock used to stamp
// page headers at seal time. Out of scope per the specification; supplied
// here only as a thin default so the engine can be exercised standalone.
type Clock interface {
	NowBootMicros() uint64
}
