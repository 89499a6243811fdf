// Package ring implements a circular append-only log over raw NAND flash:
// a wear-aware, power-fail-tolerant ring journal that records fixed-size
// records (one per NAND page) across a contiguous span of physical
// blocks. See the package-level doc comment on Ring for the lifecycle and
// the individual component files for the mount-time recovery scan,
// session closure, data-rescue, and append path.
package ring

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// HeaderSize is the on-disk size of a page's spare header, per the
// spec's byte-exact layout table. It must never exceed a driver's
// PageSpareSize().
//
//	Offset  Size  Field
//	0       4     page_ecc
//	4       2     bad_mark (0xFFFF = good)
//	6       2     pad
//	8       8     id
//	16      4     utc_correction
//	20      4     pad
//	24      8     time_boot_uS
//	32      4     spare_crc
const HeaderSize = 36

const (
	hdrECCOff       = 0
	hdrBadMarkOff   = 4
	hdrIDOff        = 8
	hdrUTCOff       = 16
	hdrBootUSOff    = 24
	hdrCRCOff       = 32
	hdrCRCCoveredSz = hdrCRCOff // bytes [0:32) are covered by the CRC
)

// BadMarkGood is the spare value meaning "not bad" in the bad_mark field.
const BadMarkGood uint16 = 0xFFFF

// PageSeq is the 64-bit monotonically increasing page identifier stamped
// on every sealed page.
type PageSeq uint64

const (
	// PageSeqWasted is observed when a page's header CRC is invalid, or
	// the page was never programmed. It never appears as a stamped id.
	PageSeqWasted PageSeq = 0
	// PageSeqFirst is the lowest identifier that may appear on a valid
	// page; cur_id starts here on a freshly formatted ring.
	PageSeqFirst PageSeq = 1
)

// PageSeqResult is the sum-type codec boundary the spec's design notes
// (§9) ask for: callers get either a Valid sequence number or an explicit
// Wasted marker, rather than overloading 0 for both "never written" and
// "CRC failed." The reserved encoding (PageSeqWasted) only exists at the
// byte layer, inside MarshalHeader/UnmarshalHeader.
type PageSeqResult struct {
	valid bool
	seq   PageSeq
}

// Wasted reports whether the result represents "no valid record here."
func (r PageSeqResult) Wasted() bool { return !r.valid }

// Valid returns the sequence number and true if the result is a valid
// page identifier.
func (r PageSeqResult) Valid() (PageSeq, bool) { return r.seq, r.valid }

func validSeq(seq PageSeq) PageSeqResult { return PageSeqResult{valid: true, seq: seq} }
func wastedSeq() PageSeqResult           { return PageSeqResult{} }

// Header is the parsed contents of a page's spare area.
type Header struct {
	PageECC       uint32
	BadMark       uint16
	ID            PageSeq
	UTCCorrection uint32
	TimeBootUS    uint64
}

// MarshalHeader serializes h into the first HeaderSize bytes of buf,
// computing and writing the trailing spare_crc field. buf must be at
// least HeaderSize bytes; any remaining bytes (up to the driver's
// PageSpareSize) are left untouched — they are driver-managed.
func MarshalHeader(h *Header, buf []byte) {
	if len(buf) < HeaderSize {
		panic("ring: spare buffer too small for Header")
	}
	binary.LittleEndian.PutUint32(buf[hdrECCOff:], h.PageECC)
	binary.LittleEndian.PutUint16(buf[hdrBadMarkOff:], h.BadMark)
	binary.LittleEndian.PutUint64(buf[hdrIDOff:], uint64(h.ID))
	binary.LittleEndian.PutUint32(buf[hdrUTCOff:], h.UTCCorrection)
	binary.LittleEndian.PutUint64(buf[hdrBootUSOff:], h.TimeBootUS)
	crc := calcSpareCRC(buf)
	binary.LittleEndian.PutUint32(buf[hdrCRCOff:], crc)
}

// calcSpareCRC computes the CRC-32 (seed 0xFFFFFFFF — the standard
// CRC-32 initial/final-XOR value the collaborator CRC routine is
// specified to use) over the header bytes preceding the spare_crc field.
func calcSpareCRC(buf []byte) uint32 {
	return crc32.ChecksumIEEE(buf[:hdrCRCCoveredSz])
}

// headerCRCValid reports whether the stored spare_crc matches the
// recomputed checksum of the preceding header bytes.
func headerCRCValid(buf []byte) bool {
	if len(buf) < HeaderSize {
		return false
	}
	stored := binary.LittleEndian.Uint32(buf[hdrCRCOff:])
	return stored == calcSpareCRC(buf)
}

// UnmarshalHeader decodes the first HeaderSize bytes of buf into a
// Header. It does not itself validate the CRC — callers needing the
// wasted/valid distinction should use readHeaderChecked.
func UnmarshalHeader(buf []byte) Header {
	var h Header
	h.PageECC = binary.LittleEndian.Uint32(buf[hdrECCOff:])
	h.BadMark = binary.LittleEndian.Uint16(buf[hdrBadMarkOff:])
	h.ID = PageSeq(binary.LittleEndian.Uint64(buf[hdrIDOff:]))
	h.UTCCorrection = binary.LittleEndian.Uint32(buf[hdrUTCOff:])
	h.TimeBootUS = binary.LittleEndian.Uint64(buf[hdrBootUSOff:])
	return h
}

// readHeaderChecked decodes buf and returns the sum-type result: Wasted
// if the CRC does not validate, Valid(id) otherwise. This is the codec
// boundary that converts the on-disk reserved-0 encoding into the
// PageSeqResult sum type described in the spec's design notes.
func readHeaderChecked(buf []byte) (Header, PageSeqResult) {
	if !headerCRCValid(buf) {
		return Header{}, wastedSeq()
	}
	h := UnmarshalHeader(buf)
	if h.ID < PageSeqFirst {
		// A CRC-valid header with id 0 cannot occur from MarshalHeader,
		// but treat it as wasted defensively rather than asserting.
		return h, wastedSeq()
	}
	return h, validSeq(h.ID)
}

// validateSpareSize ensures a driver's spare area can hold a Header.
func validateSpareSize(spareSize int) error {
	if spareSize < HeaderSize {
		return fmt.Errorf("ring: page spare size %d too small for header (need >= %d)", spareSize, HeaderSize)
	}
	return nil
}
