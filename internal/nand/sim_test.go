package nand

import (
	"context"
	"testing"
)

func TestSim_ProgramReadRoundTrip(t *testing.T) {
	s := NewSim(8, 4, 16, 8)
	ctx := context.Background()

	data := bytesOf(0xA5, 16)
	if _, status, err := s.WritePageData(ctx, 0, 0, data); err != nil || status != StatusOK {
		t.Fatalf("write data: status=%v err=%v", status, err)
	}
	got := make([]byte, 16)
	if err := s.ReadPageData(ctx, 0, 0, got); err != nil {
		t.Fatalf("read data: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("round-trip mismatch: got %x want %x", got, data)
	}
}

func TestSim_FailProgramFiresOnce(t *testing.T) {
	s := NewSim(4, 4, 16, 8)
	ctx := context.Background()
	s.FailProgramAt(1, 2)

	if _, status, err := s.WritePageData(ctx, 1, 2, bytesOf(0x11, 16)); err != nil || status != StatusFail {
		t.Fatalf("expected injected failure, got status=%v err=%v", status, err)
	}
	// Second attempt at the same cell must succeed — the fault is one-shot.
	if _, status, err := s.WritePageData(ctx, 1, 2, bytesOf(0x11, 16)); err != nil || status != StatusOK {
		t.Fatalf("expected success on retry, got status=%v err=%v", status, err)
	}
}

func TestSim_BadBlockRejectsAllOps(t *testing.T) {
	s := NewSim(4, 4, 16, 8)
	ctx := context.Background()
	s.MarkBadInitially(2)

	if !s.IsBad(2) {
		t.Fatalf("expected block 2 marked bad")
	}
	if _, status, err := s.WritePageData(ctx, 2, 0, bytesOf(0x11, 16)); err == nil || status != StatusFail {
		t.Fatalf("expected write to bad block to fail")
	}
	if status, err := s.Erase(ctx, 2); err == nil || status != StatusFail {
		t.Fatalf("expected erase of bad block to fail")
	}
}

func TestSim_EraseResetsToErased(t *testing.T) {
	s := NewSim(2, 2, 4, 4)
	ctx := context.Background()
	s.WritePageData(ctx, 0, 0, bytesOf(0x00, 4))
	if status, err := s.Erase(ctx, 0); err != nil || status != StatusOK {
		t.Fatalf("erase: status=%v err=%v", status, err)
	}
	buf := make([]byte, 4)
	s.ReadPageData(ctx, 0, 0, buf)
	for _, b := range buf {
		if b != 0xFF {
			t.Fatalf("expected erased page to read as 0xFF, got %x", buf)
		}
	}
}
