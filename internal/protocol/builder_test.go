package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/SWORDIntel/STARDRIVE/internal/domain"
)

func regWrite(addr, value uint16) []byte {
	b := []byte{cmdMarker, cmdWriteReg}
	b = binary.LittleEndian.AppendUint16(b, addr)
	return binary.LittleEndian.AppendUint16(b, value)
}

func TestWriteRegisterFraming(t *testing.T) {
	b := NewBuilder()
	if err := b.WriteRegister(RegBlank, 1); err != nil {
		t.Fatalf("WriteRegister: %v", err)
	}
	want := []byte{0xAF, 0x20, 0x00, 0x1F, 0x01, 0x00}
	if !bytes.Equal(b.Bytes(), want) {
		t.Fatalf("stream = % X, want % X", b.Bytes(), want)
	}
}

func TestWriteRegisterRejectsUnknownAddress(t *testing.T) {
	b := NewBuilder()
	for _, addr := range []uint16{0x0000, 0x0FFE, 0x1016, 0x1FFF, 0x2008, 0xFF02} {
		if err := b.WriteRegister(addr, 0); !errors.Is(err, domain.ErrRegisterRange) {
			t.Fatalf("WriteRegister(0x%04X) err = %v, want ErrRegisterRange", addr, err)
		}
	}
	if b.Len() != 0 {
		t.Fatalf("rejected writes left %d bytes in the stream", b.Len())
	}
}

func TestModeProgramSequence(t *testing.T) {
	m := domain.DisplayMode{
		Width: 1920, Height: 1080, Refresh: 60,
		PixelClock: 148500,
		HBlank:     280, HSyncStart: 88, HSyncWidth: 44,
		VBlank: 45, VSyncStart: 4, VSyncWidth: 5,
	}
	b := NewBuilder()
	if err := b.ModeProgram(m); err != nil {
		t.Fatalf("ModeProgram: %v", err)
	}

	var want []byte
	want = append(want, regWrite(RegHActive, 1920)...)
	want = append(want, regWrite(RegHBlank, 280)...)
	want = append(want, regWrite(RegHSyncStart, 88)...)
	want = append(want, regWrite(RegHSyncWidth, 44)...)
	want = append(want, regWrite(RegVActive, 1080)...)
	want = append(want, regWrite(RegVBlank, 45)...)
	want = append(want, regWrite(RegVSyncStart, 4)...)
	want = append(want, regWrite(RegVSyncWidth, 5)...)
	// 32-bit pixel clock: low half at 0x1010, high half at 0x1012.
	want = append(want, regWrite(RegPixelClock, uint16(148500&0xFFFF))...)
	want = append(want, regWrite(RegPixelClock+2, uint16(148500>>16))...)
	want = append(want, regWrite(RegEnable, 1)...)

	if !bytes.Equal(b.Bytes(), want) {
		t.Fatalf("mode program = % X\nwant % X", b.Bytes(), want)
	}
}

func TestModeProgramRejectsInvalidMode(t *testing.T) {
	b := NewBuilder()
	err := b.ModeProgram(domain.DisplayMode{Width: 1920})
	if !errors.Is(err, domain.ErrInvalidMode) {
		t.Fatalf("err = %v, want ErrInvalidMode", err)
	}
}

func TestDamageUpdateSequence(t *testing.T) {
	payload := []byte{0x02, 0x00, 0xF8}
	b := NewBuilder()
	if err := b.DamageUpdate(domain.DamageRect{X: 10, Y: 20, W: 2, H: 1}, 640, 480, payload); err != nil {
		t.Fatalf("DamageUpdate: %v", err)
	}

	var want []byte
	want = append(want, regWrite(RegDamageX, 10)...)
	want = append(want, regWrite(RegDamageY, 20)...)
	want = append(want, regWrite(RegDamageW, 2)...)
	want = append(want, regWrite(RegDamageH, 1)...)
	want = append(want, payload...)
	want = append(want, regWrite(RegSync, SyncValue)...)

	if !bytes.Equal(b.Bytes(), want) {
		t.Fatalf("damage update = % X\nwant % X", b.Bytes(), want)
	}
}

func TestDamageUpdateRejectsOutOfBounds(t *testing.T) {
	b := NewBuilder()
	err := b.DamageUpdate(domain.DamageRect{X: 630, Y: 0, W: 20, H: 1}, 640, 480, nil)
	if !errors.Is(err, domain.ErrMalformedRect) {
		t.Fatalf("err = %v, want ErrMalformedRect", err)
	}
	if b.Len() != 0 {
		t.Fatalf("rejected update left %d bytes in the stream", b.Len())
	}
}

func TestBlank(t *testing.T) {
	b := NewBuilder()
	b.Blank(true)
	b.Blank(false)
	var want []byte
	want = append(want, regWrite(RegBlank, 1)...)
	want = append(want, regWrite(RegBlank, 0)...)
	if !bytes.Equal(b.Bytes(), want) {
		t.Fatalf("blank stream = % X, want % X", b.Bytes(), want)
	}
}

func TestChunksSplitsBulkPayload(t *testing.T) {
	payload := make([]byte, 40000-10*regWriteSize-regWriteSize)
	b := NewBuilder()
	b.writeReg(RegDamageX, 0)
	b.writeReg(RegDamageY, 0)
	b.writeReg(RegDamageW, 100)
	b.writeReg(RegDamageH, 100)
	// Pad the damage registers to ten writes so the total is 40000.
	b.writeReg(RegDamageX, 0)
	b.writeReg(RegDamageY, 0)
	b.writeReg(RegDamageW, 100)
	b.writeReg(RegDamageH, 100)
	b.writeReg(RegDamageX, 0)
	b.writeReg(RegDamageY, 0)
	b.Bulk(payload)
	b.Sync()

	if b.Len() != 40000 {
		t.Fatalf("stream length = %d, want 40000", b.Len())
	}
	chunks := b.Chunks()
	wantLens := []int{16384, 16384, 7232}
	if len(chunks) != len(wantLens) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(wantLens))
	}
	total := 0
	for i, c := range chunks {
		if len(c) != wantLens[i] {
			t.Fatalf("chunk %d length = %d, want %d", i, len(c), wantLens[i])
		}
		total += len(c)
	}
	if total != b.Len() {
		t.Fatalf("chunks cover %d bytes, stream has %d", total, b.Len())
	}
	joined := bytes.Join(chunks, nil)
	if !bytes.Equal(joined, b.Bytes()) {
		t.Fatal("concatenated chunks differ from the stream")
	}
}

func TestChunksNeverSplitRegisterWrites(t *testing.T) {
	// Fill the stream with register writes only. 16384 is not a multiple
	// of the 6-byte write size, so a naive cut would land mid-write.
	b := NewBuilder()
	for b.Len() < 3*MaxTransferSize {
		b.writeReg(RegDamageX, uint16(b.Len()))
	}
	chunks := b.Chunks()
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > MaxTransferSize {
			t.Fatalf("chunk %d is %d bytes, exceeds %d", i, len(c), MaxTransferSize)
		}
		if i < len(chunks)-1 && len(c)%regWriteSize != 0 {
			t.Fatalf("chunk %d ends mid register write (%d bytes)", i, len(c))
		}
	}
	if !bytes.Equal(bytes.Join(chunks, nil), b.Bytes()) {
		t.Fatal("concatenated chunks differ from the stream")
	}
}

func TestChunksSingleSmallUpdate(t *testing.T) {
	b := NewBuilder()
	b.Blank(true)
	chunks := b.Chunks()
	if len(chunks) != 1 || len(chunks[0]) != regWriteSize {
		t.Fatalf("chunks = %v, want one %d-byte chunk", chunks, regWriteSize)
	}
}

func TestResetReusesBuffer(t *testing.T) {
	b := NewBuilder()
	b.Blank(true)
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("Len after Reset = %d, want 0", b.Len())
	}
	b.Blank(false)
	want := regWrite(RegBlank, 0)
	if !bytes.Equal(b.Bytes(), want) {
		t.Fatalf("stream after Reset = % X, want % X", b.Bytes(), want)
	}
}
