// Package protocol assembles the outgoing byte stream for one logical
// device update and splits it into bulk transfer units.
//
// Wire framing, all little-endian:
//
//	register write: 0xAF 0x20 [addr_lo addr_hi] [val_lo val_hi]
//	32-bit value:   two 16-bit writes at addr and addr+2
//
// A damage update is the four rectangle register writes, the compressed
// pixel payload, then a sync write. A mode program is ten register
// writes ending in output-enable. The builder records command spans so
// that chunking never splits a register write; chunk boundaries inside
// the bulk pixel payload are allowed, since the transport is a pure
// byte stream.
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/SWORDIntel/STARDRIVE/internal/domain"
)

// span records the end offset of one appended command and whether a
// chunk boundary may fall inside it.
type span struct {
	end        int
	splittable bool
}

// Builder assembles one logical update. The internal buffer is reused
// across updates via Reset and grows only when an update outgrows it.
// A Builder is not safe for concurrent use.
type Builder struct {
	buf   []byte
	spans []span
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Reset discards the assembled stream, keeping the allocation.
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
	b.spans = b.spans[:0]
}

// Len returns the assembled stream length in bytes.
func (b *Builder) Len() int { return len(b.buf) }

// Bytes returns the assembled stream. The slice aliases the builder's
// buffer and is valid until the next Reset.
func (b *Builder) Bytes() []byte { return b.buf }

// WriteRegister appends one validated 16-bit register write.
func (b *Builder) WriteRegister(addr, value uint16) error {
	if !validRegister(addr) {
		return fmt.Errorf("%w: 0x%04X", domain.ErrRegisterRange, addr)
	}
	b.writeReg(addr, value)
	return nil
}

// writeReg appends a register write for a known-good address.
func (b *Builder) writeReg(addr, value uint16) {
	b.buf = append(b.buf, cmdMarker, cmdWriteReg)
	b.buf = binary.LittleEndian.AppendUint16(b.buf, addr)
	b.buf = binary.LittleEndian.AppendUint16(b.buf, value)
	b.spans = append(b.spans, span{end: len(b.buf)})
}

// writeReg32 appends a 32-bit register value as two 16-bit writes.
func (b *Builder) writeReg32(addr uint16, value uint32) {
	b.writeReg(addr, uint16(value&0xFFFF))
	b.writeReg(addr+2, uint16(value>>16))
}

// ModeProgram appends the ten-write mode sequence: horizontal timing,
// vertical timing, pixel clock, output enable.
func (b *Builder) ModeProgram(m domain.DisplayMode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %+v", domain.ErrInvalidMode, m)
	}
	b.writeReg(RegHActive, uint16(m.Width))
	b.writeReg(RegHBlank, uint16(m.HBlank))
	b.writeReg(RegHSyncStart, uint16(m.HSyncStart))
	b.writeReg(RegHSyncWidth, uint16(m.HSyncWidth))
	b.writeReg(RegVActive, uint16(m.Height))
	b.writeReg(RegVBlank, uint16(m.VBlank))
	b.writeReg(RegVSyncStart, uint16(m.VSyncStart))
	b.writeReg(RegVSyncWidth, uint16(m.VSyncWidth))
	b.writeReg32(RegPixelClock, uint32(m.PixelClock))
	b.writeReg(RegEnable, 1)
	return nil
}

// DamageUpdate appends a full damage sequence: rectangle registers, the
// compressed payload, and a sync. The rectangle must lie within the
// given frame dimensions.
func (b *Builder) DamageUpdate(r domain.DamageRect, width, height int, payload []byte) error {
	if !r.In(width, height) {
		return fmt.Errorf("%w: %dx%d+%d+%d in %dx%d frame",
			domain.ErrMalformedRect, r.W, r.H, r.X, r.Y, width, height)
	}
	b.writeReg(RegDamageX, uint16(r.X))
	b.writeReg(RegDamageY, uint16(r.Y))
	b.writeReg(RegDamageW, uint16(r.W))
	b.writeReg(RegDamageH, uint16(r.H))
	b.Bulk(payload)
	b.Sync()
	return nil
}

// Bulk appends an opaque payload. Chunk boundaries may fall anywhere
// inside it.
func (b *Builder) Bulk(p []byte) {
	b.buf = append(b.buf, p...)
	b.spans = append(b.spans, span{end: len(b.buf), splittable: true})
}

// Sync appends the sync register write that flushes the update.
func (b *Builder) Sync() {
	b.writeReg(RegSync, SyncValue)
}

// Blank appends the blank (true) or unblank (false) register write.
func (b *Builder) Blank(on bool) {
	v := uint16(0)
	if on {
		v = 1
	}
	b.writeReg(RegBlank, v)
}

// Chunks splits the assembled stream into transfer units of at most
// MaxTransferSize bytes, in stream order. A boundary candidate that
// would land inside a register write is moved back to the start of
// that write; candidates inside bulk payloads stand as-is.
// Concatenating the chunks reproduces the stream exactly.
func (b *Builder) Chunks() [][]byte {
	var chunks [][]byte
	pos := 0
	si := 0
	for pos < len(b.buf) {
		end := pos + MaxTransferSize
		if end >= len(b.buf) {
			chunks = append(chunks, b.buf[pos:])
			break
		}
		for si < len(b.spans) && b.spans[si].end <= end {
			si++
		}
		cut := end
		if si < len(b.spans) && !b.spans[si].splittable {
			if start := b.spanStart(si); start > pos && start < end {
				cut = start
			}
		}
		chunks = append(chunks, b.buf[pos:cut])
		pos = cut
	}
	return chunks
}

// spanStart returns the byte offset where span si begins.
func (b *Builder) spanStart(si int) int {
	if si == 0 {
		return 0
	}
	return b.spans[si-1].end
}
