// Package codec implements the lossless run-length compression of frame
// pixels into the device wire format.
//
// Source pixels are 32-bit 0xAARRGGBB values. Each is truncated to RGB565
// before encoding; the truncation is deterministic but not reversible, so
// the transmitted picture is inherently lower-precision than the source.
// The run-length layer itself is lossless over the RGB565 stream: a
// decoder reproduces exactly the 16-bit values the encoder was given.
//
// Wire format, all little-endian:
//
//	repeat run: [count 2..255] [color_lo color_hi]
//	raw run:    [0xAF] [count-1 0..255] [color_lo color_hi] ...
//
// The raw-run marker 0xAF collides with the legal repeat-count value 175.
// Whether device firmware reserves that count is unverified; until it is,
// the encoder never emits a repeat run of exactly 175 pixels (it splits
// such a stretch in two), which keeps the stream decodable without
// context. See the decoder in codec_test.go.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/SWORDIntel/STARDRIVE/internal/domain"
)

const (
	// RawMarker introduces a raw run on the wire.
	RawMarker = 0xAF

	// MaxRepeat is the largest pixel count one repeat run can carry.
	MaxRepeat = 255

	// MaxRaw is the largest pixel count one raw run can carry.
	MaxRaw = 256
)

// WorstCaseSize returns the destination size callers must provide for a
// region of the given pixel count: full raw runs, one header per MaxRaw
// pixels.
func WorstCaseSize(pixels int) int {
	if pixels <= 0 {
		return 0
	}
	headers := (pixels + MaxRaw - 1) / MaxRaw
	return 2*pixels + 2*headers
}

// scratchSize is the bound the codec uses for its own output buffer.
// Adversarial input (single literals between length-2 repeats) encodes
// to just over 7/3 bytes per pixel, above the WorstCaseSize contract,
// so the owned buffer is sized with headroom.
func scratchSize(pixels int) int {
	return 3*pixels + 8
}

// Codec converts 32-bit pixels to RGB565 and run-length encodes them.
// Scratch buffers are owned by the codec and grow only when frame
// dimensions grow; steady-state encoding does not allocate.
// A Codec is not safe for concurrent use.
type Codec struct {
	rgb []uint16 // RGB565 intermediate for one region
	out []byte   // compressed output
}

// New returns an empty codec. Reserve sizes the scratch buffers up front;
// otherwise they grow on first use.
func New() *Codec {
	return &Codec{}
}

// Reserve grows the scratch buffers to hold a full width x height frame.
// Called on mode changes so per-frame encoding stays allocation-free.
func (c *Codec) Reserve(width, height int) {
	px := width * height
	if cap(c.rgb) < px {
		c.rgb = make([]uint16, px)
	}
	if n := scratchSize(px); cap(c.out) < n {
		c.out = make([]byte, n)
	}
}

// EncodeFrame compresses the whole frame buffer. The returned slice
// aliases the codec's scratch buffer and is valid until the next call.
func (c *Codec) EncodeFrame(fb *domain.FrameBuffer) ([]byte, error) {
	return c.EncodeRect(fb, fb.Bounds())
}

// EncodeRect compresses one damage rectangle of the frame buffer. The
// rectangle must lie within the frame bounds. The returned slice aliases
// the codec's scratch buffer and is valid until the next call.
func (c *Codec) EncodeRect(fb *domain.FrameBuffer, r domain.DamageRect) ([]byte, error) {
	if !r.In(fb.Width, fb.Height) {
		return nil, fmt.Errorf("%w: %dx%d+%d+%d in %dx%d frame",
			domain.ErrMalformedRect, r.W, r.H, r.X, r.Y, fb.Width, fb.Height)
	}
	px := r.Pixels()
	if cap(c.rgb) < px {
		c.rgb = make([]uint16, px)
	}
	if n := scratchSize(px); cap(c.out) < n {
		c.out = make([]byte, n)
	}

	rgb := c.rgb[:0]
	for y := r.Y; y < r.Y+r.H; y++ {
		for _, p := range fb.Row(r.X, y, r.W) {
			rgb = append(rgb, ToRGB565(p))
		}
	}
	c.rgb = rgb

	n, err := EncodeInto(c.out[:cap(c.out)], rgb)
	if err != nil {
		return nil, err
	}
	return c.out[:n], nil
}

// ToRGB565 truncates a 32-bit 0xAARRGGBB pixel to the 16-bit wire color.
// Alpha is discarded.
func ToRGB565(p uint32) uint16 {
	r := uint16(p>>16) & 0xFF
	g := uint16(p>>8) & 0xFF
	b := uint16(p) & 0xFF
	return (r>>3)<<11 | (g>>2)<<5 | b>>3
}

// EncodeInto run-length encodes an RGB565 stream into dst and returns
// the number of bytes written. It fails with ErrBufferTooSmall when dst
// is shorter than WorstCaseSize for the input, or when pathological
// input exceeds even that bound mid-encode.
func EncodeInto(dst []byte, src []uint16) (int, error) {
	if len(dst) < WorstCaseSize(len(src)) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d",
			domain.ErrBufferTooSmall, WorstCaseSize(len(src)), len(dst))
	}
	n := 0
	emit := func(r domain.Run) error {
		if n+r.EncodedLen() > len(dst) {
			return fmt.Errorf("%w: output exceeded %d bytes", domain.ErrBufferTooSmall, len(dst))
		}
		n += appendRun(dst[n:], r)
		return nil
	}
	i := 0
	for i < len(src) {
		rep := repeatLen(src[i:])
		if rep >= 2 {
			// Repeat runs of exactly RawMarker pixels would be
			// indistinguishable from a raw-run header; split them.
			if rep == RawMarker {
				rep = RawMarker - 2
			}
			if err := emit(domain.Run{Kind: domain.RunRepeat, Count: rep, Color: src[i]}); err != nil {
				return 0, err
			}
			i += rep
			continue
		}
		raw := rawLen(src[i:])
		if err := emit(domain.Run{Kind: domain.RunRaw, Count: raw, Colors: src[i : i+raw]}); err != nil {
			return 0, err
		}
		i += raw
	}
	return n, nil
}

// repeatLen returns the length of the leading stretch of identical
// pixels, capped at MaxRepeat.
func repeatLen(src []uint16) int {
	n := 1
	for n < len(src) && n < MaxRepeat && src[n] == src[0] {
		n++
	}
	return n
}

// rawLen returns the length of the leading stretch with no two
// consecutive identical pixels, capped at MaxRaw.
func rawLen(src []uint16) int {
	n := 1
	for n < len(src) && n < MaxRaw {
		if src[n] == src[n-1] {
			return n - 1
		}
		n++
	}
	return n
}

// appendRun serializes one run at the start of dst, which must be large
// enough, and returns the bytes written.
func appendRun(dst []byte, r domain.Run) int {
	if r.Kind == domain.RunRepeat {
		dst[0] = byte(r.Count)
		binary.LittleEndian.PutUint16(dst[1:], r.Color)
		return 3
	}
	dst[0] = RawMarker
	dst[1] = byte(r.Count - 1)
	for i, c := range r.Colors {
		binary.LittleEndian.PutUint16(dst[2+2*i:], c)
	}
	return 2 + 2*r.Count
}
