// Package rgb implements the fixed-size output pixel buffer and its
// row partition, grounded directly on the original crt render::rgb
// module: an atomic next-row cursor hands out disjoint row slices to
// concurrent workers.
package rgb

import "sync/atomic"

// Color is an 8-bit-per-channel pixel.
type Color struct {
	R, G, B uint8
}

// Buf holds width*height pixels in row-major order.
type Buf struct {
	width, height uint32
	px            []Color
}

// NewBuf wraps px (which must have exactly width*height entries) as a
// width x height pixel matrix.
func NewBuf(width, height uint32, px []Color) *Buf {
	if uint64(width)*uint64(height) != uint64(len(px)) {
		panic("rgb: buffer length does not match width*height")
	}

	return &Buf{width: width, height: height, px: px}
}

// Width returns the buffer's width in pixels.
func (b *Buf) Width() uint32 { return b.width }

// Height returns the buffer's height in pixels.
func (b *Buf) Height() uint32 { return b.height }

// At returns the pixel at (x, y).
func (b *Buf) At(x, y uint32) Color {
	return b.px[b.index(x, y)]
}

// Set writes the pixel at (x, y).
func (b *Buf) Set(x, y uint32, c Color) {
	b.px[b.index(x, y)] = c
}

func (b *Buf) index(x, y uint32) uint32 {
	if x >= b.width || y >= b.height {
		panic("rgb: index out of bounds")
	}

	return x + y*b.width
}

// Pixels returns the full backing pixel slice in row-major order, for
// use by a writer that streams the buffer out (e.g. a PPM encoder).
func (b *Buf) Pixels() []Color {
	return b.px
}

// Partition returns a handle that atomically hands out disjoint row
// slices of b to concurrent workers. b must not be accessed through
// any other means while a partition derived from it is in use.
func (b *Buf) Partition() *Partition {
	return &Partition{width: b.width, height: b.height, px: b.px}
}

// Partition vends disjoint row slices via an atomic cursor. Safe for
// concurrent use: NextRow's fetch-add guarantees no two calls ever
// return overlapping ranges of px.
type Partition struct {
	width, height uint32
	px            []Color
	nextRow       atomic.Uint32
}

// Row is one scanline handed out by a Partition.
type Row struct {
	Y   uint32
	Pix []Color
}

// NextRow atomically claims the next unclaimed row, or reports ok ==
// false once every row in [0, height) has been claimed.
func (p *Partition) NextRow() (row Row, ok bool) {
	y := p.nextRow.Add(1) - 1
	if y >= p.height {
		p.nextRow.Add(^uint32(0)) // fetch-sub 1, restoring the cursor
		return Row{}, false
	}

	start := y * p.width
	end := start + p.width

	return Row{Y: y, Pix: p.px[start:end]}, true
}
