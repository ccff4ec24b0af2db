// Package formatstest builds synthetic TY model files for tests.
package formatstest

import (
	"encoding/binary"
	"math"
)

// writer is a growable little-endian buffer addressed by absolute offsets.
type writer struct {
	buf []byte
}

func (w *writer) len() int {
	return len(w.buf)
}

// alloc appends n zero bytes and returns their offset.
func (w *writer) alloc(n int) int {
	off := len(w.buf)
	w.buf = append(w.buf, make([]byte, n)...)
	return off
}

// align pads the buffer to a multiple of n.
func (w *writer) align(n int) {
	for len(w.buf)%n != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *writer) u8(off int, v uint8) {
	w.buf[off] = v
}

func (w *writer) u16(off int, v uint16) {
	binary.LittleEndian.PutUint16(w.buf[off:], v)
}

func (w *writer) u32(off int, v uint32) {
	binary.LittleEndian.PutUint32(w.buf[off:], v)
}

func (w *writer) f32(off int, v float32) {
	w.u32(off, math.Float32bits(v))
}

func (w *writer) vec3(off int, v [3]float32) {
	for i, c := range v {
		w.f32(off+i*4, c)
	}
}

// cstring appends a null-terminated string and returns its offset.
func (w *writer) cstring(s string) int {
	off := w.alloc(len(s) + 1)
	copy(w.buf[off:], s)
	return off
}

// bytes appends raw bytes and returns their offset.
func (w *writer) bytes(b []byte) int {
	off := w.alloc(len(b))
	copy(w.buf[off:], b)
	return off
}
