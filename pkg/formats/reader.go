package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Faultbox/tyviewer/pkg/encoding"
)

// ErrOutOfRange is returned when a read falls outside the buffer.
var ErrOutOfRange = errors.New("read out of range")

// Reader decodes little-endian values at absolute offsets of a buffer.
// The first failed read is remembered; later reads return zero values.
type Reader struct {
	data []byte
	err  error
}

// NewReader returns a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Len returns the buffer length.
func (r *Reader) Len() int {
	return len(r.data)
}

// Bytes returns the underlying buffer.
func (r *Reader) Bytes() []byte {
	return r.data
}

// Err returns the first read error, if any.
func (r *Reader) Err() error {
	return r.err
}

// Reset clears the recorded error.
func (r *Reader) Reset() {
	r.err = nil
}

// Has reports whether n bytes are available at off.
func (r *Reader) Has(off, n int) bool {
	return off >= 0 && n >= 0 && off <= len(r.data) && n <= len(r.data)-off
}

func (r *Reader) slice(off, n int) []byte {
	if r.err != nil {
		return nil
	}
	if !r.Has(off, n) {
		r.err = fmt.Errorf("%w: %d bytes at 0x%x (len %d)", ErrOutOfRange, n, off, len(r.data))
		return nil
	}
	return r.data[off : off+n]
}

// U8 reads an unsigned byte.
func (r *Reader) U8(off int) uint8 {
	b := r.slice(off, 1)
	if b == nil {
		return 0
	}
	return b[0]
}

// I8 reads a signed byte.
func (r *Reader) I8(off int) int8 {
	return int8(r.U8(off))
}

// U16 reads a little-endian uint16.
func (r *Reader) U16(off int) uint16 {
	b := r.slice(off, 2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// I16 reads a little-endian int16.
func (r *Reader) I16(off int) int16 {
	return int16(r.U16(off))
}

// U32 reads a little-endian uint32.
func (r *Reader) U32(off int) uint32 {
	b := r.slice(off, 4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// I32 reads a little-endian int32.
func (r *Reader) I32(off int) int32 {
	return int32(r.U32(off))
}

// F32 reads a little-endian IEEE-754 float.
func (r *Reader) F32(off int) float32 {
	return math.Float32frombits(r.U32(off))
}

// Vec3 reads three consecutive floats.
func (r *Reader) Vec3(off int) [3]float32 {
	return [3]float32{r.F32(off), r.F32(off + 4), r.F32(off + 8)}
}

// CString reads a null-terminated string starting at off. A string that
// runs to the end of the buffer is returned without error.
func (r *Reader) CString(off int) string {
	if r.slice(off, 0) == nil {
		return ""
	}
	rest := r.data[off:]
	if i := bytes.IndexByte(rest, 0); i >= 0 {
		rest = rest[:i]
	}
	return encoding.Windows1252ToUTF8(rest)
}

// FixedString reads an n-byte null-padded string.
func (r *Reader) FixedString(off, n int) string {
	b := r.slice(off, n)
	if b == nil {
		return ""
	}
	return encoding.FixedStringToUTF8(b)
}

// Index returns the offset of the first occurrence of pattern lying
// entirely within [from, to), or -1.
func (r *Reader) Index(pattern []byte, from, to int) int {
	if from < 0 {
		from = 0
	}
	if to > len(r.data) {
		to = len(r.data)
	}
	if from >= to {
		return -1
	}
	i := bytes.Index(r.data[from:to], pattern)
	if i < 0 {
		return -1
	}
	return from + i
}

// ByteToSingle maps a packed signed byte onto [-1, 1].
func ByteToSingle(b byte) float32 {
	v := float32(int8(b)) / 127
	if v < -1 {
		return -1
	}
	return v
}
