package codec

import (
	"bytes"
	"encoding/binary"
	"math"
)

// writer accumulates a shard image in the little-endian layout written by
// format.go's writeHeader and codec.go's encodeRaw. Grounded on the teacher's BinaryIndexWriter
// (persistence/binary.go), but byte-buffer based rather than unsafe-slice
// based: this layout mixes u32/i32/u8/reserved-pad fields at fixed offsets
// a native Go struct cannot guarantee without relying on undocumented
// compiler padding behavior.
type writer struct {
	buf bytes.Buffer
}

func newWriter() *writer { return &writer{} }

func (w *writer) u8(v byte) { w.buf.WriteByte(v) }

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) i32(v int32) { w.u32(uint32(v)) }

func (w *writer) f32(v float32) { w.u32(math.Float32bits(v)) }

func (w *writer) raw(b []byte) { w.buf.Write(b) }

func (w *writer) zero(n int) {
	if n <= 0 {
		return
	}
	w.buf.Write(make([]byte, n))
}

func (w *writer) bytes() []byte { return w.buf.Bytes() }

// padLen returns how many zero bytes must follow a region of size to round
// it up to the next multiple of m.
func padLen(size, m int) int {
	rem := size % m
	if rem == 0 {
		return 0
	}
	return m - rem
}

// reader walks a shard image with bounds checking, reporting Truncated
// rather than panicking on a short buffer.
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *reader { return &reader{data: data} }

func (r *reader) need(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return &Truncated{Want: r.pos + n, Got: len(r.data)}
	}
	return nil
}

func (r *reader) u8() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) f32() (float32, error) {
	v, err := r.u32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// raw returns a slice aliasing the reader's backing buffer; callers that
// need to retain the bytes past the next read must copy.
func (r *reader) raw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}
