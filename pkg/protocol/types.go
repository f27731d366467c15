package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// ErrShortBuffer is returned when a message body ends before its schema does.
var ErrShortBuffer = errors.New("buffer underrun while decoding field")

// WriteUint8 writes a single byte
func WriteUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

// ReadUint8 reads a single byte
func ReadUint8(r io.Reader) (uint8, error) {
	buf := make([]byte, 1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteUint16 writes a 16-bit unsigned integer in little-endian
func WriteUint16(w io.Writer, v uint16) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	_, err := w.Write(buf)
	return err
}

// ReadUint16 reads a 16-bit unsigned integer in little-endian
func ReadUint16(r io.Reader) (uint16, error) {
	buf := make([]byte, 2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// WriteUint32 writes a 32-bit unsigned integer in little-endian
func WriteUint32(w io.Writer, v uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	_, err := w.Write(buf)
	return err
}

// ReadUint32 reads a 32-bit unsigned integer in little-endian
func ReadUint32(r io.Reader) (uint32, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// Reader decodes little-endian fields from a message body. The first
// underrun is sticky: later reads return zero values and Err reports it.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader creates a Reader over b
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Err returns the first decode error
func (r *Reader) Err() error {
	return r.err
}

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = ErrShortBuffer
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) Uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Bool() bool {
	return r.Uint8() != 0
}

func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) Int16() int16 {
	return int16(r.Uint16())
}

func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) Int32() int32 {
	return int32(r.Uint32())
}

func (r *Reader) Uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Bytes reads exactly n bytes into a fresh slice
func (r *Reader) Bytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// Skip discards n bytes (padding)
func (r *Reader) Skip(n int) {
	r.take(n)
}

// String reads a NUL-padded string occupying exactly n bytes
func (r *Reader) String(n int) string {
	b := r.take(n)
	if b == nil {
		return ""
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Rest returns all unread bytes
func (r *Reader) Rest() []byte {
	return r.Bytes(r.Remaining())
}

// Writer encodes little-endian fields into a growing buffer. Fixed-width
// fields truncate oversized values the way the consoles do.
type Writer struct {
	buf bytes.Buffer
}

// Bytes returns the encoded bytes
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written
func (w *Writer) Len() int {
	return w.buf.Len()
}

func (w *Writer) Uint8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *Writer) Bool(v bool) {
	if v {
		w.Uint8(1)
		return
	}
	w.Uint8(0)
}

func (w *Writer) Uint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) Int16(v int16) {
	w.Uint16(uint16(v))
}

func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) Int32(v int32) {
	w.Uint32(uint32(v))
}

func (w *Writer) Uint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// Raw writes b verbatim
func (w *Writer) Raw(b []byte) {
	w.buf.Write(b)
}

// FixedBytes writes b into a field of exactly n bytes, zero-padded
func (w *Writer) FixedBytes(b []byte, n int) {
	if len(b) > n {
		b = b[:n]
	}
	w.buf.Write(b)
	w.Pad(n - len(b))
}

// Pad writes n zero bytes
func (w *Writer) Pad(n int) {
	for i := 0; i < n; i++ {
		w.buf.WriteByte(0)
	}
}

// String writes s as a NUL-padded field of exactly n bytes. The last byte
// is always the terminator, so at most n-1 characters fit.
func (w *Writer) String(s string, n int) {
	if len(s) > n-1 {
		s = s[:n-1]
	}
	w.buf.WriteString(s)
	w.Pad(n - len(s))
}

// Align skips padding up to the next multiple of n from the start of the body
func (r *Reader) Align(n int) {
	if rem := r.off % n; rem != 0 {
		r.Skip(n - rem)
	}
}

// Align writes zero padding up to the next multiple of n
func (w *Writer) Align(n int) {
	if rem := w.buf.Len() % n; rem != 0 {
		w.Pad(n - rem)
	}
}
