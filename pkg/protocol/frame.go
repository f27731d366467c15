package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

const (
	// MaxFrameSize is the largest payload a single RT frame may declare
	MaxFrameSize = 0x4000

	// HeaderSize is id (1) + length (2)
	HeaderSize = 3

	// EncryptedHeaderSize adds the 4-byte hash carried by encrypted frames
	EncryptedHeaderSize = HeaderSize + 4

	encryptedBit = 0x80
)

var (
	ErrFrameTooLarge  = fmt.Errorf("frame exceeds maximum size (%d bytes)", MaxFrameSize)
	ErrTruncatedFrame = errors.New("datagram ends inside a frame")
	ErrInvalidFrameID = errors.New("invalid RT message id")
)

// Frame is one RT message on the wire.
// Format: [ID|0x80 if encrypted (1)][Length LE (2)][Hash LE (4), encrypted only][Payload]
type Frame struct {
	ID        RTID
	Encrypted bool
	Hash      uint32
	Payload   []byte
}

// Size returns the encoded size of the frame in bytes
func (f *Frame) Size() int {
	if f.Encrypted {
		return EncryptedHeaderSize + len(f.Payload)
	}
	return HeaderSize + len(f.Payload)
}

// EncodeFrame writes a frame to the writer
func EncodeFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	if f.ID&encryptedBit != 0 {
		return ErrInvalidFrameID
	}

	id := uint8(f.ID)
	if f.Encrypted {
		id |= encryptedBit
	}
	if err := WriteUint8(w, id); err != nil {
		return err
	}
	if err := WriteUint16(w, uint16(len(f.Payload))); err != nil {
		return err
	}
	if f.Encrypted {
		if err := WriteUint32(w, f.Hash); err != nil {
			return err
		}
	}
	if len(f.Payload) > 0 {
		_, err := w.Write(f.Payload)
		return err
	}
	return nil
}

// DecodeFrame reads a single frame from a blocking reader
func DecodeFrame(r io.Reader) (*Frame, error) {
	id, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	length, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	f := &Frame{ID: RTID(id &^ encryptedBit), Encrypted: id&encryptedBit != 0}
	if f.Encrypted {
		if f.Hash, err = ReadUint32(r); err != nil {
			return nil, err
		}
	}
	f.Payload = make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// AppendFrame appends the encoding of f to dst
func AppendFrame(dst []byte, f *Frame) ([]byte, error) {
	buf := bytes.NewBuffer(dst)
	if err := EncodeFrame(buf, f); err != nil {
		return dst, err
	}
	return buf.Bytes(), nil
}

// FrameDecoder slices a TCP byte stream into frames. Bytes are pushed with
// Write as they arrive; Next yields every complete frame and reports
// (nil, nil) while the buffered tail is still partial.
type FrameDecoder struct {
	buf []byte
}

// Write buffers stream bytes. It never fails.
func (d *FrameDecoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Buffered returns the number of bytes not yet consumed as frames
func (d *FrameDecoder) Buffered() int {
	return len(d.buf)
}

// Next returns the next complete frame. ErrFrameTooLarge means the stream
// is corrupt and the connection must be dropped.
func (d *FrameDecoder) Next() (*Frame, error) {
	if len(d.buf) < HeaderSize {
		return nil, nil
	}

	id := d.buf[0]
	length := int(d.buf[1]) | int(d.buf[2])<<8
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	header := HeaderSize
	encrypted := id&encryptedBit != 0
	if encrypted {
		header = EncryptedHeaderSize
	}
	if len(d.buf) < header+length {
		return nil, nil
	}

	f := &Frame{ID: RTID(id &^ encryptedBit), Encrypted: encrypted}
	if encrypted {
		f.Hash = uint32(d.buf[3]) | uint32(d.buf[4])<<8 | uint32(d.buf[5])<<16 | uint32(d.buf[6])<<24
	}
	f.Payload = make([]byte, length)
	copy(f.Payload, d.buf[header:header+length])

	// Compact the unconsumed tail to the front
	n := copy(d.buf, d.buf[header+length:])
	d.buf = d.buf[:n]

	return f, nil
}

// DecodeFrames decodes every frame in a complete buffer such as a UDP
// datagram. A trailing partial frame is an error.
func DecodeFrames(b []byte) ([]*Frame, error) {
	d := FrameDecoder{buf: append([]byte(nil), b...)}
	var frames []*Frame
	for {
		f, err := d.Next()
		if err != nil {
			return nil, err
		}
		if f == nil {
			break
		}
		frames = append(frames, f)
	}
	if d.Buffered() > 0 {
		return nil, ErrTruncatedFrame
	}
	return frames, nil
}
