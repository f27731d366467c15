package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		wantErr error
	}{
		{
			name:  "plain frame - empty payload",
			frame: Frame{ID: RTClientConnectReadyTCP, Payload: []byte{}},
		},
		{
			name:  "plain frame - with payload",
			frame: Frame{ID: RTClientEcho, Payload: []byte("ping")},
		},
		{
			name:  "encrypted frame carries hash",
			frame: Frame{ID: RTClientAppToServer, Encrypted: true, Hash: 0x4ABCDEF1, Payload: []byte{1, 2, 3}},
		},
		{
			name:  "max size payload",
			frame: Frame{ID: RTServerApp, Payload: make([]byte, MaxFrameSize)},
		},
		{
			name:    "payload too large",
			frame:   Frame{ID: RTServerApp, Payload: make([]byte, MaxFrameSize+1)},
			wantErr: ErrFrameTooLarge,
		},
		{
			name:    "id overlaps encryption bit",
			frame:   Frame{ID: RTID(0x80), Payload: []byte{}},
			wantErr: ErrInvalidFrameID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := EncodeFrame(&buf, &tt.frame)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.frame.Size(), buf.Len())

			decoded, err := DecodeFrame(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.frame.ID, decoded.ID)
			assert.Equal(t, tt.frame.Encrypted, decoded.Encrypted)
			assert.Equal(t, tt.frame.Hash, decoded.Hash)
			assert.Equal(t, tt.frame.Payload, decoded.Payload)
		})
	}
}

func TestFrameHeaderLayout(t *testing.T) {
	b, err := AppendFrame(nil, &Frame{ID: RTClientEcho, Encrypted: true, Hash: 0x11223344, Payload: []byte{0xAA}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x85, 0x01, 0x00, 0x44, 0x33, 0x22, 0x11, 0xAA}, b)

	b, err = AppendFrame(nil, &Frame{ID: RTClientEcho, Payload: []byte{0xAA, 0xBB}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x02, 0x00, 0xAA, 0xBB}, b)
}

func TestDecodeFrameRejectsOversizedLength(t *testing.T) {
	_, err := DecodeFrame(bytes.NewReader([]byte{0x05, 0x01, 0x40}))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestFrameDecoderPartial(t *testing.T) {
	var d FrameDecoder
	full, err := AppendFrame(nil, &Frame{ID: RTClientEcho, Payload: []byte("hello")})
	require.NoError(t, err)

	d.Write(full[:2])
	f, err := d.Next()
	require.NoError(t, err)
	assert.Nil(t, f, "header incomplete")

	d.Write(full[2:6])
	f, err = d.Next()
	require.NoError(t, err)
	assert.Nil(t, f, "payload incomplete")

	d.Write(full[6:])
	f, err = d.Next()
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, []byte("hello"), f.Payload)
	assert.Zero(t, d.Buffered())
}

func TestFrameDecoderCorruptStream(t *testing.T) {
	var d FrameDecoder
	d.Write([]byte{0x0B, 0xFF, 0xFF})
	_, err := d.Next()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecodeFramesTrailingPartial(t *testing.T) {
	b, err := AppendFrame(nil, &Frame{ID: RTClientEcho, Payload: []byte{1}})
	require.NoError(t, err)
	b = append(b, 0x05, 0x04)

	_, err = DecodeFrames(b)
	assert.ErrorIs(t, err, ErrTruncatedFrame)
}

func TestDecodeFramesDoesNotAliasInput(t *testing.T) {
	b, err := AppendFrame(nil, &Frame{ID: RTClientEcho, Payload: []byte{1, 2}})
	require.NoError(t, err)
	orig := append([]byte(nil), b...)

	frames, err := DecodeFrames(b)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	frames[0].Payload[0] = 9
	assert.Equal(t, orig, b)
}

func TestPackDatagrams(t *testing.T) {
	frames := []*Frame{
		{ID: RTServerApp, Payload: make([]byte, 200)},
		{ID: RTServerApp, Payload: make([]byte, 200)},
		{ID: RTServerApp, Payload: make([]byte, 200)},
		{ID: RTServerApp, Payload: make([]byte, 1000)},
		{ID: RTServerEcho, Payload: make([]byte, 8)},
	}

	grams, err := PackDatagrams(frames, DefaultMaxDatagram)
	require.NoError(t, err)
	require.Len(t, grams, 4)
	assert.Len(t, grams[0], 2*203)
	assert.Len(t, grams[1], 203, "third frame starts a new datagram")
	assert.Len(t, grams[2], 1003, "oversized frame goes alone")
	assert.Len(t, grams[3], 11)

	var all []*Frame
	for _, g := range grams {
		fs, err := DecodeFrames(g)
		require.NoError(t, err)
		all = append(all, fs...)
	}
	require.Len(t, all, len(frames))
	for i := range frames {
		assert.Equal(t, frames[i].ID, all[i].ID)
		assert.Equal(t, frames[i].Payload, all[i].Payload)
	}
}
