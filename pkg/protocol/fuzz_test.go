package protocol

import (
	"testing"
)

// FuzzDecodeFrames fuzzes the datagram decoder with random bytes
func FuzzDecodeFrames(f *testing.F) {
	f.Add([]byte{0x05, 0x00, 0x00})
	f.Add([]byte{0x85, 0x01, 0x00, 0x01, 0x02, 0x03, 0x04, 0xFF})
	f.Add([]byte{0x0B, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, data []byte) {
		frames, err := DecodeFrames(data)
		if err != nil {
			return
		}
		// Whatever decodes must re-encode to the same bytes
		var out []byte
		for _, fr := range frames {
			if out, err = AppendFrame(out, fr); err != nil {
				t.Fatalf("re-encode: %v", err)
			}
		}
		if string(out) != string(data) {
			t.Fatalf("re-encoded stream differs")
		}
	})
}

// FuzzDecodeMessage fuzzes application message decoding under each context
func FuzzDecodeMessage(f *testing.F) {
	f.Add([]byte{byte(ClassLobby), TypeAccountLoginRequest}, 0)
	f.Add(EncodeMessage(&AccountLoginRequest{MessageID: "1", Username: "bob", Password: "pw"}, DecodeContext{}), 1)
	f.Add(EncodeMessage(&ServerConnectNotification{PlayerSessionKey: "abc"}, DecodeContext{}), 4)

	f.Fuzz(func(t *testing.T, data []byte, ctxIdx int) {
		n := len(contexts)
		ctx := contexts[(ctxIdx%n+n)%n]
		msg, err := DecodeMessage(data, ctx)
		if err != nil {
			return
		}
		// Must not panic on the way back out
		_ = EncodeMessage(msg, ctx)
	})
}

// FuzzDecodeRT fuzzes RT payload decoding for every id
func FuzzDecodeRT(f *testing.F) {
	f.Add(uint8(RTClientConnectTCP), make([]byte, 72))
	f.Add(uint8(RTClientAppToServer), []byte{byte(ClassLobby), TypeSessionBeginRequest})
	f.Add(uint8(RTClientHello), []byte{1, 0, 2})

	f.Fuzz(func(t *testing.T, id uint8, payload []byte) {
		msg, err := DecodeRT(RTID(id&0x7F), payload, DecodeContext{})
		if err != nil {
			return
		}
		_ = EncodeRT(msg, DecodeContext{})
	})
}
