// Package cipher implements the RT frame ciphers: textbook RSA for the key
// exchange and keyed RC4 for session traffic, plus the context-tagged frame
// hash that tells the receiver which key to use.
package cipher

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Context selects the key a frame is encrypted under. It travels in the top
// three bits of the frame hash.
type Context uint8

const (
	ContextID              Context = 0
	ContextRSAAuth         Context = 1
	ContextRCServerSession Context = 2
	ContextRCClientSession Context = 3
)

func (c Context) String() string {
	switch c {
	case ContextID:
		return "ID"
	case ContextRSAAuth:
		return "RSA_AUTH"
	case ContextRCServerSession:
		return "RC_SERVER_SESSION"
	case ContextRCClientSession:
		return "RC_CLIENT_SESSION"
	}
	return fmt.Sprintf("Context(%d)", uint8(c))
}

const (
	contextShift = 29
	digestMask   = 1<<contextShift - 1
)

// Hash returns the frame hash of plaintext under ctx
func Hash(plain []byte, ctx Context) uint32 {
	return uint32(xxhash.Sum64(plain))&digestMask | uint32(ctx)<<contextShift
}

// ContextOf extracts the cipher context from a frame hash
func ContextOf(hash uint32) Context {
	return Context(hash >> contextShift)
}

// hashBytes is the little-endian encoding of a frame hash
func hashBytes(hash uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], hash)
	return b[:]
}
