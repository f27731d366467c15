package cipher

import (
	"crypto/rc4"
	"io"
)

// SessionKeySize is the width of an RC session key
const SessionKeySize = 0x40

// NewSessionKey draws a random RC session key. The top bit of the last
// byte is cleared so the key, read as a little-endian integer, is always
// smaller than a 512-bit modulus and can be wrapped with RSA.
func NewSessionKey(random io.Reader) ([]byte, error) {
	key := make([]byte, SessionKeySize)
	if _, err := io.ReadFull(random, key); err != nil {
		return nil, err
	}
	key[SessionKeySize-1] &= 0x7F
	return key, nil
}

// rc4Transform XORs data with the keystream of key || hash. The per-frame
// hash makes every frame start a fresh stream, so the same call both
// encrypts and decrypts.
func rc4Transform(key []byte, hash uint32, data []byte) ([]byte, error) {
	k := make([]byte, 0, len(key)+4)
	k = append(k, key...)
	k = append(k, hashBytes(hash)...)

	c, err := rc4.NewCipher(k)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}
