package cipher

import (
	"crypto/rand"
	"errors"
	"io"
	"sync"
)

var (
	// ErrNoKey means an encrypted frame arrived for a context with no key.
	// The transport drops the connection.
	ErrNoKey = errors.New("no key for cipher context")

	// ErrHashMismatch means the decrypted payload does not match its hash
	ErrHashMismatch = errors.New("frame hash does not match decrypted payload")
)

// Session holds the keys negotiated on one connection. The zero value is
// not usable; construct with NewSession or NewDisabledSession.
type Session struct {
	mu       sync.RWMutex
	disabled bool
	random   io.Reader

	own  *RSAKey // decrypts inbound RSA_AUTH frames
	peer *RSAKey // encrypts outbound RSA_AUTH frames
	keys map[Context][]byte
}

// NewSession creates a cipher session that decrypts RSA_AUTH traffic with
// own
func NewSession(own *RSAKey) *Session {
	return &Session{
		own:    own,
		random: rand.Reader,
		keys:   make(map[Context][]byte),
	}
}

// NewDisabledSession creates a session for servers running without
// encryption. Encrypt never transforms and Decrypt always fails.
func NewDisabledSession() *Session {
	return &Session{disabled: true, keys: make(map[Context][]byte)}
}

// Disabled reports whether encryption is turned off
func (s *Session) Disabled() bool {
	return s.disabled
}

// OwnKey returns the key pair used for inbound RSA_AUTH, nil when disabled
func (s *Session) OwnKey() *RSAKey {
	return s.own
}

// GenerateAsymmetric installs the peer's public key, received
// byte-reversed on the wire
func (s *Session) GenerateAsymmetric(modulus []byte) error {
	if s.disabled {
		return nil
	}
	key, err := PublicKeyFromWire(modulus)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.peer = key
	s.mu.Unlock()
	return nil
}

// GenerateSymmetric creates and installs a fresh RC key for ctx
func (s *Session) GenerateSymmetric(ctx Context) ([]byte, error) {
	if s.disabled {
		return nil, nil
	}
	key, err := NewSessionKey(s.random)
	if err != nil {
		return nil, err
	}
	s.SetSymmetric(ctx, key)
	return key, nil
}

// SetSymmetric installs a known RC key for ctx
func (s *Session) SetSymmetric(ctx Context, key []byte) {
	s.mu.Lock()
	s.keys[ctx] = append([]byte(nil), key...)
	s.mu.Unlock()
}

// Key returns a copy of the RC key installed for ctx, nil if there is none
func (s *Session) Key(ctx Context) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k := s.keys[ctx]; k != nil {
		return append([]byte(nil), k...)
	}
	return nil
}

// HasKey reports whether frames in ctx can be encrypted
func (s *Session) HasKey(ctx Context) bool {
	if s.disabled {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch ctx {
	case ContextRSAAuth:
		return s.peer != nil
	case ContextID:
		return false
	}
	return s.keys[ctx] != nil
}

// Encrypt transforms plain under ctx. ok is false when the frame must go
// out unencrypted: encryption is disabled or ctx has no key yet.
func (s *Session) Encrypt(ctx Context, plain []byte) (out []byte, hash uint32, ok bool, err error) {
	if !s.HasKey(ctx) {
		return plain, 0, false, nil
	}

	hash = Hash(plain, ctx)
	s.mu.RLock()
	peer, key := s.peer, s.keys[ctx]
	s.mu.RUnlock()

	if ctx == ContextRSAAuth {
		out, err = peer.Encrypt(plain)
	} else {
		out, err = rc4Transform(key, hash, plain)
	}
	if err != nil {
		return nil, 0, false, err
	}
	return out, hash, true, nil
}

// Decrypt reverses Encrypt for a frame carrying hash. The context is read
// from the hash.
func (s *Session) Decrypt(hash uint32, in []byte) ([]byte, error) {
	if s.disabled {
		return nil, ErrNoKey
	}
	ctx := ContextOf(hash)

	var (
		plain []byte
		err   error
	)
	switch ctx {
	case ContextRSAAuth:
		if s.own == nil {
			return nil, ErrNoKey
		}
		plain, err = s.own.Decrypt(in)
	case ContextID:
		return nil, ErrNoKey
	default:
		s.mu.RLock()
		key := s.keys[ctx]
		s.mu.RUnlock()
		if key == nil {
			return nil, ErrNoKey
		}
		plain, err = rc4Transform(key, hash, in)
	}
	if err != nil {
		return nil, err
	}
	if Hash(plain, ctx) != hash {
		return nil, ErrHashMismatch
	}
	return plain, nil
}
