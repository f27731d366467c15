package cipher

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Key generation is slow enough that tests share one pair per side
var (
	serverKey = mustKey()
	clientKey = mustKey()
)

func mustKey() *RSAKey {
	k, err := GenerateRSAKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	return k
}

// pair returns a server and client session that completed the key exchange
func pair(t *testing.T) (server, client *Session) {
	t.Helper()
	server = NewSession(serverKey)
	client = NewSession(clientKey)

	require.NoError(t, server.GenerateAsymmetric(clientKey.Modulus()))
	require.NoError(t, client.GenerateAsymmetric(serverKey.Modulus()))

	key, err := server.GenerateSymmetric(ContextRCClientSession)
	require.NoError(t, err)
	client.SetSymmetric(ContextRCClientSession, key)
	return server, client
}

func TestHashCarriesContext(t *testing.T) {
	for _, ctx := range []Context{ContextID, ContextRSAAuth, ContextRCServerSession, ContextRCClientSession} {
		h := Hash([]byte("payload"), ctx)
		assert.Equal(t, ctx, ContextOf(h), ctx.String())
	}
	assert.Equal(t, Hash([]byte("a"), ContextRSAAuth)&digestMask, Hash([]byte("a"), ContextRCClientSession)&digestMask)
}

func TestGenerateRSAKey(t *testing.T) {
	assert.Equal(t, rsaBits, serverKey.N.BitLen())
	assert.Len(t, serverKey.Modulus(), KeySize)

	round, err := PublicKeyFromWire(serverKey.Modulus())
	require.NoError(t, err)
	assert.Zero(t, round.N.Cmp(serverKey.N))
}

func TestNewRSAKeyFromHex(t *testing.T) {
	k, err := NewRSAKey(serverKey.N.Text(16), serverKey.D.Text(16))
	require.NoError(t, err)

	block := bytes.Repeat([]byte{0x11}, KeySize)
	enc, err := k.Encrypt(block)
	require.NoError(t, err)
	dec, err := serverKey.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, block, dec)

	_, err = NewRSAKey("zz", "01")
	assert.Error(t, err)
}

func TestRSARejectsBadBlocks(t *testing.T) {
	_, err := serverKey.Encrypt(make([]byte, KeySize-1))
	assert.ErrorIs(t, err, ErrBlockSize)

	_, err = serverKey.Encrypt(bytes.Repeat([]byte{0xFF}, KeySize))
	assert.ErrorIs(t, err, ErrBlockTooLarge)

	pub, err := PublicKeyFromWire(serverKey.Modulus())
	require.NoError(t, err)
	_, err = pub.Decrypt(make([]byte, KeySize))
	assert.ErrorIs(t, err, ErrNoKey)

	_, err = PublicKeyFromWire(make([]byte, KeySize))
	assert.ErrorIs(t, err, ErrBadModulus)
}

// TestRSAAuthRoundTrip tests the session key hand-off: the server wraps a
// fresh key under the client's modulus and the client recovers it
func TestRSAAuthRoundTrip(t *testing.T) {
	server, client := pair(t)

	rapid.Check(t, func(t *rapid.T) {
		plain, err := NewSessionKey(bytes.NewReader(rapid.SliceOfN(rapid.Byte(), SessionKeySize, SessionKeySize).Draw(t, "key")))
		if err != nil {
			t.Fatal(err)
		}

		enc, hash, ok, err := server.Encrypt(ContextRSAAuth, plain)
		if err != nil || !ok {
			t.Fatalf("encrypt: ok=%v err=%v", ok, err)
		}
		if ContextOf(hash) != ContextRSAAuth {
			t.Fatalf("hash context %s", ContextOf(hash))
		}

		dec, err := client.Decrypt(hash, enc)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if !bytes.Equal(plain, dec) {
			t.Fatalf("round trip mismatch")
		}
	})
}

// TestRCRoundTrip tests session traffic in both directions
func TestRCRoundTrip(t *testing.T) {
	server, client := pair(t)

	rapid.Check(t, func(t *rapid.T) {
		plain := rapid.SliceOfN(rapid.Byte(), 0, 2048).Draw(t, "plain")

		enc, hash, ok, err := server.Encrypt(ContextRCClientSession, plain)
		if err != nil || !ok {
			t.Fatalf("encrypt: ok=%v err=%v", ok, err)
		}
		dec, err := client.Decrypt(hash, enc)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if !bytes.Equal(plain, dec) {
			t.Fatalf("round trip mismatch")
		}

		enc, hash, _, err = client.Encrypt(ContextRCClientSession, plain)
		if err != nil {
			t.Fatal(err)
		}
		if dec, err = server.Decrypt(hash, enc); err != nil || !bytes.Equal(plain, dec) {
			t.Fatalf("reverse direction failed: %v", err)
		}
	})
}

func TestDecryptDetectsTampering(t *testing.T) {
	server, client := pair(t)

	enc, hash, ok, err := server.Encrypt(ContextRCClientSession, []byte("account login"))
	require.NoError(t, err)
	require.True(t, ok)

	enc[0] ^= 0x01
	_, err = client.Decrypt(hash, enc)
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestDecryptWithoutKey(t *testing.T) {
	s := NewSession(serverKey)

	_, err := s.Decrypt(Hash([]byte("x"), ContextRCServerSession), []byte("x"))
	assert.ErrorIs(t, err, ErrNoKey)

	_, err = s.Decrypt(Hash([]byte("x"), ContextID), []byte("x"))
	assert.ErrorIs(t, err, ErrNoKey)

	_, err = NewSession(nil).Decrypt(Hash(nil, ContextRSAAuth), make([]byte, KeySize))
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestEncryptWithoutKeyPassesThrough(t *testing.T) {
	s := NewSession(serverKey)
	plain := []byte("hello")

	out, hash, ok, err := s.Encrypt(ContextRCClientSession, plain)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, hash)
	assert.Equal(t, plain, out)

	_, _, ok, err = s.Encrypt(ContextRSAAuth, make([]byte, KeySize))
	require.NoError(t, err)
	assert.False(t, ok, "no peer key installed yet")
}

func TestDisabledSession(t *testing.T) {
	s := NewDisabledSession()
	assert.True(t, s.Disabled())

	require.NoError(t, s.GenerateAsymmetric(clientKey.Modulus()))
	key, err := s.GenerateSymmetric(ContextRCClientSession)
	require.NoError(t, err)
	assert.Nil(t, key)

	for _, ctx := range []Context{ContextRSAAuth, ContextRCClientSession, ContextRCServerSession} {
		out, _, ok, err := s.Encrypt(ctx, []byte("plain"))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, []byte("plain"), out)
	}

	_, err = s.Decrypt(Hash([]byte("plain"), ContextRCClientSession), []byte("plain"))
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestNewSessionKeyFitsModulus(t *testing.T) {
	key, err := NewSessionKey(bytes.NewReader(bytes.Repeat([]byte{0xFF}, SessionKeySize)))
	require.NoError(t, err)
	assert.Equal(t, byte(0x7F), key[SessionKeySize-1])

	_, err = serverKey.Encrypt(key)
	assert.NoError(t, err)
}

func TestKeyReturnsCopy(t *testing.T) {
	server, _ := pair(t)
	assert.Nil(t, server.Key(ContextRCServerSession))

	key := server.Key(ContextRCClientSession)
	require.Len(t, key, SessionKeySize)
	key[0] ^= 0xFF
	assert.NotEqual(t, key, server.Key(ContextRCClientSession))
}
