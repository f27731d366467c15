package cipher

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

const (
	// KeySize is the modulus width in bytes
	KeySize = 64

	rsaBits = KeySize * 8
)

var (
	ErrBlockSize     = errors.New("rsa payload is not a whole number of blocks")
	ErrBlockTooLarge = errors.New("rsa block is not smaller than the modulus")
	ErrBadModulus    = errors.New("rsa modulus has the wrong width")

	publicExponent = big.NewInt(17)

	randPrime = rand.Prime
)

// RSAKey is a 512-bit textbook RSA key with e = 17. D is nil for a peer's
// public key.
type RSAKey struct {
	N *big.Int
	E *big.Int
	D *big.Int
}

// GenerateRSAKey creates a fresh server key pair
func GenerateRSAKey(random io.Reader) (*RSAKey, error) {
	one := big.NewInt(1)
	for {
		p, err := primeCoprimeToE(random)
		if err != nil {
			return nil, err
		}
		q, err := primeCoprimeToE(random)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}

		n := new(big.Int).Mul(p, q)
		if n.BitLen() != rsaBits {
			continue
		}
		phi := new(big.Int).Mul(new(big.Int).Sub(p, one), new(big.Int).Sub(q, one))
		d := new(big.Int).ModInverse(publicExponent, phi)
		if d == nil {
			continue
		}
		return &RSAKey{N: n, E: new(big.Int).Set(publicExponent), D: d}, nil
	}
}

func primeCoprimeToE(random io.Reader) (*big.Int, error) {
	one := big.NewInt(1)
	for {
		p, err := randPrime(random, rsaBits/2)
		if err != nil {
			return nil, fmt.Errorf("generate prime: %w", err)
		}
		pm1 := new(big.Int).Sub(p, one)
		if new(big.Int).Mod(pm1, publicExponent).Sign() != 0 {
			return p, nil
		}
	}
}

// NewRSAKey builds a key pair from hex-encoded modulus and private exponent,
// as stored in the server configuration
func NewRSAKey(nHex, dHex string) (*RSAKey, error) {
	n, ok := new(big.Int).SetString(nHex, 16)
	if !ok {
		return nil, fmt.Errorf("parse modulus %q", nHex)
	}
	d, ok := new(big.Int).SetString(dHex, 16)
	if !ok {
		return nil, fmt.Errorf("parse private exponent")
	}
	if n.BitLen() > rsaBits {
		return nil, ErrBadModulus
	}
	return &RSAKey{N: n, E: new(big.Int).Set(publicExponent), D: d}, nil
}

// PublicKeyFromWire decodes a peer modulus sent little-endian on the wire
func PublicKeyFromWire(modulus []byte) (*RSAKey, error) {
	if len(modulus) != KeySize {
		return nil, ErrBadModulus
	}
	n := fromLE(modulus)
	if n.Sign() == 0 {
		return nil, ErrBadModulus
	}
	return &RSAKey{N: n, E: new(big.Int).Set(publicExponent)}, nil
}

// Modulus returns the little-endian wire form of the modulus
func (k *RSAKey) Modulus() []byte {
	return toLE(k.N, KeySize)
}

// Encrypt applies the public exponent to each 64-byte block
func (k *RSAKey) Encrypt(plain []byte) ([]byte, error) {
	return k.apply(plain, k.E)
}

// Decrypt applies the private exponent to each 64-byte block
func (k *RSAKey) Decrypt(cipherText []byte) ([]byte, error) {
	if k.D == nil {
		return nil, ErrNoKey
	}
	return k.apply(cipherText, k.D)
}

func (k *RSAKey) apply(in []byte, exp *big.Int) ([]byte, error) {
	if len(in)%KeySize != 0 {
		return nil, ErrBlockSize
	}
	out := make([]byte, 0, len(in))
	for off := 0; off < len(in); off += KeySize {
		m := fromLE(in[off : off+KeySize])
		if m.Cmp(k.N) >= 0 {
			return nil, ErrBlockTooLarge
		}
		c := new(big.Int).Exp(m, exp, k.N)
		out = append(out, toLE(c, KeySize)...)
	}
	return out, nil
}

func fromLE(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	return new(big.Int).SetBytes(be)
}

func toLE(v *big.Int, size int) []byte {
	be := v.FillBytes(make([]byte, size))
	for i, j := 0, len(be)-1; i < j; i, j = i+1, j-1 {
		be[i], be[j] = be[j], be[i]
	}
	return be
}
