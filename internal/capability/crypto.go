package capability

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"runtime"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/pbkdf2"

	"hull/internal/codec"
)

// Crypto is the cryptography capability primitive (§4.2.5). It is stateless;
// every method operates only on its arguments and zeroes any sensitive
// intermediate buffer it allocates before returning.
type Crypto struct{}

// NewCrypto returns a cryptography capability primitive.
func NewCrypto() *Crypto { return &Crypto{} }

// SHA256 returns the SHA-256 digest of data.
func (c *Crypto) SHA256(data []byte) [32]byte { return sha256.Sum256(data) }

// SHA512 returns the SHA-512 digest of data.
func (c *Crypto) SHA512(data []byte) [64]byte { return sha512.Sum512(data) }

// HMACSHA256 returns the HMAC-SHA256 of data under key.
func (c *Crypto) HMACSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// HMACSHA512 returns the HMAC-SHA512 of data under key.
func (c *Crypto) HMACSHA512(key, data []byte) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// Base64URLEncode encodes data as unpadded base64url.
func (c *Crypto) Base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// Base64URLDecode decodes unpadded base64url text.
func (c *Crypto) Base64URLDecode(text string) ([]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64url: %v", ErrInvalid, err)
	}
	return data, nil
}

// PBKDF2 derives keyLen bytes from password and salt using HMAC-SHA256 as
// the pseudorandom function and iterations rounds.
func (c *Crypto) PBKDF2(password, salt []byte, iterations, keyLen int) []byte {
	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New)
}

// GenerateEd25519Keypair returns a new Ed25519 keypair from OS entropy.
func (c *Crypto) GenerateEd25519Keypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := codec.GenerateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: generating ed25519 keypair: %v", ErrInternal, err)
	}
	return pub, priv, nil
}

// Sign signs message with priv. Scripted code signs arbitrary application
// data through this call; the platform and bundle signature chains
// (internal/signature) use the same primitive directly, not through this
// capability.
func (c *Crypto) Sign(message []byte, priv ed25519.PrivateKey) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key must be %d bytes", ErrInvalid, ed25519.PrivateKeySize)
	}
	return ed25519.Sign(priv, message), nil
}

// Verify reports whether sig is a valid Ed25519 signature of message under
// pub.
func (c *Crypto) Verify(message, sig []byte, pub ed25519.PublicKey) bool {
	return codec.Verify(message, sig, pub) == nil
}

// SecretboxSeal encrypts message under key (authenticated, XSalsa20+Poly1305)
// using a freshly generated random nonce, returning nonce||ciphertext.
func (c *Crypto) SecretboxSeal(message []byte, key *[32]byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("%w: generating nonce: %v", ErrInternal, err)
	}
	return secretbox.Seal(nonce[:], message, &nonce, key), nil
}

// SecretboxOpen decrypts a nonce||ciphertext blob produced by SecretboxSeal.
func (c *Crypto) SecretboxOpen(sealed []byte, key *[32]byte) ([]byte, error) {
	if len(sealed) < 24 {
		return nil, fmt.Errorf("%w: sealed blob too short", ErrInvalid)
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	opened, ok := secretbox.Open(nil, sealed[24:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("%w: secretbox authentication failed", ErrInvalid)
	}
	return opened, nil
}

// GenerateBoxKeypair returns a new Curve25519 keypair for asymmetric box
// encryption.
func (c *Crypto) GenerateBoxKeypair() (*[32]byte, *[32]byte, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: generating box keypair: %v", ErrInternal, err)
	}
	return pub, priv, nil
}

// BoxSeal encrypts message from senderPriv to recipientPub with a fresh
// random nonce, returning nonce||ciphertext.
func (c *Crypto) BoxSeal(message []byte, recipientPub, senderPriv *[32]byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("%w: generating nonce: %v", ErrInternal, err)
	}
	return box.Seal(nonce[:], message, &nonce, recipientPub, senderPriv), nil
}

// BoxOpen decrypts a nonce||ciphertext blob produced by BoxSeal.
func (c *Crypto) BoxOpen(sealed []byte, senderPub, recipientPriv *[32]byte) ([]byte, error) {
	if len(sealed) < 24 {
		return nil, fmt.Errorf("%w: sealed blob too short", ErrInvalid)
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	opened, ok := box.Open(nil, sealed[24:], &nonce, senderPub, recipientPriv)
	if !ok {
		return nil, fmt.Errorf("%w: box authentication failed", ErrInvalid)
	}
	return opened, nil
}

// RandomBytes returns n cryptographically random bytes from OS entropy.
func (c *Crypto) RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("%w: reading entropy: %v", ErrInternal, err)
	}
	return buf, nil
}

// NewSessionID returns a 256-bit random session identifier (§5's Session
// Record: "ID is generated by the crypto primitive, never by user code").
func (c *Crypto) NewSessionID() ([32]byte, error) {
	var id [32]byte
	if _, err := rand.Read(id[:]); err != nil {
		return id, fmt.Errorf("%w: reading entropy: %v", ErrInternal, err)
	}
	return id, nil
}

// Zero overwrites buf with zeroes through a path the compiler cannot
// optimize away, so key material does not linger in memory after use
// (§4.2.5's "zeroed through a barrier that cannot be optimized away").
func Zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	runtime.KeepAlive(buf)
}
