package codec

import (
	"crypto/ed25519"
	"errors"
)

// ErrSigMismatch is returned by Verify when a signature does not match the
// payload under the given public key.
var ErrSigMismatch = errors.New("canonical codec: signature mismatch")

// Sign returns the 64-byte Ed25519 signature over payload. payload is
// expected to already be the output of Canonicalize — Sign itself does not
// canonicalize, so callers control exactly what bytes get signed.
func Sign(payload []byte, priv ed25519.PrivateKey) []byte {
	return ed25519.Sign(priv, payload)
}

// Verify checks sig against payload under pub. Returns nil on match,
// ErrSigMismatch otherwise. Never panics: ed25519.Verify's own
// malformed-signature-length panics are intercepted by checking the
// signature length up front.
func Verify(payload, sig []byte, pub ed25519.PublicKey) error {
	if len(sig) != ed25519.SignatureSize {
		return ErrSigMismatch
	}
	if len(pub) != ed25519.PublicKeySize {
		return ErrSigMismatch
	}
	if !ed25519.Verify(pub, payload, sig) {
		return ErrSigMismatch
	}
	return nil
}

// GenerateKey produces a fresh Ed25519 keypair using OS entropy.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(nil)
}
