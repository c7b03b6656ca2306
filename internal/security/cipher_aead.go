package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// AEADCipher derives an AES-256-GCM key from the shared password and Info
// via HKDF-SHA256 and uses it to seal the challenge, replacing the
// legacy XORCipher for deployments that need real confidentiality. The
// nonce is prepended to the returned ciphertext so Decrypt is self
// contained.
type AEADCipher struct {
	// Info is mixed into the HKDF expand step, binding derived keys to this
	// policy instance. Two peers must agree on the same Info to interop.
	Info []byte
}

func (c AEADCipher) Name() string { return "aead_aes256gcm" }

func (c AEADCipher) deriveKey(key string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(key), nil, c.Info)
	out := make([]byte, 32)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c AEADCipher) gcm(key string) (cipher.AEAD, error) {
	derived, err := c.deriveKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under key, returning nonce||ciphertext. Returns
// nil on any derivation failure; callers treat a short/empty result as a
// failed challenge the same way they would a wrong plaintext reply.
func (c AEADCipher) Encrypt(plaintext []byte, key string) []byte {
	gcm, err := c.gcm(key)
	if err != nil {
		return nil
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil
	}
	return gcm.Seal(nonce, nonce, plaintext, nil)
}

// Decrypt opens a nonce||ciphertext blob produced by Encrypt. Returns nil on
// any authentication or derivation failure.
func (c AEADCipher) Decrypt(ciphertext []byte, key string) []byte {
	gcm, err := c.gcm(key)
	if err != nil {
		return nil
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil
	}
	return plain
}
