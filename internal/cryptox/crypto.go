// Package cryptox implements the crypto vault: passphrase-based key
// derivation and authenticated encryption of records before they reach
// persistent storage.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/farekeeper/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

// KDFIterations is the fixed PBKDF2 iteration count. It matches the value
// baked into the deployed terminal fleet; changing it invalidates every
// key derived so far.
const KDFIterations = 100000

const keySize = 32

// DeriveKey derives a 256-bit AES key from a passphrase and salt using
// PBKDF2-HMAC-SHA256 with KDFIterations rounds. The cost is intentional:
// it slows offline brute-force of the passphrase.
func DeriveKey(passphrase, salt []byte) []byte {
	return pbkdf2.Key(passphrase, salt, KDFIterations, keySize, sha256.New)
}

// MakeVerifier returns a fingerprint of the key that is safe to persist.
// Comparing it on unlock distinguishes a wrong passphrase from corrupted
// ciphertext.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// Encrypt serializes v to JSON and encrypts it with AES-GCM under key.
// A fresh random 12-byte nonce is generated per call and returned alongside
// the ciphertext.
func Encrypt(v any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Decrypt authenticates and decrypts ciphertext produced by Encrypt and
// unmarshals the plaintext JSON into v. A failed authentication (tampered
// data or wrong key) is reported as common.ErrIntegrity so that callers can
// tell corruption apart from "not found".
func Decrypt(ciphertext, nonce, key []byte, v any) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrIntegrity, err)
	}

	return json.Unmarshal(plaintext, v)
}
