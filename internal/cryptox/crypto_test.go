package cryptox

import (
	"errors"
	"testing"

	"github.com/dmitrijs2005/farekeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	passphrase := []byte("terminal-passphrase")
	salt := []byte("fixed-salt")

	key1 := DeriveKey(passphrase, salt)
	key2 := DeriveKey(passphrase, salt)

	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 32)
}

func TestDeriveKey_DifferentInputs(t *testing.T) {
	passphrase := []byte("terminal-passphrase")

	key1 := DeriveKey(passphrase, []byte("salt-1"))
	key2 := DeriveKey(passphrase, []byte("salt-2"))

	assert.NotEqual(t, key1, key2)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	type payload struct {
		Balance int64  `json:"balance"`
		CardID  string `json:"card_id"`
	}

	key := DeriveKey([]byte("pass"), []byte("salt"))
	in := payload{Balance: 5000, CardID: "04A224E9"}

	ciphertext, nonce, err := Encrypt(in, key)
	require.NoError(t, err)
	require.NotEmpty(t, ciphertext)
	require.Len(t, nonce, 12)

	var out payload
	require.NoError(t, Decrypt(ciphertext, nonce, key, &out))
	assert.Equal(t, in, out)
}

func TestDecrypt_WrongKeyIsIntegrityError(t *testing.T) {
	key := DeriveKey([]byte("pass"), []byte("salt"))
	wrong := DeriveKey([]byte("other"), []byte("salt"))

	ciphertext, nonce, err := Encrypt(map[string]int64{"balance": 100}, key)
	require.NoError(t, err)

	var out map[string]int64
	err = Decrypt(ciphertext, nonce, wrong, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrIntegrity))
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	key := DeriveKey([]byte("pass"), []byte("salt"))

	ciphertext, nonce, err := Encrypt("snapshot", key)
	require.NoError(t, err)

	ciphertext[0] ^= 0xff

	var out string
	err = Decrypt(ciphertext, nonce, key, &out)
	assert.ErrorIs(t, err, common.ErrIntegrity)
}

func TestMakeVerifier_Stable(t *testing.T) {
	key := DeriveKey([]byte("pass"), []byte("salt"))

	v1 := MakeVerifier(key)
	v2 := MakeVerifier(key)

	assert.Equal(t, v1, v2)
	assert.NotEqual(t, v1, MakeVerifier(DeriveKey([]byte("other"), []byte("salt"))))
}
