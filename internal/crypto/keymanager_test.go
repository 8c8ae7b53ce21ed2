package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/limitorder/internal/domain"
)

const testMnemonic = "test test test test test test test test test test test junk"

func TestEncryptDecryptKey(t *testing.T) {
	data, err := EncryptKey("0x"+testKey, "hunter2")
	require.NoError(t, err)
	assert.NotContains(t, string(data), testKey)

	got, err := DecryptKey(data, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	_, err = DecryptKey(data, "wrong")
	assert.Error(t, err)
}

func TestEncryptKeyValidation(t *testing.T) {
	_, err := EncryptKey("abcd", "pw")
	assert.Error(t, err)

	_, err = EncryptKey(testKey, "")
	assert.Error(t, err)
}

func TestDeriveKeyFromMnemonic(t *testing.T) {
	key, err := DeriveKey(testMnemonic, "")
	require.NoError(t, err)
	assert.Equal(t, testKey, key)

	s, err := NewSigner(key, nil)
	require.NoError(t, err)
	assert.Equal(t, testAddress, s.Address().Hex())

	other, err := DeriveKey(testMnemonic, "m/44'/60'/0'/0/1")
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	_, err = DeriveKey(testMnemonic, "not/a/path")
	assert.Error(t, err)
}

func TestLoadKeySources(t *testing.T) {
	key, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKey})
	require.NoError(t, err)
	assert.Equal(t, testKey, key)

	data, err := EncryptKey(testKey, "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	key, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, testKey, key)

	key, err = LoadKey(KeyConfig{Mnemonic: "  " + testMnemonic + "\n"})
	require.NoError(t, err)
	assert.Equal(t, testKey, key)

	_, err = LoadKey(KeyConfig{})
	assert.Error(t, err)
}

func TestRequestAuth(t *testing.T) {
	auth := RequestAuth{Secret: []byte("s3cret"), MaxSkew: 30 * time.Second}
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`{"makerAmount":"1"}`)

	sig := auth.Sign(now.Unix(), "POST", "/api/orders/limit", body)
	require.NoError(t, auth.Verify("1700000000", "POST", "/api/orders/limit", body, sig, now.Add(5*time.Second)))

	cases := map[string]error{
		"tampered body": auth.Verify("1700000000", "POST", "/api/orders/limit", []byte("{}"), sig, now),
		"other path":    auth.Verify("1700000000", "POST", "/api/orders/rfq", body, sig, now),
		"stale":         auth.Verify("1700000000", "POST", "/api/orders/limit", body, sig, now.Add(time.Minute)),
		"bad timestamp": auth.Verify("yesterday", "POST", "/api/orders/limit", body, sig, now),
		"bad encoding":  auth.Verify("1700000000", "POST", "/api/orders/limit", body, strings.Repeat("!", 8), now),
	}
	for name, err := range cases {
		assert.ErrorIs(t, err, domain.ErrUnauthorized, name)
	}
}
