package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known throwaway key, never funded.
const testKeyHex = "ad0f3f74b53c8494c55bbdbd380df987c1a1f888f689c58e0b8ed46dbfd48f99"

func TestNewSigner(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	require.NoError(t, err)

	pk, err := ethcrypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, ethcrypto.PubkeyToAddress(pk.PublicKey), s.Address())
}

func TestNewSignerAccepts0xPrefix(t *testing.T) {
	a, err := NewSigner(testKeyHex, 137)
	require.NoError(t, err)
	b, err := NewSigner("0x"+testKeyHex, 137)
	require.NoError(t, err)

	assert.Equal(t, a.Address(), b.Address())
}

func TestNewSignerRejectsGarbage(t *testing.T) {
	_, err := NewSigner("not-a-key", 137)
	assert.Error(t, err)
}

func TestSignAuthMessageRecoverable(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	require.NoError(t, err)

	sigHex, err := s.SignAuthMessage(1700000000, 0)
	require.NoError(t, err)
	require.True(t, len(sigHex) == 2+65*2, "want 0x + 65 bytes hex")

	sig, err := hex.DecodeString(sigHex[2:])
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sig[64], byte(27))

	// The signature must recover to the signer's address.
	sig[64] -= 27
	digest := eip712Hash(s.domainSep, structHashForTest(s))
	pub, err := ethcrypto.SigToPub(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), ethcrypto.PubkeyToAddress(*pub))
}

func TestSignAuthMessageDeterministic(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	require.NoError(t, err)

	a, err := s.SignAuthMessage(1700000000, 0)
	require.NoError(t, err)
	b, err := s.SignAuthMessage(1700000000, 0)
	require.NoError(t, err)
	c, err := s.SignAuthMessage(1700000001, 0)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

// structHashForTest mirrors SignAuthMessage's hashing for timestamp
// 1700000000 and nonce 0.
func structHashForTest(s *Signer) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			clobAuthTypeHash,
			make32(s.address.Bytes()),
			ethcrypto.Keccak256([]byte("1700000000")),
			make32(nil),
			ethcrypto.Keccak256([]byte(clobAuthMessage)),
		),
	)
}

func make32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func TestL2HeadersAt(t *testing.T) {
	secret := base64.URLEncoding.EncodeToString([]byte("super-secret"))
	auth := &HMACAuth{Key: "key-1", Secret: secret, Passphrase: "pass"}

	headers := auth.L2HeadersAt("0xabc", "GET", "/prices-history", "", 1700000000)

	assert.Equal(t, "0xabc", headers["POLY_ADDRESS"])
	assert.Equal(t, "key-1", headers["POLY_API_KEY"])
	assert.Equal(t, "1700000000", headers["POLY_TIMESTAMP"])
	assert.Equal(t, "pass", headers["POLY_PASSPHRASE"])

	mac := hmac.New(sha256.New, []byte("super-secret"))
	mac.Write([]byte("1700000000GET/prices-history"))
	want := base64.URLEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, headers["POLY_SIGNATURE"])
}

func TestHMACAuthStringRedacts(t *testing.T) {
	auth := &HMACAuth{Key: "abcdef123456"}
	s := auth.String()

	assert.NotContains(t, s, "abcdef12")
	assert.Contains(t, s, "3456")
}

func TestEncryptDecryptKeyRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestDecryptKeyWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestEncryptKeyRejectsShortKey(t *testing.T) {
	_, err := EncryptKey("abcd", "hunter2")
	assert.Error(t, err)
}

func TestLoadKeyPrefersRaw(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyNoSource(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	assert.Error(t, err)
}
