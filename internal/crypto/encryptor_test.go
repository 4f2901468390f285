package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/engagekit/vaultd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptor(t *testing.T) {
	enc, err := NewEncryptor("test-master-secret", false)
	require.NoError(t, err)

	t.Run("Round Trip", func(t *testing.T) {
		for _, plaintext := range []string{"", "a", "whatsapp-access-token-12345", `{"nested":"json"}`, "unicode: héllo wörld ✓"} {
			blob, err := enc.Encrypt(plaintext)
			require.NoError(t, err)

			decrypted, err := enc.Decrypt(blob)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)
		}
	})

	t.Run("Nonce Freshness", func(t *testing.T) {
		blob1, err := enc.Encrypt("same input")
		require.NoError(t, err)
		blob2, err := enc.Encrypt("same input")
		require.NoError(t, err)

		assert.NotEqual(t, blob1, blob2)

		p1, err := enc.Decrypt(blob1)
		require.NoError(t, err)
		p2, err := enc.Decrypt(blob2)
		require.NoError(t, err)
		assert.Equal(t, "same input", p1)
		assert.Equal(t, "same input", p2)
	})

	t.Run("Blob Format", func(t *testing.T) {
		blob, err := enc.Encrypt("hello")
		require.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(blob)
		require.NoError(t, err)
		// nonce + ciphertext (same length as plaintext) + tag
		assert.Len(t, raw, NonceSize+len("hello")+TagSize)
	})

	t.Run("Tamper Detection", func(t *testing.T) {
		blob, err := enc.Encrypt("sensitive value")
		require.NoError(t, err)
		raw, err := base64.StdEncoding.DecodeString(blob)
		require.NoError(t, err)

		// Flip one byte in every region of the blob
		for _, idx := range []int{0, NonceSize, len(raw) - 1} {
			tampered := make([]byte, len(raw))
			copy(tampered, raw)
			tampered[idx] ^= 0x01

			_, err := enc.Decrypt(base64.StdEncoding.EncodeToString(tampered))
			assert.ErrorIs(t, err, models.ErrInvalidCiphertext)
		}
	})

	t.Run("Malformed Blobs", func(t *testing.T) {
		for _, blob := range []string{"", "not base64 !!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
			_, err := enc.Decrypt(blob)
			assert.ErrorIs(t, err, models.ErrInvalidCiphertext)
		}
	})

	t.Run("Different Keys Do Not Interoperate", func(t *testing.T) {
		other, err := NewEncryptor("another-secret", false)
		require.NoError(t, err)

		blob, err := enc.Encrypt("cross-key")
		require.NoError(t, err)

		_, err = other.Decrypt(blob)
		assert.ErrorIs(t, err, models.ErrInvalidCiphertext)
	})

	t.Run("Object Round Trip", func(t *testing.T) {
		in := map[string]interface{}{"client_id": "abc", "scopes": []interface{}{"read", "write"}}
		blob, err := enc.EncryptObject(in)
		require.NoError(t, err)

		var out map[string]interface{}
		err = enc.DecryptObject(blob, &out)
		require.NoError(t, err)
		assert.Equal(t, in["client_id"], out["client_id"])
	})
}

func TestNewEncryptor(t *testing.T) {
	t.Run("Missing Key In Production", func(t *testing.T) {
		_, err := NewEncryptor("", true)
		assert.Error(t, err)
	})

	t.Run("Missing Key Falls Back In Development", func(t *testing.T) {
		enc, err := NewEncryptor("", false)
		require.NoError(t, err)

		blob, err := enc.Encrypt("dev value")
		require.NoError(t, err)
		plaintext, err := enc.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, "dev value", plaintext)
	})
}

func TestGenerateKey(t *testing.T) {
	key1, err := GenerateKey()
	require.NoError(t, err)
	key2, err := GenerateKey()
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)

	raw, err := base64.StdEncoding.DecodeString(key1)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}
