package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Codec encrypts and decrypts platform credentials stored at rest.
type Codec interface {
	Encrypt(plain string) (string, error)
	Decrypt(enc string) (string, error)
}

// AESCodec is an AES-256-CTR codec. The key is the SHA-256 digest of the
// configured secret; the IV is derived from the hex digest of the salt so
// that ciphertexts stay stable across restarts and can be compared upstream.
type AESCodec struct {
	key [32]byte
	iv  [aes.BlockSize]byte
}

func NewAESCodec(secret, salt string) (*AESCodec, error) {
	if secret == "" {
		return nil, fmt.Errorf("crypto secret is empty")
	}
	c := &AESCodec{key: sha256.Sum256([]byte(secret))}
	saltDigest := sha256.Sum256([]byte(salt))
	copy(c.iv[:], hex.EncodeToString(saltDigest[:])[:aes.BlockSize])
	return c, nil
}

func (c *AESCodec) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	out, err := c.applyStream([]byte(plain))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *AESCodec) Decrypt(enc string) (string, error) {
	if enc == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("decode credential: %w", err)
	}
	out, err := c.applyStream(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// CTR mode is symmetric; the same keystream encrypts and decrypts.
func (c *AESCodec) applyStream(in []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, c.iv[:]).XORKeyStream(out, in)
	return out, nil
}
