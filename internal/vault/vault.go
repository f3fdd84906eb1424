// Package vault encrypts stored exchange credentials with AES-256-CBC.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

var ErrBadPadding = errors.New("invalid padding")

type Vault struct {
	key []byte
}

// New takes the 32-byte key as a 64-character hex string.
func New(hexKey string) (*Vault, error) {
	if hexKey == "" {
		return nil, errors.New("encryption key not set")
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key is %d bytes, want 32", len(key))
	}
	return &Vault{key: key}, nil
}

// Encrypt returns base64 ciphertext and the base64 IV it was sealed with. A
// nil iv draws a fresh random one.
func (v *Vault) Encrypt(plaintext string, iv []byte) (string, string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", "", err
	}
	if iv == nil {
		iv = make([]byte, aes.BlockSize)
		if _, err := rand.Read(iv); err != nil {
			return "", "", fmt.Errorf("reading iv: %w", err)
		}
	}
	if len(iv) != aes.BlockSize {
		return "", "", fmt.Errorf("iv is %d bytes, want %d", len(iv), aes.BlockSize)
	}

	data := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)

	return base64.StdEncoding.EncodeToString(out), base64.StdEncoding.EncodeToString(iv), nil
}

func (v *Vault) Decrypt(ciphertextB64, ivB64 string) (string, error) {
	ct, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return "", fmt.Errorf("decoding iv: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("iv is %d bytes, want %d", len(iv), aes.BlockSize)
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", fmt.Errorf("ciphertext length %d: %w", len(ct), ErrBadPadding)
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)

	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// PKCS#7
func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrBadPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-n], nil
}
