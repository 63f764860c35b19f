// Package encryption provides symmetric AEAD encryption for data at rest.
// Two ciphers are supported: AES-256-GCM (default) and ChaCha20-Poly1305
// (faster on CPUs without AES hardware acceleration).
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Encryptor is the interface for symmetric encryption and decryption.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Algorithm names supported encryption algorithms.
type Algorithm string

const (
	// AlgorithmAESGCM is AES-256-GCM (default, widely supported).
	AlgorithmAESGCM Algorithm = "aes-256-gcm"
	// AlgorithmChaCha20 is ChaCha20-Poly1305.
	AlgorithmChaCha20 Algorithm = "chacha20-poly1305"
)

// New creates an Encryptor with the given key and algorithm. The key is
// hashed with SHA-256 to the 32-byte length both ciphers require. An empty
// algorithm selects AES-256-GCM.
func New(key string, alg Algorithm) (Encryptor, error) {
	keyBytes := deriveKey(key)

	var aead cipher.AEAD
	var err error
	switch alg {
	case AlgorithmChaCha20:
		aead, err = chacha20poly1305.New(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("create chacha20: %w", err)
		}
	case AlgorithmAESGCM, "":
		var block cipher.Block
		block, err = aes.NewCipher(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("create cipher: %w", err)
		}
		aead, err = cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("create GCM: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", alg)
	}

	return &service{aead: aead}, nil
}

// service implements Encryptor over any AEAD cipher. The nonce is prepended
// to the ciphertext and the whole blob base64-encoded.
type service struct {
	aead cipher.AEAD
}

// Encrypt encrypts plaintext and returns a base64-encoded result.
func (s *service) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts a base64-encoded ciphertext.
func (s *service) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}

	return string(plaintext), nil
}

func deriveKey(key string) []byte {
	hasher := sha256.New()
	hasher.Write([]byte(key))
	return hasher.Sum(nil)
}
