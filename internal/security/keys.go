package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize    = 32 // AES-256
	saltSize   = 32
	pbkdf2Iter = 100000
)

// KeyEncryptor encrypts the server API key for at-rest storage in the config
// file. The AES key is derived from a machine identifier plus a random salt
// kept next to the database, so a copied config file alone is not enough to
// recover the key.
type KeyEncryptor struct {
	keyPath string
}

// NewKeyEncryptor creates a new key encryptor rooted at the data directory
func NewKeyEncryptor(dataDir string) *KeyEncryptor {
	return &KeyEncryptor{
		keyPath: filepath.Join(dataDir, ".key"),
	}
}

// Encrypt encrypts an API key for storage
func (ke *KeyEncryptor) Encrypt(apiKey string) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("api key cannot be empty")
	}

	key, err := ke.getOrCreateKey()
	if err != nil {
		return "", fmt.Errorf("failed to get encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(apiKey), nil)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts a stored API key
func (ke *KeyEncryptor) Decrypt(encrypted string) (string, error) {
	if encrypted == "" {
		return "", fmt.Errorf("encrypted api key cannot be empty")
	}

	key, err := ke.loadKey()
	if err != nil {
		return "", fmt.Errorf("failed to load encryption key: %w", err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decode api key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt api key: %w", err)
	}

	return string(plaintext), nil
}

// getOrCreateKey loads the existing key or generates one
func (ke *KeyEncryptor) getOrCreateKey() ([]byte, error) {
	key, err := ke.loadKey()
	if err == nil {
		return key, nil
	}
	return ke.generateAndSaveKey()
}

// loadKey derives the AES key from the stored salt
func (ke *KeyEncryptor) loadKey() ([]byte, error) {
	data, err := os.ReadFile(ke.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key file: %w", err)
	}

	if len(salt) < saltSize {
		return nil, fmt.Errorf("invalid key file format")
	}

	return pbkdf2.Key([]byte(machineID()), salt[:saltSize], pbkdf2Iter, keySize, sha256.New), nil
}

// generateAndSaveKey generates a fresh salt, persists it, and derives the key
func (ke *KeyEncryptor) generateAndSaveKey() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(ke.keyPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(salt)
	if err := os.WriteFile(ke.keyPath, []byte(encoded), 0600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}

	return pbkdf2.Key([]byte(machineID()), salt, pbkdf2Iter, keySize, sha256.New), nil
}

// DeleteKey removes the key file, invalidating any stored ciphertext
func (ke *KeyEncryptor) DeleteKey() error {
	if err := os.Remove(ke.keyPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key file: %w", err)
	}
	return nil
}

// machineID returns a machine-bound identifier used as the derivation password
func machineID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "default-machine"
	}

	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	if username == "" {
		username = "default-user"
	}

	return hostname + ":" + username
}
