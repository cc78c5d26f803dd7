package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"vaultrecon/pkg/models"
)

const (
	encryptedPrefix = "ENC["
	encryptedSuffix = "]"

	encryptionKeyEnv = "VAULTRECON_ENCRYPTION_KEY"
	keyIterations    = 100000
	keySize          = 32
)

// keySalt is fixed so the same passphrase decrypts on every machine that has it.
var keySalt = []byte("vaultrecon-config-password")

func getEncryptionKey() []byte {
	secret := os.Getenv(encryptionKeyEnv)
	if secret == "" {
		hostname, _ := os.Hostname()
		homeDir, _ := os.UserHomeDir()
		secret = fmt.Sprintf("%s-%s-vaultrecon", hostname, homeDir)
	}
	return pbkdf2.Key([]byte(secret), keySalt, keyIterations, keySize, sha256.New)
}

// EncryptPassword encrypts a password using AES-256-GCM
func EncryptPassword(password string) (string, error) {
	if password == "" || IsEncrypted(password) {
		return password, nil
	}

	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(password), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext) + encryptedSuffix, nil
}

// DecryptPassword decrypts a password encrypted with EncryptPassword.
// Plain values are returned unchanged.
func DecryptPassword(encrypted string) (string, error) {
	if !IsEncrypted(encrypted) {
		return encrypted, nil
	}

	encoded := strings.TrimSuffix(strings.TrimPrefix(encrypted, encryptedPrefix), encryptedSuffix)
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted password: %w", err)
	}

	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt password (check %s): %w", encryptionKeyEnv, err)
	}

	return string(plaintext), nil
}

func newGCM() (cipher.AEAD, error) {
	block, err := aes.NewCipher(getEncryptionKey())
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// IsEncrypted checks if a string is encrypted
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encryptedPrefix) && strings.HasSuffix(value, encryptedSuffix)
}

// DecryptConfigPasswords decrypts the Snowflake password in place
func DecryptConfigPasswords(cfg *models.Config) error {
	if !IsEncrypted(cfg.Snowflake.Password) {
		return nil
	}
	decrypted, err := DecryptPassword(cfg.Snowflake.Password)
	if err != nil {
		return fmt.Errorf("failed to decrypt Snowflake password: %w", err)
	}
	cfg.Snowflake.Password = decrypted
	return nil
}
