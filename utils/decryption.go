package utils

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/goccy/go-json"
	"github.com/spf13/viper"
)

const kmsKeyPrefix = "arn:aws:kms:"

type decrypter struct {
	kmsClient *kms.Client
	localKey  []byte
}

var (
	decrypterOnce sync.Once
	sharedDecrypt *decrypter
	decrypterErr  error
)

func encryptionKey() string {
	return strings.TrimSpace(viper.GetString(constants.EncryptionKey))
}

func loadDecrypter(key string) (*decrypter, error) {
	if strings.HasPrefix(key, kmsKeyPrefix) {
		cfg, err := config.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return &decrypter{kmsClient: kms.NewFromConfig(cfg)}, nil
	}

	// Local AES-GCM Mode with SHA-256 derived key
	hash := sha256.Sum256([]byte(key))
	return &decrypter{localKey: hash[:]}, nil
}

func (d *decrypter) decrypt(ctx context.Context, cipherData []byte) (string, error) {
	if d.kmsClient != nil {
		out, err := d.kmsClient.Decrypt(ctx, &kms.DecryptInput{
			CiphertextBlob: cipherData,
		})
		if err != nil {
			return "", fmt.Errorf("decryption failed: %w", err)
		}
		return string(out.Plaintext), nil
	}

	block, err := aes.NewCipher(d.localKey)
	if err != nil {
		return "", err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := aead.NonceSize()
	if len(cipherData) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := cipherData[:nonceSize], cipherData[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}

	return string(plaintext), nil
}

// Decrypt returns cipherData unchanged when no encryption key is configured
func Decrypt(cipherData []byte) (string, error) {
	key := encryptionKey()
	if key == "" {
		return string(cipherData), nil
	}

	decrypterOnce.Do(func() {
		sharedDecrypt, decrypterErr = loadDecrypter(key)
	})
	if decrypterErr != nil {
		return "", fmt.Errorf("decryption failed: %w", decrypterErr)
	}

	return sharedDecrypt.decrypt(context.Background(), cipherData)
}

// DecryptConfig decrypts base64 encoded encrypted data
func DecryptConfig(encryptedConfig string) (string, error) {
	if encryptionKey() == "" {
		return encryptedConfig, nil
	}

	// config files may hold the payload as a quoted JSON string
	var unquotedString string
	if err := json.Unmarshal([]byte(encryptedConfig), &unquotedString); err != nil {
		unquotedString = strings.TrimSpace(encryptedConfig)
	}

	encryptedData, err := base64.URLEncoding.DecodeString(unquotedString)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 data: %v", err)
	}

	decrypted, err := Decrypt(encryptedData)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt data: %v", err)
	}

	return decrypted, nil
}
