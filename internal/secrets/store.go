package secrets

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
	"runtime"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"

	"whisk/internal/common"
	"whisk/pkg/errors"
)

const (
	keyringService   = "whisk"
	saltSize         = 32
	keySize          = 32 // AES-256
	pbkdf2Iterations = 100000
)

// Store keeps the commerce API token and warehouse password out of the
// YAML config. It prefers the OS keyring and falls back to an
// AES-256-GCM encrypted file under the config directory on headless
// hosts where no keyring is available.
type Store struct {
	useKeyring bool
	baseDir    string
	masterKey  []byte
}

// NewStore creates a secret store rooted at the given directory.
func NewStore(baseDir string) (*Store, error) {
	s := &Store{
		useKeyring: keyringAvailable(),
		baseDir:    baseDir,
	}

	if !s.useKeyring {
		key, err := s.loadOrCreateMasterKey()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSecretStore, "failed to initialize master key")
		}
		s.masterKey = key
	}

	return s, nil
}

// NewFileStore creates a store that always uses the encrypted-file
// backend. Used on hosts without a keyring and in tests.
func NewFileStore(baseDir string) (*Store, error) {
	s := &Store{useKeyring: false, baseDir: baseDir}
	key, err := s.loadOrCreateMasterKey()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSecretStore, "failed to initialize master key")
	}
	s.masterKey = key
	return s, nil
}

// Set stores a secret under the given name.
func (s *Store) Set(name, value string) error {
	if name == "" {
		return errors.New(errors.ErrCodeRequiredField, "secret name is required")
	}

	if s.useKeyring {
		if err := keyring.Set(keyringService, name, value); err != nil {
			return errors.Wrap(err, errors.ErrCodeSecretStore, "failed to store secret in keyring").
				WithContext("name", name)
		}
		return nil
	}

	encrypted, err := s.encrypt(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSecretStore, "failed to encrypt secret")
	}

	if err := os.MkdirAll(s.secretsDir(), common.DirPermissionSecure); err != nil {
		return err
	}
	return os.WriteFile(s.secretPath(name), []byte(encrypted), common.FilePermissionSecure)
}

// Get retrieves a secret by name.
func (s *Store) Get(name string) (string, error) {
	if s.useKeyring {
		value, err := keyring.Get(keyringService, name)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeSecretStore, "failed to read secret from keyring").
				WithContext("name", name).
				WithSuggestions("Run 'whisk setup' to store credentials")
		}
		return value, nil
	}

	data, err := os.ReadFile(s.secretPath(name)) // #nosec G304 - path is derived from sanitized name
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSecretStore, "secret not found").
			WithContext("name", name).
			WithSuggestions("Run 'whisk setup' to store credentials")
	}

	return s.decrypt(string(data))
}

// Delete removes a secret.
func (s *Store) Delete(name string) error {
	if s.useKeyring {
		return keyring.Delete(keyringService, name)
	}
	return os.Remove(s.secretPath(name))
}

func keyringAvailable() bool {
	// Headless Linux hosts frequently have no secret service; probe once.
	probe := "whisk-keyring-probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, probe)
	return true
}

func (s *Store) secretsDir() string {
	return filepath.Join(s.baseDir, "secrets")
}

func (s *Store) secretPath(name string) string {
	safe := base64.RawURLEncoding.EncodeToString([]byte(name))
	return filepath.Join(s.secretsDir(), safe+".enc")
}

func (s *Store) masterKeyPath() string {
	return filepath.Join(s.secretsDir(), ".master")
}

func (s *Store) loadOrCreateMasterKey() ([]byte, error) {
	keyPath := s.masterKeyPath()

	data, err := os.ReadFile(keyPath) // #nosec G304 - fixed path under base dir
	if err == nil {
		if len(data) != saltSize+keySize {
			return nil, fmt.Errorf("invalid master key file size")
		}
		return data[saltSize:], nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	key := pbkdf2.Key([]byte(machineID()), salt, pbkdf2Iterations, keySize, sha256.New)

	if err := os.MkdirAll(s.secretsDir(), common.DirPermissionSecure); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyPath, append(salt, key...), common.FilePermissionSecure); err != nil {
		return nil, err
	}

	return key, nil
}

func machineID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%s-%s", hostname, runtime.GOOS, runtime.GOARCH)
}

func (s *Store) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (s *Store) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(s.masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
