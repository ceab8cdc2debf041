package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sealed:"

// ErrSealedToken is returned when a sealed token file cannot be opened with
// the configured key.
var ErrSealedToken = errors.New("session: sealed token cannot be opened")

// FileStorage persists the token in a single 0600 file. When a seal key is
// configured the token is encrypted with secretbox before it touches disk.
type FileStorage struct {
	path string
	key  *[32]byte
}

// NewFileStorage returns a FileStorage writing to path. An empty sealKey
// stores the token in clear text.
func NewFileStorage(path, sealKey string) *FileStorage {
	fs := &FileStorage{path: path}
	if sealKey != "" {
		sum := sha256.Sum256([]byte(sealKey))
		fs.key = &sum
	}
	return fs
}

// DefaultTokenPath returns the per-user location used when none is configured.
func DefaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("session: resolve config dir: %w", err)
	}
	return filepath.Join(dir, "odyssey", TokenKey), nil
}

// Path returns the file backing the storage.
func (f *FileStorage) Path() string { return f.path }

func (f *FileStorage) Load(context.Context) (string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("session: read token file: %w", err)
	}
	content := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(content, sealedPrefix) {
		return content, nil
	}
	return f.open(strings.TrimPrefix(content, sealedPrefix))
}

func (f *FileStorage) Save(_ context.Context, token string) error {
	content := token
	if f.key != nil {
		sealed, err := f.seal(token)
		if err != nil {
			return err
		}
		content = sealedPrefix + sealed
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("session: create token dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".token-*")
	if err != nil {
		return fmt.Errorf("session: create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("session: chmod token file: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: close token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("session: replace token file: %w", err)
	}
	return nil
}

func (f *FileStorage) Clear(context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: remove token file: %w", err)
	}
	return nil
}

func (f *FileStorage) seal(token string) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("session: token nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(token), &nonce, f.key)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

func (f *FileStorage) open(encoded string) (string, error) {
	if f.key == nil {
		return "", fmt.Errorf("%w: no seal key configured", ErrSealedToken)
	}
	box, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(box) < 24 {
		return "", ErrSealedToken
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, f.key)
	if !ok {
		return "", ErrSealedToken
	}
	return string(plain), nil
}
