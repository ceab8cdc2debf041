package shared

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"sync"
	"time"
)

// CSRFFormField is the form field name carrying the CSRF token.
const CSRFFormField = "csrf_token"

var (
	ErrCSRFTokenMissing  = errors.New("shared: csrf token missing")
	ErrCSRFTokenMismatch = errors.New("shared: csrf token mismatch")
)

// CSRFManager issues and verifies the console's CSRF token. The token is
// rotated on every sign in and sign out.
type CSRFManager struct {
	secret []byte

	mu    sync.RWMutex
	token string
}

// NewCSRFManager returns a CSRFManager using secret. An empty secret is
// replaced with random bytes.
func NewCSRFManager(secret string) *CSRFManager {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	m := &CSRFManager{secret: key}
	m.Rotate()
	return m
}

// Token returns the current token.
func (m *CSRFManager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Rotate replaces the token.
func (m *CSRFManager) Rotate() {
	token := m.generateToken()
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

// VerifyToken compares the supplied token with the current one.
func (m *CSRFManager) VerifyToken(token string) error {
	expected := m.Token()
	if token == "" || expected == "" {
		return ErrCSRFTokenMissing
	}
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

func (m *CSRFManager) generateToken() string {
	mac := hmac.New(sha256.New, m.secret)
	nonce := make([]byte, 16)
	_, _ = rand.Read(nonce)
	_, _ = mac.Write(nonce)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(time.Now().UnixNano()))
	_, _ = mac.Write(buf)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
