package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/relay/internal/logging"
	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/ports"
)

// envelopeKey holds the sealed workflow data inside Session.Data.
const envelopeKey = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte

	// Logger reports sessions that List had to skip. Defaults to a no-op logger.
	Logger *slog.Logger
}

type encryptionMiddleware struct {
	next   ports.SessionStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals Session.Data with
// AES-GCM. Routing fields (user, chat, workflow, state, pinned message) stay in
// the clear so hijack checks and inspection keep working.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	if config.Logger == nil {
		config.Logger = logging.NewNop()
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Put(ctx context.Context, s *domain.Session) error {
	plainText, err := json.Marshal(s.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt session data: %w", err)
	}

	envelope := s.Clone()
	envelope.Data = map[string]any{
		envelopeKey: base64.StdEncoding.EncodeToString(ciphertext),
	}
	return m.next.Put(ctx, envelope)
}

func (m *encryptionMiddleware) Get(ctx context.Context, userID int64) (*domain.Session, error) {
	s, err := m.next.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := m.open(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *encryptionMiddleware) Remove(ctx context.Context, userID int64) error {
	return m.next.Remove(ctx, userID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]*domain.Session, error) {
	sessions, err := m.next.List(ctx)
	if err != nil {
		return nil, err
	}
	// Unreadable sessions are skipped here; Get still reports them.
	opened := sessions[:0]
	for _, s := range sessions {
		if err := m.open(s); err != nil {
			m.config.Logger.Warn("Skipping unreadable session",
				"user_id", s.UserID,
				"err", err,
			)
			continue
		}
		opened = append(opened, s)
	}
	return opened, nil
}

// open replaces the envelope in s.Data with the decrypted workflow data.
func (m *encryptionMiddleware) open(s *domain.Session) error {
	// Fail secure: a session written without encryption is rejected.
	encryptedStr, ok := s.Data[envelopeKey].(string)
	if !ok {
		return errors.New("session is missing encrypted data envelope")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encryptedStr)
	if err != nil {
		return fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return fmt.Errorf("failed to decrypt session data: %w", err)
	}

	data := make(map[string]any)
	if err := json.Unmarshal(plainText, &data); err != nil {
		return fmt.Errorf("failed to unmarshal decrypted session data: %w", err)
	}
	s.Data = data
	return nil
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
