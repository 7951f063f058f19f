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

	"github.com/aretw0/sketchy/pkg/ports"
)

// KeySize is the required key length (AES-256).
const KeySize = 32

const envelopeVersion = 1

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey seals every record written from now on.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot open a
	// record, so old records stay readable after a key rotation.
	FallbackKeys [][]byte
}

// envelope is what actually reaches the wrapped store.
type envelope struct {
	Version int    `json:"v"`
	Sealed  string `json:"sealed"`
}

type encryptionMiddleware struct {
	next ports.RecordStore
	// aeads[0] is built from the active key.
	aeads []cipher.AEAD
}

// NewEncryptionMiddleware seals records with AES-GCM. The storage key is
// bound as additional data, so a record copied under another key fails to open.
// It panics if any key is not KeySize bytes long.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	keys := append([][]byte{config.ActiveKey}, config.FallbackKeys...)
	aeads := make([]cipher.AEAD, 0, len(keys))
	for _, key := range keys {
		aead, err := newAEAD(key)
		if err != nil {
			panic(err)
		}
		aeads = append(aeads, aead)
	}
	return func(next ports.RecordStore) ports.RecordStore {
		return &encryptionMiddleware{next: next, aeads: aeads}
	}
}

// DecodeKey parses a base64 key and checks its length.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid base64: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes (AES-256), got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (m *encryptionMiddleware) Save(ctx context.Context, key string, data []byte) error {
	active := m.aeads[0]
	nonce := make([]byte, active.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := active.Seal(nonce, nonce, data, []byte(key))

	raw, err := json.Marshal(envelope{
		Version: envelopeVersion,
		Sealed:  base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return m.next.Save(ctx, key, raw)
}

func (m *encryptionMiddleware) Load(ctx context.Context, key string) ([]byte, error) {
	raw, err := m.next.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Sealed == "" {
		// Plain records under an encrypting store are rejected.
		return nil, errors.New("record is missing encrypted data envelope")
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	sealed, err := base64.StdEncoding.DecodeString(env.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sealed record: %w", err)
	}

	for _, aead := range m.aeads {
		n := aead.NonceSize()
		if len(sealed) < n {
			return nil, errors.New("sealed record too short")
		}
		if plain, err := aead.Open(nil, sealed[:n], sealed[n:], []byte(key)); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("failed to decrypt record with any configured key")
}

func (m *encryptionMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
