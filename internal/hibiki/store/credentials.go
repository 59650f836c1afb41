package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/hibiki-ai/hibiki/common/crypto"
	"github.com/hibiki-ai/hibiki/internal/hibiki/credentials"
)

// CredentialStore is the SQLite-backed credentials.Store. With a master
// key, tokens are sealed with AES-256-GCM before they touch the database.
type CredentialStore struct {
	store *Store
	key   []byte
}

// Credentials returns the store's credential accessor. Tokens are stored
// in plaintext; prefer EncryptedCredentials in production.
func (s *Store) Credentials() *CredentialStore {
	return &CredentialStore{store: s}
}

// EncryptedCredentials returns a credential accessor that encrypts tokens
// at rest with the given 32-byte master key.
func (s *Store) EncryptedCredentials(key []byte) *CredentialStore {
	return &CredentialStore{store: s, key: key}
}

// Get implements credentials.Store.
func (c *CredentialStore) Get(ctx context.Context, userID, service string) (string, error) {
	var stored string
	err := c.store.db.QueryRowContext(ctx,
		"SELECT token FROM credentials WHERE user_id = ? AND service = ?",
		userID, service,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", credentials.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: query credential: %w", err)
	}
	return c.open(stored)
}

// Set implements credentials.Store with upsert semantics.
func (c *CredentialStore) Set(ctx context.Context, userID, service, token string) error {
	stored, err := c.seal(token)
	if err != nil {
		return err
	}
	_, err = c.store.db.ExecContext(ctx, `
		INSERT INTO credentials (user_id, service, token, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, service) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		userID, service, stored, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("store: upsert credential: %w", err)
	}
	return nil
}

// Delete implements credentials.Store. Deleting a missing credential is
// not an error.
func (c *CredentialStore) Delete(ctx context.Context, userID, service string) error {
	_, err := c.store.db.ExecContext(ctx,
		"DELETE FROM credentials WHERE user_id = ? AND service = ?",
		userID, service,
	)
	if err != nil {
		return fmt.Errorf("store: delete credential: %w", err)
	}
	return nil
}

// seal encrypts token when a master key is configured, hex-encoding the
// nonce-prefixed ciphertext for the TEXT column.
func (c *CredentialStore) seal(token string) (string, error) {
	if c.key == nil {
		return token, nil
	}
	sealed, err := crypto.Encrypt(c.key, []byte(token))
	if err != nil {
		return "", fmt.Errorf("store: encrypt credential: %w", err)
	}
	return hex.EncodeToString(sealed), nil
}

// open reverses seal.
func (c *CredentialStore) open(stored string) (string, error) {
	if c.key == nil {
		return stored, nil
	}
	sealed, err := hex.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("store: decode credential: %w", err)
	}
	token, err := crypto.Decrypt(c.key, sealed)
	if err != nil {
		return "", fmt.Errorf("store: decrypt credential: %w", err)
	}
	return string(token), nil
}
