package kc

import (
	"log/slog"
	"sync"
	"time"
)

// TokenEntry stores a cached access token and metadata for a user.
type TokenEntry struct {
	AccessToken string
	UserID      string
	UserName    string
	StoredAt    time.Time
}

// TokenStore is a thread-safe in-memory map of user ID -> access token, so
// a user only needs to complete the login flow once per trading day.
// Optionally backed by SQLite via SetDB; tokens are encrypted at rest when
// an encryption secret is configured.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*TokenEntry

	db     *DB
	encKey []byte
	logger *slog.Logger
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		tokens: make(map[string]*TokenEntry),
	}
}

// SetDB enables write-through persistence to the given SQLite database.
func (s *TokenStore) SetDB(db *DB) {
	s.db = db
}

// SetLogger sets the logger for persistence error reporting.
func (s *TokenStore) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// SetEncryptionSecret derives and installs the at-rest encryption key.
// Must be called before LoadFromDB when encrypted rows exist.
func (s *TokenStore) SetEncryptionSecret(secret string) error {
	key, err := deriveEncryptionKey(secret)
	if err != nil {
		return err
	}
	s.encKey = key
	return nil
}

// LoadFromDB populates the in-memory store from the database, dropping
// entries that have already expired.
func (s *TokenStore) LoadFromDB() error {
	if s.db == nil {
		return nil
	}
	rows, err := s.db.loadTokens()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		token := row.AccessToken
		if s.encKey != nil {
			token = decryptToken(s.encKey, token)
		}
		if token == "" {
			continue
		}
		entry := &TokenEntry{
			AccessToken: token,
			UserID:      row.UserID,
			UserName:    row.UserName,
			StoredAt:    row.StoredAt,
		}
		if entry.Expired() {
			continue
		}
		s.tokens[row.UserID] = entry
	}
	return nil
}

// Get retrieves a stored, unexpired token for the given user ID.
// Returns a copy to prevent callers from mutating shared state.
func (s *TokenStore) Get(userID string) (*TokenEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.tokens[userID]
	if !ok || entry.Expired() {
		return nil, false
	}
	cp := *entry
	return &cp, true
}

// Set stores a token for the given user ID, writing through to the
// database when one is configured.
func (s *TokenStore) Set(userID string, entry *TokenEntry) {
	stored := *entry
	stored.UserID = userID
	stored.StoredAt = time.Now()

	s.mu.Lock()
	s.tokens[userID] = &stored
	s.mu.Unlock()

	if s.db == nil {
		return
	}
	persisted := stored.AccessToken
	if s.encKey != nil {
		enc, err := encryptToken(s.encKey, persisted)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("Failed to encrypt token for persistence", "user_id", userID, "error", err)
			}
			return
		}
		persisted = enc
	}
	if err := s.db.saveToken(storedToken{
		UserID:      userID,
		AccessToken: persisted,
		UserName:    stored.UserName,
		StoredAt:    stored.StoredAt,
	}); err != nil && s.logger != nil {
		s.logger.Error("Failed to persist token", "user_id", userID, "error", err)
	}
}

// Delete removes a token for the given user ID.
func (s *TokenStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	if s.db != nil {
		if err := s.db.deleteToken(userID); err != nil && s.logger != nil {
			s.logger.Error("Failed to delete persisted token", "user_id", userID, "error", err)
		}
	}
}

// Count returns the number of stored tokens.
func (s *TokenStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// istZone is the fixed IST offset used for token expiry computation.
var istZone = time.FixedZone("IST", 5*3600+30*60)

// Expired reports whether the token has crossed the daily expiry. Kite
// access tokens expire around 6 AM IST every day regardless of when they
// were issued.
func (e *TokenEntry) Expired() bool {
	return expiredAt(e.StoredAt, time.Now())
}

func expiredAt(storedAt, now time.Time) bool {
	nowIST := now.In(istZone)
	expiry := time.Date(nowIST.Year(), nowIST.Month(), nowIST.Day(), 6, 0, 0, 0, istZone)
	if nowIST.Before(expiry) {
		expiry = expiry.AddDate(0, 0, -1)
	}
	return storedAt.In(istZone).Before(expiry)
}
