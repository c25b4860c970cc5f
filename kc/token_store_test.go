package kc

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiredAt(t *testing.T) {
	ist := func(year int, month time.Month, day, hour, min int) time.Time {
		return time.Date(year, month, day, hour, min, 0, 0, istZone)
	}

	tests := []struct {
		name     string
		storedAt time.Time
		now      time.Time
		expired  bool
	}{
		{
			name:     "stored last evening, checked after 6 AM cutover",
			storedAt: ist(2025, time.March, 9, 22, 0),
			now:      ist(2025, time.March, 10, 7, 0),
			expired:  true,
		},
		{
			name:     "stored after today's cutover, checked same morning",
			storedAt: ist(2025, time.March, 10, 6, 30),
			now:      ist(2025, time.March, 10, 7, 0),
			expired:  false,
		},
		{
			name:     "stored overnight, checked before the cutover",
			storedAt: ist(2025, time.March, 10, 1, 0),
			now:      ist(2025, time.March, 10, 5, 0),
			expired:  false,
		},
		{
			name:     "stored before yesterday's cutover, checked before today's",
			storedAt: ist(2025, time.March, 9, 5, 0),
			now:      ist(2025, time.March, 10, 5, 0),
			expired:  true,
		},
		{
			name:     "stored exactly at the cutover",
			storedAt: ist(2025, time.March, 10, 6, 0),
			now:      ist(2025, time.March, 10, 12, 0),
			expired:  false,
		},
		{
			name:     "stored in UTC, compared across zones",
			storedAt: time.Date(2025, time.March, 9, 20, 0, 0, 0, time.UTC), // 01:30 IST Mar 10
			now:      ist(2025, time.March, 10, 7, 0),
			expired:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, expiredAt(tt.storedAt, tt.now))
		})
	}
}

func TestTokenStoreSetGet(t *testing.T) {
	store := NewTokenStore()
	store.Set("AB1234", &TokenEntry{AccessToken: "tok", UserName: "Test User"})

	entry, ok := store.Get("AB1234")
	require.True(t, ok)
	assert.Equal(t, "tok", entry.AccessToken)
	assert.Equal(t, "AB1234", entry.UserID)
	assert.False(t, entry.StoredAt.IsZero())

	// Get hands out a copy.
	entry.AccessToken = "mutated"
	again, ok := store.Get("AB1234")
	require.True(t, ok)
	assert.Equal(t, "tok", again.AccessToken)

	_, ok = store.Get("UNKNOWN")
	assert.False(t, ok)
	assert.Equal(t, 1, store.Count())
}

func TestTokenStoreDelete(t *testing.T) {
	store := NewTokenStore()
	store.Set("AB1234", &TokenEntry{AccessToken: "tok"})
	store.Delete("AB1234")

	_, ok := store.Get("AB1234")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Count())
}

func TestTokenStoreExpiredEntriesHidden(t *testing.T) {
	store := NewTokenStore()
	store.Set("AB1234", &TokenEntry{AccessToken: "tok"})

	// Backdate past the previous 6 AM IST cutover.
	store.mu.Lock()
	store.tokens["AB1234"].StoredAt = time.Now().Add(-48 * time.Hour)
	store.mu.Unlock()

	_, ok := store.Get("AB1234")
	assert.False(t, ok)
}

func TestTokenStorePersistenceRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tokens.db")

	db, err := OpenDB(dbPath)
	require.NoError(t, err)

	store := NewTokenStore()
	store.SetDB(db)
	store.SetLogger(testLogger())
	require.NoError(t, store.SetEncryptionSecret("test-secret"))

	store.Set("AB1234", &TokenEntry{AccessToken: "the_access_token", UserName: "Test User"})

	// Tokens are never persisted in cleartext.
	rows, err := db.loadTokens()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEqual(t, "the_access_token", rows[0].AccessToken)

	require.NoError(t, db.Close())

	// A fresh store over the same file recovers the token.
	db2, err := OpenDB(dbPath)
	require.NoError(t, err)
	defer db2.Close()

	reloaded := NewTokenStore()
	reloaded.SetDB(db2)
	reloaded.SetLogger(testLogger())
	require.NoError(t, reloaded.SetEncryptionSecret("test-secret"))
	require.NoError(t, reloaded.LoadFromDB())

	entry, ok := reloaded.Get("AB1234")
	require.True(t, ok)
	assert.Equal(t, "the_access_token", entry.AccessToken)
	assert.Equal(t, "Test User", entry.UserName)
}

func TestTokenStoreLoadDropsUndecryptable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tokens.db")

	db, err := OpenDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	writer := NewTokenStore()
	writer.SetDB(db)
	require.NoError(t, writer.SetEncryptionSecret("secret-1"))
	writer.Set("AB1234", &TokenEntry{AccessToken: "tok"})

	reader := NewTokenStore()
	reader.SetDB(db)
	require.NoError(t, reader.SetEncryptionSecret("secret-2"))
	require.NoError(t, reader.LoadFromDB())

	_, ok := reader.Get("AB1234")
	assert.False(t, ok)
	assert.Equal(t, 0, reader.Count())
}
