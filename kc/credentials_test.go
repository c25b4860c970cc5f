package kc

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialsRedactedInLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	creds := Credentials{
		APIKey:    "myapikey123",
		APISecret: "verysecretvalue",
		UserID:    "AB1234",
		Password:  "hunter22222",
		TOTPKey:   "JBSWY3DPEHPK3PXP",
	}
	logger.Info("login", "credentials", creds)

	out := buf.String()
	assert.NotContains(t, out, "myapikey123")
	assert.NotContains(t, out, "verysecretvalue")
	assert.NotContains(t, out, "hunter22222")
	assert.NotContains(t, out, "JBSWY3DPEHPK3PXP")
	assert.Contains(t, out, "AB1234")
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("KITE_API_KEY", "env_key")
	t.Setenv("KITE_API_SECRET", "env_secret")
	t.Setenv("KITE_USER_ID", "AB1234")

	creds := CredentialsFromEnv()
	assert.Equal(t, "env_key", creds.APIKey)
	assert.Equal(t, "env_secret", creds.APISecret)
	assert.Equal(t, "AB1234", creds.UserID)
}

func TestTOTPCode(t *testing.T) {
	code, err := TOTPCode("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9', "code %q is not numeric", code)
	}
}

func TestTOTPCodeInvalidKey(t *testing.T) {
	_, err := TOTPCode("not base32!!!")
	assert.Error(t, err)
}
