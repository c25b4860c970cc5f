package kc

import (
	"log/slog"
	"os"
	"time"

	"github.com/pquerna/otp/totp"
)

// Credentials holds everything needed to drive a Kite Connect login. All
// fields are secrets; the struct implements slog.LogValuer so accidental
// logging only shows redacted values.
//
// UserID, Password, and TOTPKey are consumed by external login automation
// (the library itself does not drive the browser flow).
type Credentials struct {
	APIKey    string
	APISecret string
	UserID    string
	Password  string
	TOTPKey   string
}

// CredentialsFromEnv reads credentials from the conventional environment
// variables. Intended for CLI and test harness use only; library callers
// should pass credentials explicitly.
func CredentialsFromEnv() Credentials {
	return Credentials{
		APIKey:    os.Getenv("KITE_API_KEY"),
		APISecret: os.Getenv("KITE_API_SECRET"),
		UserID:    os.Getenv("KITE_USER_ID"),
		Password:  os.Getenv("KITE_PASSWORD"),
		TOTPKey:   os.Getenv("KITE_TOTP_KEY"),
	}
}

// LogValue implements slog.LogValuer with redacted fields.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("api_key", redactSecret(c.APIKey)),
		slog.String("user_id", c.UserID),
		slog.String("api_secret", redactSecret(c.APISecret)),
	)
}

func redactSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}

// TOTPCode generates the current 6-digit time-based one-time password from
// a base32 TOTP key, as required by the two-factor step of the Kite login
// flow.
func TOTPCode(totpKey string) (string, error) {
	return totp.GenerateCode(totpKey, time.Now())
}
