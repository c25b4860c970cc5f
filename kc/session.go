package kc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
)

// LoginURL returns the URL a user must visit to authorize this app. The
// redirect configured on the developer console receives a request_token,
// which GenerateSession exchanges for an access token.
func (c *Client) LoginURL() string {
	return fmt.Sprintf("%s?v=%s&api_key=%s", c.loginURL, kiteAPIVersion, url.QueryEscape(c.apiKey))
}

// sessionChecksum is SHA-256 over api_key + request_token + api_secret, as
// required by the token exchange endpoint.
func sessionChecksum(apiKey, requestToken, apiSecret string) string {
	sum := sha256.Sum256([]byte(apiKey + requestToken + apiSecret))
	return hex.EncodeToString(sum[:])
}

// GenerateSession exchanges a request token for a full user session and
// installs the resulting access token on the client.
func (c *Client) GenerateSession(ctx context.Context, requestToken, apiSecret string) (*UserSession, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("request_token", requestToken)
	params.Set("checksum", sessionChecksum(c.apiKey, requestToken, apiSecret))

	var session UserSession
	if err := c.do(ctx, http.MethodPost, "/session/token", params, &session); err != nil {
		return nil, fmt.Errorf("generate session: %w", err)
	}

	c.SetAccessToken(session.AccessToken)
	c.logger.Info("Kite session generated", "user_id", session.UserID, "user_name", session.UserName)
	return &session, nil
}

// InvalidateAccessToken logs out the current session and clears the token
// from the client.
func (c *Client) InvalidateAccessToken(ctx context.Context) error {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("access_token", c.AccessToken())

	if err := c.do(ctx, http.MethodDelete, "/session/token", params, nil); err != nil {
		return fmt.Errorf("invalidate access token: %w", err)
	}
	c.SetAccessToken("")
	return nil
}
