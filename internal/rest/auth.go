package rest

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ringclient/ring-client-go/internal/api"
	"github.com/ringclient/ring-client-go/internal/credentials"
	ringerrors "github.com/ringclient/ring-client-go/internal/errors"
)

// tokenExpiryMargin is how long before the reported expiry the cached
// token is proactively discarded.
const tokenExpiryMargin = 60 * time.Second

// defaultTokenLifetime is assumed when the server omits expires_in.
const defaultTokenLifetime = 3600 * time.Second

// GetToken returns a valid access token, transparently acquiring or
// refreshing as needed. Concurrent callers share a single in-flight
// acquisition; two token requests are never issued at once.
func (c *Client) GetToken(ctx context.Context) (*api.AuthTokenResponse, error) {
	c.mu.Lock()
	cached := c.auth
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := c.authFlight.Do("auth", func() (any, error) {
		return c.getAuth(ctx, c.cfg.TwoFactorCode)
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.AuthTokenResponse), nil
}

// GetAuth performs a token request with an explicit two-factor code.
// Used by onboarding flows after PromptFor2FA is surfaced. The result
// is cached like any other acquisition.
func (c *Client) GetAuth(ctx context.Context, twoFactorCode string) (*api.AuthTokenResponse, error) {
	v, err, _ := c.authFlight.Do("auth", func() (any, error) {
		return c.getAuth(ctx, twoFactorCode)
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.AuthTokenResponse), nil
}

// refreshAuth force-clears the cached token and acquires a fresh one.
// Used after a 401 proves the current token is no longer valid.
func (c *Client) refreshAuth(ctx context.Context) error {
	c.mu.Lock()
	c.auth = nil
	c.mu.Unlock()
	_, err := c.GetToken(ctx)
	return err
}

// invalidateToken eagerly clears the cached token, but only if it is
// still the token the failed request used. A concurrent refresh that
// already replaced it must not be discarded.
func (c *Client) invalidateToken(used *api.AuthTokenResponse) {
	c.mu.Lock()
	if c.auth == used {
		c.auth = nil
	}
	c.mu.Unlock()
}

// grantData builds the OAuth grant body. The stored refresh secret is
// preferred; password credentials are the fallback.
func (c *Client) grantData() (grant map[string]string, usingRefreshSecret bool, err error) {
	c.mu.Lock()
	blob := c.blob
	c.mu.Unlock()

	if blob != nil && blob.RT != "" {
		return map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": blob.RT,
		}, true, nil
	}
	if c.cfg.Email != "" && c.cfg.Password != "" {
		return map[string]string{
			"grant_type": "password",
			"username":   c.cfg.Email,
			"password":   c.cfg.Password,
		}, false, nil
	}
	return nil, false, ringerrors.New(ringerrors.CodeCredentialMissing,
		"refresh token is not valid and no email/password credentials are available - unable to authenticate with Ring servers")
}

// getAuth performs the token request. On success the new refresh secret
// and hardware id are merged into the credential blob, the blob change
// is emitted, and the wrapped (blob-encoded) refresh token is
// substituted into the response so consumers only ever see the
// transportable form.
//
// A server rejection while a refresh secret was used is treated as
// secret invalidation: the blob is cleared and the attempt transparently
// falls back to password credentials. Transport failures never count as
// invalidation. The fallback can only happen once -
// with the secret cleared, a second failure has no secret left to clear
// and surfaces the error.
func (c *Client) getAuth(ctx context.Context, twoFactorCode string) (*api.AuthTokenResponse, error) {
	for {
		grant, usingRefreshSecret, err := c.grantData()
		if err != nil {
			return nil, err
		}

		hardwareID := c.HardwareID()

		body := map[string]string{
			"client_id": "ring_official_android",
			"scope":     "client",
		}
		for k, v := range grant {
			body[k] = v
		}

		header := http.Header{}
		header.Set("2fa-support", "true")
		header.Set("2fa-code", twoFactorCode)
		header.Set("hardware_id", hardwareID)
		header.Set("User-Agent", "android:com.ringapp")

		var tokenResp api.AuthTokenResponse
		_, err = c.rawRequest(ctx, RequestSpec{
			Method: http.MethodPost,
			URL:    c.oauthURL,
			Body:   body,
			Header: header,
		}, &tokenResp)

		if err == nil {
			c.storeAuth(&tokenResp, hardwareID)
			return &tokenResp, nil
		}

		if _, ok := err.(*httpError); !ok {
			// No response was received, so the grant was never judged.
			// Surface the transport failure or cancellation without
			// touching the stored secret.
			return nil, err
		}

		if usingRefreshSecret {
			// The refresh secret was rejected. Clear it and retry with
			// password credentials if we have them.
			log.Printf("rest: refresh token failed to authenticate: %v", err)
			c.clearCredentials()
			continue
		}

		return nil, c.classifyAuthError(err)
	}
}

// storeAuth caches the token, merges the blob, and schedules proactive
// expiry of the cache one minute before the token expires.
func (c *Client) storeAuth(tokenResp *api.AuthTokenResponse, hardwareID string) {
	c.mu.Lock()

	blob := &credentials.Blob{
		RT:  tokenResp.RefreshToken,
		HID: hardwareID,
	}
	if c.blob != nil {
		blob.PNC = c.blob.PNC
	}
	c.blob = blob

	oldToken := c.refreshTok
	newToken := blob.Encode()
	changed := newToken != oldToken
	if changed {
		c.refreshTok = newToken
	}
	// Substitute the wrapped form so downstream consumers persist the
	// blob, never the raw secret.
	tokenResp.RefreshToken = newToken

	c.auth = tokenResp
	c.using2FA = false
	c.prompt2FA = ""

	subscribers := append([]func(string, string){}, c.onCredentialUpdated...)
	c.mu.Unlock()

	if changed {
		for _, fn := range subscribers {
			fn(oldToken, newToken)
		}
	}

	lifetime := defaultTokenLifetime
	if tokenResp.ExpiresIn > 0 {
		lifetime = time.Duration(tokenResp.ExpiresIn) * time.Second
	}
	c.afterFunc(lifetime-tokenExpiryMargin, func() {
		c.invalidateToken(tokenResp)
	})
}

// clearCredentials drops the refresh secret and blob after the server
// rejects them.
func (c *Client) clearCredentials() {
	c.mu.Lock()
	c.blob = nil
	c.refreshTok = ""
	c.mu.Unlock()
}

// classifyAuthError turns a failed password-grant response into the
// typed error the caller needs: a two-factor prompt, an invalid-code
// signal, or terminal guidance text.
func (c *Client) classifyAuthError(err error) error {
	he, ok := err.(*httpError)
	if !ok {
		return err
	}

	var authErr api.AuthErrorResponse
	_ = json.Unmarshal(he.Body, &authErr)

	needsCode := he.Status == http.StatusPreconditionFailed ||
		(he.Status == http.StatusBadRequest && strings.HasPrefix(authErr.Error, "Verification Code"))

	if needsCode {
		c.mu.Lock()
		c.using2FA = true

		if he.Status == http.StatusBadRequest {
			// An incorrect code. Surface the distinct try-again prompt
			// and fail; the caller decides whether to ask for another
			// code. Deliberately not retried here.
			c.prompt2FA = "Invalid 2fa code entered. Please try again."
			c.mu.Unlock()
			return ringerrors.TwoFactorInvalidCode(authErr.Error)
		}

		switch {
		case authErr.TSVState == "totp":
			c.prompt2FA = "Please enter the code from your authenticator app"
		case authErr.TSVState != "":
			c.prompt2FA = "Please enter the code sent to " + authErr.Phone + " via " + authErr.TSVState
		default:
			c.prompt2FA = "Please enter the code sent to your text/email"
		}
		prompt := c.prompt2FA
		c.mu.Unlock()

		return ringerrors.TwoFactorRequired(prompt)
	}

	authType := "email and password are"
	if c.cfg.RefreshToken != "" {
		authType = "refresh token is"
	}
	guidance := "verify that your " + authType + " correct"
	if authErr.ErrorDescription == "too many requests from dependency service" {
		guidance = "you have requested too many 2fa codes - Ring limits 2fa to 10 codes within 10 minutes, please try again in 10 minutes"
	}

	log.Printf("rest: auth request failed with status %d: %s", he.Status, he.Body)
	return ringerrors.AuthFailed("failed to fetch oauth token from Ring: " + guidance + " (error: " + authErr.Error + ")")
}
