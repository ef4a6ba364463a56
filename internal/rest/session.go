package rest

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ringclient/ring-client-go/internal/api"
)

// sessionRenewInterval is how often the server-side session is
// recreated. Ring rotates sessions server-side (observed around 24
// hours for accounts subject to data residency), which silently breaks
// push notifications; recreating every 12 hours stays ahead of it.
const sessionRenewInterval = 12 * time.Hour

// sessionRateLimitDefault is the wait applied to a 429 on session
// creation when the Retry-After header is absent or unparseable.
const sessionRateLimitDefault = 200 * time.Second

// sessionState returns the current session generation and the channel
// that closes when the in-flight session creation settles (nil if none
// was ever started).
func (c *Client) sessionState() (int, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionGen, c.sessionSettled
}

// refreshSessionIfGen starts a session recreation only if no other
// recreation has started since the caller observed generation gen.
// This keeps a burst of stale-session 404s from stacking recreations.
func (c *Client) refreshSessionIfGen(gen int) {
	c.mu.Lock()
	if c.sessionGen != gen {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.RefreshSession()
}

// RefreshSession creates a fresh server-side session in the background
// and self-reschedules: 12 hours after each attempt settles (success or
// failure), another recreation runs. Call once after constructing the
// client if the embedding application needs push notifications or
// long-lived polling.
func (c *Client) RefreshSession() {
	c.mu.Lock()
	c.sessionGen++
	settled := make(chan struct{})
	c.sessionSettled = settled
	c.mu.Unlock()

	go func() {
		defer close(settled)
		defer c.afterFunc(sessionRenewInterval, c.RefreshSession)

		if _, err := c.createSession(context.Background()); err != nil {
			log.Printf("rest: session creation failed: %v", err)
		}
	}()
}

// createSession POSTs the session-creation request, recovering from the
// two failure modes specific to this endpoint: a 401 forces a token
// refresh and retry, and a 429 waits out the advertised Retry-After
// (plus one second of slack) before retrying.
func (c *Client) createSession(ctx context.Context) (*api.SessionResponse, error) {
	hardwareID := c.HardwareID()

	for {
		token, err := c.GetToken(ctx)
		if err != nil {
			return nil, err
		}

		header := http.Header{}
		header.Set("Authorization", "Bearer "+token.AccessToken)

		var session api.SessionResponse
		_, err = c.rawRequest(ctx, RequestSpec{
			Method: http.MethodPost,
			URL:    c.clientAPIBase + "session",
			Body: map[string]any{
				"device": map[string]any{
					"hardware_id": hardwareID,
					"metadata": map[string]any{
						"api_version":  api.APIVersion,
						"device_model": c.cfg.DisplayName,
					},
					"os": "android",
				},
			},
			Header: header,
		}, &session)

		if err == nil {
			return &session, nil
		}

		he, ok := err.(*httpError)
		if !ok {
			return nil, err
		}

		switch he.Status {
		case http.StatusUnauthorized:
			if err := c.refreshAuth(ctx); err != nil {
				return nil, err
			}
			continue

		case http.StatusTooManyRequests:
			waitSeconds := int(sessionRateLimitDefault / time.Second)
			if retryAfter := he.Header.Get("Retry-After"); retryAfter != "" {
				if n, err := strconv.Atoi(retryAfter); err == nil {
					waitSeconds = n
				}
			}
			log.Printf("rest: session response rate limited, waiting to retry after %d seconds", waitSeconds)
			if err := c.delay(ctx, time.Duration(waitSeconds+1)*time.Second); err != nil {
				return nil, err
			}
			log.Printf("rest: retrying session request")
			continue

		default:
			return nil, err
		}
	}
}
