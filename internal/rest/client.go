// Package rest implements the authenticated session manager for the
// Ring API: OAuth token acquisition and refresh with two-factor
// handling, server-side session keep-alive, and a uniform
// retry/recovery policy applied to every outbound HTTP call.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sync/singleflight"

	"github.com/ringclient/ring-client-go/internal/api"
	"github.com/ringclient/ring-client-go/internal/credentials"
	ringerrors "github.com/ringclient/ring-client-go/internal/errors"
	"github.com/ringclient/ring-client-go/internal/hardware"
)

// Delays used by the recovery policy.
const (
	transportRetryDelay = 5 * time.Second  // no response received
	gatewayRetryDelay   = 5 * time.Second  // 504
	assetRetryDelay     = 20 * time.Second // 404 with recognized error codes
	requestTimeout      = 20 * time.Second // per-attempt HTTP timeout
)

// ClientConfig holds the credentials and identity used to construct a
// Client. Either RefreshToken or Email+Password must be provided.
type ClientConfig struct {
	// RefreshToken is a serialized credential blob from a previous
	// login (or a legacy plain refresh secret).
	RefreshToken string

	// Email and Password authenticate first-time logins.
	Email    string
	Password string

	// TwoFactorCode is a pending verification code attached to the
	// next token request.
	TwoFactorCode string

	// SystemID seeds the deterministic hardware id. If empty, the
	// platform system uuid is used (with a random fallback).
	SystemID string

	// DisplayName is reported as the device model in session metadata.
	// Default: ring-client-go
	DisplayName string

	// HTTPClient overrides the HTTP client used for all calls.
	HTTPClient *http.Client

	// MaxTransportRetries caps retries for calls that received no
	// response at all. Zero means retry forever, which matches the
	// long-lived background client this package is built for; set a
	// cap only if the embedding application supplies its own retry
	// handling.
	MaxTransportRetries uint64
}

// Client owns the credential blob and all token/session state. All
// outbound calls go through Request, which applies the recovery policy.
type Client struct {
	cfg ClientConfig

	httpClient *http.Client

	// Endpoint roots, swappable in tests.
	oauthURL      string
	clientAPIBase string

	mu         sync.Mutex
	blob       *credentials.Blob
	refreshTok string // serialized blob, "" until first auth with no prior token
	auth       *api.AuthTokenResponse
	using2FA   bool
	prompt2FA  string

	// session state; generation increments on every recreation so
	// stale-session recovery triggers at most one recreation per
	// generation.
	sessionGen     int
	sessionSettled chan struct{}

	hardwareOnce sync.Once
	hardwareID   string

	authFlight singleflight.Group

	onCredentialUpdated []func(oldToken, newToken string)

	timerMu sync.Mutex
	timers  []*time.Timer

	// sleepFn is the suspension point for all retry delays,
	// injectable so tests can observe delays without waiting.
	sleepFn func(ctx context.Context, d time.Duration) error

	// retryInterval is the transport-failure retry delay, shortened in
	// tests.
	retryInterval time.Duration
}

// NewClient creates a session manager for the given credentials. No
// network calls are made until the first token or request is needed.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = "ring-client-go"
	}

	c := &Client{
		cfg:           cfg,
		httpClient:    httpClient,
		oauthURL:      api.OAuthURL,
		clientAPIBase: api.ClientAPIBaseURL,
		blob:          credentials.Decode(cfg.RefreshToken),
		refreshTok:    cfg.RefreshToken,
		retryInterval: transportRetryDelay,
	}
	c.sleepFn = func(ctx context.Context, d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	return c
}

// HardwareID returns the device-scoped hardware id, computing it on
// first use. A blob from a previous login pins the id that the refresh
// secret was issued against.
func (c *Client) HardwareID() string {
	c.hardwareOnce.Do(func() {
		c.mu.Lock()
		blob := c.blob
		c.mu.Unlock()
		if blob != nil && blob.HID != "" {
			c.hardwareID = blob.HID
			return
		}
		c.hardwareID = hardware.ID(c.cfg.SystemID)
	})
	return c.hardwareID
}

// Credential returns the current serialized credential blob, or "" if
// no authentication has succeeded yet.
func (c *Client) Credential() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshTok
}

// OnCredentialUpdated registers a callback fired whenever the
// serialized credential actually changes. Byte-identical rewrites are
// suppressed.
func (c *Client) OnCredentialUpdated(fn func(oldToken, newToken string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCredentialUpdated = append(c.onCredentialUpdated, fn)
}

// Using2FA reports whether the account requires two-factor codes.
func (c *Client) Using2FA() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.using2FA
}

// PromptFor2FA returns the human-readable prompt describing where the
// verification code was sent, or "" when no code is needed.
func (c *Client) PromptFor2FA() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompt2FA
}

// RequestSpec describes one HTTP call.
type RequestSpec struct {
	// Method defaults to GET.
	Method string

	// URL is the absolute request URL.
	URL string

	// Body is JSON-encoded when non-nil.
	Body any

	// Header entries are added to the defaults.
	Header http.Header

	// AllowNoResponse disables the retry-forever behavior for
	// transport failures; used for fire-and-forget calls.
	AllowNoResponse bool
}

// ResponseMeta carries response metadata folded out of the HTTP
// response: the server Date header and the x-time-millis round-trip
// timing header, when present.
type ResponseMeta struct {
	ResponseTimestamp int64 // server Date header as unix millis, 0 if absent
	TimeMillis        int64 // x-time-millis header, 0 if absent
}

// httpError is a response with a non-2xx status. Transport failures
// (no response at all) are plain errors.
type httpError struct {
	Status int
	Body   []byte
	Header http.Header
	URL    string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d", e.URL, e.Status)
}

// Request performs an HTTP call with a valid token attached and applies
// the recovery policy:
//
//  1. No response and not AllowNoResponse: wait 5s and retry, forever.
//  2. 401: force-clear the cached token, re-acquire, retry.
//  3. 504: wait 5s, retry.
//  4. 404 with a recognized error-code array: wait 20s, retry.
//  5. 404 against the client API whose body embeds our hardware id:
//     stale session - force one recreation per generation and retry.
//  6. Any other status: surface as a coded failure.
//
// The network-failure and 401 branches are attempt-unbounded by design;
// callers needing boundedness must cancel ctx.
func (c *Client) Request(ctx context.Context, spec RequestSpec, out any) (*ResponseMeta, error) {
	hardwareID := c.HardwareID()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// If a session creation is in flight, let it settle first so the
		// request runs against the session it will be validated under.
		initialGen, settled := c.sessionState()
		if settled != nil {
			select {
			case <-settled:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		token, err := c.GetToken(ctx)
		if err != nil {
			return nil, err
		}

		authed := spec
		authed.Header = cloneHeader(spec.Header)
		authed.Header.Set("Authorization", "Bearer "+token.AccessToken)
		authed.Header.Set("hardware_id", hardwareID)
		authed.Header.Set("User-Agent", "android:com.ringapp")

		meta, err := c.rawRequest(ctx, authed, out)
		if err == nil {
			return meta, nil
		}

		he, ok := err.(*httpError)
		if !ok {
			// Transport failure that was allowed to surface, an
			// unusable response body, or ctx cancellation from inside
			// the retry loop.
			if !spec.AllowNoResponse {
				log.Printf("rest: request to %s failed: %v", spec.URL, err)
			}
			return nil, err
		}

		switch {
		case he.Status == http.StatusUnauthorized:
			c.invalidateToken(token)
			continue

		case he.Status == http.StatusGatewayTimeout:
			// Gateway timeouts are recoverable; wait a few seconds to be
			// on the safe side.
			if err := c.delay(ctx, gatewayRetryDelay); err != nil {
				return nil, err
			}
			continue

		case he.Status == http.StatusNotFound:
			if retry, err := c.handleNotFound(ctx, spec.URL, he, hardwareID, initialGen); retry {
				continue
			} else if err != nil {
				return nil, err
			}
			return nil, ringerrors.Wrap(ringerrors.CodeRequestNotFound, "not found with response: "+string(he.Body), he)

		default:
			log.Printf("rest: request to %s failed with status %d. Response body: %s", spec.URL, he.Status, he.Body)
			return nil, ringerrors.RequestFailed(spec.URL, he.Status, string(he.Body))
		}
	}
}

// handleNotFound classifies a 404. It returns retry=true when the
// request should be re-attempted (after any required delay), or a
// terminal error when the 404 is unrecoverable.
func (c *Client) handleNotFound(ctx context.Context, url string, he *httpError, hardwareID string, initialGen int) (bool, error) {
	// A structured error-code array identifies a temporarily
	// unavailable asset.
	var codedBody struct {
		Errors []int  `json:"errors"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(he.Body, &codedBody); err == nil && len(codedBody.Errors) > 0 {
		var labels []string
		for _, code := range codedBody.Errors {
			if label, ok := api.ErrorCodeLabels[code]; ok {
				labels = append(labels, label)
			}
		}
		if len(labels) > 0 {
			log.Printf("rest: http request failed. %s returned errors: (%s). Trying again in 20 seconds", url, strings.Join(labels, ", "))
			if err := c.delay(ctx, assetRetryDelay); err != nil {
				return false, err
			}
			return true, nil
		}
		log.Printf("rest: http request failed. %s returned unknown errors: (%v)", url, codedBody.Errors)
	}

	// A 404 from the client API whose body names our hardware id means
	// the server dropped our session. Recreate it (once per generation)
	// and retry.
	if strings.HasPrefix(url, c.clientAPIBase) {
		log.Printf("rest: 404 from endpoint %s", url)
		if strings.Contains(codedBody.Error, hardwareID) {
			log.Printf("rest: session hardware_id not found, creating a new session and trying again")
			c.refreshSessionIfGen(initialGen)
			return true, nil
		}
	}

	return false, nil
}

// rawRequest performs a single HTTP call with transport-level retry:
// when no response is received at all and the spec does not allow it,
// the identical call is retried every 5 seconds, unbounded unless
// MaxTransportRetries is set. HTTP status errors are returned as
// *httpError without retrying here; a response that was received but
// could not be used (undecodable body) surfaces immediately, since
// repeating the identical call cannot change the outcome.
func (c *Client) rawRequest(ctx context.Context, spec RequestSpec, out any) (*ResponseMeta, error) {
	var meta *ResponseMeta

	operation := func() error {
		m, err := c.doHTTP(ctx, spec, out)
		if err == nil {
			meta = m
			return nil
		}
		if _, ok := err.(*httpError); ok {
			return backoff.Permanent(err)
		}
		var coded *ringerrors.CodedError
		if errors.As(err, &coded) {
			// A response was received (or the request could not even be
			// built); not a transport failure.
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if spec.AllowNoResponse {
			return backoff.Permanent(ringerrors.NoResponse(spec.URL, err))
		}
		log.Printf("rest: failed to reach server at %s. %v. Trying again in 5 seconds...", spec.URL, err)
		return ringerrors.NoResponse(spec.URL, err)
	}

	var policy backoff.BackOff = backoff.NewConstantBackOff(c.retryInterval)
	if c.cfg.MaxTransportRetries > 0 {
		policy = backoff.WithMaxRetries(policy, c.cfg.MaxTransportRetries)
	}
	policy = backoff.WithContext(policy, ctx)

	// backoff.Retry unwraps Permanent errors before returning them.
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return meta, nil
}

// doHTTP executes exactly one HTTP round trip.
func (c *Client) doHTTP(ctx context.Context, spec RequestSpec, out any) (*ResponseMeta, error) {
	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if spec.Body != nil {
		data, err := json.Marshal(spec.Body)
		if err != nil {
			return nil, ringerrors.Wrap(ringerrors.CodeRequestFailed, "encoding request body", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, spec.URL, bodyReader)
	if err != nil {
		return nil, ringerrors.Wrap(ringerrors.CodeRequestFailed, "building request for "+spec.URL, err)
	}
	for key, values := range spec.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if spec.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &httpError{
			Status: resp.StatusCode,
			Body:   data,
			Header: resp.Header,
			URL:    spec.URL,
		}
	}

	meta := &ResponseMeta{}
	if date := resp.Header.Get("Date"); date != "" {
		if t, err := http.ParseTime(date); err == nil {
			meta.ResponseTimestamp = t.UnixMilli()
		}
	}
	if millis := resp.Header.Get("x-time-millis"); millis != "" {
		if n, err := strconv.ParseInt(millis, 10, 64); err == nil {
			meta.TimeMillis = n
		}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, ringerrors.Wrap(ringerrors.CodeRequestBadResponse, "decoding response from "+spec.URL, err)
		}
	}
	return meta, nil
}

// delay suspends for d or until ctx is done.
func (c *Client) delay(ctx context.Context, d time.Duration) error {
	return c.sleepFn(ctx, d)
}

// afterFunc schedules fn and records the timer handle so ClearTimers
// can cancel it.
func (c *Client) afterFunc(d time.Duration, fn func()) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	c.timers = append(c.timers, time.AfterFunc(d, fn))
}

// ClearTimers cancels every timer this client created: token expiry
// timers and session renewal timers. Call when shutting down.
func (c *Client) ClearTimers() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
}

func cloneHeader(h http.Header) http.Header {
	out := http.Header{}
	for key, values := range h {
		for _, v := range values {
			out.Add(key, v)
		}
	}
	return out
}
