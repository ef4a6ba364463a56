package rest

import (
	"encoding/json"

	ringerrors "github.com/ringclient/ring-client-go/internal/errors"
)

// PushCredentials returns the opaque push-notification credentials
// stored in the blob, or nil.
func (c *Client) PushCredentials() json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blob == nil {
		return nil
	}
	return c.blob.PNC
}

// SetPushCredentials merges push-notification credentials into the
// credential blob and emits the new serialized form. The write replaces
// the whole blob; if the resulting serialization is byte-identical to
// the previous one, no notification fires.
func (c *Client) SetPushCredentials(pnc json.RawMessage) error {
	c.mu.Lock()

	if c.blob == nil || c.refreshTok == "" {
		c.mu.Unlock()
		return ringerrors.New(ringerrors.CodeCredentialMissing,
			"cannot set push notification credentials without a refresh token")
	}

	blob := *c.blob
	blob.PNC = pnc
	c.blob = &blob

	oldToken := c.refreshTok
	newToken := blob.Encode()
	if newToken == oldToken {
		c.mu.Unlock()
		return nil
	}

	c.refreshTok = newToken
	subscribers := append([]func(string, string){}, c.onCredentialUpdated...)
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn(oldToken, newToken)
	}
	return nil
}
