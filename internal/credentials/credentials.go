// Package credentials handles the opaque refresh-token blob that
// embedding applications persist across restarts. The blob bundles the
// OAuth refresh secret, the hardware id the secret is bound to, and
// optional push-notification credentials, serialized as base64(JSON).
//
// Callers treat the serialized form as opaque; the rest client is the
// sole writer.
package credentials

import (
	"encoding/base64"
	"encoding/json"
)

// Blob is the decoded credential bundle.
type Blob struct {
	// RT is the OAuth refresh secret.
	RT string `json:"rt"`

	// HID is the hardware id the refresh secret was issued against.
	// Reusing it across restarts avoids invalidating the secret.
	HID string `json:"hid,omitempty"`

	// PNC carries opaque push-notification credentials for consumers
	// that register for push delivery. The client never inspects it.
	PNC json.RawMessage `json:"pnc,omitempty"`
}

// Encode serializes the blob to its transportable base64(JSON) form.
func (b *Blob) Encode() string {
	data, _ := json.Marshal(b)
	return base64.StdEncoding.EncodeToString(data)
}

// Decode parses a serialized credential. Legacy tokens predate the blob
// format and are plain refresh secrets; anything that does not decode as
// base64(JSON with an rt field) is wrapped as {rt: raw} so old tokens
// keep working.
func Decode(raw string) *Blob {
	if raw == "" {
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return &Blob{RT: raw}
	}

	var blob Blob
	if err := json.Unmarshal(data, &blob); err != nil || blob.RT == "" {
		return &Blob{RT: raw}
	}

	return &blob
}
