package credentials

import (
	"encoding/base64"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	blob := &Blob{
		RT:  "refresh-secret-1",
		HID: "6f1b32b9-0df0-4e05-b308-9f0e8ad3d1b1",
	}

	decoded := Decode(blob.Encode())
	if decoded == nil {
		t.Fatal("expected decoded blob, got nil")
	}
	if decoded.RT != blob.RT {
		t.Fatalf("rt = %q, want %q", decoded.RT, blob.RT)
	}
	if decoded.HID != blob.HID {
		t.Fatalf("hid = %q, want %q", decoded.HID, blob.HID)
	}
}

func TestEncodeDecodePreservesPushCredentials(t *testing.T) {
	blob := &Blob{
		RT:  "refresh-secret-2",
		HID: "hid-2",
		PNC: []byte(`{"fcmToken":"abc123"}`),
	}

	decoded := Decode(blob.Encode())
	if string(decoded.PNC) != `{"fcmToken":"abc123"}` {
		t.Fatalf("pnc = %s, want original push credentials", decoded.PNC)
	}
}

func TestDecodeLegacyPlainSecret(t *testing.T) {
	// Legacy tokens are the raw refresh secret, not base64 JSON.
	decoded := Decode("plain-old-refresh-token")
	if decoded == nil {
		t.Fatal("expected blob for legacy token")
	}
	if decoded.RT != "plain-old-refresh-token" {
		t.Fatalf("rt = %q, want raw legacy secret", decoded.RT)
	}
	if decoded.HID != "" {
		t.Fatalf("hid = %q, want empty for legacy token", decoded.HID)
	}
}

func TestDecodeBase64ButNotJSON(t *testing.T) {
	// Valid base64 that decodes to garbage must also fall back to the
	// legacy interpretation of the original string.
	raw := base64.StdEncoding.EncodeToString([]byte("not json at all"))
	decoded := Decode(raw)
	if decoded.RT != raw {
		t.Fatalf("rt = %q, want the raw input %q", decoded.RT, raw)
	}
}

func TestDecodeEmpty(t *testing.T) {
	if Decode("") != nil {
		t.Fatal("expected nil for empty credential")
	}
}
