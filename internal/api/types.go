package api

import "strings"

// Asset is a physical hub or bridge device that mediates the realtime
// socket protocol for a location.
type Asset struct {
	UUID string `json:"uuid"`
	Kind string `json:"kind"`
}

// IsSocketCapable reports whether the asset speaks the realtime socket
// protocol. Only alarm base stations and beams bridges do.
func (a Asset) IsSocketCapable() bool {
	return strings.HasPrefix(a.Kind, "base_station") || strings.HasPrefix(a.Kind, "beams_bridge")
}

// AssetKindBaseStation is the kind prefix match for the first-generation
// alarm base station, required for panic dispatch.
const AssetKindBaseStation = "base_station_v1"

// SocketTicketResponse is the app API response granting a one-time
// realtime connection ticket for a location.
type SocketTicketResponse struct {
	Host   string  `json:"host"`
	Ticket string  `json:"ticket"`
	Assets []Asset `json:"assets"`
}

// AuthTokenResponse is the OAuth token endpoint response.
// After a successful grant the client substitutes the wrapped
// (blob-encoded) refresh token for the raw one, so consumers only ever
// see the transportable form.
type AuthTokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// AuthErrorResponse is the OAuth token endpoint error body. The 412 and
// 400 variants drive two-factor handling.
type AuthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	TSVState         string `json:"tsv_state"`
	Phone            string `json:"phone"`
}

// SessionResponse is the clients API session creation response.
type SessionResponse struct {
	Profile struct {
		ID    int    `json:"id"`
		Email string `json:"email"`
	} `json:"profile"`
}

// AlarmMode is a security panel arming mode.
type AlarmMode string

const (
	AlarmModeNone AlarmMode = "none" // disarmed
	AlarmModeSome AlarmMode = "some" // armed home
	AlarmModeAll  AlarmMode = "all"  // armed away
)

// LocationMode is the camera-only location mode (distinct from the
// alarm panel mode).
type LocationMode string

// Location modes that indicate mode switching is not in use.
var DisabledLocationModes = []LocationMode{"disabled", "unset"}

// LocationModeResponse is the app API mode endpoint response.
type LocationModeResponse struct {
	Mode     LocationMode `json:"mode"`
	ReadOnly bool         `json:"readOnly"`
}

// DispatchSignalType identifies a user-initiated panic alarm.
type DispatchSignalType string

const (
	DispatchSignalBurglar DispatchSignalType = "user-verified-burglar-xa"
	DispatchSignalFire    DispatchSignalType = "user-verified-fire-xa"
)

// Device types relevant to the core protocol. The full catalog of
// sensor and switch types lives with the per-device wrappers.
const (
	DeviceTypeSecurityPanel = "security-panel"
	DeviceTypeBaseStation   = "hub.redsky"
	DeviceTypeKeypad        = "security-keypad"
)

// DeviceTypesWithVolume lists the device types that accept a volume
// setting.
var DeviceTypesWithVolume = []string{DeviceTypeBaseStation, DeviceTypeKeypad}

// ErrorCodeLabels maps the numeric error codes Ring returns in 404
// bodies to human-readable labels. A recognized code means the request
// may succeed after the asset recovers, so the client waits and retries.
var ErrorCodeLabels = map[int]string{
	7050: "NO_ASSET",
	7019: "ASSET_OFFLINE",
	7061: "ASSET_CELL_BACKUP",
	7062: "UPDATING",
	7063: "MAINTENANCE",
}
