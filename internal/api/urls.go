// Package api defines the Ring REST surface and the shared data model:
// API family URL builders, the realtime message envelope, asset and
// device records, and the enums used across the client.
package api

// Base URLs for the four Ring API families. All calls are HTTPS.
const (
	ClientAPIBaseURL   = "https://api.ring.com/clients_api/"
	DeviceAPIBaseURL   = "https://api.ring.com/devices/v1/"
	CommandsAPIBaseURL = "https://api.ring.com/commands/v1/"
	AppAPIBaseURL      = "https://app.ring.com/api/v1/"
	GroupsAPIBaseURL   = "https://api.ring.com/groups/v1/"

	// OAuthURL is the fixed token endpoint used for all grants.
	OAuthURL = "https://oauth.ring.com/oauth/token"

	// APIVersion is sent in session metadata.
	APIVersion = 11
)

// ClientAPI builds a URL under the general client API.
func ClientAPI(path string) string {
	return ClientAPIBaseURL + path
}

// DeviceAPI builds a URL under the low-level device API.
func DeviceAPI(path string) string {
	return DeviceAPIBaseURL + path
}

// CommandsAPI builds a URL under the command API.
func CommandsAPI(path string) string {
	return CommandsAPIBaseURL + path
}

// AppAPI builds a URL under the app/internal API.
func AppAPI(path string) string {
	return AppAPIBaseURL + path
}

// GroupsAPI builds a URL under the light-group API.
func GroupsAPI(path string) string {
	return GroupsAPIBaseURL + path
}
