package location

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ringclient/ring-client-go/internal/api"
	"github.com/ringclient/ring-client-go/internal/rest"
)

// HistoryOptions narrows a location history query. Zero values are
// omitted from the query string.
type HistoryOptions struct {
	Limit    int
	Offset   int
	Category string

	// MaxLevel bounds how deep into the device hierarchy events are
	// reported. Defaults to 50.
	MaxLevel int
}

// GetHistory fetches the location's alarm and device event history.
func (l *Location) GetHistory(ctx context.Context, opts HistoryOptions) (json.RawMessage, error) {
	if opts.MaxLevel == 0 {
		opts.MaxLevel = 50
	}
	q := url.Values{}
	q.Set("accountId", l.cfg.ID)
	q.Set("maxLevel", strconv.Itoa(opts.MaxLevel))
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}

	var out json.RawMessage
	_, err := l.rest.Request(ctx, rest.RequestSpec{
		URL: api.AppAPI("rs/history?" + q.Encode()),
	}, &out)
	return out, err
}

// CameraEventsOptions narrows a camera events query. OlderThanID pages
// past a previously returned event.
type CameraEventsOptions struct {
	Limit       int
	Kind        string
	State       string
	OlderThanID string
}

// GetCameraEvents fetches recent camera events for the location.
func (l *Location) GetCameraEvents(ctx context.Context, opts CameraEventsOptions) (json.RawMessage, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Kind != "" {
		q.Set("kind", opts.Kind)
	}
	if opts.State != "" {
		q.Set("state", opts.State)
	}
	if opts.OlderThanID != "" {
		q.Set("pagination_key", opts.OlderThanID)
	}
	u := api.ClientAPI("locations/" + l.cfg.ID + "/events")
	if encoded := q.Encode(); encoded != "" {
		u += "?" + encoded
	}

	var out json.RawMessage
	_, err := l.rest.Request(ctx, rest.RequestSpec{URL: u}, &out)
	return out, err
}

// GetAccountMonitoringStatus fetches the professional monitoring status
// for the location.
func (l *Location) GetAccountMonitoringStatus(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	_, err := l.rest.Request(ctx, rest.RequestSpec{
		URL: api.AppAPI("rs/monitoring/accounts/" + l.cfg.ID),
	}, &out)
	return out, err
}

// SetLightGroup switches a beams light group on or off for the given
// duration (seconds).
func (l *Location) SetLightGroup(ctx context.Context, groupID string, on bool, durationSeconds int) error {
	if durationSeconds <= 0 {
		durationSeconds = 60
	}
	_, err := l.rest.Request(ctx, rest.RequestSpec{
		Method: http.MethodPost,
		URL:    api.GroupsAPI("locations/" + l.cfg.ID + "/groups/" + groupID + "/devices"),
		Body: map[string]any{
			"lights_on": map[string]any{
				"duration_seconds": durationSeconds,
				"enabled":          on,
			},
		},
		AllowNoResponse: true,
	}, nil)
	return err
}
