package location

import (
	"context"

	"github.com/ringclient/ring-client-go/internal/api"
	"github.com/ringclient/ring-client-go/internal/rest"
)

// FetchOptions controls how fetched locations are configured.
type FetchOptions struct {
	// LocationIDs restricts the result to the given ids when non-empty.
	LocationIDs []string

	// LocationModePollingSeconds is applied to each camera-only
	// location.
	LocationModePollingSeconds int
}

type userLocation struct {
	LocationID string `json:"location_id"`
	Name       string `json:"name"`
}

type ringDevicesResponse struct {
	Doorbots           []locatedDevice `json:"doorbots"`
	AuthorizedDoorbots []locatedDevice `json:"authorized_doorbots"`
	StickupCams        []locatedDevice `json:"stickup_cams"`
	BaseStations       []locatedDevice `json:"base_stations"`
	BeamBridges        []locatedDevice `json:"beams_bridges"`
}

type locatedDevice struct {
	LocationID string `json:"location_id"`
}

func anyAt(devices []locatedDevice, locationID string) bool {
	for _, d := range devices {
		if d.LocationID == locationID {
			return true
		}
	}
	return false
}

// FetchLocations lists the account's locations and builds a hub for
// each, using the account's device inventory to decide which locations
// have realtime-capable hubs, alarm base stations, and cameras.
func FetchLocations(ctx context.Context, rc Requester, opts FetchOptions) ([]*Location, error) {
	var locationsResp struct {
		UserLocations []userLocation `json:"user_locations"`
	}
	if _, err := rc.Request(ctx, rest.RequestSpec{
		URL: api.DeviceAPI("locations"),
	}, &locationsResp); err != nil {
		return nil, err
	}

	var devicesResp ringDevicesResponse
	if _, err := rc.Request(ctx, rest.RequestSpec{
		URL: api.ClientAPI("ring_devices"),
	}, &devicesResp); err != nil {
		return nil, err
	}

	wanted := func(id string) bool {
		if len(opts.LocationIDs) == 0 {
			return true
		}
		for _, want := range opts.LocationIDs {
			if want == id {
				return true
			}
		}
		return false
	}

	var out []*Location
	for _, ul := range locationsResp.UserLocations {
		if !wanted(ul.LocationID) {
			continue
		}
		hasBaseStation := anyAt(devicesResp.BaseStations, ul.LocationID)
		cfg := Config{
			ID:                  ul.LocationID,
			Name:                ul.Name,
			HasHubs:             hasBaseStation || anyAt(devicesResp.BeamBridges, ul.LocationID),
			HasAlarmBaseStation: hasBaseStation,
			HasCameras: anyAt(devicesResp.Doorbots, ul.LocationID) ||
				anyAt(devicesResp.AuthorizedDoorbots, ul.LocationID) ||
				anyAt(devicesResp.StickupCams, ul.LocationID),
			LocationModePollingSeconds: opts.LocationModePollingSeconds,
		}
		out = append(out, New(cfg, rc))
	}
	return out, nil
}
