package location

import (
	"context"
	"log"
	"net/http"
	"slices"

	"github.com/ringclient/ring-client-go/internal/api"
	"github.com/ringclient/ring-client-go/internal/rest"
)

// Location modes are the camera-only stand-in for the alarm panel mode:
// locations without a base station expose home/away/disarmed through
// the app API instead of the panel. Polling is debounced - every mode
// request or received mode pushes the next poll out by the configured
// interval, so active use never stacks polls.

func (l *Location) modeURL(path string) string {
	return api.AppAPI("mode/location/" + l.cfg.ID + path)
}

// kickModePoll re-schedules the next background mode poll. Each kick
// replaces the previous schedule.
func (l *Location) kickModePoll() {
	if l.pollInterval <= 0 || l.cfg.HasAlarmBaseStation || l.isDisconnected() {
		return
	}
	l.pollMu.Lock()
	defer l.pollMu.Unlock()
	if l.pollTimer != nil {
		l.pollTimer.Stop()
	}
	l.pollTimer = l.afterFunc(l.pollInterval, func() {
		if l.isDisconnected() {
			return
		}
		if _, err := l.GetLocationMode(context.Background()); err != nil {
			log.Printf("location: mode poll for %s failed: %v", l.cfg.Name, err)
		}
	})
}

// publishMode records the latest mode and notifies subscribers.
func (l *Location) publishMode(mode api.LocationMode) {
	l.modeMu.Lock()
	l.currentMode = mode
	l.haveMode = true
	subs := append([]func(api.LocationMode){}, l.modeSubs...)
	l.modeMu.Unlock()

	l.kickModePoll()
	for _, fn := range subs {
		fn(mode)
	}
}

// OnLocationMode subscribes to mode changes, replaying the last known
// mode if one has been seen.
func (l *Location) OnLocationMode(fn func(api.LocationMode)) {
	l.modeMu.Lock()
	l.modeSubs = append(l.modeSubs, fn)
	replay, have := l.currentMode, l.haveMode
	l.modeMu.Unlock()
	if have {
		fn(replay)
	}
}

// GetLocationMode fetches the current location mode.
func (l *Location) GetLocationMode(ctx context.Context) (*api.LocationModeResponse, error) {
	l.kickModePoll()
	var resp api.LocationModeResponse
	if _, err := l.rest.Request(ctx, rest.RequestSpec{URL: l.modeURL("")}, &resp); err != nil {
		return nil, err
	}
	l.publishMode(resp.Mode)
	return &resp, nil
}

// SetLocationMode switches the location mode.
func (l *Location) SetLocationMode(ctx context.Context, mode api.LocationMode) (*api.LocationModeResponse, error) {
	var resp api.LocationModeResponse
	_, err := l.rest.Request(ctx, rest.RequestSpec{
		Method: http.MethodPost,
		URL:    l.modeURL(""),
		Body:   map[string]any{"mode": mode},
	}, &resp)
	if err != nil {
		return nil, err
	}
	l.publishMode(resp.Mode)
	return &resp, nil
}

// DisableLocationModes turns mode switching off for the location.
func (l *Location) DisableLocationModes(ctx context.Context) error {
	_, err := l.rest.Request(ctx, rest.RequestSpec{
		Method:          http.MethodDelete,
		URL:             l.modeURL("/settings"),
		AllowNoResponse: true,
	}, nil)
	if err != nil {
		return err
	}
	l.publishMode("disabled")
	return nil
}

// EnableLocationModes sets up mode switching and fetches the resulting
// mode.
func (l *Location) EnableLocationModes(ctx context.Context) error {
	_, err := l.rest.Request(ctx, rest.RequestSpec{
		Method: http.MethodPost,
		URL:    l.modeURL("/settings/setup"),
	}, nil)
	if err != nil {
		return err
	}
	_, err = l.GetLocationMode(ctx)
	return err
}

// GetLocationModeSettings fetches the mode settings document.
func (l *Location) GetLocationModeSettings(ctx context.Context, out any) error {
	_, err := l.rest.Request(ctx, rest.RequestSpec{URL: l.modeURL("/settings")}, out)
	return err
}

// SetLocationModeSettings writes the mode settings document.
func (l *Location) SetLocationModeSettings(ctx context.Context, settings any, out any) error {
	_, err := l.rest.Request(ctx, rest.RequestSpec{
		Method: http.MethodPost,
		URL:    l.modeURL("/settings"),
		Body:   settings,
	}, out)
	return err
}

// GetLocationModeSharing fetches whether shared users may switch modes.
func (l *Location) GetLocationModeSharing(ctx context.Context, out any) error {
	_, err := l.rest.Request(ctx, rest.RequestSpec{URL: l.modeURL("/sharing")}, out)
	return err
}

// SetLocationModeSharing sets whether shared users may switch modes.
func (l *Location) SetLocationModeSharing(ctx context.Context, sharedUsersEnabled bool, out any) error {
	_, err := l.rest.Request(ctx, rest.RequestSpec{
		Method: http.MethodPost,
		URL:    l.modeURL("/sharing"),
		Body:   map[string]any{"sharedUsersEnabled": sharedUsersEnabled},
	}, out)
	return err
}

// SupportsLocationModeSwitching reports whether this location uses
// location modes: camera-only locations with a writable, enabled mode.
func (l *Location) SupportsLocationModeSwitching(ctx context.Context) (bool, error) {
	if l.cfg.HasAlarmBaseStation || !l.cfg.HasCameras {
		return false, nil
	}
	resp, err := l.GetLocationMode(ctx)
	if err != nil {
		return false, err
	}
	return !resp.ReadOnly && !slices.Contains(api.DisabledLocationModes, resp.Mode), nil
}
