package location

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ringclient/ring-client-go/internal/api"
	ringerrors "github.com/ringclient/ring-client-go/internal/errors"
)

// connectWithPanel establishes the hub and seeds a security panel in
// the given mode.
func connectWithPanel(t *testing.T, mode api.AlarmMode) (*Location, *fakeConn) {
	t.Helper()
	l, fd, _ := newTestLocation(t, assetHub)
	if err := l.ensureConnection(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	conn := fd.conn(t, 0)
	conn.event(t, "message", listMessage(t, assetHub.UUID,
		deviceEntry(map[string]any{"zid": "z-panel", "name": "Alarm"},
			map[string]any{"deviceType": api.DeviceTypeSecurityPanel, "mode": string(mode)}),
		deviceEntry(map[string]any{"zid": "z-sensor"},
			map[string]any{"deviceType": "sensor.contact", "parentZid": "z-panel"})))
	return l, conn
}

// panelUpdate injects a DataUpdate that sets the panel mode.
func panelUpdate(t *testing.T, conn *fakeConn, mode api.AlarmMode) {
	t.Helper()
	raw, _ := json.Marshal([]map[string]any{
		deviceEntry(nil, map[string]any{"zid": "z-panel", "mode": string(mode)}),
	})
	conn.event(t, "DataUpdate", &api.Message{
		Msg:      "DataUpdate",
		Datatype: api.DatatypeDeviceInfoDoc,
		Body:     raw,
	})
}

// waitForSwitchMode blocks until the switch-mode command is emitted and
// returns its decoded command entry.
func waitForSwitchMode(t *testing.T, conn *fakeConn, baseline int) (mode string, bypass []string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		sent := conn.sent()
		if len(sent) > baseline {
			m := sent[len(sent)-1]
			if m.Msg != api.MessageTypeDeviceInfoSet {
				t.Fatalf("message = %+v, want DeviceInfoSet", m)
			}
			var body []struct {
				ZID     string `json:"zid"`
				Command struct {
					V1 []struct {
						CommandType string `json:"commandType"`
						Data        struct {
							Mode   string   `json:"mode"`
							Bypass []string `json:"bypass"`
						} `json:"data"`
					} `json:"v1"`
				} `json:"command"`
			}
			if err := json.Unmarshal(m.Body, &body); err != nil {
				t.Fatalf("command body did not decode: %v", err)
			}
			if len(body) != 1 || len(body[0].Command.V1) != 1 {
				t.Fatalf("body = %s, want one command entry", m.Body)
			}
			cmd := body[0].Command.V1[0]
			if body[0].ZID != "z-panel" || cmd.CommandType != "security-panel.switch-mode" {
				t.Fatalf("command = %+v, want switch-mode on the panel", cmd)
			}
			return cmd.Data.Mode, cmd.Data.Bypass
		}
		if time.Now().After(deadline) {
			t.Fatal("switch-mode command never sent")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSetAlarmModeConfirmsViaPanelUpdate(t *testing.T) {
	l, conn := connectWithPanel(t, api.AlarmModeNone)
	baseline := len(conn.sent())

	done := make(chan error, 1)
	go func() {
		done <- l.ArmAway(context.Background(), []string{"z-sensor"})
	}()

	mode, bypass := waitForSwitchMode(t, conn, baseline)
	if mode != "all" {
		t.Fatalf("requested mode = %q, want all", mode)
	}
	if len(bypass) != 1 || bypass[0] != "z-sensor" {
		t.Fatalf("bypass = %v, want the bypassed sensor", bypass)
	}

	// The command must not resolve off the panel's current value.
	select {
	case err := <-done:
		t.Fatalf("setAlarmMode resolved before the panel confirmed: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	panelUpdate(t, conn, api.AlarmModeAll)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("setAlarmMode failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("setAlarmMode never resolved")
	}

	if mode, err := l.GetAlarmMode(context.Background()); err != nil || mode != api.AlarmModeAll {
		t.Fatalf("alarm mode = (%q, %v), want confirmed mode", mode, err)
	}
}

func TestSetAlarmModeMismatchSurfacesBypassGuidance(t *testing.T) {
	l, conn := connectWithPanel(t, api.AlarmModeNone)
	baseline := len(conn.sent())

	done := make(chan error, 1)
	go func() {
		done <- l.ArmHome(context.Background(), nil)
	}()
	waitForSwitchMode(t, conn, baseline)

	// The panel confirms a different mode: sensors blocked the change.
	panelUpdate(t, conn, api.AlarmModeNone)

	select {
	case err := <-done:
		if !ringerrors.IsCode(err, ringerrors.CodeAlarmModeMismatch) {
			t.Fatalf("err = %v, want alarm.mode_mismatch", err)
		}
		if !strings.Contains(ringerrors.GetMessage(err), "bypass") {
			t.Fatalf("message %q should point at sensor bypass", ringerrors.GetMessage(err))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("setAlarmMode never resolved")
	}
}

func TestGetSecurityPanelMissingSurfacesError(t *testing.T) {
	l, fd, _ := newTestLocation(t, assetHub)
	if err := l.ensureConnection(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	fd.conn(t, 0).event(t, "message", listMessage(t, assetHub.UUID,
		deviceEntry(map[string]any{"zid": "z-sensor"}, map[string]any{"deviceType": "sensor.contact"})))

	_, err := l.GetSecurityPanel(context.Background())
	if !ringerrors.IsCode(err, ringerrors.CodeAlarmNoPanel) {
		t.Fatalf("err = %v, want alarm.no_panel", err)
	}
}

func TestComponentDevices(t *testing.T) {
	l, _ := connectWithPanel(t, api.AlarmModeNone)

	components := l.ComponentDevices("z-panel")
	if len(components) != 1 || components[0].ZID() != "z-sensor" {
		t.Fatalf("components = %v, want the sensor parented to the panel", components)
	}
}

func TestTriggerAlarmRequiresBaseStation(t *testing.T) {
	l, _, _ := newTestLocation(t, assetBridge)
	if err := l.ensureConnection(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	_, err := l.TriggerBurglarAlarm(context.Background())
	if !ringerrors.IsCode(err, ringerrors.CodeAlarmNoBaseStation) {
		t.Fatalf("err = %v, want alarm.no_base_station", err)
	}
}

func TestTriggerAlarmPostsPanicDispatch(t *testing.T) {
	l, _, fr := newTestLocation(t, assetHub)
	now := time.UnixMilli(1703500000000)
	l.timeNow = func() time.Time { return now }

	if _, err := l.TriggerFireAlarm(context.Background()); err != nil {
		t.Fatalf("triggerFireAlarm failed: %v", err)
	}

	fr.mu.Lock()
	defer fr.mu.Unlock()
	last := fr.requests[len(fr.requests)-1]
	if !strings.Contains(last.URL, "rs/monitoring/accounts/loc-1/assets/"+assetHub.UUID+"/userAlarm") {
		t.Fatalf("url = %q, want userAlarm dispatch for the base station", last.URL)
	}
	body, ok := last.Body.(map[string]any)
	if !ok {
		t.Fatalf("body = %T, want structured dispatch", last.Body)
	}
	if body["signalType"] != api.DispatchSignalFire {
		t.Fatalf("signalType = %v, want fire dispatch", body["signalType"])
	}
	if body["currentTsMs"] != now.UnixMilli() || body["eventOccurredTime"] != now.UnixMilli() {
		t.Fatalf("timestamps = %v/%v, want the dispatch time", body["currentTsMs"], body["eventOccurredTime"])
	}
	if sessionUUID, _ := body["alarmSessionUuid"].(string); len(sessionUUID) != 36 {
		t.Fatalf("alarmSessionUuid = %v, want a uuid", body["alarmSessionUuid"])
	}
}
