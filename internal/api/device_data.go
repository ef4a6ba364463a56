package api

import "encoding/json"

// DeviceData is the flattened attribute set for one device, keyed by
// attribute name. Ring delivers device attributes in nested
// version-tagged groups (general.v2, device.v1); FlattenDeviceData
// merges them into this single flat map. The attribute set is
// open-ended, so typed access goes through the accessor methods.
type DeviceData map[string]any

// RawDeviceEntry is one entry of a device list or DeviceInfoDoc body
// before flattening.
type RawDeviceEntry struct {
	General struct {
		V2 map[string]any `json:"v2"`
	} `json:"general"`
	Device struct {
		V1 map[string]any `json:"v1"`
	} `json:"device"`
}

// FlattenDeviceData merges an entry's version-tagged attribute groups
// into one flat record. device.v1 values win over general.v2 on key
// collisions, matching the order the groups are merged by the Ring app.
func FlattenDeviceData(entry RawDeviceEntry) DeviceData {
	flat := DeviceData{}
	for k, v := range entry.General.V2 {
		flat[k] = v
	}
	for k, v := range entry.Device.V1 {
		flat[k] = v
	}
	return flat
}

// ParseDeviceList decodes a device-list body into flattened records.
// A nil or empty body yields nil, which reconciliation treats as
// "leave state unchanged".
func ParseDeviceList(body json.RawMessage) ([]DeviceData, error) {
	if len(body) == 0 || string(body) == "null" {
		return nil, nil
	}
	var entries []RawDeviceEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, err
	}
	flattened := make([]DeviceData, 0, len(entries))
	for _, entry := range entries {
		flattened = append(flattened, FlattenDeviceData(entry))
	}
	return flattened, nil
}

// string attribute accessor; missing or non-string values yield "".
func (d DeviceData) str(key string) string {
	s, _ := d[key].(string)
	return s
}

// ZID returns the zone id, the stable key distinguishing device records
// within a location.
func (d DeviceData) ZID() string {
	return d.str("zid")
}

// Name returns the user-assigned device name.
func (d DeviceData) Name() string {
	return d.str("name")
}

// DeviceType returns the device type tag (e.g. "security-panel").
func (d DeviceData) DeviceType() string {
	return d.str("deviceType")
}

// ParentZID returns the zid of the device this one is a component of,
// or "" for top-level devices.
func (d DeviceData) ParentZID() string {
	return d.str("parentZid")
}

// Mode returns the alarm mode attribute, present on security panels.
func (d DeviceData) Mode() AlarmMode {
	return AlarmMode(d.str("mode"))
}

// Volume returns the volume attribute and whether it is present.
// JSON numbers decode as float64.
func (d DeviceData) Volume() (float64, bool) {
	v, ok := d["volume"].(float64)
	return v, ok
}

// CategoryID returns the numeric device category, or 0 if absent.
func (d DeviceData) CategoryID() int {
	v, _ := d["categoryId"].(float64)
	return int(v)
}

// Merge applies an update in place, preserving record identity so
// subscriptions keyed on this map stay valid across updates.
func (d DeviceData) Merge(update DeviceData) {
	for k, v := range update {
		d[k] = v
	}
}

// Clone returns a shallow copy, used when publishing snapshots that
// must not observe later in-place merges.
func (d DeviceData) Clone() DeviceData {
	out := make(DeviceData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
