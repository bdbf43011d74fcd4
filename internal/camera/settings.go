package camera

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nerrad567/ugoku-core/internal/device"
)

// Setting keys as used by the camera API.
const (
	KeyShutterSpeed     = "tv"
	KeyAperture         = "av"
	KeyISO              = "iso"
	KeyExposure         = "exposure"
	KeyWhiteBalance     = "wb"
	KeyColorTemperature = "colortemperature"
)

// maxAbilitySteps caps how many values a {min,max,step} ability expands to.
const maxAbilitySteps = 10000

// settingKeys maps every accepted setting name to its API key.
var settingKeys = map[string]string{
	"shutterspeed":      KeyShutterSpeed,
	"shutter_speed":     KeyShutterSpeed,
	"tv":                KeyShutterSpeed,
	"aperture":          KeyAperture,
	"av":                KeyAperture,
	"iso":               KeyISO,
	"exposure":          KeyExposure,
	"whitebalance":      KeyWhiteBalance,
	"white_balance":     KeyWhiteBalance,
	"wb":                KeyWhiteBalance,
	"color_temperature": KeyColorTemperature,
	"colortemperature":  KeyColorTemperature,
}

// SettingKey returns the API key for a setting name such as "aperture".
func SettingKey(name string) (string, bool) {
	k, ok := settingKeys[name]
	return k, ok
}

type rawSetting struct {
	Value   json.RawMessage `json:"value"`
	Ability json.RawMessage `json:"ability"`
}

type rangeAbility struct {
	Min  int `json:"min"`
	Max  int `json:"max"`
	Step int `json:"step"`
}

// ParseSettings decodes a /shooting/settings reply.
//
// Values and ability entries are normalised to strings. A value the camera
// reports as "auto" stays "auto". A {min,max,step} ability (colour
// temperature) is expanded to the list of reachable values. Entries the
// sequencer cannot use (non-objects, structured values) are skipped.
func ParseSettings(body []byte) (device.Settings, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: settings: %w", ErrBadResponse, err)
	}

	out := make(device.Settings, len(raw))
	for key, msg := range raw {
		var rs rawSetting
		if err := json.Unmarshal(msg, &rs); err != nil {
			continue
		}
		value, err := scalarString(rs.Value)
		if err != nil {
			continue
		}
		ability, err := parseAbility(rs.Ability)
		if err != nil {
			continue
		}
		out[key] = device.Setting{Value: value, Ability: ability}
	}
	return out, nil
}

func parseAbility(msg json.RawMessage) ([]string, error) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return nil, nil
	}

	switch msg[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(msg, &items); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			s, err := scalarString(it)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case '{':
		var r rangeAbility
		if err := json.Unmarshal(msg, &r); err != nil {
			return nil, err
		}
		return expandRange(r), nil
	default:
		return nil, fmt.Errorf("unexpected ability %s", msg)
	}
}

// expandRange lists min, min+step, ... up to and including max.
func expandRange(r rangeAbility) []string {
	if r.Step <= 0 || r.Max < r.Min {
		return nil
	}
	out := make([]string, 0, min((r.Max-r.Min)/r.Step+1, maxAbilitySteps))
	for v := r.Min; v <= r.Max && len(out) < maxAbilitySteps; v += r.Step {
		out = append(out, strconv.Itoa(v))
	}
	return out
}

// scalarString renders a JSON string, number, or bool as a plain string.
func scalarString(msg json.RawMessage) (string, error) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return "", nil
	}
	if msg[0] == '"' {
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return "", err
	}
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("unexpected scalar %s", msg)
	}
}

// settingBody encodes the PUT body for key. Colour temperature is numeric on
// the wire; every other setting is a string.
func settingBody(key, value string) ([]byte, error) {
	if key == KeyColorTemperature && value != device.Auto {
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q is not an integer", ErrInvalidValue, key, value)
		}
		return json.Marshal(map[string]int{"value": n})
	}
	return json.Marshal(map[string]string{"value": value})
}
