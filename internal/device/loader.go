package device

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// List is a parsed device list: device ID to camera endpoint (host:port)
// and device ID to motor serial port.
type List struct {
	Cameras map[string]string
	Motors  map[string]string
}

// Format is a device list encoding.
type Format string

// Supported device list formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// namespaceAliases maps accepted section names to the canonical namespace.
// The vendor names are kept for device lists written for earlier tooling.
var namespaceAliases = map[string]string{
	"camera":    "camera",
	"cameras":   "camera",
	"cannon":    "camera",
	"motor":     "motor",
	"motors":    "motor",
	"keigan":    "motor",
	"turntable": "motor",
}

// LoadFile reads a device list, choosing the format by file extension
// (.yaml and .yml are YAML, anything else is JSON).
func LoadFile(path string) (*List, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-configured path
	if err != nil {
		return nil, fmt.Errorf("reading device list: %w", err)
	}

	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}

	list, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("device list %s: %w", path, err)
	}
	return list, nil
}

// Parse decodes a device list.
//
// A JSON document whose top level is a string containing JSON is decoded
// twice; some exporters double-encode the file.
func Parse(data []byte, format Format) (*List, error) {
	var raw map[string]map[string]string

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			var inner string
			if json.Unmarshal(data, &inner) != nil {
				return nil, fmt.Errorf("parsing json: %w", err)
			}
			if err := json.Unmarshal([]byte(inner), &raw); err != nil {
				return nil, fmt.Errorf("parsing double-encoded json: %w", err)
			}
		}
	}

	list := &List{
		Cameras: make(map[string]string),
		Motors:  make(map[string]string),
	}
	for section, entries := range raw {
		ns, ok := namespaceAliases[strings.ToLower(section)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNamespace, section)
		}
		dst := list.Cameras
		if ns == "motor" {
			dst = list.Motors
		}
		for id, addr := range entries {
			if _, dup := dst[id]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateID, id)
			}
			dst[id] = addr
		}
	}
	return list, nil
}
