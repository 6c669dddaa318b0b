// Package jsonx contains JSON conversion helpers shared by the providers.
package jsonx

import json "github.com/goccy/go-json"

// ToDynamicJSON converts any value to a map[string]any by round-tripping
// it through JSON. Providers use this to hand schemas to SDKs that want
// untyped parameter maps.
func ToDynamicJSON(val any) (map[string]any, error) {
	b, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	result := make(map[string]any)
	if err = json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	return result, nil
}
