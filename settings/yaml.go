package settings

import (
	"fmt"

	gyaml "github.com/goccy/go-yaml"

	"github.com/tcserver/tcconfig/placeholder"
)

// LoadYAML decodes a desired-state document. Unknown fields are rejected so
// typos do not silently fall back to zero values.
func LoadYAML(data []byte) (*Settings, error) {
	var s Settings
	if err := gyaml.UnmarshalWithOptions(data, &s, gyaml.Strict()); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &s, nil
}

// DumpYAML encodes settings in field order.
func DumpYAML(s *Settings) ([]byte, error) {
	out, err := gyaml.MarshalWithOptions(s, gyaml.Indent(2))
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return out, nil
}

// DumpProperties renders a property set as a YAML mapping in key order.
func DumpProperties(props placeholder.Properties) ([]byte, error) {
	ms := make(gyaml.MapSlice, 0, props.Len())
	for _, k := range props.Keys() {
		v, _ := props.Get(k)
		ms = append(ms, gyaml.MapItem{Key: k, Value: v})
	}
	return gyaml.Marshal(ms)
}
