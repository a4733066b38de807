package settings

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// ApplyPatch applies an RFC 6902 JSON Patch to s and returns the patched copy.
// Paths address the JSON form of Settings, e.g. /services/0/connectors/0/port.
func ApplyPatch(s *Settings, patchJSON []byte) (*Settings, error) {
	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	doc, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	out, err := patch.Apply(doc)
	if err != nil {
		return nil, fmt.Errorf("apply patch: %w", err)
	}
	return decodeJSON(out)
}

// ApplyMergePatch applies an RFC 7386 merge patch to s. Arrays are replaced
// wholesale, as the RFC requires.
func ApplyMergePatch(s *Settings, mergeJSON []byte) (*Settings, error) {
	doc, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	out, err := jsonpatch.MergePatch(doc, mergeJSON)
	if err != nil {
		return nil, fmt.Errorf("apply merge patch: %w", err)
	}
	return decodeJSON(out)
}

func decodeJSON(b []byte) (*Settings, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var res Settings
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("decode patched settings: %w", err)
	}
	return &res, nil
}
