package httputil

import (
	"bytes"
	"encoding/json"
)

// OptionalString is a PATCH field that distinguishes "absent" from "null"
// (RFC 7396), which *string cannot. For a folder's parent_id:
//   - Present=false: leave the parent unchanged
//   - Present=true, Value=nil: move to the repository root
//   - Present=true, Value=&id: move under folder id
type OptionalString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON is only called when the key appears in the document,
// which is what marks the field present
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}
