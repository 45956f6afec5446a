package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// MaxJSONBodySize caps JSON request bodies. Uploads are multipart and
// limited separately.
const MaxJSONBodySize = 1 << 20

// ParseJSON decodes JSON from the request body into the given destination.
// It limits the request body size to prevent abuse and provides clear error messages.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	// Limit request body (requires w for proper 413 response)
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodySize)

	decoder := json.NewDecoder(r.Body)
	// Unknown fields are ignored; validation happens in the services.

	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}
