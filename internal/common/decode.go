package common

import (
	"encoding/json"
	"net/http"
)

// DecodeJSON reads a single JSON object from r into v. Unknown fields are
// rejected so a misspelled key cannot silently zero a value.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return NewAppError(CodeBadRequest, "invalid request payload", http.StatusBadRequest, err)
	}
	return nil
}
