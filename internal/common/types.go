package common

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ID is a row identifier that decodes from either a JSON number or a numeric
// string; the web client sends both. A missing or null ID decodes to zero.
type ID uint

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}

	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*id = 0
			return nil
		}
	}

	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return Invalid("Invalid id %q", raw)
	}
	*id = ID(n)
	return nil
}

// ParseID parses a path or query parameter. Empty, zero and non-numeric
// values are rejected.
func ParseID(raw string) (uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, Invalid("Missing id")
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, Invalid("Invalid id %q", raw)
	}
	return uint(n), nil
}
