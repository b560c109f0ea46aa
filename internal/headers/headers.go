package headers

import (
	"bytes"
	"strings"

	"github.com/devwelkin/hermes-static/internal/value"
)

var separator = []byte(": ")

// Headers maps header names, as received, to their coerced values.
type Headers map[string]value.Value

func NewHeaders() Headers {
	return map[string]value.Value{}
}

// Parse consumes one CRLF-terminated header line from data.
// done is true once the empty line ending the block has been consumed.
// Lines without ": " are skipped.
func (h Headers) Parse(data []byte) (n int, done bool) {
	idx := bytes.Index(data, []byte("\r\n"))

	if idx == -1 {
		return 0, false
	}

	if idx == 0 {
		// the empty line
		return 2, true
	}

	h.ParseLine(data[:idx])
	return idx + 2, false
}

// ParseLine splits line on the first ": " and stores the trimmed pair.
// A later line with the same key replaces the earlier one.
func (h Headers) ParseLine(line []byte) {
	key, val, ok := bytes.Cut(line, separator)
	if !ok {
		return
	}

	k := string(bytes.TrimSpace(key))
	if k == "" {
		return
	}
	h[k] = value.Coerce(string(bytes.TrimSpace(val)))
}

// Get looks key up exactly as written, then case-insensitively.
func (h Headers) Get(key string) (value.Value, bool) {
	if v, ok := h[key]; ok {
		return v, true
	}
	for k, v := range h {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return value.Value{}, false
}

// Set adds or overwrites a header without numeric coercion.
func (h Headers) Set(key, val string) {
	h[key] = value.Text(val)
}
