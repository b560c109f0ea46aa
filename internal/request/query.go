package request

import (
	"strings"

	"github.com/devwelkin/hermes-static/internal/body"
	"github.com/devwelkin/hermes-static/internal/value"
)

// ParseQuery splits a raw query string into single-valued parameters.
// Values are decoded and numerically coerced; a key without '=' gets the
// empty string and the last occurrence of a key wins.
func ParseQuery(raw string) map[string]value.Value {
	query := make(map[string]value.Value)
	for _, segment := range strings.Split(raw, "&") {
		if segment == "" {
			continue
		}
		k, v, ok := strings.Cut(segment, "=")
		key := body.Unescape(k)
		if !ok {
			query[key] = value.Text("")
			continue
		}
		query[key] = value.Coerce(body.Unescape(v))
	}
	return query
}
