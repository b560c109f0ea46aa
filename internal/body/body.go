// Package body decodes request bodies by declared content type.
package body

import (
	"encoding/json"
	"mime"
	"net/url"
	"strings"

	"github.com/devwelkin/hermes-static/internal/value"
)

// ContentType is the closed set of body encodings the server understands.
type ContentType int

const (
	TypeOther ContentType = iota
	TypeJSON
	TypeForm
)

const (
	MediaJSON = "application/json"
	MediaForm = "application/x-www-form-urlencoded"
)

func (c ContentType) String() string {
	switch c {
	case TypeJSON:
		return MediaJSON
	case TypeForm:
		return MediaForm
	default:
		return "other"
	}
}

// ParseContentType ignores parameters such as charset and letter case.
func ParseContentType(s string) ContentType {
	media, _, err := mime.ParseMediaType(s)
	if err != nil {
		media = strings.ToLower(strings.TrimSpace(s))
	}
	switch media {
	case MediaJSON:
		return TypeJSON
	case MediaForm:
		return TypeForm
	default:
		return TypeOther
	}
}

type Kind int

const (
	KindRaw Kind = iota
	KindJSON
	KindForm
)

// Body is a decoded request body. Exactly one of Raw, JSON or Form is
// meaningful, selected by Kind.
type Body struct {
	Kind Kind
	Raw  string
	JSON any
	Form map[string]value.Value
}

// Raw wraps text that is not decoded.
func Raw(s string) Body {
	return Body{Kind: KindRaw, Raw: s}
}

// Decode never fails: malformed JSON becomes an empty mapping and unknown
// content types keep the raw text.
func Decode(raw, contentType string) Body {
	switch ParseContentType(contentType) {
	case TypeJSON:
		return Body{Kind: KindJSON, JSON: decodeJSON(raw)}
	case TypeForm:
		return Body{Kind: KindForm, Form: DecodeForm(raw)}
	case TypeOther:
		return Raw(raw)
	}
	return Raw(raw)
}

func decodeJSON(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return map[string]any{}
	}
	return v
}

// DecodeForm parses key=value pairs separated by '&'. Both sides are
// plus/percent decoded, values are numerically coerced and a pair without
// '=' maps to the empty string. Later keys overwrite earlier ones.
func DecodeForm(raw string) map[string]value.Value {
	form := make(map[string]value.Value)
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		key := strings.TrimSpace(Unescape(k))
		if !ok {
			form[key] = value.Text("")
			continue
		}
		form[key] = value.Coerce(Unescape(v))
	}
	return form
}

// Unescape decodes '+' and %XX sequences, keeping s as is when it holds an
// invalid escape.
func Unescape(s string) string {
	u, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return u
}

func (b Body) IsEmpty() bool {
	switch b.Kind {
	case KindJSON:
		return b.JSON == nil
	case KindForm:
		return len(b.Form) == 0
	default:
		return b.Raw == ""
	}
}

// String renders the body for logs: JSON text for decoded bodies, the
// original text otherwise.
func (b Body) String() string {
	var v any
	switch b.Kind {
	case KindJSON:
		v = b.JSON
	case KindForm:
		v = b.Form
	default:
		return b.Raw
	}
	out, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(out)
}
