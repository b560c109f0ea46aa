// Package value holds the scalar type used for query parameters, header
// values and form fields: the raw text, coerced to a number when the whole
// text is numeric.
package value

import (
	"encoding/json"
	"strconv"
)

type Kind uint8

const (
	String Kind = iota
	Number
)

func (k Kind) String() string {
	if k == Number {
		return "number"
	}
	return "string"
}

// Value is either a number or a string. The original text is kept for both.
type Value struct {
	kind Kind
	text string
	num  float64
}

// Text returns a string value without attempting coercion.
func Text(s string) Value {
	return Value{kind: String, text: s}
}

// Coerce returns a Number when s is an integer or decimal literal, else a String.
func Coerce(s string) Value {
	if !isNumeric(s) {
		return Text(s)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Text(s)
	}
	return Value{kind: Number, text: s, num: n}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNumber() bool { return v.kind == Number }
func (v Value) String() string { return v.text }
func (v Value) Float() float64 { return v.num }

// Int reports the value as an integer. ok is false for strings and for
// numbers with a fractional part.
func (v Value) Int() (n int64, ok bool) {
	if v.kind != Number {
		return 0, false
	}
	n, err := strconv.ParseInt(v.text, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == Number {
		if n, ok := v.Int(); ok {
			return strconv.AppendInt(nil, n, 10), nil
		}
		return json.Marshal(v.num)
	}
	return json.Marshal(v.text)
}

// isNumeric matches [+-]?digits, [+-]?digits.digits? and [+-]?.digits
func isNumeric(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	intDigits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		intDigits++
	}
	if i == len(s) {
		return intDigits > 0
	}
	if s[i] != '.' {
		return false
	}
	i++
	fracDigits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		fracDigits++
	}
	return i == len(s) && intDigits+fracDigits > 0
}
