package record

import (
	"encoding/json"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Field is a tool-output value that is either an integer or raw text.
// Parsers never guess: a value that does not parse as a base-10 integer is
// kept verbatim as text. Fields are comparable with ==; an integer never
// equals a text field, whatever its digits.
type Field struct {
	num    int64
	text   string
	isText bool
}

// Int returns an integer field.
func Int(n int64) Field {
	return Field{num: n}
}

// Text returns a text field.
func Text(s string) Field {
	return Field{text: s, isText: true}
}

// ParseField converts s to an integer field, falling back to text.
func ParseField(s string) Field {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Text(s)
	}
	return Int(n)
}

// IsInt reports whether the field holds an integer.
func (f Field) IsInt() bool {
	return !f.isText
}

// Int returns the integer value and whether the field holds one.
func (f Field) Int() (int64, bool) {
	if f.isText {
		return 0, false
	}
	return f.num, true
}

// Uint returns the value as a non-negative integer.
func (f Field) Uint() (uint64, bool) {
	n, ok := f.Int()
	if !ok || n < 0 {
		return 0, false
	}
	return uint64(n), true
}

// String renders the field canonically. Integers render in base 10.
func (f Field) String() string {
	if f.isText {
		return f.text
	}
	return strconv.FormatInt(f.num, 10)
}

// MarshalJSON encodes integers as JSON numbers and text as strings.
func (f Field) MarshalJSON() ([]byte, error) {
	if f.isText {
		return json.Marshal(f.text)
	}
	return json.Marshal(f.num)
}

// UnmarshalJSON accepts a JSON number or string.
func (f *Field) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = Int(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = Text(s)
	return nil
}

// MarshalYAML encodes the field as its natural scalar.
func (f Field) MarshalYAML() (interface{}, error) {
	if f.isText {
		return f.text, nil
	}
	return f.num, nil
}

// UnmarshalYAML decodes a scalar into the field.
func (f *Field) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if node.Tag == "!!str" {
		*f = Text(s)
		return nil
	}
	*f = ParseField(s)
	return nil
}
