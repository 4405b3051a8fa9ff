package input

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Number is a numeric field that also accepts numeric strings. Null, absent
// and empty-string values leave it unset. Values that are present but not
// numeric mark it invalid instead of failing the whole document.
type Number struct {
	value   float64
	set     bool
	invalid bool
	raw     string
}

// NewNumber returns a set Number.
func NewNumber(v float64) Number { return Number{value: v, set: true} }

func (n *Number) parse(raw string) {
	raw = strings.TrimSpace(raw)
	n.raw = raw
	if raw == "" {
		return
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		n.invalid = true
		return
	}
	n.value, n.set = f, true
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n.parse(s)
	case len(data) > 0 && (data[0] == '-' || (data[0] >= '0' && data[0] <= '9')):
		n.parse(string(data))
	default:
		n.invalid, n.raw = true, string(data)
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	*n = Number{}
	if node.Kind != yaml.ScalarNode {
		n.invalid = true
		return nil
	}
	switch node.Tag {
	case "!!null":
	case "!!int", "!!float", "!!str":
		n.parse(node.Value)
	default:
		n.invalid, n.raw = true, node.Value
	}
	return nil
}

// Invalid reports whether a value was present but not numeric.
func (n Number) Invalid() bool { return n.invalid }

// Float returns the value, or def when unset. An explicit zero is kept.
func (n Number) Float(def float64) float64 {
	if !n.set {
		return def
	}
	return n.value
}

// Int returns the value truncated toward zero, or def when unset.
func (n Number) Int(def int) int {
	if !n.set {
		return def
	}
	return int(n.value)
}

// Text is a string field that also accepts scalars of other types.
type Text struct {
	value string
	set   bool
}

// NewText returns a set Text.
func NewText(s string) Text { return Text{value: s, set: true} }

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	*t = Text{}
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
	case len(data) > 0 && data[0] == '"':
		if err := json.Unmarshal(data, &t.value); err != nil {
			return err
		}
		t.set = true
	case bytes.Equal(data, []byte("true")):
		t.value, t.set = "True", true
	case bytes.Equal(data, []byte("false")):
		t.value, t.set = "False", true
	default:
		t.value, t.set = string(data), true
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Text) UnmarshalYAML(node *yaml.Node) error {
	*t = Text{}
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		return nil
	}
	t.value, t.set = node.Value, true
	return nil
}

// String returns the trimmed value, empty when unset.
func (t Text) String() string { return strings.TrimSpace(t.value) }

// Optional returns nil for unset or blank values.
func (t Text) Optional() *string {
	s := t.String()
	if !t.set || s == "" {
		return nil
	}
	return &s
}

// Flag is a boolean-like field: true, 1, yes and y (any case) are true,
// everything else present is false.
type Flag struct {
	value bool
	set   bool
}

// NewFlag returns a set Flag.
func NewFlag(v bool) Flag { return Flag{value: v, set: true} }

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	*f = Flag{}
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f.value, f.set = truthy(s), true
	default:
		f.value, f.set = truthy(string(data)), true
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *Flag) UnmarshalYAML(node *yaml.Node) error {
	*f = Flag{}
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		return nil
	}
	f.value, f.set = truthy(node.Value), true
	return nil
}

// Bool returns the value, or def when unset.
func (f Flag) Bool(def bool) bool {
	if !f.set {
		return def
	}
	return f.value
}
