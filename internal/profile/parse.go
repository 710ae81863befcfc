package profile

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// ParseStringList parses a stored list field whose elements are strings.
// Blank input and empty lists are absent (nil). A JSON string literal yields
// Text; anything else that is not a string array yields Unparsed.
func ParseStringList(field, raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" || s == "null" {
		return nil
	}

	switch s[0] {
	case '[':
		var items []string
		if err := json.Unmarshal([]byte(s), &items); err == nil {
			return cleanStrings(items)
		}
	case '"':
		if v, ok := parseTextLiteral(s); ok {
			return v
		}
	}

	slog.Debug("profile field is not a string list, keeping literal", "field", field)
	return Unparsed(s)
}

// ParsePersonList parses the stored people-who-matter field. It follows the
// same rules as ParseStringList with {name, relation, note} objects as the
// element type; entries without a name are dropped.
func ParsePersonList(field, raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" || s == "null" {
		return nil
	}

	switch s[0] {
	case '[':
		var people []Person
		if err := json.Unmarshal([]byte(s), &people); err == nil {
			return cleanPeople(people)
		}
	case '"':
		if v, ok := parseTextLiteral(s); ok {
			return v
		}
	}

	slog.Debug("profile field is not a person list, keeping literal", "field", field)
	return Unparsed(s)
}

func parseTextLiteral(s string) (Value, bool) {
	var text string
	if err := json.Unmarshal([]byte(s), &text); err != nil {
		return nil, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, true
	}
	return Text(text), true
}

// cleanStrings trims items and drops blanks; an empty result is absent.
func cleanStrings(items []string) Value {
	var out StringList
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cleanPeople(people []Person) Value {
	var out PersonList
	for _, p := range people {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			continue
		}
		p.Relation = strings.TrimSpace(p.Relation)
		p.Note = strings.TrimSpace(p.Note)
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// encodeValue serializes a Value for storage so that parsing the result
// yields an equal Value.
func encodeValue(v Value) string {
	switch v := v.(type) {
	case StringList:
		if len(v) == 0 {
			return ""
		}
		b, _ := json.Marshal([]string(v))
		return string(b)
	case PersonList:
		if len(v) == 0 {
			return ""
		}
		b, _ := json.Marshal([]Person(v))
		return string(b)
	case Text:
		b, _ := json.Marshal(string(v))
		return string(b)
	case Unparsed:
		return string(v)
	}
	return ""
}

// Literal returns the single-line rendering of a non-list Value: internal
// whitespace is collapsed to single spaces. Lists and nil return "".
func Literal(v Value) string {
	switch v := v.(type) {
	case Text:
		return strings.Join(strings.Fields(string(v)), " ")
	case Unparsed:
		return strings.Join(strings.Fields(string(v)), " ")
	}
	return ""
}
