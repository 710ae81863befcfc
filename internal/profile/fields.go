package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindInt
	kindStrings
	kindPeople
)

// fieldSpec maps a profile field name to its storage column.
type fieldSpec struct {
	name   string
	column string
	kind   fieldKind
	get    func(p *Profile) *string
	getVal func(p *Profile) *Value
}

var fieldSpecs = []fieldSpec{
	{name: "firstName", column: "first_name", get: func(p *Profile) *string { return &p.FirstName }},
	{name: "lastName", column: "last_name", get: func(p *Profile) *string { return &p.LastName }},
	{name: "nickname", column: "nickname", get: func(p *Profile) *string { return &p.Nickname }},
	{name: "age", column: "age", kind: kindInt},
	{name: "gender", column: "gender", get: func(p *Profile) *string { return &p.Gender }},
	{name: "phoneNumber", column: "phone_number", get: func(p *Profile) *string { return &p.PhoneNumber }},
	{name: "location", column: "location", get: func(p *Profile) *string { return &p.Location }},
	{name: "personality", column: "personality", get: func(p *Profile) *string { return &p.Personality }},
	{name: "communicationStyle", column: "communication_style", get: func(p *Profile) *string { return &p.CommunicationStyle }},
	{name: "backstory", column: "backstory", get: func(p *Profile) *string { return &p.Backstory }},
	{name: "interests", column: "interests", kind: kindStrings, getVal: func(p *Profile) *Value { return &p.Interests }},
	{name: "coreValues", column: "core_values", get: func(p *Profile) *string { return &p.CoreValues }},
	{name: "currentSituation", column: "current_situation", get: func(p *Profile) *string { return &p.CurrentSituation }},
	{name: "peopleWhoMatter", column: "people_who_matter", kind: kindPeople, getVal: func(p *Profile) *Value { return &p.PeopleWhoMatter }},
	{name: "conversationHooks", column: "conversation_hooks", kind: kindStrings, getVal: func(p *Profile) *Value { return &p.ConversationHooks }},
	{name: "healthInfo", column: "health_info", get: func(p *Profile) *string { return &p.HealthInfo }},
	{name: "safetyContactName", column: "safety_contact_name", get: func(p *Profile) *string { return &p.SafetyContactName }},
	{name: "safetyContactPhone", column: "safety_contact_phone", get: func(p *Profile) *string { return &p.SafetyContactPhone }},
	{name: "safetyContactRelationship", column: "safety_contact_relationship", get: func(p *Profile) *string { return &p.SafetyContactRelationship }},
}

// lookupField accepts either the camelCase field name or the column name.
func lookupField(name string) (fieldSpec, bool) {
	name = strings.TrimSpace(name)
	for _, f := range fieldSpecs {
		if f.name == name || f.column == name {
			return f, true
		}
	}
	return fieldSpec{}, false
}

// FieldNames returns the enrichable field names, sorted.
func FieldNames() []string {
	names := make([]string, 0, len(fieldSpecs))
	for _, f := range fieldSpecs {
		names = append(names, f.name)
	}
	sort.Strings(names)
	return names
}

// apply sets the field on p from a JSON value and returns the value to store
// in the column.
func (f fieldSpec) apply(p *Profile, raw json.RawMessage, appendMode bool) (any, error) {
	switch f.kind {
	case kindInt:
		if appendMode {
			return nil, fmt.Errorf("%w: %s does not support append", ErrInvalid, f.name)
		}
		var age *int
		if err := json.Unmarshal(raw, &age); err != nil {
			return nil, fmt.Errorf("%w: %s must be a whole number or null", ErrInvalid, f.name)
		}
		p.Age = age
		if age == nil {
			return nil, nil
		}
		return *age, nil

	case kindStrings:
		items, err := decodeStrings(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a string or an array of strings", ErrInvalid, f.name)
		}
		dst := f.getVal(p)
		if appendMode {
			items = append(existingStrings(*dst), items...)
		}
		*dst = cleanStrings(items)
		return encodeValue(*dst), nil

	case kindPeople:
		people, err := decodePeople(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a person object or an array of them", ErrInvalid, f.name)
		}
		dst := f.getVal(p)
		if appendMode {
			if existing, ok := (*dst).(PersonList); ok {
				people = append(append([]Person{}, existing...), people...)
			}
		}
		*dst = cleanPeople(people)
		return encodeValue(*dst), nil
	}

	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %s must be a string", ErrInvalid, f.name)
	}
	value := ""
	if s != nil {
		value = *s
	}
	dst := f.get(p)
	if appendMode && strings.TrimSpace(*dst) != "" && strings.TrimSpace(value) != "" {
		value = *dst + "\n" + value
	}
	*dst = value
	return value, nil
}

// existingStrings returns the items a list append builds on. A Text value
// counts as one item; an Unparsed value is replaced.
func existingStrings(v Value) []string {
	switch v := v.(type) {
	case StringList:
		return append([]string{}, v...)
	case Text:
		return []string{string(v)}
	}
	return nil
}

func decodeStrings(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func decodePeople(raw json.RawMessage) ([]Person, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var p Person
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return []Person{p}, nil
	}
	var people []Person
	if err := json.Unmarshal(raw, &people); err != nil {
		return nil, err
	}
	return people, nil
}
