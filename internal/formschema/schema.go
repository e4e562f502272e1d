package formschema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Rules holds the type-specific constraints attached to a field.
type Rules struct {
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
}

// FieldSpec is one field of a form structure, in render order.
type FieldSpec struct {
	Key      string
	Type     FieldType
	Label    string
	Required bool
	Rules    Rules
	Options  []string
}

// Violation reports one failed rule for one field.
type Violation struct {
	FieldKey string
	Message  string
}

type compiledField struct {
	spec    FieldSpec
	info    TypeInfo
	pattern *regexp.Regexp
	options map[string]struct{}
}

// Schema validates submission payloads against an ordered field list.
type Schema struct {
	fields []compiledField
}

// Build compiles the given field specs into a reusable validator. It fails
// only on an uncompilable regex pattern; everything else is tolerated so a
// snapshot always yields a working schema.
func Build(specs []FieldSpec) (*Schema, error) {
	fields := make([]compiledField, 0, len(specs))
	for _, spec := range specs {
		cf := compiledField{spec: spec, info: Lookup(spec.Type)}
		if spec.Rules.Pattern != "" {
			re, err := regexp.Compile(spec.Rules.Pattern)
			if err != nil {
				return nil, fmt.Errorf("field %s: invalid pattern %q: %w", spec.Key, spec.Rules.Pattern, err)
			}
			cf.pattern = re
		}
		if cf.info.SupportsOptions {
			cf.options = make(map[string]struct{}, len(spec.Options))
			for _, opt := range spec.Options {
				cf.options[opt] = struct{}{}
			}
		}
		fields = append(fields, cf)
	}
	return &Schema{fields: fields}, nil
}

// Validate checks the payload and returns every violation found. Keys in the
// payload that no field declares are ignored; clients are free to send
// additional metadata alongside the answers.
func (s *Schema) Validate(payload map[string]interface{}) []Violation {
	var violations []Violation
	for i := range s.fields {
		field := &s.fields[i]
		value, present := payload[field.spec.Key]
		if !present || isEmpty(value) {
			if field.spec.Required {
				violations = append(violations, Violation{FieldKey: field.spec.Key, Message: "is required"})
			}
			continue
		}
		for _, msg := range field.info.validate(field, value) {
			violations = append(violations, Violation{FieldKey: field.spec.Key, Message: msg})
		}
	}
	return violations
}

func isEmpty(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []interface{}:
		return len(v) == 0
	case []string:
		return len(v) == 0
	}
	return false
}

func validateText(field *compiledField, value interface{}) []string {
	text, ok := value.(string)
	if !ok {
		return []string{"must be a string"}
	}
	var msgs []string
	if field.spec.Rules.MinLength != nil && len(text) < *field.spec.Rules.MinLength {
		msgs = append(msgs, fmt.Sprintf("must be at least %d characters", *field.spec.Rules.MinLength))
	}
	if field.spec.Rules.MaxLength != nil && len(text) > *field.spec.Rules.MaxLength {
		msgs = append(msgs, fmt.Sprintf("must be at most %d characters", *field.spec.Rules.MaxLength))
	}
	if field.pattern != nil && !field.pattern.MatchString(text) {
		msgs = append(msgs, "does not match the expected format")
	}
	return msgs
}

func validateNumber(field *compiledField, value interface{}) []string {
	num, ok := toFloat(value)
	if !ok {
		return []string{"must be a number"}
	}
	var msgs []string
	if field.spec.Rules.Min != nil && num < *field.spec.Rules.Min {
		msgs = append(msgs, fmt.Sprintf("must be at least %v", *field.spec.Rules.Min))
	}
	if field.spec.Rules.Max != nil && num > *field.spec.Rules.Max {
		msgs = append(msgs, fmt.Sprintf("must be at most %v", *field.spec.Rules.Max))
	}
	return msgs
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		// HTML form posts encode numbers as strings.
		num, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return num, true
	}
	return 0, false
}

func validateBool(_ *compiledField, value interface{}) []string {
	switch v := value.(type) {
	case bool:
		return nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "false", "on", "off", "yes", "no":
			return nil
		}
	}
	return []string{"must be a boolean"}
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func validateEmail(field *compiledField, value interface{}) []string {
	text, ok := value.(string)
	if !ok {
		return []string{"must be a string"}
	}
	if !emailPattern.MatchString(text) {
		return []string{"must be a valid email address"}
	}
	return validateText(field, value)
}

var phoneStrip = regexp.MustCompile(`[\s\-().]`)

func validatePhone(field *compiledField, value interface{}) []string {
	text, ok := value.(string)
	if !ok {
		return []string{"must be a string"}
	}
	digits := phoneStrip.ReplaceAllString(text, "")
	if len(strings.TrimPrefix(digits, "+")) < 7 {
		return []string{"must be a valid phone number"}
	}
	return validateText(field, value)
}

var dateLayouts = []string{"2006-01-02", time.RFC3339}

func validateDate(_ *compiledField, value interface{}) []string {
	text, ok := value.(string)
	if !ok {
		return []string{"must be a date string"}
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, text); err == nil {
			return nil
		}
	}
	return []string{"must be a valid date"}
}

func validateChoice(field *compiledField, value interface{}) []string {
	text, ok := value.(string)
	if !ok {
		return []string{"must be a string"}
	}
	if len(field.options) > 0 {
		if _, ok := field.options[text]; !ok {
			return []string{"must be one of the provided options"}
		}
	}
	return nil
}

func validateMultiChoice(field *compiledField, value interface{}) []string {
	items, ok := toStringSlice(value)
	if !ok {
		return []string{"must be a list of options"}
	}
	if len(field.options) == 0 {
		return nil
	}
	var msgs []string
	for _, item := range items {
		if _, ok := field.options[item]; !ok {
			msgs = append(msgs, fmt.Sprintf("%q is not one of the provided options", item))
		}
	}
	return msgs
}

func toStringSlice(value interface{}) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, raw := range v {
			s, ok := raw.(string)
			if !ok {
				return nil, false
			}
			items = append(items, s)
		}
		return items, true
	case string:
		// A single selection arrives as a bare string from some clients.
		return []string{v}, true
	}
	return nil, false
}
