package formschema

// FieldType enumerates the supported form field kinds.
type FieldType string

const (
	FieldTypeText          FieldType = "text"
	FieldTypeTextarea      FieldType = "textarea"
	FieldTypeNumber        FieldType = "number"
	FieldTypeDate          FieldType = "date"
	FieldTypeEmail         FieldType = "email"
	FieldTypePhone         FieldType = "phone"
	FieldTypeSelect        FieldType = "select"
	FieldTypeMultiSelect   FieldType = "multiselect"
	FieldTypeRadio         FieldType = "radio"
	FieldTypeCheckbox      FieldType = "checkbox"
	FieldTypeCheckboxGroup FieldType = "checkbox_group"
	FieldTypeFile          FieldType = "file"
)

// TypeInfo describes a field type's structural behaviour.
type TypeInfo struct {
	Type            FieldType
	SupportsOptions bool
	validate        valueValidator
}

// valueValidator checks a single present value against the compiled field.
// It returns human-readable messages for each violated rule.
type valueValidator func(field *compiledField, value interface{}) []string

var registry = map[FieldType]TypeInfo{
	FieldTypeText:          {Type: FieldTypeText, validate: validateText},
	FieldTypeTextarea:      {Type: FieldTypeTextarea, validate: validateText},
	FieldTypeNumber:        {Type: FieldTypeNumber, validate: validateNumber},
	FieldTypeDate:          {Type: FieldTypeDate, validate: validateDate},
	FieldTypeEmail:         {Type: FieldTypeEmail, validate: validateEmail},
	FieldTypePhone:         {Type: FieldTypePhone, validate: validatePhone},
	FieldTypeSelect:        {Type: FieldTypeSelect, SupportsOptions: true, validate: validateChoice},
	FieldTypeMultiSelect:   {Type: FieldTypeMultiSelect, SupportsOptions: true, validate: validateMultiChoice},
	FieldTypeRadio:         {Type: FieldTypeRadio, SupportsOptions: true, validate: validateChoice},
	FieldTypeCheckbox:      {Type: FieldTypeCheckbox, validate: validateBool},
	FieldTypeCheckboxGroup: {Type: FieldTypeCheckboxGroup, SupportsOptions: true, validate: validateMultiChoice},
	FieldTypeFile:          {Type: FieldTypeFile, validate: validateText},
}

// Lookup resolves a field type. Unknown types degrade to plain text so that
// forward-compatible types emitted by AI proposals are tolerated rather than
// rejected.
func Lookup(t FieldType) TypeInfo {
	if info, ok := registry[t]; ok {
		return info
	}
	return TypeInfo{Type: FieldTypeText, validate: validateText}
}

// SupportsOptions reports whether the field type carries an option list.
func SupportsOptions(t FieldType) bool {
	return Lookup(t).SupportsOptions
}

// KnownTypes returns the registered field types (for docs and proposals).
func KnownTypes() []FieldType {
	types := make([]FieldType, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	return types
}
