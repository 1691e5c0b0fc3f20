package types

import (
	"fmt"

	"github.com/goccy/go-json"
)

// FieldType is the closed set of value kinds a discovered field can declare.
// Unknown is the passthrough variant: values are emitted as received.
type FieldType string

const (
	String    FieldType = "string"
	Integer   FieldType = "integer"
	Number    FieldType = "number"
	Boolean   FieldType = "boolean"
	Date      FieldType = "date"
	DateTime  FieldType = "date-time"
	Reference FieldType = "reference"
	Composite FieldType = "composite"
	Unknown   FieldType = "unknown"
)

var fieldTypes = NewSet(String, Integer, Number, Boolean, Date, DateTime, Reference, Composite, Unknown)

func (f FieldType) Valid() bool {
	return fieldTypes.Exists(f)
}

// UnmarshalJSON maps unrecognised tags to Unknown so older catalogs keep loading
func (f *FieldType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid field type %s: %s", string(data), err)
	}

	*f = FieldType(raw)
	if !f.Valid() {
		*f = Unknown
	}

	return nil
}

// Record is one translated row
type Record map[string]any

func (r Record) GetStringifiedValue(key string) (string, error) {
	value := r[key]
	switch value.(type) {
	case nil:
		return "", nil
	case map[string]any, []any:
		s, err := json.Marshal(value)
		return string(s), err
	default:
		return fmt.Sprintf("%v", value), nil
	}
}
