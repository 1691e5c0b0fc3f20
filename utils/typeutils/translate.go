package typeutils

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/datazip-inc/olake-salesforce/types"
	"github.com/datazip-inc/olake-salesforce/utils"
)

// numeric text as accepted by JSON; anything else is not emitted as json.Number
var numberPattern = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?([eE][+-]?\d+)?$`)

// TranslationWarning records a field that could not be coerced to its
// declared type; the field is emitted as untyped text instead
type TranslationWarning struct {
	Stream string
	Field  string
	Value  any
	Type   types.FieldType
	Err    error
}

func (w TranslationWarning) Error() string {
	return fmt.Sprintf("stream[%s] field[%s]: failed to coerce %v to %s: %s", w.Stream, w.Field, w.Value, w.Type, w.Err)
}

// Translate coerces one raw value, either a CSV cell or a decoded JSON value,
// to the declared field type. Timestamps and dates stay as their source text
// and numbers keep their exact digits.
func Translate(raw any, typ types.FieldType) (any, error) {
	if raw == nil {
		return nil, nil
	}

	// empty CSV cells are nulls for everything but text
	if str, ok := raw.(string); ok && str == "" && typ != types.String && typ != types.Reference && typ != types.Unknown {
		return nil, nil
	}

	switch typ {
	case types.String, types.Reference:
		return toString(raw)
	case types.Integer:
		return toInteger(raw)
	case types.Number:
		return toNumber(raw)
	case types.Boolean:
		return toBoolean(raw)
	case types.Date:
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected date text, found %T", raw)
		}
		if _, err := ParseDate(str); err != nil {
			return nil, err
		}
		return str, nil
	case types.DateTime:
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected timestamp text, found %T", raw)
		}
		if _, err := ParseTimestamp(str); err != nil {
			return nil, err
		}
		return str, nil
	case types.Composite:
		return toComposite(raw)
	default:
		return raw, nil
	}
}

// TranslateRecord converts a raw row into a typed record for stream. Columns
// not in the discovered schema pass through untouched; relationship objects
// are flattened into dotted keys when flatten is set and dotted CSV columns
// are nested when it is not. raw is never mutated.
func TranslateRecord(stream types.StreamInterface, raw map[string]any, flatten bool) (types.Record, []TranslationWarning) {
	record := make(types.Record, len(raw))
	var warnings []TranslationWarning

	for key, value := range raw {
		if key == AttributesKey {
			continue
		}

		typ, known := stream.FieldType(key)
		if known {
			typed, err := Translate(value, typ)
			if err != nil {
				warnings = append(warnings, TranslationWarning{Stream: stream.ID(), Field: key, Value: value, Type: typ, Err: err})
				typed = untyped(value)
			}
			record[key] = typed
			continue
		}

		if _, isObject := value.(map[string]any); isObject {
			if flatten {
				Flatten(key, value, record)
			} else {
				record[key] = StripAttributes(value)
			}
			continue
		}

		if !flatten && strings.Contains(key, ".") {
			Unflatten(key, value, record)
			continue
		}

		record[key] = value
	}

	sort.Slice(warnings, func(i, j int) bool {
		return warnings[i].Field < warnings[j].Field
	})

	return record, warnings
}

func toString(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	default:
		return nil, fmt.Errorf("expected text, found %T", raw)
	}
}

func toInteger(raw any) (any, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%v is not an integer", v)
		}
		if v >= math.MinInt64 && v < math.MaxInt64 {
			return int64(v), nil
		}
		return json.Number(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case json.Number:
		return integerFromText(v.String())
	case string:
		return integerFromText(strings.TrimSpace(v))
	default:
		return nil, fmt.Errorf("expected integer, found %T", raw)
	}
}

// integerFromText keeps values beyond int64 as exact json.Number text
func integerFromText(text string) (any, error) {
	if parsed, err := strconv.ParseInt(text, 10, 64); err == nil {
		return parsed, nil
	}

	if !numberPattern.MatchString(text) {
		return nil, fmt.Errorf("%q is not numeric", text)
	}

	value, _, err := big.ParseFloat(text, 10, 256, big.ToNearestEven)
	if err != nil {
		return nil, err
	}
	if !value.IsInt() {
		return nil, fmt.Errorf("%q is not an integer", text)
	}
	if asInt, accuracy := value.Int64(); accuracy == big.Exact {
		return asInt, nil
	}

	return json.Number(text), nil
}

func toNumber(raw any) (any, error) {
	switch v := raw.(type) {
	case json.Number:
		if !numberPattern.MatchString(v.String()) {
			return nil, fmt.Errorf("%q is not numeric", v.String())
		}
		return v, nil
	case string:
		text := strings.TrimSpace(v)
		if !numberPattern.MatchString(text) {
			return nil, fmt.Errorf("%q is not numeric", v)
		}
		return json.Number(text), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%v is not a finite number", v)
		}
		return json.Number(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case int64:
		return json.Number(strconv.FormatInt(v, 10)), nil
	case int:
		return json.Number(strconv.Itoa(v)), nil
	default:
		return nil, fmt.Errorf("expected number, found %T", raw)
	}
}

func toBoolean(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	default:
		return nil, fmt.Errorf("expected boolean, found %T", raw)
	}
}

func toComposite(raw any) (any, error) {
	switch v := raw.(type) {
	case map[string]any, []any:
		return StripAttributes(v), nil
	case string:
		if !utils.IsJSON(v) {
			return nil, fmt.Errorf("expected object, found text")
		}
		decoder := json.NewDecoder(strings.NewReader(v))
		decoder.UseNumber()
		var decoded any
		if err := decoder.Decode(&decoded); err != nil {
			return nil, err
		}
		switch decoded.(type) {
		case map[string]any, []any:
			return StripAttributes(decoded), nil
		}
		return nil, fmt.Errorf("expected object, found %T", decoded)
	default:
		return nil, fmt.Errorf("expected object, found %T", raw)
	}
}

// untyped renders a value that failed coercion as plain text
func untyped(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err == nil {
			return string(encoded)
		}
	}

	return fmt.Sprint(raw)
}
