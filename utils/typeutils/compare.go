package typeutils

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// return 0 for equal, -1 if a < b else 1 if a>b
func Compare(a, b any) int {
	// Handle nil cases first
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	// exact numbers (json.Number) compare numerically against any numeric kind
	if aNum, ok := exactNumber(a); ok {
		if bNum, ok := exactNumber(b); ok {
			if _, aJSON := a.(json.Number); aJSON {
				return aNum.Cmp(bNum)
			}
			if _, bJSON := b.(json.Number); bJSON {
				return aNum.Cmp(bNum)
			}
		}
	}

	switch aVal := a.(type) {
	case uint, uint8, uint16, uint32, uint64:
		aUint := reflect.ValueOf(a).Convert(reflect.TypeFor[uint64]()).Uint()
		bUint := reflect.ValueOf(b).Convert(reflect.TypeFor[uint64]()).Uint()
		if aUint < bUint {
			return -1
		} else if aUint > bUint {
			return 1
		}
		return 0
	case int, int8, int16, int32, int64:
		aInt := reflect.ValueOf(a).Convert(reflect.TypeFor[int64]()).Int()
		bInt := reflect.ValueOf(b).Convert(reflect.TypeFor[int64]()).Int()
		if aInt < bInt {
			return -1
		} else if aInt > bInt {
			return 1
		}
		return 0
	case float32, float64:
		aFloat := reflect.ValueOf(a).Convert(reflect.TypeFor[float64]()).Float()
		bFloat := reflect.ValueOf(b).Convert(reflect.TypeFor[float64]()).Float()

		if math.IsNaN(aFloat) {
			if math.IsNaN(bFloat) {
				return 0
			}
			return -1
		}
		if math.IsNaN(bFloat) {
			return 1
		}

		const eps = 1e-6
		diff := aFloat - bFloat
		if math.Abs(diff) < eps {
			return 0
		} else if diff < 0 {
			return -1
		}
		return 1
	case time.Time:
		bTime := b.(time.Time)
		return aVal.Compare(bTime)
	case Time:
		bTime, ok := b.(Time)
		if ok {
			return aVal.Compare(bTime)
		}
	case string:
		// replication keys are timestamps; compare them chronologically so
		// differing offsets or precisions order correctly
		if bStr, ok := b.(string); ok {
			aTime, aErr := ParseTimestamp(aVal)
			bTime, bErr := ParseTimestamp(bStr)
			if aErr == nil && bErr == nil {
				return aTime.Compare(bTime)
			}
			return strings.Compare(aVal, bStr)
		}
	case bool:
		bBool := b.(bool)
		// false < true
		if !aVal && bBool {
			return -1
		} else if aVal && !bBool {
			return 1
		}
		return 0
	}

	// For any other types, convert to string for comparison
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func exactNumber(v any) (*big.Float, bool) {
	switch val := v.(type) {
	case json.Number:
		f, ok := new(big.Float).SetPrec(256).SetString(val.String())
		return f, ok
	case int, int8, int16, int32, int64:
		return new(big.Float).SetPrec(256).SetInt64(reflect.ValueOf(v).Convert(reflect.TypeFor[int64]()).Int()), true
	case uint, uint8, uint16, uint32, uint64:
		return new(big.Float).SetPrec(256).SetUint64(reflect.ValueOf(v).Convert(reflect.TypeFor[uint64]()).Uint()), true
	case float32, float64:
		f := reflect.ValueOf(v).Convert(reflect.TypeFor[float64]()).Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return new(big.Float).SetPrec(256).SetFloat64(f), true
	default:
		return nil, false
	}
}
