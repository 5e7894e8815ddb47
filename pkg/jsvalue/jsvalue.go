// Package jsvalue folds values exported from scripts and values decoded from
// JSON into one comparable shape. goja exports integral numbers as int64
// while encoding/json yields float64, so both sides are normalized before
// comparison.
package jsvalue

// Number reports v as a float64 when it is any Go numeric kind a script
// value or a decoded JSON value can take.
func Number(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// Normalize folds every numeric type to float64, recursing into arrays and
// objects, so values exported from scripts compare equal to Go literals and
// decoded JSON.
func Normalize(v interface{}) interface{} {
	if n, ok := Number(v); ok {
		return n
	}
	switch x := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, el := range x {
			out[i] = Normalize(el)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, el := range x {
			out[k] = Normalize(el)
		}
		return out
	}
	return v
}
