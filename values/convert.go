package values

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// ToValue normalizes an arbitrary decoded Go value into the model's
// shape: nil, bool, int64, float64, string, []interface{} of normalized
// values, or *Object. Map keys without a defined order are sorted so
// repeated renders are deterministic.
func ToValue(v interface{}) interface{} { // nolint: gocyclo
	switch v := v.(type) {
	case nil, bool, string, int64, float64:
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	case json.Number:
		if n, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return n
		}
		f, _ := strconv.ParseFloat(v.String(), 64)
		return f
	case *Object:
		return v
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = ToValue(item)
		}
		return out
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			obj.Set(k, ToValue(v[k]))
		}
		return obj
	case map[interface{}]interface{}:
		keys := make([]string, 0, len(v))
		byKey := make(map[string]interface{}, len(v))
		for k, item := range v {
			ks := fmt.Sprint(k)
			keys = append(keys, ks)
			byKey[ks] = item
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			obj.Set(k, ToValue(byKey[k]))
		}
		return obj
	}
	return toValueReflect(v)
}

// toValueReflect handles typed slices, typed maps, pointers, and structs.
// Structs take the JSON round trip so tags and field visibility behave
// exactly as encoding/json defines them.
func toValueReflect(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return ToValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = ToValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		byKey := make(map[string]interface{}, rv.Len())
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			ks := fmt.Sprint(k.Interface())
			keys = append(keys, ks)
			byKey[ks] = rv.MapIndex(k).Interface()
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			obj.Set(k, ToValue(byKey[k]))
		}
		return obj
	case reflect.Struct:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		out, err := FromJSON(string(data))
		if err != nil {
			return fmt.Sprint(v)
		}
		return out
	}
	return fmt.Sprint(v)
}

// ToString renders a value the way a statement writes it: strings as
// themselves, numbers and booleans in their JSON scalar form, nil as the
// empty string, arrays and objects as compact JSON.
func ToString(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// Truthy implements the conditional test: false, nil, zero, the empty
// string, the empty array, and the empty object are falsy.
func Truthy(v interface{}) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	case []interface{}:
		return len(v) > 0
	case *Object:
		return v.Len() > 0
	}
	return true
}

// Length returns the element count of an array or object, or the byte
// length of a string. Other values have length 0.
func Length(v interface{}) int {
	switch v := v.(type) {
	case []interface{}:
		return len(v)
	case *Object:
		return v.Len()
	case string:
		return len(v)
	}
	return 0
}

// Equal compares two values. Numbers compare across int64/float64;
// arrays and objects compare element-wise; values of incompatible kinds
// are unequal.
func Equal(a, b interface{}) bool {
	if an, aok := asFloat(a); aok {
		bn, bok := asFloat(b)
		return bok && an == bn
	}
	switch a := a.(type) {
	case nil:
		return b == nil
	case bool:
		bb, ok := b.(bool)
		return ok && a == bb
	case string:
		bs, ok := b.(string)
		return ok && a == bs
	case []interface{}:
		bs, ok := b.([]interface{})
		if !ok || len(a) != len(bs) {
			return false
		}
		for i := range a {
			if !Equal(a[i], bs[i]) {
				return false
			}
		}
		return true
	case *Object:
		bo, ok := b.(*Object)
		if !ok || a.Len() != bo.Len() {
			return false
		}
		for _, k := range a.Keys() {
			av, _ := a.Get(k)
			bv, ok := bo.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders two values. The second result is false when the values
// are not comparable: ordering is defined for number/number and
// string/string pairs only.
func Compare(a, b interface{}) (int, bool) {
	if an, ok := asFloat(a); ok {
		bn, bok := asFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case an < bn:
			return -1, true
		case an > bn:
			return 1, true
		}
		return 0, true
	}
	if as, ok := a.(string); ok {
		bs, bok := b.(string)
		if !bok {
			return 0, false
		}
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asFloat(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
