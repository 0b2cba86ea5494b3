// Package chain runs ordered prompt chains against a generation function.
//
// A chain is a list of prompt templates executed strictly in order. Each
// template may reference the shared Context by name ({{key}}) and the
// outputs of earlier steps by position ({{output[-1]}}, {{output[0]}}).
package chain

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
)

// Context holds the read-only values shared by every step of one run.
type Context map[string]any

// Lookup returns the string form of the value stored under key.
func (c Context) Lookup(key string) (string, bool) {
	value, ok := c[key]
	if !ok {
		return "", false
	}
	return stringify(value), true
}

// Strings returns the string forms of every value in the context.
func (c Context) Strings() map[string]string {
	out := make(map[string]string, len(c))
	for key, value := range c {
		out[key] = stringify(value)
	}
	return out
}

// Clone returns a shallow copy of the context.
func (c Context) Clone() Context {
	if c == nil {
		return Context{}
	}
	return maps.Clone(c)
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}

	switch reflect.ValueOf(value).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(data)
	default:
		return fmt.Sprint(value)
	}
}
