/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// EncodeText converts a Value into the text form kept by durable backends.
//
// Scalars are written verbatim: strings as is, integers in base 10, floats in the shortest
// representation that parses back to the same number. Slices and maps are written as JSON.
func EncodeText(value Value) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case int:
		return strconv.Itoa(v), nil
	case int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(v).Int(), 10), nil
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(v).Uint(), 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case nil:
		return "", fmt.Errorf("nil value is not supported")
	}

	switch reflect.TypeOf(value).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		data, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("encode %T: %w", value, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("value of type %T is not supported", value)
	}
}

// DecodeText converts text produced by EncodeText back into a Value.
//
// JSON arrays and objects become []interface{} and map[string]interface{}; numbers inside them
// keep their literal text (they are never parsed into float64). Any other text, including
// numeric scalars, is returned as a string.
func DecodeText(text string) Value {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || (trimmed[0] != '[' && trimmed[0] != '{') {
		return text
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil || dec.More() {
		return text
	}
	return numbersToStrings(v)
}

func numbersToStrings(v interface{}) interface{} {
	switch vv := v.(type) {
	case json.Number:
		return vv.String()
	case []interface{}:
		for i := range vv {
			vv[i] = numbersToStrings(vv[i])
		}
		return vv
	case map[string]interface{}:
		for k := range vv {
			vv[k] = numbersToStrings(vv[k])
		}
		return vv
	}
	return v
}

// AsString returns value as a string. Numbers kept by a durable backend come back as strings,
// so this is the way to read a scalar regardless of the backend.
func AsString(value Value) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case nil:
		return "", false
	}
	s, err := EncodeText(value)
	if err != nil {
		return "", false
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return "", false
	}
	return s, true
}

// AsStrings returns value as a list of strings. It accepts []string as kept by the memory backend
// and []interface{} of scalars as returned by durable backends.
func AsStrings(value Value) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), true
	case []interface{}:
		res := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := AsString(item)
			if !ok {
				return nil, false
			}
			res = append(res, s)
		}
		return res, true
	}
	return nil, false
}
