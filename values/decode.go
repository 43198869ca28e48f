package values

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

// FromJSON decodes a JSON document into the value model, preserving
// object key order.
func FromJSON(data string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSON(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

func decodeJSON(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeJSONToken(dec, tok)
}

// decodeJSONToken walks the decoder's token stream instead of using
// Unmarshal, which is what keeps object keys in document order.
func decodeJSONToken(dec *json.Decoder, tok json.Token) (interface{}, error) {
	switch tok := tok.(type) {
	case json.Delim:
		switch tok {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key, got %v", keyTok)
				}
				value, err := decodeJSON(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, value)
			}
			if _, err := dec.Token(); err != nil { // closing }
				return nil, err
			}
			return obj, nil
		case '[':
			arr := []interface{}{}
			for dec.More() {
				item, err := decodeJSON(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, item)
			}
			if _, err := dec.Token(); err != nil { // closing ]
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", tok)
	case json.Number:
		return ToValue(tok), nil
	default:
		return ToValue(tok), nil
	}
}

// FromYAML decodes a YAML document into the value model. A document whose
// top level is a mapping decodes through yaml.MapSlice so key order
// survives at every depth; any other document decodes through ToValue,
// which sorts mapping keys.
func FromYAML(data []byte) (interface{}, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	// A sequence would decode into MapSlice as empty MapItems.
	if _, isSeq := raw.([]interface{}); !isSeq {
		var ms yaml.MapSlice
		if err := yaml.Unmarshal(data, &ms); err == nil {
			return mapSliceToValue(ms), nil
		}
	}
	return ToValue(raw), nil
}

func mapSliceToValue(ms yaml.MapSlice) *Object {
	obj := NewObject()
	for _, item := range ms {
		obj.Set(fmt.Sprint(item.Key), yamlItemToValue(item.Value))
	}
	return obj
}

func yamlItemToValue(v interface{}) interface{} {
	switch v := v.(type) {
	case yaml.MapSlice:
		return mapSliceToValue(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = yamlItemToValue(item)
		}
		return out
	default:
		return ToValue(v)
	}
}
