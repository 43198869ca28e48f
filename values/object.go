// Package values defines the runtime value model: JSON-shaped data with
// insertion-ordered objects, plus the conversions and predicates the
// renderer needs.
package values

import (
	"bytes"
	"encoding/json"
)

// An Object is a string-keyed map that remembers insertion order. Render
// output that iterates an object (each, json) observes the order keys
// were first set.
type Object struct {
	keys []string
	m    map[string]interface{}
}

// NewObject creates an empty object.
func NewObject() *Object {
	return &Object{m: map[string]interface{}{}}
}

// Set stores key. A new key is appended to the iteration order; an
// existing key keeps its position.
func (o *Object) Set(key string, value interface{}) *Object {
	if _, ok := o.m[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.m[key] = value
	return o
}

// Get returns the value for key.
func (o *Object) Get(key string) (interface{}, bool) {
	v, ok := o.m[key]
	return v, ok
}

// Keys returns the keys in insertion order. The slice is shared; callers
// must not mutate it.
func (o *Object) Keys() []string { return o.keys }

// Len returns the number of keys.
func (o *Object) Len() int { return len(o.keys) }

// Clone returns a shallow copy preserving order.
func (o *Object) Clone() *Object {
	c := &Object{keys: append([]string(nil), o.keys...), m: make(map[string]interface{}, len(o.m))}
	for k, v := range o.m {
		c.m[k] = v
	}
	return c
}

// MarshalJSON writes the object with keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.m[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
