// Package amf0 implements the Action Message Format version 0 used by RTMP
// for remote procedure calls and stream metadata.
package amf0

import (
	"fmt"
)

// Property is a single key/value pair of an Object or ECMAArray. Order is
// preserved on the wire.
type Property struct {
	Key   string
	Value interface{}
}

// Object is an anonymous AMF0 object. Unlike a map it keeps the property order
// it was built or decoded with.
type Object []Property

// ECMAArray is an associative ("mixed") array. It encodes like an Object with a
// leading associative count.
type ECMAArray []Property

// StrictArray is an ordinal array of values.
type StrictArray []interface{}

// TypedObject is an object tagged with a registered class name.
type TypedObject struct {
	ClassName string
	Object    Object
}

// Reference points at a previously decoded complex value by index.
type Reference uint16

// XMLDocument holds the textual form of an XML document value.
type XMLDocument string

type Undefined struct{}
type Unsupported struct{}
type ObjectEnd struct{}

const (
	TypeNumber      byte = 0x00
	TypeBoolean     byte = 0x01
	TypeString      byte = 0x02
	TypeObject      byte = 0x03
	TypeMovieClip   byte = 0x04 // reserved, not supported
	TypeNull        byte = 0x05
	TypeUndefined   byte = 0x06
	TypeReference   byte = 0x07
	TypeECMAArray   byte = 0x08
	TypeObjectEnd   byte = 0x09
	TypeStrictArray byte = 0x0A
	TypeDate        byte = 0x0B
	TypeLongString  byte = 0x0C
	TypeUnsupported byte = 0x0D
	TypeRecordSet   byte = 0x0E // reserved, not supported
	TypeXMLDocument byte = 0x0F
	TypeTypedObject byte = 0x10
	TypeAVMPlus     byte = 0x11 // switch to AMF3, not supported
)

// Get returns the value stored under key.
func (o Object) Get(key string) (interface{}, bool) {
	for _, p := range o {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// GetString returns the value stored under key if it is a string.
func (o Object) GetString(key string) (string, bool) {
	v, ok := o.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetNumber returns the value stored under key if it is a number.
func (o Object) GetNumber(key string) (float64, bool) {
	v, ok := o.Get(key)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Get returns the value stored under key.
func (a ECMAArray) Get(key string) (interface{}, bool) {
	return Object(a).Get(key)
}

// DecodeError reports a value that could not be decoded at Offset.
type DecodeError struct {
	Offset int
	Marker byte
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("amf0: cannot decode marker 0x%02x at offset %d: %s", e.Marker, e.Offset, e.Reason)
}

// UnsupportedTypeError is returned by Encode for Go values that have no AMF0
// representation.
type UnsupportedTypeError struct {
	Value interface{}
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("amf0: cannot encode type %T", e.Value)
}
