package amf0

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
	"time"
)

// Encode returns the AMF0 representation of v.
// Supported types: float64 and the Go integer types (encoded as Number), bool, string, Object,
// map[string]interface{} (keys in sorted order), nil, Undefined, ECMAArray, StrictArray,
// TypedObject, XMLDocument, Unsupported and time.Time.
// Any other type yields an *UnsupportedTypeError and no bytes.
func Encode(v interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := encodeTo(buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeAll encodes each value in turn into one contiguous buffer, the way the
// arguments of a command message are laid out.
func EncodeAll(values ...interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	for _, v := range values {
		if err := encodeTo(buf, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeTo(buf *bytes.Buffer, v interface{}) error {
	switch v := v.(type) {
	case float64:
		encodeNumber(buf, v)
	case float32:
		encodeNumber(buf, float64(v))
	case int:
		encodeNumber(buf, float64(v))
	case int32:
		encodeNumber(buf, float64(v))
	case int64:
		encodeNumber(buf, float64(v))
	case uint8:
		encodeNumber(buf, float64(v))
	case uint16:
		encodeNumber(buf, float64(v))
	case uint32:
		encodeNumber(buf, float64(v))
	case bool:
		encodeBoolean(buf, v)
	case string:
		encodeString(buf, v)
	case Object:
		buf.WriteByte(TypeObject)
		return encodeProperties(buf, v)
	case map[string]interface{}:
		buf.WriteByte(TypeObject)
		return encodeProperties(buf, sortedProperties(v))
	case ECMAArray:
		var count [4]byte
		binary.BigEndian.PutUint32(count[:], uint32(len(v)))
		buf.WriteByte(TypeECMAArray)
		buf.Write(count[:])
		return encodeProperties(buf, Object(v))
	case StrictArray:
		var count [4]byte
		binary.BigEndian.PutUint32(count[:], uint32(len(v)))
		buf.WriteByte(TypeStrictArray)
		buf.Write(count[:])
		for _, elem := range v {
			if err := encodeTo(buf, elem); err != nil {
				return err
			}
		}
	case TypedObject:
		buf.WriteByte(TypeTypedObject)
		writeKey(buf, v.ClassName)
		return encodeProperties(buf, v.Object)
	case XMLDocument:
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(v)))
		buf.WriteByte(TypeXMLDocument)
		buf.Write(length[:])
		buf.WriteString(string(v))
	case nil:
		buf.WriteByte(TypeNull)
	case Undefined:
		buf.WriteByte(TypeUndefined)
	case Unsupported:
		buf.WriteByte(TypeUnsupported)
	case time.Time:
		encodeDate(buf, v)
	default:
		return &UnsupportedTypeError{Value: v}
	}
	return nil
}

func sortedProperties(m map[string]interface{}) Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	obj := make(Object, 0, len(keys))
	for _, k := range keys {
		obj = append(obj, Property{Key: k, Value: m[k]})
	}
	return obj
}

// encodeProperties writes the body shared by objects, ECMA arrays and typed
// objects: key/value pairs followed by the end of object marker.
func encodeProperties(buf *bytes.Buffer, obj Object) error {
	for _, p := range obj {
		// keys never carry the TypeString marker
		writeKey(buf, p.Key)
		if err := encodeTo(buf, p.Value); err != nil {
			return err
		}
	}
	buf.Write(encodeObjectEnd())
	return nil
}

func writeKey(buf *bytes.Buffer, key string) {
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(key)))
	buf.Write(length[:])
	buf.WriteString(key)
}

func encodeObjectEnd() []byte {
	return []byte{0x00, 0x00, TypeObjectEnd}
}

func encodeDate(buf *bytes.Buffer, t time.Time) {
	var date [10]byte
	milliseconds := float64(t.UnixNano() / int64(time.Millisecond))
	binary.BigEndian.PutUint64(date[:8], math.Float64bits(milliseconds))
	// Last 2 bytes are the time zone, which must stay 0
	buf.WriteByte(TypeDate)
	buf.Write(date[:])
}

func encodeString(buf *bytes.Buffer, s string) {
	if len(s) <= math.MaxUint16 {
		// marker, 2 bytes of length, content
		var length [2]byte
		binary.BigEndian.PutUint16(length[:], uint16(len(s)))
		buf.WriteByte(TypeString)
		buf.Write(length[:])
	} else {
		// Strings that don't fit a 16-bit length use TypeLongString: marker, 4 bytes of length, content
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(s)))
		buf.WriteByte(TypeLongString)
		buf.Write(length[:])
	}
	buf.WriteString(s)
}

func encodeBoolean(buf *bytes.Buffer, b bool) {
	buf.WriteByte(TypeBoolean)
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func encodeNumber(buf *bytes.Buffer, number float64) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], math.Float64bits(number))
	buf.WriteByte(TypeNumber)
	buf.Write(n[:])
}
