package amf0

import (
	"encoding/binary"
	"math"
	"time"
)

// Decode returns the first value encoded in b and the number of bytes it spans.
// Possible return types: float64, bool, string, Object, nil, Undefined, ECMAArray, StrictArray,
// TypedObject, Reference, XMLDocument, Unsupported, time.Time and ObjectEnd.
// If the contents of b represent a Number (either int or float), it will be returned as a float64.
// Markers without a decoding (movie clip, record set, AMF3 switch) and truncated input return a
// *DecodeError.
func Decode(b []byte) (interface{}, int, error) {
	d := &decoder{b: b}
	v, err := d.value()
	return v, d.off, err
}

// DecodeLenient is Decode, except that a property value with an unknown marker
// inside an object body is skipped instead of failing the whole object. The
// marker byte is dropped, onSkip is called with its offset, and decoding resumes
// at the next key. Errors outside object bodies are returned as in Decode.
func DecodeLenient(b []byte, onSkip func(offset int, marker byte)) (interface{}, int, error) {
	if onSkip == nil {
		onSkip = func(int, byte) {}
	}
	d := &decoder{b: b, onSkip: onSkip}
	v, err := d.value()
	return v, d.off, err
}

// DecodeAll decodes consecutive values until b is exhausted.
func DecodeAll(b []byte) ([]interface{}, error) {
	d := &decoder{b: b}
	var values []interface{}
	for d.off < len(d.b) {
		v, err := d.value()
		if err != nil {
			return values, err
		}
		values = append(values, v)
	}
	return values, nil
}

const reasonUnsupported = "unsupported type"

type decoder struct {
	b   []byte
	off int
	// onSkip is set in lenient mode only
	onSkip func(offset int, marker byte)
}

func (d *decoder) fail(marker byte, reason string) *DecodeError {
	return &DecodeError{Offset: d.off, Marker: marker, Reason: reason}
}

func (d *decoder) need(marker byte, n int) error {
	if len(d.b)-d.off < n {
		return d.fail(marker, "short buffer")
	}
	return nil
}

func (d *decoder) value() (interface{}, error) {
	if err := d.need(0, 1); err != nil {
		return nil, err
	}
	marker := d.b[d.off]
	start := d.off
	d.off++
	switch marker {
	case TypeNumber:
		return d.number(marker)
	case TypeBoolean:
		if err := d.need(marker, 1); err != nil {
			return nil, err
		}
		b := d.b[d.off] != 0
		d.off++
		return b, nil
	case TypeString:
		return d.shortString(marker)
	case TypeLongString:
		return d.longString(marker)
	case TypeXMLDocument:
		s, err := d.longString(marker)
		return XMLDocument(s), err
	case TypeObject:
		return d.properties(marker)
	case TypeNull:
		return nil, nil
	case TypeObjectEnd:
		// a bare terminator outside of an object body
		return ObjectEnd{}, nil
	case TypeUndefined:
		return Undefined{}, nil
	case TypeUnsupported:
		return Unsupported{}, nil
	case TypeReference:
		if err := d.need(marker, 2); err != nil {
			return nil, err
		}
		ref := Reference(binary.BigEndian.Uint16(d.b[d.off:]))
		d.off += 2
		return ref, nil
	case TypeECMAArray:
		// The associative count is advisory, the end marker terminates the array
		if err := d.need(marker, 4); err != nil {
			return nil, err
		}
		d.off += 4
		obj, err := d.properties(marker)
		return ECMAArray(obj), err
	case TypeStrictArray:
		return d.strictArray(marker)
	case TypeDate:
		if err := d.need(marker, 10); err != nil {
			return nil, err
		}
		milliseconds := math.Float64frombits(binary.BigEndian.Uint64(d.b[d.off:]))
		d.off += 10
		return time.Unix(0, int64(milliseconds)*int64(time.Millisecond)), nil
	case TypeTypedObject:
		className, err := d.key(marker)
		if err != nil {
			return nil, err
		}
		obj, err := d.properties(marker)
		return TypedObject{ClassName: className, Object: obj}, err
	default:
		d.off = start
		return nil, d.fail(marker, reasonUnsupported)
	}
}

func (d *decoder) number(marker byte) (float64, error) {
	if err := d.need(marker, 8); err != nil {
		return 0, err
	}
	f := math.Float64frombits(binary.BigEndian.Uint64(d.b[d.off:]))
	d.off += 8
	return f, nil
}

func (d *decoder) shortString(marker byte) (string, error) {
	return d.key(marker)
}

// key reads a string without a type marker, as used for object keys.
func (d *decoder) key(marker byte) (string, error) {
	if err := d.need(marker, 2); err != nil {
		return "", err
	}
	length := int(binary.BigEndian.Uint16(d.b[d.off:]))
	d.off += 2
	if err := d.need(marker, length); err != nil {
		return "", err
	}
	s := string(d.b[d.off : d.off+length])
	d.off += length
	return s, nil
}

func (d *decoder) longString(marker byte) (string, error) {
	if err := d.need(marker, 4); err != nil {
		return "", err
	}
	length := int(binary.BigEndian.Uint32(d.b[d.off:]))
	d.off += 4
	if err := d.need(marker, length); err != nil {
		return "", err
	}
	s := string(d.b[d.off : d.off+length])
	d.off += length
	return s, nil
}

// properties decodes key/value pairs until an empty key followed by the end
// of object marker.
func (d *decoder) properties(marker byte) (Object, error) {
	obj := Object{}
	for {
		if err := d.need(marker, 3); err != nil {
			return obj, err
		}
		if isEndOfObject(d.b[d.off:]) {
			d.off += 3
			return obj, nil
		}
		key, err := d.key(marker)
		if err != nil {
			return obj, err
		}
		val, err := d.value()
		if err != nil {
			if d.skippable(err) {
				d.onSkip(d.off, d.b[d.off])
				d.off++
				continue
			}
			return obj, err
		}
		if _, end := val.(ObjectEnd); end {
			return obj, d.fail(marker, "end of object in value position")
		}
		obj = append(obj, Property{Key: key, Value: val})
	}
}

// skippable reports whether err is an unknown marker at the current offset
// that lenient mode may step over.
func (d *decoder) skippable(err error) bool {
	if d.onSkip == nil {
		return false
	}
	de, ok := err.(*DecodeError)
	return ok && de.Reason == reasonUnsupported && de.Offset == d.off
}

func (d *decoder) strictArray(marker byte) (StrictArray, error) {
	if err := d.need(marker, 4); err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint32(d.b[d.off:])
	d.off += 4
	arr := make(StrictArray, 0)
	for i := uint32(0); i < count; i++ {
		v, err := d.value()
		if err != nil {
			return arr, err
		}
		arr = append(arr, v)
	}
	return arr, nil
}

func isEndOfObject(b []byte) bool {
	return len(b) >= 3 && b[0] == 0x00 && b[1] == 0x00 && b[2] == TypeObjectEnd
}
