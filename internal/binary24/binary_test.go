package binary24

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBigEndian(t *testing.T) {
	tests := []struct {
		name  string
		value uint32
		bytes []byte
	}{
		{"zero", 0, []byte{0, 0, 0}},
		{"small", 0x0102, []byte{0x00, 0x01, 0x02}},
		{"max", 0xFFFFFF, []byte{0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := make([]byte, 3)
			BigEndian.PutUint24(b, tt.value)
			assert.Equal(t, tt.bytes, b)
			assert.Equal(t, tt.value, BigEndian.Uint24(tt.bytes))
		})
	}
}

func TestPutUint24Truncates(t *testing.T) {
	b := make([]byte, 3)
	BigEndian.PutUint24(b, 0x01020304)
	assert.Equal(t, []byte{0x02, 0x03, 0x04}, b)
}
