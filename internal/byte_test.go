package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHexConversion(t *testing.T) {
	testCases := []struct {
		name     string
		original string
		hex      string
	}{
		{
			name:     "Simple String",
			original: "hello",
			hex:      "68656c6c6f",
		},
		{
			name:     "String with Numbers",
			original: "12345",
			hex:      "3132333435",
		},
		{
			name:     "Empty String",
			original: "",
			hex:      "",
		},
		{
			name:     "String with Non-printable chars",
			original: string([]byte{0x00, 0x01, 0xDE, 0xAD, 0xBE, 0xEF}),
			hex:      "0001deadbeef",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Test StringToHex
			assert.Equal(t, tc.hex, StringToHex(tc.original))

			// Test HexToString
			converted, err := HexToString(tc.hex)
			assert.NoError(t, err)
			assert.Equal(t, tc.original, converted)
		})
	}

	_, err := HexToString("not hex")
	assert.Error(t, err)
}

func TestUInt64Conversion(t *testing.T) {
	for _, v := range []uint64{0, 1, 1024, 1<<32 + 7, ^uint64(0)} {
		b := UInt64ToBytesLittleEndian(v)
		assert.Equal(t, v, BytesToUInt64LittleEndian(b))
	}
}

func TestStringSerialization(t *testing.T) {
	type payload struct {
		Name string
		ID   uint64
	}
	original := payload{Name: "chunk", ID: 42}

	s, err := SerializeToString(original)
	assert.NoError(t, err)

	var decoded payload
	err = DeserializeFromString(s, &decoded)
	assert.NoError(t, err)
	assert.Equal(t, original, decoded)

	err = DeserializeFromString("garbage", &decoded)
	assert.Error(t, err)
}
