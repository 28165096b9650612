package codec

import (
	"encoding/binary"
	"math"
	"slices"
)

var (
	String Codec[string]   = stringCodec{}
	Int16  Codec[int16]    = int16Codec{}
	Int32  Codec[int32]    = int32Codec{}
	Int64  Codec[int64]    = int64Codec{}
	Int    Codec[int]      = intCodec{}
	Uint64 Codec[uint64]   = uint64Codec{}
	Bytes  Codec[[]byte]   = bytesCodec{}
	Unit   Codec[struct{}] = unitCodec{}
)

type stringCodec struct{}

func (stringCodec) Encode(v string) ([]byte, error) { return []byte(v), nil }

func (stringCodec) Decode(data []byte) (string, error) { return string(data), nil }

func checkWidth(data []byte, n int, what string) error {
	if len(data) != n {
		return dataErrf(data, 0, nil, "%s: want %d bytes, got %d", what, n, len(data))
	}
	return nil
}

type int16Codec struct{}

func (int16Codec) Encode(v int16) ([]byte, error) {
	return binary.BigEndian.AppendUint16(make([]byte, 0, 2), uint16(v)), nil
}

func (int16Codec) Decode(data []byte) (int16, error) {
	if err := checkWidth(data, 2, "int16"); err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(data)), nil
}

type int32Codec struct{}

func (int32Codec) Encode(v int32) ([]byte, error) {
	return binary.BigEndian.AppendUint32(make([]byte, 0, 4), uint32(v)), nil
}

func (int32Codec) Decode(data []byte) (int32, error) {
	if err := checkWidth(data, 4, "int32"); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(data)), nil
}

type int64Codec struct{}

func (int64Codec) Encode(v int64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), uint64(v)), nil
}

func (int64Codec) Decode(data []byte) (int64, error) {
	if err := checkWidth(data, 8, "int64"); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}

// intCodec stores int as 64 bits regardless of platform.
type intCodec struct{}

func (intCodec) Encode(v int) ([]byte, error) {
	return Int64.Encode(int64(v))
}

func (intCodec) Decode(data []byte) (int, error) {
	v, err := Int64.Decode(data)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt || v < math.MinInt {
		return 0, dataErrf(data, 0, nil, "value does not fit into int: %d", v)
	}
	return int(v), nil
}

type uint64Codec struct{}

func (uint64Codec) Encode(v uint64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), v), nil
}

func (uint64Codec) Decode(data []byte) (uint64, error) {
	if err := checkWidth(data, 8, "uint64"); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(data), nil
}

type bytesCodec struct{}

// Encode copies so the caller may reuse v.
func (bytesCodec) Encode(v []byte) ([]byte, error) {
	if v == nil {
		return []byte{}, nil
	}
	return slices.Clone(v), nil
}

func (bytesCodec) Decode(data []byte) ([]byte, error) {
	if data == nil {
		return []byte{}, nil
	}
	return slices.Clone(data), nil
}

// unitCodec is the value codec of set-backing maps. The stored value is
// empty; presence of the key is the only information.
type unitCodec struct{}

func (unitCodec) Encode(struct{}) ([]byte, error) { return []byte{}, nil }

func (unitCodec) Decode(data []byte) (struct{}, error) {
	if len(data) != 0 {
		return struct{}{}, dataErrf(data, 0, nil, "unit: want empty value")
	}
	return struct{}{}, nil
}
