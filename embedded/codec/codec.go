/*
Copyright 2023 The CokeDB Authors. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package codec implements order-preserving encodings for use in keys:
//
//	bool:   0x00 for false, 0x01 for true.
//	bytes:  0x00 escaped as 0x00 0xff, terminated with 0x00 0x00.
//	string: like bytes.
//	uint64: big-endian binary representation.
//	int64:  big-endian with the sign bit flipped.
//	float64: big-endian; sign bit flipped if positive, all bits if negative.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnexpectedEndOfBytes = errors.New("unexpected end of bytes")
	ErrInvalidEncoding      = errors.New("invalid encoding")
)

func EncodeBool(b bool) byte {
	if b {
		return 0x01
	}
	return 0x00
}

func TakeBool(bs *[]byte) (bool, error) {
	b, err := TakeByte(bs)
	if err != nil {
		return false, err
	}
	switch b {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	}
	return false, fmt.Errorf("%w: invalid boolean value %x", ErrInvalidEncoding, b)
}

func TakeByte(bs *[]byte) (byte, error) {
	if len(*bs) == 0 {
		return 0, ErrUnexpectedEndOfBytes
	}
	b := (*bs)[0]
	*bs = (*bs)[1:]
	return b, nil
}

func EncodeBytes(src []byte) []byte {
	enc := make([]byte, 0, len(src)+2)
	for _, b := range src {
		if b == 0x00 {
			enc = append(enc, 0x00, 0xff)
		} else {
			enc = append(enc, b)
		}
	}
	return append(enc, 0x00, 0x00)
}

func TakeBytes(bs *[]byte) ([]byte, error) {
	dec := make([]byte, 0, len(*bs)/2)
	for i := 0; i < len(*bs); i++ {
		b := (*bs)[i]
		if b != 0x00 {
			dec = append(dec, b)
			continue
		}
		if i+1 >= len(*bs) {
			return nil, ErrUnexpectedEndOfBytes
		}
		switch (*bs)[i+1] {
		case 0x00:
			*bs = (*bs)[i+2:]
			return dec, nil
		case 0xff:
			dec = append(dec, 0x00)
			i++
		default:
			return nil, fmt.Errorf("%w: invalid byte escape %x", ErrInvalidEncoding, (*bs)[i+1])
		}
	}
	return nil, ErrUnexpectedEndOfBytes
}

func EncodeString(s string) []byte {
	return EncodeBytes([]byte(s))
}

func TakeString(bs *[]byte) (string, error) {
	b, err := TakeBytes(bs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func EncodeUint64(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}

func TakeUint64(bs *[]byte) (uint64, error) {
	if len(*bs) < 8 {
		return 0, ErrUnexpectedEndOfBytes
	}
	n := binary.BigEndian.Uint64((*bs)[:8])
	*bs = (*bs)[8:]
	return n, nil
}

func EncodeInt64(n int64) []byte {
	b := EncodeUint64(uint64(n))
	b[0] ^= 0x80
	return b
}

func TakeInt64(bs *[]byte) (int64, error) {
	if len(*bs) < 8 {
		return 0, ErrUnexpectedEndOfBytes
	}
	var b [8]byte
	copy(b[:], (*bs)[:8])
	b[0] ^= 0x80
	*bs = (*bs)[8:]
	return int64(binary.BigEndian.Uint64(b[:])), nil
}

func EncodeFloat64(f float64) []byte {
	b := EncodeUint64(math.Float64bits(f))
	if b[0]&0x80 == 0 {
		b[0] ^= 0x80
	} else {
		for i := range b {
			b[i] = ^b[i]
		}
	}
	return b
}

func TakeFloat64(bs *[]byte) (float64, error) {
	if len(*bs) < 8 {
		return 0, ErrUnexpectedEndOfBytes
	}
	var b [8]byte
	copy(b[:], (*bs)[:8])
	if b[0]&0x80 != 0 {
		b[0] ^= 0x80
	} else {
		for i := range b {
			b[i] = ^b[i]
		}
	}
	*bs = (*bs)[8:]
	return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
}
