package model

import (
	"encoding/binary"
	"fmt"
	"io"
)

// VarintSize returns the number of bytes WriteVarint would emit for n.
func VarintSize(n uint64) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// WriteVarint appends the compact-size encoding of n to buf.
func WriteVarint(buf []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(buf, byte(n))
	case n <= 0xffff:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(n))
		return append(append(buf, 0xfd), b...)
	case n <= 0xffffffff:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(n))
		return append(append(buf, 0xfe), b...)
	default:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, n)
		return append(append(buf, 0xff), b...)
	}
}

// ReadVarint decodes a compact-size integer from the front of buf, returning
// the value and the number of bytes consumed.
func ReadVarint(buf []byte) (uint64, int, error) {
	if len(buf) < 1 {
		return 0, 0, io.ErrUnexpectedEOF
	}

	switch buf[0] {
	case 0xfd:
		if len(buf) < 3 {
			return 0, 0, io.ErrUnexpectedEOF
		}
		return uint64(binary.LittleEndian.Uint16(buf[1:3])), 3, nil
	case 0xfe:
		if len(buf) < 5 {
			return 0, 0, io.ErrUnexpectedEOF
		}
		return uint64(binary.LittleEndian.Uint32(buf[1:5])), 5, nil
	case 0xff:
		if len(buf) < 9 {
			return 0, 0, io.ErrUnexpectedEOF
		}
		return binary.LittleEndian.Uint64(buf[1:9]), 9, nil
	default:
		return uint64(buf[0]), 1, nil
	}
}

func readBytes(buf []byte, n int, what string) ([]byte, []byte, error) {
	if len(buf) < n {
		return nil, nil, fmt.Errorf("reading %s: need %d bytes, have %d", what, n, len(buf))
	}
	return buf[:n], buf[n:], nil
}
