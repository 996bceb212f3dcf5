package wasm

import (
	"bytes"
	"errors"
)

const (
	continuationBit = 0x80
	payloadMask     = 0x7f
	signBit         = 0x40
)

var errLebOverlong = errors.New("wasm: integer representation too long")

func writeUleb128(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & payloadMask)
		v >>= 7
		if v != 0 {
			b |= continuationBit
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

func writeSleb128(buf *bytes.Buffer, v int64) {
	for {
		b := byte(v & payloadMask)
		v >>= 7
		if (v == 0 && b&signBit == 0) || (v == -1 && b&signBit != 0) {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | continuationBit)
	}
}

type byteReader struct {
	data []byte
	pos  int
}

var errUnexpectedEOF = errors.New("wasm: unexpected end of module")

func (r *byteReader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errUnexpectedEOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) readBytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, errUnexpectedEOF
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) readUleb128(maxBytes int) (uint64, error) {
	var result uint64
	var shift uint
	for i := 0; ; i++ {
		if i >= maxBytes {
			return 0, errLebOverlong
		}
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&payloadMask) << shift
		if b&continuationBit == 0 {
			return result, nil
		}
		shift += 7
	}
}

func (r *byteReader) readSleb128(maxBytes int) (int64, error) {
	var result int64
	var shift uint
	var b byte
	for i := 0; ; i++ {
		if i >= maxBytes {
			return 0, errLebOverlong
		}
		var err error
		b, err = r.readByte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&payloadMask) << shift
		shift += 7
		if b&continuationBit == 0 {
			break
		}
	}
	if shift < 64 && b&signBit != 0 {
		result |= -1 << shift
	}
	return result, nil
}
