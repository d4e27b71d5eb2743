/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
// Package wire implements the byte-level encoding of the extend peer
// protocol: packed variable-length integers, the frame envelope, and the
// Port32 composite port scheme.
package wire

import (
	"io"

	"github.com/pkg/errors"
)

// Packed integers use little-endian 7-bits-per-byte groups with a
// continuation bit (0x80). Bit 6 of the first byte carries the sign: a
// negative value is complemented once up front and its magnitude continues
// in the remaining groups.
const (
	MaxPackedInt32 = 5
	MaxPackedInt64 = 10
)

var (
	ErrIntOverflow = errors.New("packed int exceeds maximum encoded length")
)

// SizeInt32 returns the encoded length of v in bytes.
func SizeInt32(v int32) int {
	if v < 0 {
		v = ^v
	}
	n := 1
	for u := uint32(v) >> 6; u != 0; u >>= 7 {
		n++
	}
	return n
}

// AppendInt32 appends the packed encoding of v to b.
func AppendInt32(b []byte, v int32) []byte {
	var first byte
	if v < 0 {
		first = 0x40
		v = ^v
	}
	u := uint32(v)
	first |= byte(u & 0x3F)
	u >>= 6
	for u != 0 {
		b = append(b, first|0x80)
		first = byte(u & 0x7F)
		u >>= 7
	}
	return append(b, first)
}

// AppendInt64 appends the packed encoding of v to b.
func AppendInt64(b []byte, v int64) []byte {
	var first byte
	if v < 0 {
		first = 0x40
		v = ^v
	}
	u := uint64(v)
	first |= byte(u & 0x3F)
	u >>= 6
	for u != 0 {
		b = append(b, first|0x80)
		first = byte(u & 0x7F)
		u >>= 7
	}
	return append(b, first)
}

// ReadInt32 decodes one packed int32, reading at most MaxPackedInt32 bytes.
func ReadInt32(r io.ByteReader) (int32, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	u := uint32(b & 0x3F)
	neg := b&0x40 != 0
	shift := uint(6)
	for cnt := 1; b&0x80 != 0; cnt++ {
		if cnt >= MaxPackedInt32 {
			return 0, ErrIntOverflow
		}
		if b, err = r.ReadByte(); err != nil {
			return 0, err
		}
		u |= uint32(b&0x7F) << shift
		shift += 7
	}
	v := int32(u)
	if neg {
		v = ^v
	}
	return v, nil
}

// ReadInt64 decodes one packed int64, reading at most MaxPackedInt64 bytes.
func ReadInt64(r io.ByteReader) (int64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	u := uint64(b & 0x3F)
	neg := b&0x40 != 0
	shift := uint(6)
	for cnt := 1; b&0x80 != 0; cnt++ {
		if cnt >= MaxPackedInt64 {
			return 0, ErrIntOverflow
		}
		if b, err = r.ReadByte(); err != nil {
			return 0, err
		}
		u |= uint64(b&0x7F) << shift
		shift += 7
	}
	v := int64(u)
	if neg {
		v = ^v
	}
	return v, nil
}
