/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package wire

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

type (
	// Writer encodes primitive values onto an io.Writer in packed form.
	Writer struct {
		w   io.Writer
		buf []byte
	}

	// Reader decodes primitive values from an io.Reader.
	Reader struct {
		br io.ByteReader
		r  io.Reader
	}
)

var errNegativeLength = errors.New("negative length")

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, buf: make([]byte, 0, MaxPackedInt64)}
}

func (w *Writer) Int32(v int32) error {
	w.buf = AppendInt32(w.buf[:0], v)
	_, err := w.w.Write(w.buf)
	return err
}

func (w *Writer) Int64(v int64) error {
	w.buf = AppendInt64(w.buf[:0], v)
	_, err := w.w.Write(w.buf)
	return err
}

func (w *Writer) Bool(v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	_, err := w.w.Write([]byte{b})
	return err
}

// String writes a packed byte length followed by the UTF-8 bytes.
func (w *Writer) String(s string) error {
	if err := w.Int32(int32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w.w, s)
	return err
}

// Bytes writes a packed length followed by the raw bytes; nil encodes as
// length -1.
func (w *Writer) Bytes(b []byte) error {
	if b == nil {
		return w.Int32(-1)
	}
	if err := w.Int32(int32(len(b))); err != nil {
		return err
	}
	_, err := w.w.Write(b)
	return err
}

func NewReader(r io.Reader) *Reader {
	br, ok := r.(io.ByteReader)
	if !ok {
		buffered := bufio.NewReader(r)
		return &Reader{br: buffered, r: buffered}
	}
	return &Reader{br: br, r: r}
}

// Raw exposes the underlying reader so callers can hand the remaining bytes
// to another decoder without losing buffered data.
func (r *Reader) Raw() io.Reader { return r.r }

func (r *Reader) Int32() (int32, error) { return ReadInt32(r.br) }
func (r *Reader) Int64() (int64, error) { return ReadInt64(r.br) }

func (r *Reader) Bool() (bool, error) {
	b, err := r.br.ReadByte()
	return b != 0, err
}

func (r *Reader) String() (string, error) {
	b, err := r.Bytes()
	return string(b), err
}

func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Int32()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	if n < 0 {
		return nil, errNegativeLength
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, err
	}
	return b, nil
}
