/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
// Package serial defines the pluggable payload serializer contract and a
// small built-in binary serializer used for control payloads and identity
// tokens. Cache-level codecs (POF and the like) plug in behind the same
// interface.
package serial

import (
	"io"

	"github.com/pkg/errors"

	"github.com/oracle/coherence-go-extend-client/wire"
)

// Serializer converts values to and from their wire representation. One
// serializer is bound per channel; channel 0 uses the serializer configured
// on the peer.
type Serializer interface {
	Serialize(w io.Writer, v any) error
	Deserialize(r io.Reader) (any, error)
}

// value tags of the built-in serializer
const (
	tagNil = iota
	tagBool
	tagInt32
	tagInt64
	tagString
	tagBinary
	tagSlice
	tagMap
)

// Binary is the built-in serializer: a tagged, packed-int-based encoding of
// nil, bool, int32, int64, string, []byte, []any and map[string]any.
type Binary struct{}

var _ Serializer = Binary{}

func (bs Binary) Serialize(w io.Writer, v any) error {
	ww := wire.NewWriter(w)
	return bs.write(ww, w, v)
}

func (bs Binary) write(ww *wire.Writer, w io.Writer, v any) error {
	switch x := v.(type) {
	case nil:
		return ww.Int32(tagNil)
	case bool:
		if err := ww.Int32(tagBool); err != nil {
			return err
		}
		return ww.Bool(x)
	case int32:
		if err := ww.Int32(tagInt32); err != nil {
			return err
		}
		return ww.Int32(x)
	case int:
		if err := ww.Int32(tagInt64); err != nil {
			return err
		}
		return ww.Int64(int64(x))
	case int64:
		if err := ww.Int32(tagInt64); err != nil {
			return err
		}
		return ww.Int64(x)
	case string:
		if err := ww.Int32(tagString); err != nil {
			return err
		}
		return ww.String(x)
	case []byte:
		if err := ww.Int32(tagBinary); err != nil {
			return err
		}
		return ww.Bytes(x)
	case []any:
		if err := ww.Int32(tagSlice); err != nil {
			return err
		}
		if err := ww.Int32(int32(len(x))); err != nil {
			return err
		}
		for _, el := range x {
			if err := bs.write(ww, w, el); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		if err := ww.Int32(tagMap); err != nil {
			return err
		}
		if err := ww.Int32(int32(len(x))); err != nil {
			return err
		}
		for k, el := range x {
			if err := ww.String(k); err != nil {
				return err
			}
			if err := bs.write(ww, w, el); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Errorf("binary serializer: unsupported type %T", v)
	}
}

func (bs Binary) Deserialize(r io.Reader) (any, error) {
	return bs.read(wire.NewReader(r))
}

func (bs Binary) read(rr *wire.Reader) (any, error) {
	tag, err := rr.Int32()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagNil:
		return nil, nil
	case tagBool:
		return rr.Bool()
	case tagInt32:
		return rr.Int32()
	case tagInt64:
		return rr.Int64()
	case tagString:
		return rr.String()
	case tagBinary:
		return rr.Bytes()
	case tagSlice:
		n, err := rr.Int32()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, errors.Errorf("binary serializer: negative slice length %d", n)
		}
		sl := make([]any, n)
		for i := range sl {
			if sl[i], err = bs.read(rr); err != nil {
				return nil, err
			}
		}
		return sl, nil
	case tagMap:
		n, err := rr.Int32()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, errors.Errorf("binary serializer: negative map length %d", n)
		}
		m := make(map[string]any, n)
		for i := int32(0); i < n; i++ {
			k, err := rr.String()
			if err != nil {
				return nil, err
			}
			if m[k], err = bs.read(rr); err != nil {
				return nil, err
			}
		}
		return m, nil
	default:
		return nil, errors.Errorf("binary serializer: unknown tag %d", tag)
	}
}
