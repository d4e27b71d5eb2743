/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
// Package filters provides named wire filters: stream wrappers applied in a
// configured order around the message codec (compression and the like).
package filters

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

type (
	// Filter wraps both directions of the codec byte stream. A writer
	// returned by WrapWriter must flush everything on Close without closing
	// the underlying stream; pipelines shield the base stream regardless.
	Filter interface {
		Name() string
		WrapWriter(w io.Writer) (io.WriteCloser, error)
		WrapReader(r io.Reader) (io.Reader, error)
	}

	pipeWriter struct {
		io.Writer
		closers []io.Closer
	}
)

var (
	mu       sync.RWMutex
	registry = make(map[string]Filter, 4)
)

func Register(f Filter) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[f.Name()]; ok {
		return errors.Errorf("filter %q already registered", f.Name())
	}
	registry[f.Name()] = f
	return nil
}

func MustRegister(f Filter) {
	if err := Register(f); err != nil {
		panic(err)
	}
}

func Lookup(name string) (Filter, error) {
	mu.RLock()
	f, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown filter %q", name)
	}
	return f, nil
}

// Resolve maps configured filter names to filters, preserving order.
func Resolve(names []string) ([]Filter, error) {
	if len(names) == 0 {
		return nil, nil
	}
	fs := make([]Filter, 0, len(names))
	for _, name := range names {
		f, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		fs = append(fs, f)
	}
	return fs, nil
}

// WrapWriter builds the write-side pipeline over base: the first filter in
// the list is outermost, so bytes pass through the filters in list order
// before reaching base. Closing the result flushes every layer; base itself
// is shielded and never closed.
func WrapWriter(base io.Writer, fs []Filter) (io.WriteCloser, error) {
	w := Shield(base)
	pw := &pipeWriter{}
	for i := len(fs) - 1; i >= 0; i-- {
		wc, err := fs[i].WrapWriter(w)
		if err != nil {
			return nil, err
		}
		pw.closers = append(pw.closers, wc)
		w = wc
	}
	pw.Writer = w
	return pw, nil
}

// Close flushes outermost-first.
func (pw *pipeWriter) Close() (err error) {
	for i := len(pw.closers) - 1; i >= 0; i-- {
		if cerr := pw.closers[i].Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return
}

// WrapReader is the symmetric inverse of WrapWriter: the first filter in the
// list is applied last on read.
func WrapReader(base io.Reader, fs []Filter) (io.Reader, error) {
	r := ShieldReader(base)
	for i := len(fs) - 1; i >= 0; i-- {
		var err error
		if r, err = fs[i].WrapReader(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Shield hides any Close/ReadFrom the base writer may expose.
func Shield(w io.Writer) io.Writer { return struct{ io.Writer }{w} }

// ShieldReader hides any Close/WriteTo the base reader may expose.
func ShieldReader(r io.Reader) io.Reader { return struct{ io.Reader }{r} }
