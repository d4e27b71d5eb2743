/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package filters

import (
	"io"

	"github.com/pierrec/lz4/v3"
)

// LZ4 is the built-in compression filter, registered under the name "lz4".
type LZ4 struct{}

func init() { MustRegister(LZ4{}) }

func (LZ4) Name() string { return "lz4" }

func (LZ4) WrapWriter(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

func (LZ4) WrapReader(r io.Reader) (io.Reader, error) {
	return lz4.NewReader(r), nil
}
