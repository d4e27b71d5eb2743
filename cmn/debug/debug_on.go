//go:build debug

/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
// Package debug provides assertions that compile to no-ops unless the
// `debug` build tag is set.
package debug

import (
	"fmt"
)

func ON() bool { return true }

func Assert(cond bool, a ...any) {
	if !cond {
		if len(a) == 0 {
			panic("assertion failed")
		}
		panic("assertion failed: " + fmt.Sprint(a...))
	}
}

func Assertf(cond bool, format string, a ...any) {
	if !cond {
		panic("assertion failed: " + fmt.Sprintf(format, a...))
	}
}

func AssertNoErr(err error) {
	if err != nil {
		panic("assertion failed: " + err.Error())
	}
}

func Func(f func()) { f() }
