//go:build windows

/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package tcp

import (
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/oracle/coherence-go-extend-client/cmn"
)

func dialControl(opts *cmn.TCPConf, log *logrus.Entry) func(network, address string, c syscall.RawConn) error {
	if !opts.ReuseAddress {
		return nil
	}
	return func(_, address string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			serr = syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
		})
		if err == nil {
			err = serr
		}
		if err != nil {
			log.WithError(err).Warnf("could not set reuse-address dialing %s", address)
		}
		return nil
	}
}
