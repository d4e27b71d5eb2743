/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
// Package tcp provides the TCP/TLS transport and the client-role initiator:
// address providers, timeout-bounded dialing with socket-option tuning, the
// subport handshake, and redirect-aware connection establishment.
package tcp

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oracle/coherence-go-extend-client/cmn"
)

// The subport handshake is written immediately after connect, before any
// framed message: two big-endian 32-bit words, the multiplexed-socket
// protocol identifier followed by the subport number.
const handshakeProtocolID uint32 = 0x0005AC1E

// WriteSubport emits the 8-byte subport handshake; a subport of -1 selects
// no multiplexed service and writes nothing.
func WriteSubport(w io.Writer, subport int32) error {
	if subport == -1 {
		return nil
	}
	var b [8]byte
	binary.BigEndian.PutUint32(b[:4], handshakeProtocolID)
	binary.BigEndian.PutUint32(b[4:], uint32(subport))
	_, err := w.Write(b[:])
	return err
}

// Dial opens a stream to addr with the configured socket options, wraps it
// in TLS when tlsConf is non-nil, and writes the subport handshake. Option
// failures are warnings; connect and handshake failures are errors.
func Dial(ctx context.Context, addr string, cfg *cmn.Config, tlsConf *tls.Config,
	subport int32, log *logrus.Entry) (net.Conn, error) {
	d := net.Dialer{
		Timeout: cfg.ConnectTimeout.D(), // zero means no timeout
		Control: dialControl(&cfg.TCP, log),
	}
	if la := cfg.TCP.LocalAddress; la != "" {
		local, err := net.ResolveTCPAddr("tcp", la)
		if err != nil {
			return nil, cmn.NewErrConnectionCause(err, "invalid local address %q", la)
		}
		d.LocalAddr = local
	}

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, cmn.NewErrConnectionCause(err, "could not connect to %s", addr)
	}
	tuneConn(conn, &cfg.TCP, log)

	if tlsConf != nil {
		tconn := tls.Client(conn, tlsConf)
		if timeout := cfg.ConnectTimeout.D(); timeout > 0 {
			_ = tconn.SetDeadline(time.Now().Add(timeout))
		}
		if err := tconn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, cmn.NewErrConnectionCause(err, "TLS handshake with %s failed", addr)
		}
		_ = tconn.SetDeadline(time.Time{})
		conn = tconn
	}

	if err := WriteSubport(conn, subport); err != nil {
		_ = conn.Close()
		return nil, cmn.NewErrConnectionCause(err, "subport handshake with %s failed", addr)
	}
	return conn, nil
}

// tuneConn applies the configured socket options to the raw TCP connection;
// failures to set options are logged, never fatal.
func tuneConn(conn net.Conn, opts *cmn.TCPConf, log *logrus.Entry) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	warn := func(opt string, err error) {
		if err != nil {
			log.WithError(err).Warnf("could not set %s on %s", opt, conn.RemoteAddr())
		}
	}
	warn("no-delay", tc.SetNoDelay(!opts.DelayEnabled))
	warn("keep-alive", tc.SetKeepAlive(!opts.KeepAliveOff))
	if opts.RecvBufferSize > 0 {
		warn("receive-buffer-size", tc.SetReadBuffer(opts.RecvBufferSize))
	}
	if opts.SendBufferSize > 0 {
		warn("send-buffer-size", tc.SetWriteBuffer(opts.SendBufferSize))
	}
	if opts.LingerTimeout > 0 {
		warn("linger-timeout", tc.SetLinger(int(opts.LingerTimeout.D().Seconds())))
	}
}
