/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package tcp

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oracle/coherence-go-extend-client/wire"
)

// Control-protocol type ids as they appear on the wire; the proxy encodes
// frames by hand so these tests pin the format independently of the client
// implementation.
const (
	wireOpenConnectionRequest  int32 = -2
	wireOpenConnectionResponse int32 = -3
	wirePingRequest            int32 = -8
	wirePingResponse           int32 = -9
	wireNotifyConnectionClosed int32 = -14
)

type redirectTarget struct {
	host   string
	port32 int32
}

// fakeProxy is a one-connection-at-a-time scripted cluster endpoint.
type fakeProxy struct {
	t          *testing.T
	ln         net.Listener
	subport    int32 // expected in the handshake; -1 means none
	redirects  []redirectTarget
	handshakes atomic.Int64
	opens      atomic.Int64
	closes     atomic.Int64
	done       chan struct{}
}

func newFakeProxy(t *testing.T, subport int32, redirects []redirectTarget) *fakeProxy {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	fp := &fakeProxy{t: t, ln: ln, subport: subport, redirects: redirects, done: make(chan struct{})}
	go fp.acceptLoop()
	t.Cleanup(func() {
		ln.Close()
		<-fp.done
	})
	return fp
}

func (fp *fakeProxy) addr() string { return fp.ln.Addr().String() }

func (fp *fakeProxy) port() int32 {
	return int32(fp.ln.Addr().(*net.TCPAddr).Port)
}

func (fp *fakeProxy) acceptLoop() {
	defer close(fp.done)
	for {
		conn, err := fp.ln.Accept()
		if err != nil {
			return
		}
		fp.serve(conn)
	}
}

func (fp *fakeProxy) serve(conn net.Conn) {
	defer conn.Close()
	br := bufio.NewReader(conn)

	if fp.subport != -1 {
		var hs [8]byte
		if _, err := io.ReadFull(br, hs[:]); err != nil {
			return
		}
		require.Equal(fp.t, uint32(0x0005AC1E), binary.BigEndian.Uint32(hs[:4]))
		require.Equal(fp.t, uint32(fp.subport), binary.BigEndian.Uint32(hs[4:]))
		fp.handshakes.Add(1)
	}

	for {
		payload, err := wire.ReadFrame(br, 0)
		if err != nil {
			return
		}
		rd := wire.NewReader(newSliceReader(payload))
		chID, err := rd.Int32()
		if err != nil || chID != 0 {
			return
		}
		typeID, err := rd.Int32()
		if err != nil {
			return
		}
		switch typeID {
		case wireOpenConnectionRequest:
			fp.opens.Add(1)
			if !fp.answerOpen(conn, rd) {
				return
			}
			if len(fp.redirects) > 0 {
				return // the client will hang up after a redirect answer
			}
		case wirePingRequest:
			writeFrame(fp.t, conn, func(ww *wire.Writer) {
				_ = ww.Int32(0)
				_ = ww.Int32(wirePingResponse)
			})
		case wireNotifyConnectionClosed:
			fp.closes.Add(1)
			return
		}
	}
}

// answerOpen parses an open request and responds, echoing the offered
// current version for every protocol, or redirecting.
func (fp *fakeProxy) answerOpen(conn net.Conn, rd *wire.Reader) bool {
	reqID, err := rd.Int64()
	if err != nil {
		return false
	}
	if _, err = rd.String(); err != nil { // client uuid
		return false
	}
	n, err := rd.Int32()
	if err != nil {
		return false
	}
	type offer struct {
		name    string
		current int32
	}
	offers := make([]offer, 0, n)
	for i := int32(0); i < n; i++ {
		name, err := rd.String()
		if err != nil {
			return false
		}
		current, err := rd.Int32()
		if err != nil {
			return false
		}
		if _, err = rd.Int32(); err != nil { // supported
			return false
		}
		offers = append(offers, offer{name, current})
	}
	if _, err = rd.Bytes(); err != nil { // identity token
		return false
	}

	writeFrame(fp.t, conn, func(ww *wire.Writer) {
		_ = ww.Int32(0)
		_ = ww.Int32(wireOpenConnectionResponse)
		_ = ww.Int64(reqID)
		_ = ww.Bool(false)
		_ = ww.String("fake-proxy")
		_ = ww.Int32(int32(len(offers)))
		for _, o := range offers {
			_ = ww.String(o.name)
			_ = ww.Int32(o.current)
		}
		_ = ww.Int32(int32(len(fp.redirects)))
		for _, rt := range fp.redirects {
			_ = ww.String(rt.host)
			_ = ww.Int32(rt.port32)
		}
	})
	return true
}

func writeFrame(t *testing.T, conn net.Conn, fill func(*wire.Writer)) {
	fb := wire.NewFrameBuffer()
	fill(wire.NewWriter(fb))
	_, err := conn.Write(fb.Frame())
	require.NoError(t, err)
}

type sliceReader struct {
	b   []byte
	off int
}

func newSliceReader(b []byte) *sliceReader { return &sliceReader{b: b} }

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.off >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.off:])
	r.off += n
	return n, nil
}

func (r *sliceReader) ReadByte() (byte, error) {
	if r.off >= len(r.b) {
		return 0, io.EOF
	}
	b := r.b[r.off]
	r.off++
	return b, nil
}
