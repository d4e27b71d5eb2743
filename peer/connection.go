/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package peer

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/oracle/coherence-go-extend-client/cmn"
	"github.com/oracle/coherence-go-extend-client/cmn/debug"
	"github.com/oracle/coherence-go-extend-client/protocol"
	"github.com/oracle/coherence-go-extend-client/serial"
	"github.com/oracle/coherence-go-extend-client/wire"
)

// Connection states; Open is one-way - once Closed, a new Connection must be
// created.
const (
	connInitial int32 = iota
	connOpening
	connOpen
	connClosing
	connClosed
)

// errRedirect is returned from open when the cluster answered with a
// redirect list; the initiator inspects Redirects() and retries elsewhere.
var errRedirect = errors.New("connection redirected")

type (
	// Redirect is one redirect target from an open-connection response.
	Redirect struct {
		Host   string
		Port32 int32
	}

	// Connection owns one transport stream and the set of channels
	// multiplexed over it. All inbound dispatch goes through the owning
	// peer's service thread; outbound frames are written on the calling
	// goroutine.
	Connection struct {
		peer     *Peer
		stream   net.Conn
		channels *xsync.MapOf[int32, *Channel]
		versions map[string]int32 // negotiated on open, immutable after
		rdr      *reader

		uuid   string
		member string

		redirects []Redirect // transient, set while opening

		stats ConnStats

		state        atomic.Int32
		pingLastSent atomic.Int64 // nanos; 0 = no ping outstanding
		pingWaiter   atomic.Pointer[chan time.Duration]
		isTLS        bool

		wmu sync.Mutex // serializes writers; a TLS stream is not safe for concurrent writes
	}

	// ConnStats are per-connection counters, updated with atomics and read
	// via Stats.
	ConnStats struct {
		BytesSent        atomic.Int64
		BytesReceived    atomic.Int64
		MessagesSent     atomic.Int64
		MessagesReceived atomic.Int64
		TimeoutCount     atomic.Int64
		PingRTTNanos     atomic.Int64
	}

	// ConnStatsSnapshot is a point-in-time copy of ConnStats.
	ConnStatsSnapshot struct {
		BytesSent        int64
		BytesReceived    int64
		MessagesSent     int64
		MessagesReceived int64
		TimeoutCount     int64
		PingRTTNanos     int64
	}
)

func genUUID() string {
	var b [8]byte
	_, _ = crand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// newConnection wraps an established (and, for subport use, already
// handshaken) stream and creates the control channel 0. The connection is
// not usable until open succeeds.
func newConnection(p *Peer, stream net.Conn, isTLS bool, principal any) *Connection {
	c := &Connection{
		peer:     p,
		stream:   stream,
		isTLS:    isTLS,
		uuid:     genUUID(),
		channels: xsync.NewMapOf[int32, *Channel](),
	}
	ch0 := newChannel(c, 0, controlFactory, nil, p.serializer, principal)
	c.channels.Store(0, ch0)
	p.metrics.openChannels.Inc()
	c.rdr = newReader(c)
	return c
}

func (c *Connection) String() string {
	return fmt.Sprintf("connection[%s/%s]", c.uuid, c.RemoteAddr())
}

func (c *Connection) UUID() string   { return c.uuid }
func (c *Connection) Member() string { return c.member }
func (c *Connection) IsOpen() bool   { return c.state.Load() == connOpen }

func (c *Connection) RemoteAddr() string {
	if addr := c.stream.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "?"
}

// GetChannel returns the open channel with the given id, nil otherwise.
// GetChannel(0) returns the same control channel for the connection's whole
// lifetime.
func (c *Connection) GetChannel(id int32) *Channel {
	if ch, ok := c.channels.Load(id); ok && ch.IsOpen() {
		return ch
	}
	return nil
}

// Stats returns a snapshot of the connection counters.
func (c *Connection) Stats() ConnStatsSnapshot {
	return ConnStatsSnapshot{
		BytesSent:        c.stats.BytesSent.Load(),
		BytesReceived:    c.stats.BytesReceived.Load(),
		MessagesSent:     c.stats.MessagesSent.Load(),
		MessagesReceived: c.stats.MessagesReceived.Load(),
		TimeoutCount:     c.stats.TimeoutCount.Load(),
		PingRTTNanos:     c.stats.PingRTTNanos.Load(),
	}
}

// Redirects returns the redirect targets carried by an open-connection
// response, valid only after open failed with a redirect.
func (c *Connection) Redirects() []Redirect { return c.redirects }

//
// outbound path
//

var framePool = sync.Pool{New: func() any { return wire.NewFrameBuffer() }}

// send encodes msg for ch and writes one frame. Encoding errors mark the
// channel (the connection, for channel 0) for close; oversize frames fail
// before touching the stream.
func (c *Connection) send(ch *Channel, msg protocol.Message) error {
	if st := c.state.Load(); st != connOpen && st != connOpening {
		return cmn.NewErrConnection("%s is not open", c)
	}

	fb := framePool.Get().(*wire.FrameBuffer)
	defer func() {
		fb.Reset()
		framePool.Put(fb)
	}()

	if err := c.peer.encode(fb, ch, msg); err != nil {
		err = cmn.NewErrEncode(err, "%s: message type %d", ch, msg.TypeID())
		c.failSend(ch, err)
		return err
	}
	debug.Assert(fb.PayloadLen() > 0, "empty frame payload")
	if max := c.peer.cfg.MaxOutgoingMessageSize; max > 0 && fb.PayloadLen() > max {
		err := cmn.NewErrEncode(nil,
			"%s: outgoing frame of %d bytes exceeds the maximum of %d bytes", ch, fb.PayloadLen(), max)
		c.failSend(ch, err)
		return err
	}

	frame := fb.Frame()
	if err := c.write(frame); err != nil {
		return err
	}

	c.stats.BytesSent.Add(int64(len(frame)))
	c.stats.MessagesSent.Add(1)
	c.peer.metrics.bytesSent.Add(float64(len(frame)))
	c.peer.metrics.messagesSent.Inc()
	if c.peer.msgDebug {
		c.peer.log.Debugf("sent type %d on %s (%d bytes)", msg.TypeID(), ch, len(frame))
	}
	return nil
}

// failSend schedules the channel - or the whole connection, for channel 0 -
// for close after a local encoding failure.
func (c *Connection) failSend(ch *Channel, cause error) {
	if ch.id == 0 {
		c.scheduleClose(cause)
	} else {
		ch.scheduleClose(cause)
	}
}

func (c *Connection) write(frame []byte) error {
	if c.isTLS {
		c.wmu.Lock()
		defer c.wmu.Unlock()
	}
	if _, err := c.stream.Write(frame); err != nil {
		err = cmn.NewErrConnectionCause(err, "write to %s failed", c.RemoteAddr())
		c.close(false, err) // no-op when already closing
		return err
	}
	return nil
}

//
// open
//

// open performs the open-connection exchange on channel 0 under the connect
// timeout: version negotiation, identity assertion, and redirect detection.
func (c *Connection) open(ctx context.Context, principal any) error {
	if !c.state.CompareAndSwap(connInitial, connOpening) {
		return cmn.NewErrConnection("%s already opened", c)
	}
	c.rdr.start()

	token, err := c.peer.serializeToken(principal)
	if err != nil {
		c.close(false, err)
		return err
	}

	req := &openConnectionRequest{
		clientUUID: c.uuid,
		editions:   c.peer.protocolOffers(),
		identity:   token,
	}
	ch0 := c.GetChannel(0)
	res, err := ch0.request(ctx, req, c.peer.cfg.ConnectTimeout.D())
	if err != nil {
		err = cmn.NewErrConnectionCause(err, "open of %s failed", c)
		c.close(false, err)
		return err
	}

	result, ok := res.(*openResult)
	if !ok {
		err = cmn.NewErrConnection("unexpected open response result %T", res)
		c.close(false, err)
		return err
	}
	if len(result.redirects) > 0 {
		c.redirects = result.redirects
		c.close(false, nil)
		return errRedirect
	}
	if err := c.acceptVersions(result.versions); err != nil {
		c.close(false, err)
		return err
	}
	c.member = result.memberUUID
	c.state.Store(connOpen)
	c.peer.onConnectionOpened(c)
	return nil
}

// acceptVersions validates the negotiated version map against every
// registered protocol.
func (c *Connection) acceptVersions(versions map[string]int32) error {
	for _, name := range c.peer.protocols.Names() {
		p, _ := c.peer.protocols.Lookup(name)
		v, ok := versions[name]
		if !ok {
			return cmn.NewErrProtocolMismatch(name, "not supported by %s", c.RemoteAddr())
		}
		if v < p.SupportedVersion() || v > p.CurrentVersion() {
			return cmn.NewErrProtocolMismatch(name, "negotiated version %d outside [%d, %d]",
				v, p.SupportedVersion(), p.CurrentVersion())
		}
	}
	c.versions = versions
	return nil
}

// OpenChannel negotiates a new channel for the given protocol with the
// remote peer and registers it on this connection.
func (c *Connection) OpenChannel(p protocol.Protocol, rcvr Receiver, szr serial.Serializer,
	principal any) (*Channel, error) {
	if !c.IsOpen() {
		return nil, cmn.NewErrConnection("%s is not open", c)
	}
	if rcvr != nil && rcvr.Protocol().Name() != p.Name() {
		return nil, cmn.NewErrProtocolMismatch(p.Name(),
			"receiver speaks %q", rcvr.Protocol().Name())
	}
	version, ok := c.versions[p.Name()]
	if !ok {
		return nil, cmn.NewErrProtocolMismatch(p.Name(), "not negotiated on %s", c)
	}
	factory, err := p.Factory(version)
	if err != nil {
		return nil, err
	}
	token, err := c.peer.serializeToken(principal)
	if err != nil {
		return nil, err
	}
	if szr == nil {
		szr = c.peer.serializer
	}

	res, err := c.GetChannel(0).Request(&openChannelRequest{
		protocolName: p.Name(),
		version:      version,
		identity:     token,
	})
	if err != nil {
		return nil, err
	}
	id, ok := res.(int32)
	if !ok || id <= 0 {
		return nil, cmn.NewErrConnection("invalid channel id in open response: %v", res)
	}
	ch := newChannel(c, id, factory, rcvr, szr, principal)
	c.channels.Store(id, ch)
	c.peer.metrics.openChannels.Inc()
	return ch, nil
}

// acceptChannel registers a server-initiated channel; runs on the service
// thread.
func (c *Connection) acceptChannel(id int32, protocolName string, version int32) error {
	rcvr := c.peer.receivers[protocolName]
	if rcvr == nil {
		return cmn.NewErrProtocolMismatch(protocolName, "no receiver registered")
	}
	p := rcvr.Protocol()
	factory, err := p.Factory(version)
	if err != nil {
		return err
	}
	ch := newChannel(c, id, factory, rcvr, c.peer.serializer, nil)
	c.channels.Store(id, ch)
	c.peer.metrics.openChannels.Inc()
	return nil
}

//
// heartbeat (service thread only)
//

// ping emits a ping on channel 0 unless one is already outstanding.
func (c *Connection) ping(now time.Time) {
	if c.pingLastSent.Load() != 0 {
		return
	}
	ch0 := c.GetChannel(0)
	if ch0 == nil {
		return
	}
	if err := c.send(ch0, &pingRequest{}); err == nil {
		c.pingLastSent.Store(now.UnixNano())
		c.peer.metrics.pings.Inc()
	}
}

func (c *Connection) onPingResponse(now time.Time) {
	if sent := c.pingLastSent.Swap(0); sent != 0 {
		c.stats.PingRTTNanos.Store(now.UnixNano() - sent)
	}
	if w := c.pingWaiter.Load(); w != nil {
		select {
		case *w <- time.Duration(c.stats.PingRTTNanos.Load()):
		default:
		}
	}
}

// PingNow sends one ping and blocks the caller for the response, returning
// the measured round-trip. When a heartbeat ping is already in flight, its
// response satisfies the wait.
func (c *Connection) PingNow(timeout time.Duration) (time.Duration, error) {
	if !c.IsOpen() {
		return 0, cmn.NewErrConnection("%s is not open", c)
	}
	waiter := make(chan time.Duration, 1)
	if !c.pingWaiter.CompareAndSwap(nil, &waiter) {
		return 0, cmn.NewErrConnection("a ping wait is already in progress on %s", c)
	}
	defer c.pingWaiter.Store(nil)

	c.peer.post(func() { c.ping(c.peer.clock.Now()) })
	timer := c.peer.clock.NewTimer(timeout)
	defer timer.Stop()
	select {
	case rtt := <-waiter:
		return rtt, nil
	case <-timer.Chan():
		return 0, cmn.NewErrRequestTimeout(0, timeout)
	}
}

//
// close
//

// Close tears the connection down gracefully: the remote peer is notified
// on channel 0, then the stream goes away. Idempotent.
func (c *Connection) Close() { c.close(true, nil) }

// scheduleClose defers teardown to the service thread, between message
// processing steps.
func (c *Connection) scheduleClose(cause error) {
	c.peer.post(func() { c.close(true, cause) })
}

func (c *Connection) close(notify bool, cause error) {
	for {
		st := c.state.Load()
		if st == connClosing || st == connClosed {
			return
		}
		if c.state.CompareAndSwap(st, connClosing) {
			if notify && st == connOpen {
				c.notifyClose()
			}
			c.teardown(cause)
			return
		}
	}
}

// notifyClose writes the connection-closed notification on channel 0,
// bypassing the state check the regular send path applies.
func (c *Connection) notifyClose() {
	ch0 := c.GetChannel(0)
	if ch0 == nil {
		return
	}
	fb := framePool.Get().(*wire.FrameBuffer)
	defer func() {
		fb.Reset()
		framePool.Put(fb)
	}()
	if err := c.peer.encode(fb, ch0, &notifyConnectionClosed{}); err == nil {
		_ = c.write(fb.Frame())
	}
}

// teardown, in order: stop the reader, close the stream, fail every pending
// status on every channel with the close cause, mark the channels closed,
// and dispatch the Closed (or Error) connection event.
func (c *Connection) teardown(cause error) {
	c.rdr.stop()
	_ = c.stream.Close()

	c.channels.Range(func(_ int32, ch *Channel) bool {
		ch.close(false, cause)
		return true
	})
	c.channels.Delete(0)

	c.state.Store(connClosed)
	c.peer.onConnectionClosed(c, cause)
}
