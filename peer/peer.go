/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package peer

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/thejerf/suture/v4"

	"github.com/oracle/coherence-go-extend-client/cmn"
	"github.com/oracle/coherence-go-extend-client/filters"
	"github.com/oracle/coherence-go-extend-client/protocol"
	"github.com/oracle/coherence-go-extend-client/serial"
)

// Peer lifecycle states; strictly monotonic.
const (
	StateInitial int32 = iota
	StateStarting
	StateStarted
	StateStopping
	StateStopped
)

const (
	queueDepth   = 4096
	baseWaitTick = time.Second
)

type (
	work any // *encodedMessage | func()

	// Peer drives the client side of one or more connections: a single
	// service goroutine decodes inbound frames, dispatches handlers,
	// correlates responses, runs heartbeats and performs deferred closes.
	// Configuration is complete once New returns; Serve owns the rest.
	Peer struct {
		cfg        *cmn.Config
		protocols  *protocol.Registry
		receivers  map[string]Receiver
		codec      Codec
		filters    []filters.Filter
		serializer serial.Serializer
		clock      clockwork.Clock
		log        *logrus.Entry
		metrics    *Metrics
		listeners  []ConnectionListener

		queue   chan work
		stopCh  chan struct{}
		started chan struct{}
		state   atomic.Int32

		// service-thread state
		conns    map[string]*Connection
		pingNext time.Time

		msgDebug bool
	}

	Option func(*Peer)
)

func WithProtocol(p protocol.Protocol) Option {
	return func(pr *Peer) {
		if err := pr.protocols.Register(p); err != nil {
			panic(err)
		}
	}
}

func WithReceiver(r Receiver) Option {
	return func(pr *Peer) { pr.receivers[r.Protocol().Name()] = r }
}

func WithCodec(c Codec) Option                  { return func(pr *Peer) { pr.codec = c } }
func WithSerializer(s serial.Serializer) Option { return func(pr *Peer) { pr.serializer = s } }
func WithClock(c clockwork.Clock) Option        { return func(pr *Peer) { pr.clock = c } }
func WithListener(l ConnectionListener) Option {
	return func(pr *Peer) { pr.listeners = append(pr.listeners, l) }
}
func WithLogger(log *logrus.Entry) Option { return func(pr *Peer) { pr.log = log } }
func WithMetrics(m *Metrics) Option       { return func(pr *Peer) { pr.metrics = m } }

// New configures a peer. Protocols and receivers registered through options
// are frozen once Serve starts.
func New(cfg *cmn.Config, opts ...Option) (*Peer, error) {
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fs, err := filters.Resolve(cfg.Filters)
	if err != nil {
		return nil, err
	}
	p := &Peer{
		cfg:        cfg,
		protocols:  protocol.NewRegistry(),
		receivers:  make(map[string]Receiver, 4),
		codec:      stdCodec{},
		filters:    fs,
		serializer: serial.Binary{},
		clock:      clockwork.NewRealClock(),
		log:        logrus.WithField("comp", "peer"),
		queue:      make(chan work, queueDepth),
		stopCh:     make(chan struct{}),
		started:    make(chan struct{}),
		conns:      make(map[string]*Connection, 1),
		msgDebug:   cmn.MsgDebug(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	return p, nil
}

func (p *Peer) State() int32        { return p.state.Load() }
func (p *Peer) Config() *cmn.Config { return p.cfg }

// WaitStarted blocks until the service loop is running.
func (p *Peer) WaitStarted(ctx context.Context) error {
	select {
	case <-p.started:
		return nil
	case <-p.stopCh:
		return cmn.NewErrConnection("peer stopped before starting")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post enqueues a work item for the service thread; returns false once the
// peer has stopped.
func (p *Peer) post(w work) bool {
	select {
	case <-p.stopCh:
		return false
	default:
	}
	select {
	case p.queue <- w:
		return true
	case <-p.stopCh:
		return false
	}
}

// Serve is the service loop; it implements suture.Service and returns when
// ctx is canceled. The peer cannot be restarted afterwards.
func (p *Peer) Serve(ctx context.Context) error {
	if !p.state.CompareAndSwap(StateInitial, StateStarting) {
		// a peer is single-use; tell a supervising tree to let it rest
		return fmt.Errorf("%w: peer already started", suture.ErrDoNotRestart)
	}
	p.protocols.Freeze()
	now := p.clock.Now()
	if interval := p.cfg.PingInterval.D(); interval > 0 {
		p.pingNext = now.Add(interval)
	}
	p.state.Store(StateStarted)
	close(p.started)
	p.log.Infof("peer started (request-timeout %s, heartbeat %s/%s)",
		p.cfg.RequestTimeout, p.cfg.PingInterval, p.cfg.PingTimeout)

	defer p.shutdown()
	for {
		timer := p.clock.NewTimer(p.nextWait(p.clock.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case w := <-p.queue:
			timer.Stop()
			p.handle(w)
			p.drain()
		case <-timer.Chan():
		}
		p.onTick(p.clock.Now())
	}
}

func (p *Peer) shutdown() {
	p.state.Store(StateStopping)
	close(p.stopCh)
	for _, c := range p.conns {
		c.close(true, nil)
	}
	p.drain()
	p.state.Store(StateStopped)
	p.log.Info("peer stopped")
}

func (p *Peer) drain() {
	for {
		select {
		case w := <-p.queue:
			p.handle(w)
		default:
			return
		}
	}
}

func (p *Peer) handle(w work) {
	switch item := w.(type) {
	case func():
		item()
	case *encodedMessage:
		p.onEncoded(item)
	default:
		p.log.Errorf("dropping unknown work item %T", w)
	}
}

// onEncoded decodes one frame payload from the reader and dispatches it.
// Decode failures close the offending channel, or the whole connection when
// the frame addresses channel 0 or the channel id itself is unreadable.
func (p *Peer) onEncoded(em *encodedMessage) {
	conn := em.conn
	if conn.state.Load() == connClosed {
		return
	}
	ch, msg, err := p.decode(conn, em.body)
	if err != nil {
		derr := cmn.NewErrDecode(err, "frame from %s", conn.RemoteAddr())
		p.log.WithError(err).Errorf("failed to decode a frame from %s", conn.RemoteAddr())
		switch {
		case ch != nil && ch.id != 0:
			ch.close(true, derr)
		case ch != nil:
			conn.close(false, derr)
		default:
			// the channel never resolved; fall back to the raw frame head
			if id, ok := rawChannelID(em.body); ok && id != 0 {
				if offending := conn.GetChannel(id); offending != nil {
					offending.close(true, derr)
					return
				}
			}
			conn.close(false, derr)
		}
		return
	}
	if msg == nil {
		return // unresolved channel: dropped silently
	}
	p.metrics.messagesReceived.Inc()
	if p.msgDebug {
		p.log.Debugf("received type %d on %s", msg.TypeID(), ch)
	}
	if !ch.IsOpen() || conn.state.Load() == connClosed {
		return
	}
	p.dispatch(conn, ch, msg)
}

func (p *Peer) dispatch(conn *Connection, ch *Channel, msg protocol.Message) {
	switch m := msg.(type) {
	case *acceptChannel:
		if err := conn.acceptChannel(m.channelID, m.protocolName, m.version); err != nil {
			p.log.WithError(err).Warnf("rejecting channel %d from %s", m.channelID, conn.RemoteAddr())
			_ = ch.Send(&notifyChannelClosed{channelID: m.channelID, cause: err.Error()})
		}
	case *closeChannel:
		if target := conn.GetChannel(m.channelID); target != nil && target.id != 0 {
			target.close(false, nil)
		}
	case *closeConnection:
		conn.close(false, nil)
	case *notifyChannelClosed:
		if target := conn.GetChannel(m.channelID); target != nil && target.id != 0 {
			var cause error
			if m.cause != "" {
				cause = cmn.NewErrConnection("closed by peer: %s", m.cause)
			}
			target.close(false, cause)
		}
	case *notifyConnectionClosed:
		conn.close(false, nil)
	case *pingRequest:
		_ = ch.Send(&pingResponse{})
	case *pingResponse:
		conn.onPingResponse(p.clock.Now())
	case protocol.Response:
		ch.onResponse(m)
	default:
		if r := ch.receiver; r != nil {
			r.OnMessage(ch, msg)
		} else if p.msgDebug {
			p.log.Debugf("no receiver for type %d on %s, dropping", msg.TypeID(), ch)
		}
	}
}

//
// heartbeats
//

func (p *Peer) onTick(now time.Time) {
	interval := p.cfg.PingInterval.D()
	if interval == 0 {
		return
	}
	p.checkPingTimeouts(now)
	if !now.Before(p.pingNext) {
		for _, c := range p.conns {
			c.ping(now)
		}
		p.pingNext = now.Add(interval)
	}
}

func (p *Peer) checkPingTimeouts(now time.Time) {
	timeout := p.cfg.PingTimeout.D()
	for _, c := range p.conns {
		sent := c.pingLastSent.Load()
		if sent == 0 {
			continue
		}
		if now.Sub(time.Unix(0, sent)) > timeout {
			err := cmn.NewErrConnection("did not receive a response to a ping within %d millis",
				timeout.Milliseconds())
			p.log.Error(err.Error())
			c.close(false, err)
		}
	}
}

// nextWait bounds the service-thread sleep by the base tick, the next ping
// instant and the earliest outstanding ping deadline.
func (p *Peer) nextWait(now time.Time) time.Duration {
	wait := baseWaitTick
	if p.cfg.PingInterval.D() > 0 {
		if d := p.pingNext.Sub(now); d < wait {
			wait = d
		}
		timeout := p.cfg.PingTimeout.D()
		for _, c := range p.conns {
			if sent := c.pingLastSent.Load(); sent != 0 {
				if d := time.Unix(0, sent).Add(timeout).Sub(now); d < wait {
					wait = d
				}
			}
		}
	}
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

//
// connection lifecycle (cross-thread entry points)
//

func (p *Peer) onConnectionOpened(c *Connection) {
	p.metrics.connOpens.Inc()
	p.post(func() {
		p.conns[c.uuid] = c
		for _, l := range p.listeners {
			l.OnOpened(c)
		}
	})
}

func (p *Peer) onConnectionClosed(c *Connection, cause error) {
	p.post(func() {
		delete(p.conns, c.uuid)
		for _, l := range p.listeners {
			if cause != nil {
				l.OnError(c, cause)
			} else {
				l.OnClosed(c)
			}
		}
	})
	if cause != nil {
		p.log.WithError(cause).Warnf("%s closed", c)
	} else {
		p.log.Infof("%s closed", c)
	}
}

func (p *Peer) onRequestTimeout(c *Connection) {
	c.stats.TimeoutCount.Add(1)
	p.metrics.requestTimeouts.Inc()
}

// protocolOffers builds the negotiation map for an open-connection request.
func (p *Peer) protocolOffers() map[string]versionRange {
	offers := make(map[string]versionRange, 4)
	for _, name := range p.protocols.Names() {
		proto, _ := p.protocols.Lookup(name)
		offers[name] = versionRange{Current: proto.CurrentVersion(), Supported: proto.SupportedVersion()}
	}
	return offers
}

// serializeToken produces the identity token bytes for a principal via the
// peer's serializer; nil principals produce no token.
func (p *Peer) serializeToken(principal any) ([]byte, error) {
	if principal == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := p.serializer.Serialize(&buf, principal); err != nil {
		return nil, cmn.NewErrSecurity(err, "cannot serialize identity token")
	}
	return buf.Bytes(), nil
}

// OpenConnection wraps an established stream (the subport handshake already
// written by the transport), performs the open-connection exchange, and
// returns the ready connection. On a redirect answer the returned error is
// a redirect marker and the (closed) connection's Redirects() carry the
// targets.
func (p *Peer) OpenConnection(ctx context.Context, stream net.Conn, isTLS bool, principal any) (*Connection, error) {
	if p.state.Load() != StateStarted {
		return nil, cmn.NewErrConnection("peer is not running")
	}
	c := newConnection(p, stream, isTLS, principal)
	if err := c.open(ctx, principal); err != nil {
		if IsRedirect(err) {
			return c, err
		}
		return nil, err
	}
	return c, nil
}

// IsRedirect reports whether an OpenConnection error is a redirect marker.
func IsRedirect(err error) bool { return err == errRedirect }
