/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package peer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/oracle/coherence-go-extend-client/cmn"
	"github.com/oracle/coherence-go-extend-client/cmn/debug"
	"github.com/oracle/coherence-go-extend-client/protocol"
	"github.com/oracle/coherence-go-extend-client/serial"
)

type (
	// Receiver handles unsolicited (non-response) messages arriving on a
	// channel; it is invoked on the service thread. A receiver advertises
	// the protocol it speaks, and channel opens are rejected when the
	// negotiated protocol does not match.
	Receiver interface {
		Protocol() protocol.Protocol
		OnMessage(ch *Channel, msg protocol.Message)
	}

	// Channel is one logical, bidirectionally independent conversation
	// within a Connection. Id 0 is the control channel, created with the
	// Connection itself. A closed channel is never reopened.
	Channel struct {
		conn       *Connection
		serializer serial.Serializer
		factory    protocol.Factory
		receiver   Receiver
		principal  any
		pending    *xsync.MapOf[int64, *Status]
		id         int32
		nextReqID  atomic.Int64
		open       atomic.Bool
		closeOnce  sync.Once
	}
)

func newChannel(conn *Connection, id int32, factory protocol.Factory, rcvr Receiver,
	szr serial.Serializer, principal any) *Channel {
	ch := &Channel{
		conn:       conn,
		id:         id,
		factory:    factory,
		receiver:   rcvr,
		serializer: szr,
		principal:  principal,
		pending:    xsync.NewMapOf[int64, *Status](),
	}
	ch.open.Store(true)
	return ch
}

func (ch *Channel) ID() int32                     { return ch.id }
func (ch *Channel) Connection() *Connection       { return ch.conn }
func (ch *Channel) Factory() protocol.Factory     { return ch.factory }
func (ch *Channel) Receiver() Receiver            { return ch.receiver }
func (ch *Channel) Serializer() serial.Serializer { return ch.serializer }
func (ch *Channel) Principal() any                { return ch.principal }
func (ch *Channel) IsOpen() bool                  { return ch.open.Load() }

func (ch *Channel) String() string {
	return fmt.Sprintf("channel[%d/%s]", ch.id, ch.conn.uuid)
}

// New creates a message from the channel's factory.
func (ch *Channel) New(typeID int32) (protocol.Message, error) {
	return ch.factory.New(typeID)
}

// Send transmits msg asynchronously: the frame is encoded and written on the
// calling goroutine with no correlation.
func (ch *Channel) Send(msg protocol.Message) error {
	if !ch.open.Load() {
		return cmn.NewErrChannelClosed(ch.id, nil)
	}
	return ch.conn.send(ch, msg)
}

// Request transmits req and blocks the caller until the correlated response
// arrives, the configured request timeout elapses, or the channel closes.
// A failure response is returned as an error; otherwise the response result
// is returned.
func (ch *Channel) Request(req protocol.Request) (any, error) {
	return ch.RequestCtx(context.Background(), req)
}

// RequestCtx is Request honoring caller cancellation as well.
func (ch *Channel) RequestCtx(ctx context.Context, req protocol.Request) (any, error) {
	return ch.request(ctx, req, ch.conn.peer.cfg.RequestTimeout.D())
}

func (ch *Channel) request(ctx context.Context, req protocol.Request, timeout time.Duration) (any, error) {
	if !ch.open.Load() {
		return nil, cmn.NewErrChannelClosed(ch.id, nil)
	}
	id := ch.nextReqID.Add(1)
	debug.Assert(id > 0, "request id wrapped")
	req.SetID(id)

	st := newStatus(id)
	ch.pending.Store(id, st)
	if err := ch.conn.send(ch, req); err != nil {
		ch.pending.Delete(id)
		return nil, err
	}

	resp, err := st.wait(ctx, ch.conn.peer.clock, timeout)
	if err != nil {
		ch.pending.Delete(id)
		if cmn.IsErrRequestTimeout(err) {
			ch.conn.peer.onRequestTimeout(ch.conn)
		}
		return nil, err
	}
	if resp.IsFailure() {
		if ferr, ok := resp.Result().(error); ok {
			return nil, ferr
		}
		return nil, fmt.Errorf("request %d failed: %v", id, resp.Result())
	}
	return resp.Result(), nil
}

// onResponse correlates an inbound response; absent waiters (already timed
// out) drop the response. Runs on the service thread.
func (ch *Channel) onResponse(resp protocol.Response) {
	if st, ok := ch.pending.LoadAndDelete(resp.RequestID()); ok {
		st.complete(resp)
	}
}

// Close closes the channel locally and notifies the peer so it can release
// its side.
func (ch *Channel) Close() { ch.close(true, nil) }

// close is idempotent. With notify set and the connection still open, a
// channel-closed notification goes out on channel 0 first; then every
// pending status fails with cause.
func (ch *Channel) close(notify bool, cause error) {
	ch.closeOnce.Do(func() {
		ch.open.Store(false)
		if notify && ch.id != 0 && ch.conn.IsOpen() {
			if ch0 := ch.conn.GetChannel(0); ch0 != nil {
				_ = ch0.Send(&notifyChannelClosed{channelID: ch.id})
			}
		}
		ch.failPending(cause)
		if ch.id != 0 {
			ch.conn.channels.Delete(ch.id)
		}
		ch.conn.peer.metrics.openChannels.Dec()
	})
}

func (ch *Channel) failPending(cause error) {
	ch.pending.Range(func(id int64, st *Status) bool {
		ch.pending.Delete(id)
		st.fail(cmn.NewErrChannelClosed(ch.id, cause))
		return true
	})
}

// scheduleClose defers teardown to the service thread, between message
// processing steps; used when close is triggered from an I/O or handler
// path that must not re-enter.
func (ch *Channel) scheduleClose(cause error) {
	ch.conn.peer.post(func() { ch.close(true, cause) })
}
