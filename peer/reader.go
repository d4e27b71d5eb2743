/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package peer

import (
	"bufio"
	"sync/atomic"

	"github.com/oracle/coherence-go-extend-client/cmn"
	"github.com/oracle/coherence-go-extend-client/wire"
)

// reader is the dedicated per-connection read daemon: it parses frame
// lengths, enforces the incoming size guard, reads payloads fully and
// enqueues them for the service thread. It never decodes, never dispatches,
// and never takes locks beyond the stream's own.
type reader struct {
	conn    *Connection
	done    chan struct{}
	stopped atomic.Bool
}

func newReader(c *Connection) *reader {
	return &reader{conn: c, done: make(chan struct{})}
}

func (r *reader) start() { go r.loop() }

// stop flags the reader; the connection closing its stream unblocks the
// pending read.
func (r *reader) stop() { r.stopped.Store(true) }

func (r *reader) loop() {
	defer close(r.done)
	var (
		c     = r.conn
		maxIn = c.peer.cfg.MaxIncomingMessageSize
		br    = bufio.NewReaderSize(c.stream, 4096)
	)
	for {
		body, err := wire.ReadFrame(br, maxIn)
		if err != nil {
			if r.stopped.Load() {
				return
			}
			cause := cmn.NewErrConnectionCause(err, "read from %s failed", c.RemoteAddr())
			if cmn.IsEOF(err) {
				cause = cmn.NewErrConnectionCause(err, "%s dropped the connection", c.RemoteAddr())
			} else {
				c.peer.log.WithError(err).Errorf("read from %s failed", c.RemoteAddr())
			}
			// close on the service thread, behind the frames already queued,
			// so a response read just before the failure is still delivered
			if !c.peer.post(func() { c.close(false, cause) }) {
				c.close(false, cause)
			}
			return
		}
		c.stats.BytesReceived.Add(int64(len(body) + wire.SizeInt32(int32(len(body)))))
		c.stats.MessagesReceived.Add(1)
		c.peer.metrics.bytesReceived.Add(float64(len(body)))
		if !c.peer.post(&encodedMessage{conn: c, body: body}) {
			return
		}
	}
}
