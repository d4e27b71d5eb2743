/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
// Package peer implements the client side of the extend peer protocol: the
// service loop, connections, multiplexed channels, request correlation,
// heartbeats, and the default message codec.
package peer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/oracle/coherence-go-extend-client/cmn"
	"github.com/oracle/coherence-go-extend-client/protocol"
)

// Status is the waiter for one pending request. It completes exactly once:
// with the correlated response, with an error (channel/connection close), or
// by the caller observing its deadline.
type Status struct {
	done chan struct{}
	once sync.Once
	resp protocol.Response
	err  error
	id   int64
}

func newStatus(id int64) *Status {
	return &Status{id: id, done: make(chan struct{})}
}

func (st *Status) complete(resp protocol.Response) {
	st.once.Do(func() {
		st.resp = resp
		close(st.done)
	})
}

func (st *Status) fail(err error) {
	st.once.Do(func() {
		st.err = err
		close(st.done)
	})
}

// wait blocks the calling goroutine until completion, context cancellation,
// or expiry of timeout (zero means no deadline). The service thread never
// calls wait.
func (st *Status) wait(ctx context.Context, clock clockwork.Clock, timeout time.Duration) (protocol.Response, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := clock.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.Chan()
	}
	select {
	case <-st.done:
		return st.resp, st.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-expired:
		return nil, cmn.NewErrRequestTimeout(st.id, timeout)
	}
}
