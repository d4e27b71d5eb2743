/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package peer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oracle/coherence-go-extend-client/cmn"
)

func heartbeatConfig(interval, timeout time.Duration) *cmn.Config {
	return &cmn.Config{
		RequestTimeout: cmn.Duration(2 * time.Second),
		PingInterval:   cmn.Duration(interval),
		PingTimeout:    cmn.Duration(timeout),
	}
}

func TestHeartbeatKeepsConnectionAlive(t *testing.T) {
	_, conn, px := openTestConn(t, heartbeatConfig(50*time.Millisecond, 50*time.Millisecond))

	var pings atomic.Int64
	go func() {
		for {
			chID, typeID, _, err := px.readMsg()
			if err != nil {
				return
			}
			if chID == 0 && typeID == typeIDPingRequest {
				pings.Add(1)
				_ = px.writeMsg(0, &pingResponse{})
			}
		}
	}()

	require.Eventually(t, func() bool { return pings.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
	require.True(t, conn.IsOpen())
	require.Greater(t, conn.Stats().PingRTTNanos, int64(0))
}

func TestHeartbeatTimeoutClosesConnection(t *testing.T) {
	var (
		mu    sync.Mutex
		cause error
	)
	listener := ListenerFuncs{Error: func(_ *Connection, err error) {
		mu.Lock()
		cause = err
		mu.Unlock()
	}}
	_, conn, px := openTestConn(t, heartbeatConfig(100*time.Millisecond, 100*time.Millisecond),
		WithListener(listener))

	// swallow pings, never answer
	go func() {
		for {
			if _, _, _, err := px.readMsg(); err != nil {
				return
			}
		}
	}()

	require.Eventually(t, func() bool { return !conn.IsOpen() }, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Error(t, cause)
	require.Contains(t, cause.Error(), "did not receive a response to a ping within 100 millis")
}

func TestAtMostOnePingInFlight(t *testing.T) {
	// interval shorter than the proxy's answer delay: without the
	// in-flight guard a second ping would go out before the response.
	// Validate clamps the timeout to the interval, so the option lifts it
	// past the answer delay again after validation.
	liftTimeout := func(p *Peer) { p.cfg.PingTimeout = cmn.Duration(500 * time.Millisecond) }
	_, conn, px := openTestConn(t, heartbeatConfig(30*time.Millisecond, 500*time.Millisecond), liftTimeout)

	var (
		mu       sync.Mutex
		arrivals []time.Time
	)
	go func() {
		for {
			chID, typeID, _, err := px.readMsg()
			if err != nil {
				return
			}
			if chID != 0 || typeID != typeIDPingRequest {
				continue
			}
			mu.Lock()
			arrivals = append(arrivals, time.Now())
			n := len(arrivals)
			mu.Unlock()
			if n == 1 {
				time.Sleep(200 * time.Millisecond) // hold the first response back
			}
			_ = px.writeMsg(0, &pingResponse{})
		}
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(arrivals) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	gap := arrivals[1].Sub(arrivals[0])
	mu.Unlock()
	require.GreaterOrEqual(t, gap, 200*time.Millisecond,
		"a second ping went out while the first was still in flight")
	require.True(t, conn.IsOpen())
}
