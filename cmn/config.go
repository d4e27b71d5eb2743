/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
// Package cmn provides configuration and common low-level types for the
// extend client.
package cmn

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
)

const (
	// DfltRequestTimeout bounds a synchronous Channel.Request round-trip.
	DfltRequestTimeout = 30 * time.Second

	// EnvMsgDebug toggles per-message debug logging ("true"/"false").
	EnvMsgDebug = "COHERENCE_MESSAGING_DEBUG"
)

type (
	// Duration marshals to/from JSON and YAML as a Go duration string
	// ("250ms", "30s") or a bare integer number of milliseconds.
	Duration time.Duration

	TCPConf struct {
		LocalAddress   string   `json:"local-address,omitempty"`
		RecvBufferSize int      `json:"receive-buffer-size,omitempty"`
		SendBufferSize int      `json:"send-buffer-size,omitempty"`
		LingerTimeout  Duration `json:"linger-timeout,omitempty"`
		KeepAliveOff   bool     `json:"keep-alive-disabled,omitempty"`
		ReuseAddress   bool     `json:"reuse-address,omitempty"`
		DelayEnabled   bool     `json:"tcp-delay-enabled,omitempty"`
	}

	// Config carries every knob of the peer messaging subsystem. Zero means
	// "use the default" for timeouts and "unlimited"/"disabled" for sizes
	// and heartbeats, per Validate below.
	Config struct {
		RemoteAddresses []string `json:"remote-addresses,omitempty"`
		Filters         []string `json:"use-filters,omitempty"`
		TCP             TCPConf  `json:"tcp,omitempty"`

		RequestTimeout Duration `json:"request-timeout,omitempty"`
		ConnectTimeout Duration `json:"connect-timeout,omitempty"`
		PingInterval   Duration `json:"heartbeat-interval,omitempty"`
		PingTimeout    Duration `json:"heartbeat-timeout,omitempty"`

		MaxIncomingMessageSize int `json:"max-incoming-message-size,omitempty"`
		MaxOutgoingMessageSize int `json:"max-outgoing-message-size,omitempty"`

		validated bool
	}
)

// MsgDebug reports whether per-message debug logging is enabled via the
// environment; read once by the peer at configure time.
func MsgDebug() bool { return os.Getenv(EnvMsgDebug) == "true" }

////////////////
// Duration   //
////////////////

func (d Duration) D() time.Duration { return time.Duration(d) }
func (d Duration) String() string   { return time.Duration(d).String() }
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*d = Duration(time.Duration(x) * time.Millisecond)
	case string:
		dur, err := time.ParseDuration(x)
		if err != nil {
			return errors.Wrapf(err, "invalid duration %q", x)
		}
		*d = Duration(dur)
	default:
		return fmt.Errorf("invalid duration: %v(%T)", v, v)
	}
	return nil
}

////////////
// Config //
////////////

// Validate applies defaulting and rejects inconsistent settings:
//   - request-timeout defaults to 30s; zero after defaulting means infinite
//     only when set negative explicitly (use -1)
//   - connect-timeout defaults to request-timeout
//   - heartbeat-interval zero disables heartbeats
//   - heartbeat-timeout zero inherits heartbeat-interval, and is always
//     clamped to at most heartbeat-interval
func (c *Config) Validate() error {
	if c.RequestTimeout < 0 {
		c.RequestTimeout = 0 // infinite
	} else if c.RequestTimeout == 0 {
		c.RequestTimeout = Duration(DfltRequestTimeout)
	}
	if c.ConnectTimeout < 0 {
		c.ConnectTimeout = 0 // infinite
	} else if c.ConnectTimeout == 0 {
		c.ConnectTimeout = c.RequestTimeout
	}
	if c.PingInterval < 0 || c.PingTimeout < 0 {
		return fmt.Errorf("negative heartbeat settings (%v, %v)", c.PingInterval, c.PingTimeout)
	}
	if c.PingInterval > 0 {
		if c.PingTimeout == 0 || c.PingTimeout > c.PingInterval {
			c.PingTimeout = c.PingInterval
		}
	} else {
		c.PingTimeout = 0
	}
	if c.MaxIncomingMessageSize < 0 || c.MaxOutgoingMessageSize < 0 {
		return fmt.Errorf("negative max-message-size (%d, %d)",
			c.MaxIncomingMessageSize, c.MaxOutgoingMessageSize)
	}
	c.validated = true
	return nil
}

func (c *Config) Validated() bool { return c.validated }

// Clone returns a deep copy, so a running peer never observes caller
// mutations.
func (c *Config) Clone() *Config {
	clone := *c
	clone.RemoteAddresses = append([]string(nil), c.RemoteAddresses...)
	clone.Filters = append([]string(nil), c.Filters...)
	return &clone
}
