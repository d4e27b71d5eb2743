/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package cmn_test

import (
	"testing"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/oracle/coherence-go-extend-client/cmn"
)

func TestConfigDefaulting(t *testing.T) {
	cfg := &cmn.Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.RequestTimeout.D() != cmn.DfltRequestTimeout {
		t.Errorf("request timeout: %v", cfg.RequestTimeout)
	}
	if cfg.ConnectTimeout != cfg.RequestTimeout {
		t.Errorf("connect timeout should inherit request timeout, got %v", cfg.ConnectTimeout)
	}
	if !cfg.Validated() {
		t.Error("not marked validated")
	}
}

func TestConfigInfiniteTimeouts(t *testing.T) {
	cfg := &cmn.Config{RequestTimeout: -1, ConnectTimeout: -1}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.RequestTimeout != 0 || cfg.ConnectTimeout != 0 {
		t.Errorf("explicit -1 should map to infinite (0), got %v/%v",
			cfg.RequestTimeout, cfg.ConnectTimeout)
	}
}

func TestConfigHeartbeatRules(t *testing.T) {
	// timeout inherits interval
	cfg := &cmn.Config{PingInterval: cmn.Duration(time.Second)}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.PingTimeout != cfg.PingInterval {
		t.Errorf("timeout should inherit interval, got %v", cfg.PingTimeout)
	}

	// timeout clamped to interval
	cfg = &cmn.Config{
		PingInterval: cmn.Duration(time.Second),
		PingTimeout:  cmn.Duration(time.Minute),
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.PingTimeout != cfg.PingInterval {
		t.Errorf("timeout should clamp to interval, got %v", cfg.PingTimeout)
	}

	// disabled heartbeats clear the timeout
	cfg = &cmn.Config{PingTimeout: cmn.Duration(time.Second)}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.PingTimeout != 0 {
		t.Errorf("timeout without interval should clear, got %v", cfg.PingTimeout)
	}
}

func TestConfigFromYAML(t *testing.T) {
	raw := []byte(`
remote-addresses: ["proxy1:9099", "proxy2:9099"]
use-filters: ["lz4"]
request-timeout: 15s
heartbeat-interval: 2500
max-incoming-message-size: 1048576
tcp:
  tcp-delay-enabled: true
  receive-buffer-size: 65536
`)
	cfg := &cmn.Config{}
	if err := yaml.UnmarshalStrict(raw, cfg); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(cfg.RemoteAddresses) != 2 || cfg.RemoteAddresses[0] != "proxy1:9099" {
		t.Errorf("addresses: %v", cfg.RemoteAddresses)
	}
	if cfg.RequestTimeout.D() != 15*time.Second {
		t.Errorf("request-timeout: %v", cfg.RequestTimeout)
	}
	// bare integers are milliseconds
	if cfg.PingInterval.D() != 2500*time.Millisecond {
		t.Errorf("heartbeat-interval: %v", cfg.PingInterval)
	}
	if cfg.MaxIncomingMessageSize != 1<<20 {
		t.Errorf("max-incoming: %d", cfg.MaxIncomingMessageSize)
	}
	if !cfg.TCP.DelayEnabled || cfg.TCP.RecvBufferSize != 65536 {
		t.Errorf("tcp options: %+v", cfg.TCP)
	}
}

func TestConfigClone(t *testing.T) {
	cfg := &cmn.Config{RemoteAddresses: []string{"a:1"}, Filters: []string{"lz4"}}
	clone := cfg.Clone()
	clone.RemoteAddresses[0] = "b:2"
	clone.Filters[0] = "none"
	if cfg.RemoteAddresses[0] != "a:1" || cfg.Filters[0] != "lz4" {
		t.Error("clone shares slices with the original")
	}
}
