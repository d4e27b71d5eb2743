/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package tcp

import (
	"sync"

	"github.com/pkg/errors"
)

type (
	// AddressProvider hands out candidate cluster endpoints one at a time.
	// Next returns false once all candidates for the current open attempt
	// are exhausted; Accept marks the last returned address good; Reject
	// records a failed candidate.
	AddressProvider interface {
		Next() (addr string, ok bool)
		Accept()
		Reject(cause error)
	}

	// ProviderFactory builds a provider from a configured address list.
	ProviderFactory func(addrs []string) AddressProvider

	// StaticProvider cycles through a fixed address list, restarting after
	// exhaustion or acceptance.
	StaticProvider struct {
		mu    sync.Mutex
		addrs []string
		next  int
	}
)

var (
	factoryMu sync.RWMutex
	factories = make(map[string]ProviderFactory, 2)
)

func RegisterProvider(name string, f ProviderFactory) {
	factoryMu.Lock()
	factories[name] = f
	factoryMu.Unlock()
}

func LookupProvider(name string) (ProviderFactory, error) {
	factoryMu.RLock()
	f, ok := factories[name]
	factoryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown address provider %q", name)
	}
	return f, nil
}

func init() {
	RegisterProvider("static", func(addrs []string) AddressProvider {
		return NewStaticProvider(addrs...)
	})
}

func NewStaticProvider(addrs ...string) *StaticProvider {
	return &StaticProvider{addrs: append([]string(nil), addrs...)}
}

func (sp *StaticProvider) Next() (string, bool) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.next >= len(sp.addrs) {
		sp.next = 0
		return "", false
	}
	addr := sp.addrs[sp.next]
	sp.next++
	return addr, true
}

func (sp *StaticProvider) Accept() {
	sp.mu.Lock()
	sp.next = 0
	sp.mu.Unlock()
}

func (*StaticProvider) Reject(error) {}
