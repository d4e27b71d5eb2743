/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
// Package protocol defines the named, versioned message schemas exchanged on
// peer channels: the Message/Request/Response contracts, per-version message
// factories, and the protocol registry a peer is configured with.
package protocol

import (
	"io"
	"sort"
	"sync"

	"github.com/oracle/coherence-go-extend-client/cmn"
	"github.com/oracle/coherence-go-extend-client/serial"
)

type (
	// Message is one logical unit on the wire. External (application)
	// messages have non-negative type ids; negative ids are reserved for the
	// peer's internal control messages.
	Message interface {
		TypeID() int32
		WriteExternal(w io.Writer, s serial.Serializer) error
		ReadExternal(r io.Reader, s serial.Serializer) error
	}

	// Request is a Message that expects a correlated Response.
	Request interface {
		Message
		ID() int64
		SetID(int64)
		// ExecuteInOrder forces the service thread to process the response
		// inline rather than on a worker pool.
		ExecuteInOrder() bool
	}

	// Response carries the result or failure for a Request.
	Response interface {
		Message
		RequestID() int64
		SetRequestID(int64)
		IsFailure() bool
		Result() any
		SetResult(any)
		SetFailure(any)
	}

	// Factory creates message instances by type id for one protocol version.
	Factory interface {
		Version() int32
		New(typeID int32) (Message, error)
	}

	// Protocol is a named, versioned message schema. Identity is the name;
	// versions are negotiated on connection open between SupportedVersion
	// (the minimum) and CurrentVersion.
	Protocol interface {
		Name() string
		CurrentVersion() int32
		SupportedVersion() int32
		Factory(version int32) (Factory, error)
	}
)

//////////////
// Registry //
//////////////

// Registry holds the protocols a peer speaks, keyed by name. It is mutable
// only until Freeze; a started peer never observes registration churn.
type Registry struct {
	mu     sync.RWMutex
	m      map[string]Protocol
	frozen bool
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Protocol, 4)}
}

func (r *Registry) Register(p Protocol) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return cmn.NewErrProtocolMismatch(p.Name(), "registry is frozen")
	}
	if _, ok := r.m[p.Name()]; ok {
		return cmn.NewErrProtocolMismatch(p.Name(), "already registered")
	}
	if p.SupportedVersion() > p.CurrentVersion() {
		return cmn.NewErrProtocolMismatch(p.Name(), "minimum version %d exceeds current %d",
			p.SupportedVersion(), p.CurrentVersion())
	}
	r.m[p.Name()] = p
	return nil
}

func (r *Registry) Lookup(name string) (Protocol, error) {
	r.mu.RLock()
	p, ok := r.m[name]
	r.mu.RUnlock()
	if !ok {
		return nil, cmn.NewErrProtocolMismatch(name, "unknown protocol")
	}
	return p, nil
}

func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Names returns the registered protocol names, sorted for deterministic
// negotiation payloads.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
