/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package protocol

import (
	"io"

	"github.com/oracle/coherence-go-extend-client/cmn"
	"github.com/oracle/coherence-go-extend-client/serial"
	"github.com/oracle/coherence-go-extend-client/wire"
)

type (
	// RequestBase carries the correlation id; embed it in request
	// implementations. The id is assigned by the channel on send and written
	// as the first field of the body.
	RequestBase struct {
		id int64
	}

	// ResponseBase carries the correlation id, failure flag and result;
	// embed it in response implementations.
	ResponseBase struct {
		result  any
		id      int64
		failure bool
	}

	// StdFactory builds messages from a map of type-id constructors.
	StdFactory struct {
		ctors   map[int32]func() Message
		version int32
	}

	// StdProtocol is the common Protocol implementation: one StdFactory per
	// supported version.
	StdProtocol struct {
		factories map[int32]Factory
		name      string
		current   int32
		supported int32
	}
)

/////////////////
// RequestBase //
/////////////////

func (r *RequestBase) ID() int64          { return r.id }
func (r *RequestBase) SetID(id int64)     { r.id = id }
func (*RequestBase) ExecuteInOrder() bool { return false }

// WriteID and ReadID frame the correlation id; concrete requests call them
// first from their WriteExternal/ReadExternal.
func (r *RequestBase) WriteID(w io.Writer) error {
	return wire.NewWriter(w).Int64(r.id)
}

func (r *RequestBase) ReadID(rd *wire.Reader) (err error) {
	r.id, err = rd.Int64()
	return
}

//////////////////
// ResponseBase //
//////////////////

func (r *ResponseBase) RequestID() int64      { return r.id }
func (r *ResponseBase) SetRequestID(id int64) { r.id = id }
func (r *ResponseBase) IsFailure() bool       { return r.failure }
func (r *ResponseBase) Result() any           { return r.result }
func (r *ResponseBase) SetResult(v any)       { r.result, r.failure = v, false }
func (r *ResponseBase) SetFailure(v any)      { r.result, r.failure = v, true }

// WriteHead emits the correlation id, the failure flag and the result;
// ReadHead is its inverse.
func (r *ResponseBase) WriteHead(w io.Writer, s serial.Serializer) error {
	ww := wire.NewWriter(w)
	if err := ww.Int64(r.id); err != nil {
		return err
	}
	if err := ww.Bool(r.failure); err != nil {
		return err
	}
	return s.Serialize(w, r.result)
}

func (r *ResponseBase) ReadHead(rd *wire.Reader, body io.Reader, s serial.Serializer) (err error) {
	if r.id, err = rd.Int64(); err != nil {
		return
	}
	if r.failure, err = rd.Bool(); err != nil {
		return
	}
	r.result, err = s.Deserialize(body)
	return
}

////////////////
// StdFactory //
////////////////

func NewFactory(version int32) *StdFactory {
	return &StdFactory{version: version, ctors: make(map[int32]func() Message, 8)}
}

// WithMessage registers a constructor; the type id is taken from a probe
// instance. Chainable.
func (f *StdFactory) WithMessage(ctor func() Message) *StdFactory {
	f.ctors[ctor().TypeID()] = ctor
	return f
}

func (f *StdFactory) Version() int32 { return f.version }

func (f *StdFactory) New(typeID int32) (Message, error) {
	ctor, ok := f.ctors[typeID]
	if !ok {
		return nil, cmn.NewErrDecode(nil, "unknown message type %d (factory version %d)", typeID, f.version)
	}
	return ctor(), nil
}

/////////////////
// StdProtocol //
/////////////////

func NewProtocol(name string, supported, current int32, factories ...Factory) *StdProtocol {
	p := &StdProtocol{
		name:      name,
		current:   current,
		supported: supported,
		factories: make(map[int32]Factory, len(factories)),
	}
	for _, f := range factories {
		p.factories[f.Version()] = f
	}
	return p
}

func (p *StdProtocol) Name() string            { return p.name }
func (p *StdProtocol) CurrentVersion() int32   { return p.current }
func (p *StdProtocol) SupportedVersion() int32 { return p.supported }

func (p *StdProtocol) Factory(version int32) (Factory, error) {
	f, ok := p.factories[version]
	if !ok {
		return nil, cmn.NewErrProtocolMismatch(p.name, "no factory for version %d", version)
	}
	return f, nil
}
