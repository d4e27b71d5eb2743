/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package protocol_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/oracle/coherence-go-extend-client/cmn"
	"github.com/oracle/coherence-go-extend-client/protocol"
	"github.com/oracle/coherence-go-extend-client/serial"
	"github.com/oracle/coherence-go-extend-client/wire"
)

type noteMessage struct {
	protocol.RequestBase
	note string
}

func (*noteMessage) TypeID() int32 { return 11 }

func (m *noteMessage) WriteExternal(w io.Writer, _ serial.Serializer) error {
	if err := m.WriteID(w); err != nil {
		return err
	}
	return wire.NewWriter(w).String(m.note)
}

func (m *noteMessage) ReadExternal(r io.Reader, _ serial.Serializer) error {
	rr := wire.NewReader(r)
	if err := m.ReadID(rr); err != nil {
		return err
	}
	var err error
	m.note, err = rr.String()
	return err
}

func noteProtocol() protocol.Protocol {
	f := protocol.NewFactory(2).
		WithMessage(func() protocol.Message { return &noteMessage{} })
	return protocol.NewProtocol("Note", 1, 2, f)
}

func TestFactoryCreatesByTypeID(t *testing.T) {
	p := noteProtocol()
	f, err := p.Factory(2)
	if err != nil {
		t.Fatal(err)
	}
	m, err := f.New(11)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.(*noteMessage); !ok {
		t.Fatalf("wrong type %T", m)
	}
	if _, err := f.New(12); !cmn.IsErrDecode(err) {
		t.Fatalf("unknown type id: %v", err)
	}
	if _, err := p.Factory(3); !cmn.IsErrProtocolMismatch(err) {
		t.Fatalf("unknown version: %v", err)
	}
}

func TestMessageBaseRoundTrip(t *testing.T) {
	m := &noteMessage{note: "remember"}
	m.SetID(99)
	var buf bytes.Buffer
	if err := m.WriteExternal(&buf, serial.Binary{}); err != nil {
		t.Fatal(err)
	}
	got := &noteMessage{}
	if err := got.ReadExternal(&buf, serial.Binary{}); err != nil {
		t.Fatal(err)
	}
	if got.ID() != 99 || got.note != "remember" {
		t.Fatalf("round trip: id=%d note=%q", got.ID(), got.note)
	}
}

func TestResponseBase(t *testing.T) {
	var r protocol.ResponseBase
	r.SetRequestID(7)
	r.SetResult("ok")
	if r.IsFailure() || r.Result() != "ok" || r.RequestID() != 7 {
		t.Fatalf("result state: %+v", r)
	}
	r.SetFailure("boom")
	if !r.IsFailure() || r.Result() != "boom" {
		t.Fatalf("failure state: %+v", r)
	}
}

func TestRegistry(t *testing.T) {
	reg := protocol.NewRegistry()
	if err := reg.Register(noteProtocol()); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(noteProtocol()); !cmn.IsErrProtocolMismatch(err) {
		t.Fatalf("duplicate registration: %v", err)
	}
	if _, err := reg.Lookup("Note"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Lookup("Nope"); !cmn.IsErrProtocolMismatch(err) {
		t.Fatalf("unknown lookup: %v", err)
	}

	reg.Freeze()
	other := protocol.NewProtocol("Other", 1, 1)
	if err := reg.Register(other); err == nil {
		t.Fatal("registration after freeze succeeded")
	}
	names := reg.Names()
	if len(names) != 1 || names[0] != "Note" {
		t.Fatalf("names: %v", names)
	}
}

func TestRegistryRejectsBadVersionRange(t *testing.T) {
	reg := protocol.NewRegistry()
	bad := protocol.NewProtocol("Bad", 3, 2) // minimum above current
	if err := reg.Register(bad); err == nil {
		t.Fatal("inverted version range accepted")
	}
}
