/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package peer

import (
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/oracle/coherence-go-extend-client/protocol"
	"github.com/oracle/coherence-go-extend-client/serial"
	"github.com/oracle/coherence-go-extend-client/wire"
)

// Internal message type ids are negative; external (application) protocols
// use non-negative ids. The NotifyShutdown and EncodedMessage ids are
// reserved and never appear on the wire; the reader hands frames to the
// service thread as encodedMessage values, not as typed messages.
const (
	typeIDAcceptChannel          int32 = -1
	typeIDOpenConnectionRequest  int32 = -2
	typeIDOpenConnectionResponse int32 = -3
	typeIDCloseChannel           int32 = -4
	typeIDNotifyShutdown         int32 = -5
	typeIDOpenChannelRequest     int32 = -6
	typeIDOpenChannelResponse    int32 = -7
	typeIDPingRequest            int32 = -8
	typeIDPingResponse           int32 = -9
	typeIDEncodedMessage         int32 = -10
	typeIDCloseConnection        int32 = -11
	typeIDNotifyChannelClosed    int32 = -13
	typeIDNotifyConnectionClosed int32 = -14
)

// ControlProtocolName names the internal messaging protocol spoken on
// channel 0.
const ControlProtocolName = "Messaging"

var (
	controlFactory = protocol.NewFactory(1).
			WithMessage(func() protocol.Message { return &acceptChannel{} }).
			WithMessage(func() protocol.Message { return &openConnectionRequest{} }).
			WithMessage(func() protocol.Message { return &openConnectionResponse{} }).
			WithMessage(func() protocol.Message { return &closeChannel{} }).
			WithMessage(func() protocol.Message { return &openChannelRequest{} }).
			WithMessage(func() protocol.Message { return &openChannelResponse{} }).
			WithMessage(func() protocol.Message { return &pingRequest{} }).
			WithMessage(func() protocol.Message { return &pingResponse{} }).
			WithMessage(func() protocol.Message { return &closeConnection{} }).
			WithMessage(func() protocol.Message { return &notifyChannelClosed{} }).
			WithMessage(func() protocol.Message { return &notifyConnectionClosed{} })

	controlProtocol = protocol.NewProtocol(ControlProtocolName, 1, 1, controlFactory)
)

type (
	// encodedMessage carries one raw frame payload from the reader daemon to
	// the service thread.
	encodedMessage struct {
		conn *Connection
		body []byte
	}

	// openResult is the decoded result of a successful open-connection
	// exchange.
	openResult struct {
		memberUUID string
		versions   map[string]int32
		redirects  []Redirect
	}

	// versionRange is a protocol offer: current and minimum supported.
	versionRange struct {
		Current   int32
		Supported int32
	}

	openConnectionRequest struct {
		protocol.RequestBase
		clientUUID string
		editions   map[string]versionRange
		identity   []byte
	}

	openConnectionResponse struct {
		protocol.ResponseBase
		failureText string
		memberUUID  string
		versions    map[string]int32
		redirects   []Redirect
	}

	openChannelRequest struct {
		protocol.RequestBase
		protocolName string
		version      int32
		identity     []byte
	}

	openChannelResponse struct {
		protocol.ResponseBase
		failureText string
		channelID   int32
	}

	acceptChannel struct {
		channelID    int32
		protocolName string
		version      int32
	}

	closeChannel struct {
		channelID int32
	}

	closeConnection struct{}

	pingRequest  struct{}
	pingResponse struct{}

	notifyChannelClosed struct {
		channelID int32
		cause     string
	}

	notifyConnectionClosed struct {
		cause string
	}
)

///////////////////////////
// openConnectionRequest //
///////////////////////////

func (*openConnectionRequest) TypeID() int32 { return typeIDOpenConnectionRequest }

func (m *openConnectionRequest) WriteExternal(w io.Writer, _ serial.Serializer) error {
	ww := wire.NewWriter(w)
	if err := ww.Int64(m.ID()); err != nil {
		return err
	}
	if err := ww.String(m.clientUUID); err != nil {
		return err
	}
	names := make([]string, 0, len(m.editions))
	for name := range m.editions {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := ww.Int32(int32(len(names))); err != nil {
		return err
	}
	for _, name := range names {
		vr := m.editions[name]
		if err := ww.String(name); err != nil {
			return err
		}
		if err := ww.Int32(vr.Current); err != nil {
			return err
		}
		if err := ww.Int32(vr.Supported); err != nil {
			return err
		}
	}
	return ww.Bytes(m.identity)
}

func (m *openConnectionRequest) ReadExternal(r io.Reader, _ serial.Serializer) error {
	rr := wire.NewReader(r)
	id, err := rr.Int64()
	if err != nil {
		return err
	}
	m.SetID(id)
	if m.clientUUID, err = rr.String(); err != nil {
		return err
	}
	n, err := rr.Int32()
	if err != nil {
		return err
	}
	m.editions = make(map[string]versionRange, n)
	for i := int32(0); i < n; i++ {
		name, err := rr.String()
		if err != nil {
			return err
		}
		var vr versionRange
		if vr.Current, err = rr.Int32(); err != nil {
			return err
		}
		if vr.Supported, err = rr.Int32(); err != nil {
			return err
		}
		m.editions[name] = vr
	}
	m.identity, err = rr.Bytes()
	return err
}

////////////////////////////
// openConnectionResponse //
////////////////////////////

func (*openConnectionResponse) TypeID() int32 { return typeIDOpenConnectionResponse }

func (m *openConnectionResponse) WriteExternal(w io.Writer, _ serial.Serializer) error {
	ww := wire.NewWriter(w)
	if err := ww.Int64(m.RequestID()); err != nil {
		return err
	}
	if err := ww.Bool(m.IsFailure()); err != nil {
		return err
	}
	if m.IsFailure() {
		return ww.String(m.failureText)
	}
	if err := ww.String(m.memberUUID); err != nil {
		return err
	}
	names := make([]string, 0, len(m.versions))
	for name := range m.versions {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := ww.Int32(int32(len(names))); err != nil {
		return err
	}
	for _, name := range names {
		if err := ww.String(name); err != nil {
			return err
		}
		if err := ww.Int32(m.versions[name]); err != nil {
			return err
		}
	}
	if err := ww.Int32(int32(len(m.redirects))); err != nil {
		return err
	}
	for _, rd := range m.redirects {
		if err := ww.String(rd.Host); err != nil {
			return err
		}
		if err := ww.Int32(rd.Port32); err != nil {
			return err
		}
	}
	return nil
}

func (m *openConnectionResponse) ReadExternal(r io.Reader, _ serial.Serializer) error {
	rr := wire.NewReader(r)
	id, err := rr.Int64()
	if err != nil {
		return err
	}
	m.SetRequestID(id)
	failure, err := rr.Bool()
	if err != nil {
		return err
	}
	if failure {
		if m.failureText, err = rr.String(); err != nil {
			return err
		}
		m.SetFailure(errors.New(m.failureText))
		return nil
	}
	if m.memberUUID, err = rr.String(); err != nil {
		return err
	}
	n, err := rr.Int32()
	if err != nil {
		return err
	}
	m.versions = make(map[string]int32, n)
	for i := int32(0); i < n; i++ {
		name, err := rr.String()
		if err != nil {
			return err
		}
		if m.versions[name], err = rr.Int32(); err != nil {
			return err
		}
	}
	if n, err = rr.Int32(); err != nil {
		return err
	}
	for i := int32(0); i < n; i++ {
		var rd Redirect
		if rd.Host, err = rr.String(); err != nil {
			return err
		}
		if rd.Port32, err = rr.Int32(); err != nil {
			return err
		}
		m.redirects = append(m.redirects, rd)
	}
	m.SetResult(&openResult{
		memberUUID: m.memberUUID,
		versions:   m.versions,
		redirects:  m.redirects,
	})
	return nil
}

////////////////////////
// openChannelRequest //
////////////////////////

func (*openChannelRequest) TypeID() int32 { return typeIDOpenChannelRequest }

func (m *openChannelRequest) WriteExternal(w io.Writer, _ serial.Serializer) error {
	ww := wire.NewWriter(w)
	if err := ww.Int64(m.ID()); err != nil {
		return err
	}
	if err := ww.String(m.protocolName); err != nil {
		return err
	}
	if err := ww.Int32(m.version); err != nil {
		return err
	}
	return ww.Bytes(m.identity)
}

func (m *openChannelRequest) ReadExternal(r io.Reader, _ serial.Serializer) error {
	rr := wire.NewReader(r)
	id, err := rr.Int64()
	if err != nil {
		return err
	}
	m.SetID(id)
	if m.protocolName, err = rr.String(); err != nil {
		return err
	}
	if m.version, err = rr.Int32(); err != nil {
		return err
	}
	m.identity, err = rr.Bytes()
	return err
}

/////////////////////////
// openChannelResponse //
/////////////////////////

func (*openChannelResponse) TypeID() int32 { return typeIDOpenChannelResponse }

func (m *openChannelResponse) WriteExternal(w io.Writer, _ serial.Serializer) error {
	ww := wire.NewWriter(w)
	if err := ww.Int64(m.RequestID()); err != nil {
		return err
	}
	if err := ww.Bool(m.IsFailure()); err != nil {
		return err
	}
	if m.IsFailure() {
		return ww.String(m.failureText)
	}
	return ww.Int32(m.channelID)
}

func (m *openChannelResponse) ReadExternal(r io.Reader, _ serial.Serializer) error {
	rr := wire.NewReader(r)
	id, err := rr.Int64()
	if err != nil {
		return err
	}
	m.SetRequestID(id)
	failure, err := rr.Bool()
	if err != nil {
		return err
	}
	if failure {
		if m.failureText, err = rr.String(); err != nil {
			return err
		}
		m.SetFailure(errors.New(m.failureText))
		return nil
	}
	if m.channelID, err = rr.Int32(); err != nil {
		return err
	}
	m.SetResult(m.channelID)
	return nil
}

///////////////////
// acceptChannel //
///////////////////

func (*acceptChannel) TypeID() int32 { return typeIDAcceptChannel }

func (m *acceptChannel) WriteExternal(w io.Writer, _ serial.Serializer) error {
	ww := wire.NewWriter(w)
	if err := ww.Int32(m.channelID); err != nil {
		return err
	}
	if err := ww.String(m.protocolName); err != nil {
		return err
	}
	return ww.Int32(m.version)
}

func (m *acceptChannel) ReadExternal(r io.Reader, _ serial.Serializer) error {
	rr := wire.NewReader(r)
	var err error
	if m.channelID, err = rr.Int32(); err != nil {
		return err
	}
	if m.protocolName, err = rr.String(); err != nil {
		return err
	}
	m.version, err = rr.Int32()
	return err
}

//////////////////////////////////
// close/notify control signals //
//////////////////////////////////

func (*closeChannel) TypeID() int32 { return typeIDCloseChannel }

func (m *closeChannel) WriteExternal(w io.Writer, _ serial.Serializer) error {
	return wire.NewWriter(w).Int32(m.channelID)
}

func (m *closeChannel) ReadExternal(r io.Reader, _ serial.Serializer) (err error) {
	m.channelID, err = wire.NewReader(r).Int32()
	return
}

func (*closeConnection) TypeID() int32                                    { return typeIDCloseConnection }
func (*closeConnection) WriteExternal(io.Writer, serial.Serializer) error { return nil }
func (*closeConnection) ReadExternal(io.Reader, serial.Serializer) error  { return nil }

func (*pingRequest) TypeID() int32                                    { return typeIDPingRequest }
func (*pingRequest) WriteExternal(io.Writer, serial.Serializer) error { return nil }
func (*pingRequest) ReadExternal(io.Reader, serial.Serializer) error  { return nil }

func (*pingResponse) TypeID() int32                                    { return typeIDPingResponse }
func (*pingResponse) WriteExternal(io.Writer, serial.Serializer) error { return nil }
func (*pingResponse) ReadExternal(io.Reader, serial.Serializer) error  { return nil }

func (*notifyChannelClosed) TypeID() int32 { return typeIDNotifyChannelClosed }

func (m *notifyChannelClosed) WriteExternal(w io.Writer, _ serial.Serializer) error {
	ww := wire.NewWriter(w)
	if err := ww.Int32(m.channelID); err != nil {
		return err
	}
	return ww.String(m.cause)
}

func (m *notifyChannelClosed) ReadExternal(r io.Reader, _ serial.Serializer) error {
	rr := wire.NewReader(r)
	var err error
	if m.channelID, err = rr.Int32(); err != nil {
		return err
	}
	m.cause, err = rr.String()
	return err
}

func (*notifyConnectionClosed) TypeID() int32 { return typeIDNotifyConnectionClosed }

func (m *notifyConnectionClosed) WriteExternal(w io.Writer, _ serial.Serializer) error {
	return wire.NewWriter(w).String(m.cause)
}

func (m *notifyConnectionClosed) ReadExternal(r io.Reader, _ serial.Serializer) (err error) {
	m.cause, err = wire.NewReader(r).String()
	return
}

// interface guards
var (
	_ protocol.Request  = (*openConnectionRequest)(nil)
	_ protocol.Request  = (*openChannelRequest)(nil)
	_ protocol.Response = (*openConnectionResponse)(nil)
	_ protocol.Response = (*openChannelResponse)(nil)
)
