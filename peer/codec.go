/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package peer

import (
	"bytes"
	"io"

	"github.com/oracle/coherence-go-extend-client/filters"
	"github.com/oracle/coherence-go-extend-client/protocol"
	"github.com/oracle/coherence-go-extend-client/wire"
)

// Codec turns messages into channel-addressed payload bytes and back. The
// payload it produces sits inside the frame envelope and inside the filter
// pipeline, so the channel id is filtered along with the body.
type Codec interface {
	// Encode writes the channel id and the message body.
	Encode(w io.Writer, ch *Channel, msg protocol.Message) error
	// Decode reads the channel id, resolves the channel, and materializes a
	// typed message with the channel's factory and serializer. An id that
	// does not resolve to an open channel yields (nil, nil, nil): the peer
	// may have closed the channel locally, and the message is dropped.
	Decode(r io.Reader, resolve func(int32) *Channel) (*Channel, protocol.Message, error)
}

// stdCodec is the built-in codec: packed channel id, packed type id, then
// the message's own external form.
type stdCodec struct{}

var _ Codec = stdCodec{}

func (stdCodec) Encode(w io.Writer, ch *Channel, msg protocol.Message) error {
	ww := wire.NewWriter(w)
	if err := ww.Int32(ch.id); err != nil {
		return err
	}
	if err := ww.Int32(msg.TypeID()); err != nil {
		return err
	}
	return msg.WriteExternal(w, ch.serializer)
}

func (stdCodec) Decode(r io.Reader, resolve func(int32) *Channel) (*Channel, protocol.Message, error) {
	rr := wire.NewReader(r)
	chID, err := rr.Int32()
	if err != nil {
		return nil, nil, err
	}
	ch := resolve(chID)
	if ch == nil || !ch.IsOpen() {
		return nil, nil, nil
	}
	typeID, err := rr.Int32()
	if err != nil {
		return ch, nil, err
	}
	msg, err := ch.New(typeID)
	if err != nil {
		return ch, nil, err
	}
	if err := msg.ReadExternal(rr.Raw(), ch.serializer); err != nil {
		return ch, nil, err
	}
	return ch, msg, nil
}

// encode runs msg through the filter pipeline into fb.
func (p *Peer) encode(fb *wire.FrameBuffer, ch *Channel, msg protocol.Message) error {
	w, err := filters.WrapWriter(fb, p.filters)
	if err != nil {
		return err
	}
	if err := p.codec.Encode(w, ch, msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// decode reverses encode for one received frame payload.
func (p *Peer) decode(conn *Connection, body []byte) (*Channel, protocol.Message, error) {
	r, err := filters.WrapReader(bytes.NewReader(body), p.filters)
	if err != nil {
		return nil, nil, err
	}
	return p.codec.Decode(r, conn.GetChannel)
}

// rawChannelID parses the channel id from the frame head outside the filter
// pipeline; used only to pick the close target when decoding fails.
func rawChannelID(body []byte) (int32, bool) {
	id, err := wire.ReadInt32(bytes.NewReader(body))
	return id, err == nil
}
