/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package wire_test

import (
	"bytes"
	"io"

	"github.com/oracle/coherence-go-extend-client/wire"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Frame envelope", func() {
	It("round-trips a frame", func() {
		fb := wire.NewFrameBuffer()
		payload := []byte("channel-id-and-body")
		_, err := fb.Write(payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(fb.PayloadLen()).To(Equal(len(payload)))

		frame := fb.Frame()
		Expect(len(frame)).To(Equal(wire.SizeInt32(int32(len(payload))) + len(payload)))

		got, err := wire.ReadFrame(bytes.NewReader(frame), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(payload))
	})

	It("emits a multi-byte length prefix for large payloads", func() {
		fb := wire.NewFrameBuffer()
		payload := bytes.Repeat([]byte{0xAB}, 300)
		_, _ = fb.Write(payload)
		frame := fb.Frame()
		Expect(len(frame)).To(Equal(2 + len(payload)))

		got, err := wire.ReadFrame(bytes.NewReader(frame), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(payload))
	})

	It("rejects oversize incoming frames before reading the body", func() {
		frame := wire.AppendInt32(nil, 1025)
		// no body on purpose: the guard must trip on the length alone
		_, err := wire.ReadFrame(bytes.NewReader(frame), 1024)
		var tooLarge *wire.ErrFrameTooLarge
		Expect(err).To(BeAssignableToTypeOf(tooLarge))
	})

	It("reports a truncated body as unexpected EOF", func() {
		fb := wire.NewFrameBuffer()
		_, _ = fb.Write([]byte("full payload"))
		frame := fb.Frame()
		_, err := wire.ReadFrame(bytes.NewReader(frame[:len(frame)-3]), 0)
		Expect(err).To(MatchError(io.ErrUnexpectedEOF))
	})

	It("resets for reuse", func() {
		fb := wire.NewFrameBuffer()
		_, _ = fb.Write([]byte("first"))
		_ = fb.Frame()
		fb.Reset()
		Expect(fb.PayloadLen()).To(BeZero())
		_, _ = fb.Write([]byte("second"))
		got, err := wire.ReadFrame(bytes.NewReader(fb.Frame()), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]byte("second")))
	})
})

var _ = Describe("Port32", func() {
	It("passes bare base ports through", func() {
		base, sub := wire.SplitPort32(9099)
		Expect(base).To(Equal(int32(9099)))
		Expect(sub).To(Equal(wire.SubportNone))
	})

	It("splits composite ports", func() {
		p32 := wire.JoinPort32(9099, wire.SubportNameService)
		Expect(p32).To(BeNumerically("<", 0))
		base, sub := wire.SplitPort32(p32)
		Expect(base).To(Equal(int32(9099)))
		Expect(sub).To(Equal(wire.SubportNameService))
	})

	It("treats the subport as unsigned", func() {
		p32 := wire.JoinPort32(9099, 0xFFFE)
		base, sub := wire.SplitPort32(p32)
		Expect(base).To(Equal(int32(9099)))
		Expect(sub).To(Equal(int32(0xFFFE)))
	})

	It("reinterprets high base ports as unsigned", func() {
		// ephemeral-range base ports set the high bit of the 16-bit field;
		// decoding must not sign-extend them
		base, sub := wire.SplitPort32(wire.JoinPort32(40000, wire.SubportNameService))
		Expect(base).To(Equal(int32(40000)))
		Expect(sub).To(Equal(wire.SubportNameService))
	})

	It("round-trips across the port range", func() {
		for _, base := range []int32{1, 80, 9099, 32000, 32768, 40000, 60999, 65534} {
			for _, sub := range []int32{wire.SubportNone, 0, 3, 17, 65535} {
				base2, sub2 := wire.SplitPort32(wire.JoinPort32(base, sub))
				Expect(base2).To(Equal(base))
				Expect(sub2).To(Equal(sub))
			}
		}
	})
})
