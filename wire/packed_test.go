/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package wire_test

import (
	"bytes"
	"math"

	"github.com/oracle/coherence-go-extend-client/wire"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Packed ints", func() {
	int32Samples := []int32{
		0, 1, -1, 2, -2, 63, 64, -64, -65, 127, 128, -128,
		8191, 8192, -8192, 1<<20 - 1, 1 << 20, -(1 << 20),
		math.MaxInt32, math.MinInt32, math.MaxInt32 - 1, math.MinInt32 + 1,
	}
	int64Samples := []int64{
		0, 1, -1, 63, -64, 1 << 34, -(1 << 34),
		math.MaxInt64, math.MinInt64, math.MaxInt64 - 1, math.MinInt64 + 1,
		int64(math.MaxInt32) + 1, int64(math.MinInt32) - 1,
	}

	It("round-trips int32 values", func() {
		for _, v := range int32Samples {
			b := wire.AppendInt32(nil, v)
			Expect(len(b)).To(Equal(wire.SizeInt32(v)))
			Expect(len(b)).To(BeNumerically("<=", wire.MaxPackedInt32))
			got, err := wire.ReadInt32(bytes.NewReader(b))
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(v))
		}
	})

	It("round-trips a dense sweep around the int32 group boundaries", func() {
		for _, center := range []int64{0, 1 << 6, 1 << 13, 1 << 20, 1 << 27, math.MaxInt32, math.MinInt32} {
			for d := int64(-70); d <= 70; d++ {
				x := center + d
				if x > math.MaxInt32 || x < math.MinInt32 {
					continue
				}
				v := int32(x)
				got, err := wire.ReadInt32(bytes.NewReader(wire.AppendInt32(nil, v)))
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(v))
			}
		}
	})

	It("round-trips int64 values", func() {
		for _, v := range int64Samples {
			b := wire.AppendInt64(nil, v)
			Expect(len(b)).To(BeNumerically("<=", wire.MaxPackedInt64))
			got, err := wire.ReadInt64(bytes.NewReader(b))
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(v))
		}
	})

	It("rejects overlong int32 sequences", func() {
		b := bytes.Repeat([]byte{0x80}, 5)
		b = append(b, 0x01)
		_, err := wire.ReadInt32(bytes.NewReader(b))
		Expect(err).To(MatchError(wire.ErrIntOverflow))
	})

	It("rejects overlong int64 sequences", func() {
		b := bytes.Repeat([]byte{0x80}, 10)
		b = append(b, 0x01)
		_, err := wire.ReadInt64(bytes.NewReader(b))
		Expect(err).To(MatchError(wire.ErrIntOverflow))
	})

	It("accepts maximum-length sequences", func() {
		b := wire.AppendInt32(nil, math.MinInt32)
		Expect(len(b)).To(Equal(wire.MaxPackedInt32))
		b = wire.AppendInt64(nil, math.MinInt64)
		Expect(len(b)).To(Equal(wire.MaxPackedInt64))
	})

	It("encodes small values in one byte", func() {
		for v := int32(-64); v <= 63; v++ {
			Expect(wire.SizeInt32(v)).To(Equal(1), "value %d", v)
		}
		Expect(wire.SizeInt32(64)).To(Equal(2))
		Expect(wire.SizeInt32(-65)).To(Equal(2))
	})
})

var _ = Describe("Reader/Writer", func() {
	It("round-trips primitives", func() {
		var buf bytes.Buffer
		w := wire.NewWriter(&buf)
		Expect(w.Int32(-42)).To(Succeed())
		Expect(w.Int64(1 << 40)).To(Succeed())
		Expect(w.Bool(true)).To(Succeed())
		Expect(w.String("TcpInitiator")).To(Succeed())
		Expect(w.Bytes([]byte{1, 2, 3})).To(Succeed())
		Expect(w.Bytes(nil)).To(Succeed())

		r := wire.NewReader(&buf)
		i32, err := r.Int32()
		Expect(err).NotTo(HaveOccurred())
		Expect(i32).To(Equal(int32(-42)))
		i64, err := r.Int64()
		Expect(err).NotTo(HaveOccurred())
		Expect(i64).To(Equal(int64(1 << 40)))
		b, err := r.Bool()
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(BeTrue())
		s, err := r.String()
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal("TcpInitiator"))
		bs, err := r.Bytes()
		Expect(err).NotTo(HaveOccurred())
		Expect(bs).To(Equal([]byte{1, 2, 3}))
		bs, err = r.Bytes()
		Expect(err).NotTo(HaveOccurred())
		Expect(bs).To(BeNil())
	})
})
