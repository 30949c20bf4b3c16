package sse_test

import (
	"bufio"
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/thinkstream/pkg/sse"
)

var _ = Describe("Writer", func() {
	var (
		buf *bytes.Buffer
		w   *sse.Writer
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		w = sse.NewWriter(buf)
	})

	It("frames a single-line payload", func() {
		Expect(w.Data("hello")).To(Succeed())
		Expect(buf.String()).To(Equal("data: hello\n\n"))
	})

	It("splits multi-line payloads into several data fields", func() {
		Expect(w.Data("one\ntwo")).To(Succeed())
		Expect(buf.String()).To(Equal("data: one\ndata: two\n\n"))

		ev, err := sse.NewReader(strings.NewReader(buf.String())).Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Data).To(Equal("one\ntwo"))
	})

	It("encodes JSON events", func() {
		Expect(w.JSON(map[string]string{"type": "error", "content": "Invalid stream ID"})).To(Succeed())
		Expect(buf.String()).To(Equal("data: {\"content\":\"Invalid stream ID\",\"type\":\"error\"}\n\n"))
	})

	It("writes the Done sentinel", func() {
		Expect(w.Done()).To(Succeed())

		ev, err := sse.NewReader(strings.NewReader(buf.String())).Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.IsDone()).To(BeTrue())
	})

	It("writes comments that readers skip", func() {
		Expect(w.Comment("keep-alive")).To(Succeed())
		Expect(w.Data("x")).To(Succeed())

		ev, err := sse.NewReader(strings.NewReader(buf.String())).Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Data).To(Equal("x"))
	})

	It("flushes buffered writers after every event", func() {
		var out bytes.Buffer
		bw := bufio.NewWriterSize(&out, 4096)
		sw := sse.NewWriter(bw)

		Expect(sw.Data("flushed")).To(Succeed())
		Expect(out.String()).To(Equal("data: flushed\n\n"))
	})
})
