package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/thinkstream/pkg/logger"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func decodeLine(buf *bytes.Buffer) map[string]any {
	var parsed map[string]any
	Expect(json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &parsed)).To(Succeed())
	return parsed
}

var _ = Describe("Logger", func() {
	Describe("profiles", func() {
		It("writes JSON records for services", func() {
			var buf bytes.Buffer
			l := logger.New(logger.ForService(), logger.WithWriter(&buf), logger.WithComponent("api"))
			l.Info("care plan stream opened", "stream_id", "s-1", "stage", 2)

			parsed := decodeLine(&buf)
			Expect(parsed["msg"]).To(Equal("care plan stream opened"))
			Expect(parsed["component"]).To(Equal("api"))
			Expect(parsed["stream_id"]).To(Equal("s-1"))
			Expect(parsed["stage"]).To(BeNumerically("==", 2))
		})

		It("writes pretty records to stderr for CLI commands", func() {
			f, err := os.Create(filepath.Join(GinkgoT().TempDir(), "stderr"))
			Expect(err).NotTo(HaveOccurred())
			stderr := os.Stderr
			os.Stderr = f
			DeferCleanup(func() { os.Stderr = stderr })

			l := logger.New(logger.ForCLI(), logger.WithComponent("chat"))
			l.Info("resuming conversation", "backend", "grok")
			Expect(f.Close()).To(Succeed())

			out, err := os.ReadFile(f.Name())
			Expect(err).NotTo(HaveOccurred())
			Expect(string(out)).To(ContainSubstring("resuming conversation"))
			Expect(string(out)).To(ContainSubstring("backend=grok"))
			Expect(json.Valid(bytes.TrimSpace(out))).To(BeFalse())
		})

		It("lets an explicit format override the profile", func() {
			var buf bytes.Buffer
			l := logger.New(logger.ForService(), logger.WithFormat(logger.FormatText), logger.WithWriter(&buf))
			l.Info("proxy listening", "listen", ":8080")

			Expect(buf.String()).To(ContainSubstring("listen=:8080"))
			Expect(json.Valid(bytes.TrimSpace(buf.Bytes()))).To(BeFalse())
		})

		It("defaults to text records without options", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf)).Info("hello", "key", "value")
			Expect(buf.String()).To(ContainSubstring("key=value"))
		})
	})

	Describe("levels", func() {
		It("emits debug records only in debug mode", func() {
			var quiet, loud bytes.Buffer
			logger.New(logger.ForService(), logger.WithWriter(&quiet)).Debug("stream chunk")
			logger.New(logger.ForService(), logger.WithWriter(&loud), logger.WithDebug(true)).Debug("stream chunk")

			Expect(quiet.String()).To(BeEmpty())
			Expect(loud.String()).To(ContainSubstring("stream chunk"))
		})
	})

	Describe("ParseFormat", func() {
		It("falls back to the default for an empty value", func() {
			f, err := logger.ParseFormat("", logger.FormatJSON)
			Expect(err).NotTo(HaveOccurred())
			Expect(f).To(Equal(logger.FormatJSON))
		})

		It("accepts known formats case-insensitively", func() {
			f, err := logger.ParseFormat(" Pretty ", logger.FormatJSON)
			Expect(err).NotTo(HaveOccurred())
			Expect(f).To(Equal(logger.FormatPretty))
		})

		It("rejects unknown formats", func() {
			_, err := logger.ParseFormat("xml", logger.FormatJSON)
			Expect(err).To(MatchError(ContainSubstring(`unknown log format "xml"`)))
		})
	})

	Describe("Nop", func() {
		It("is disabled at every level", func() {
			l := logger.Nop()
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
			Expect(func() { l.With("stream_id", "s").WithGroup("g").Info("msg") }).NotTo(Panic())
		})
	})

	Describe("Multi", func() {
		It("copies records to the console and the log file", func() {
			var console, file bytes.Buffer
			l := logger.Multi(
				logger.New(logger.WithFormat(logger.FormatText), logger.WithWriter(&console)),
				logger.New(logger.ForService(), logger.WithWriter(&file)),
			)

			l.With("component", "proxy").Info("upstream answered", "backend", "grok")

			Expect(console.String()).To(ContainSubstring("backend=grok"))
			parsed := decodeLine(&file)
			Expect(parsed["component"]).To(Equal("proxy"))
			Expect(parsed["backend"]).To(Equal("grok"))
		})

		It("keeps delivering when one sink fails", func() {
			var good bytes.Buffer
			l := logger.Multi(
				logger.New(logger.ForService(), logger.WithWriter(failingWriter{})),
				logger.New(logger.ForService(), logger.WithWriter(&good)),
			)

			r := slog.NewRecord(time.Now(), slog.LevelInfo, "lead dispatched", 0)
			err := l.Handler().Handle(context.Background(), r)

			Expect(err).To(MatchError(ContainSubstring("disk full")))
			Expect(good.String()).To(ContainSubstring("lead dispatched"))
		})

		It("nests groups in every sink", func() {
			var buf bytes.Buffer
			l := logger.Multi(logger.New(logger.ForService(), logger.WithWriter(&buf)), logger.Nop())

			l.WithGroup("request").Info("generation stored", "kind", "careplan")

			group, ok := decodeLine(&buf)["request"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(group["kind"]).To(Equal("careplan"))
		})

		It("collapses to Nop when nothing remains", func() {
			l := logger.Multi(logger.Nop(), nil)
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
		})

		It("returns a lone logger unwrapped", func() {
			var buf bytes.Buffer
			l := logger.Multi(logger.New(logger.ForService(), logger.WithWriter(&buf)))
			l.Info("single")
			Expect(strings.Count(buf.String(), "single")).To(Equal(1))
		})
	})
})
