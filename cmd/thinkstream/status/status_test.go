package statuscmder_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	statuscmder "github.com/papercomputeco/thinkstream/cmd/thinkstream/status"
	"github.com/papercomputeco/thinkstream/pkg/dotdir"
)

var _ = Describe("NewStatusCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := statuscmder.NewStatusCmd()
		Expect(cmd.Use).To(Equal("status"))
	})

	It("accepts zero arguments", func() {
		cmd := statuscmder.NewStatusCmd()
		err := cmd.Args(cmd, []string{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects any arguments", func() {
		cmd := statuscmder.NewStatusCmd()
		err := cmd.Args(cmd, []string{"extra"})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Status command execution", func() {
	var (
		tmpDir string
		dotDir string
		out    *bytes.Buffer
	)

	run := func() error {
		cmd := statuscmder.NewStatusCmd()
		cmd.PersistentFlags().String("config-dir", dotDir, "")
		cmd.SetOut(out)
		cmd.SetArgs([]string{})
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "thinkstream-status-test-*")
		Expect(err).NotTo(HaveOccurred())
		dotDir = filepath.Join(tmpDir, ".thinkstream")
		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("reports a fresh conversation when no history exists", func() {
		Expect(run()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No chat history"))
	})

	It("lists the saved conversation", func() {
		history := &dotdir.ChatHistory{
			Backend: "grok",
			Messages: []dotdir.ChatMessage{
				{Role: "user", Content: "What does ADPIE stand for?"},
				{Role: "assistant", Content: "Assessment, diagnosis, planning, implementation and evaluation."},
			},
		}
		Expect(dotdir.NewManager().SaveChatHistory(history, dotDir)).To(Succeed())

		Expect(run()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("grok"))
		Expect(out.String()).To(ContainSubstring("2"))
		Expect(out.String()).To(ContainSubstring("What does ADPIE stand for?"))
	})

	It("truncates long messages", func() {
		long := strings.Repeat("a", 200)
		history := &dotdir.ChatHistory{
			Backend:  "openai",
			Messages: []dotdir.ChatMessage{{Role: "user", Content: long}},
		}
		Expect(dotdir.NewManager().SaveChatHistory(history, dotDir)).To(Succeed())

		Expect(run()).To(Succeed())
		Expect(out.String()).NotTo(ContainSubstring(long))
		Expect(out.String()).To(ContainSubstring("..."))
	})

	It("fails on a corrupt history file", func() {
		Expect(os.MkdirAll(dotDir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dotDir, "chat_history.json"), []byte("{not json"), 0o600)).To(Succeed())

		err := run()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("loading chat history"))
	})
})
