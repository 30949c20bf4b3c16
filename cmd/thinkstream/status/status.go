// Package statuscmder provides the status command for displaying the chat
// conversation kept in the .thinkstream directory.
package statuscmder

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/thinkstream/pkg/cliui"
	"github.com/papercomputeco/thinkstream/pkg/dotdir"
	"github.com/papercomputeco/thinkstream/pkg/utils"
)

const statusLongDesc string = `Show the conversation "thinkstream chat" will continue.

Reads the local .thinkstream/ directory (or ~/.thinkstream/) to display the
backend of the last chat and its message history.

If no history exists, indicates that the next chat session will start
a new conversation.

Examples:
  thinkstream status`

const statusShortDesc string = "Show the current chat conversation"

const previewLen = 72

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runStatus(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

func runStatus(w io.Writer, configDir string) error {
	manager := dotdir.NewManager()

	history, err := manager.LoadChatHistory(configDir)
	if err != nil {
		return fmt.Errorf("loading chat history: %w", err)
	}

	if history == nil || len(history.Messages) == 0 {
		fmt.Fprintf(w, "  %s No chat history. Next chat will start a new conversation.\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintf(w, "\n  %s  %s\n", cliui.KeyStyle.Render("Backend: "), cliui.ValueStyle.Render(history.Backend))
	fmt.Fprintf(w, "  %s  %s\n\n", cliui.KeyStyle.Render("Messages:"), cliui.NameStyle.Render(strconv.Itoa(len(history.Messages))))

	for i, msg := range history.Messages {
		fmt.Fprintf(w, "  %s %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%d.", i+1)),
			cliui.RoleStyle.Render("["+msg.Role+"]"),
			cliui.PreviewStyle.Render(utils.Truncate(msg.Content, previewLen)),
		)
	}

	fmt.Fprintln(w)
	return nil
}
