package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yanmxa/finsight/internal/chat"
	"github.com/yanmxa/finsight/internal/message"
	"github.com/yanmxa/finsight/internal/resolver"
	"github.com/yanmxa/finsight/internal/stream"
)

var (
	formatFlag  string
	sessionFlag string
	noLocalFlag bool
	modelFlag   string
)

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Answer one question in the terminal",
	Long: `Answer one question, showing tool activity as it happens and the
rendered answer at the end. The message is read from stdin when no
arguments are given.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := inputMessage(args)
		if text == "" {
			return errors.New("no message given")
		}
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return ask(ctx, a.svc, text)
	},
}

func init() {
	askCmd.Flags().StringVarP(&formatFlag, "format", "f", "chat", "Response format: chat, cards or external")
	askCmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "Continue a stored session")
	askCmd.Flags().BoolVar(&noLocalFlag, "no-local", false, "Skip local inference")
	askCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Preferred local model")
}

// inputMessage gets input from args or stdin
func inputMessage(args []string) string {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " "))
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}

func ask(ctx context.Context, svc *chat.Service, text string) error {
	prefs := resolver.Preferences{Model: modelFlag}
	if noLocalFlag {
		off := false
		prefs.LocalEnabled = &off
	}
	st, err := svc.Chat(ctx, chat.ChatRequest{
		SessionID: sessionFlag,
		Messages:  []message.Message{message.NewUserMessage(text)},
		Format:    formatFlag,
		Prefs:     prefs,
	})
	if err != nil {
		return errors.New(chat.Describe(err))
	}
	fmt.Fprintln(os.Stderr, dimStyle.Render(st.Selection.Label()))

	var answer strings.Builder
	for e := range st.Events() {
		switch e.Type {
		case stream.EventTextDelta:
			answer.WriteString(e.Text)
		case stream.EventToolCallStart:
			fmt.Fprintln(os.Stderr, stepLine(e))
		case stream.EventToolCallDone:
			if e.IsError {
				fmt.Fprintln(os.Stderr, errorStyle.Render("  ✗ "+e.ToolName+" failed"))
			}
		case stream.EventFinish:
			fmt.Println(renderMarkdown(answer.String()))
			fmt.Fprintln(os.Stderr, footer(e.Finish, st.SessionID))
		case stream.EventError:
			<-st.Done()
			return fmt.Errorf("%s: %s", e.Code, e.Message)
		}
	}
	<-st.Done()
	return nil
}
