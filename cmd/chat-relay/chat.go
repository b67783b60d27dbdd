package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"connectrpc.com/connect"
	"github.com/go-go-golems/chat-relay/pkg/server"
	"github.com/go-go-golems/chat-relay/pkg/service"
	"github.com/go-go-golems/chat-relay/pkg/turns"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newChatCommand() *cobra.Command {
	var (
		serverURL string
		tools     bool
		system    string
		messages  []string
	)

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send a conversation to a running relay and print the streamed answer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := buildConversation(system, messages, args)
			if err != nil {
				return err
			}
			if serverURL == "" {
				serverURL = server.LocalURL(viper.GetString("server.listen"))
			}

			client := service.NewChatServiceClient(server.NewH2CClient(), serverURL)
			stream, err := service.Stream(cmd.Context(), client, tools, service.NewChatRequest(conv))
			if err != nil {
				return err
			}
			defer func() { _ = stream.Close() }()

			return printStream(cmd.OutOrStdout(), stream)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "Relay URL (default derived from server.listen)")
	cmd.Flags().BoolVar(&tools, "tools", false, "Use the tool-augmented procedure")
	cmd.Flags().StringVar(&system, "system", "", "System prompt prepended to the conversation")
	cmd.Flags().StringArrayVarP(&messages, "message", "m", nil, "Conversation turn as role:content, repeatable")

	return cmd
}

// buildConversation accepts turns as role:content pairs. A bare value and the
// positional prompt are user turns.
func buildConversation(system string, messages []string, args []string) (turns.Conversation, error) {
	b := turns.NewConversationBuilder()
	if system != "" {
		b.WithSystemPrompt(system)
	}
	for _, m := range messages {
		role, content, ok := strings.Cut(m, ":")
		if !ok || strings.ContainsAny(role, " \t") || role == "" {
			b.WithUserPrompt(m)
			continue
		}
		b.WithTurn(turns.Role(strings.ToLower(role)), strings.TrimPrefix(content, " "))
	}
	if len(args) > 0 {
		b.WithUserPrompt(args[0])
	}

	conv := b.Build()
	if len(conv) == 0 {
		return nil, errors.New("nothing to send: pass a prompt or --message")
	}
	return conv, nil
}

func printStream(w io.Writer, stream *connect.ServerStreamForClient[service.ChatResponse]) error {
	for stream.Receive() {
		if _, err := io.WriteString(w, stream.Msg().Chunk); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintln(w)

	if err := stream.Err(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "relay error (%s): %s\n", connect.CodeOf(err), messageOf(err))
		return err
	}
	return nil
}

func messageOf(err error) string {
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce.Message()
	}
	return err.Error()
}
