package main

import (
	"os/signal"
	"syscall"

	"github.com/go-go-golems/chat-relay/pkg/config"
	"github.com/go-go-golems/chat-relay/pkg/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			srv, err := server.New(settings)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.String("listen", "", "Address of the chat service (server.listen)")
	flags.Int("max-concurrent-streams", 0, "Streams relayed at the same time (server.max-concurrent-streams)")
	flags.String("bridge-listen", "", "Address of the SSE bridge, empty disables it (bridge.listen)")
	flags.String("provider", "", "Upstream provider: xai, openai or mock (upstream.provider)")
	flags.String("model", "", "Upstream model (upstream.model)")
	flags.String("base-url", "", "Upstream API base URL (upstream.base-url)")
	flags.String("api-key", "", "Upstream API key (upstream.api-key)")
	flags.StringSlice("tools", nil, "Capabilities enabled in tool-augmented mode (upstream.tools)")
	flags.String("mock-script", "", "YAML script replayed by the mock provider (upstream.mock-script)")
	flags.Bool("debug-events", false, "Dump every relay event (events.debug)")

	bindFlags(cmd, map[string]string{
		"listen":                 "server.listen",
		"max-concurrent-streams": "server.max-concurrent-streams",
		"bridge-listen":          "bridge.listen",
		"provider":               "upstream.provider",
		"model":                  "upstream.model",
		"base-url":               "upstream.base-url",
		"api-key":                "upstream.api-key",
		"tools":                  "upstream.tools",
		"mock-script":            "upstream.mock-script",
		"debug-events":           "events.debug",
	})

	return cmd
}

// bindFlags makes explicitly set flags override the config file and the
// environment.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		cobra.CheckErr(viper.BindPFlag(key, cmd.Flags().Lookup(flag)))
	}
}
