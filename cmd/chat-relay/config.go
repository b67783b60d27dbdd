package main

import (
	"github.com/go-go-golems/chat-relay/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(settings.Redacted()); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}

			if err := settings.Validate(); err != nil {
				cmd.PrintErrf("# invalid: %s\n", err)
			}
			return nil
		},
	}
}
