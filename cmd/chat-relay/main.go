package main

import (
	"os"

	"github.com/go-go-golems/chat-relay/pkg/config"
	"github.com/go-go-golems/chat-relay/pkg/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "chat-relay",
	Short: "chat-relay streams model output from an upstream chat provider to RPC and SSE clients",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		return initLogger()
	},
	SilenceUsage: true,
}

func initLogger() error {
	logLevel := viper.GetString("log-level")
	if viper.GetBool("verbose") && logLevel != "trace" {
		logLevel = "debug"
	}

	return logging.InitLogger(&logging.Config{
		Level:      logLevel,
		File:       viper.GetString("log-file"),
		Format:     viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
}

func initConfig(configPath string) error {
	config.SetDefaults(viper.GetViper())
	config.ConfigureEnv(viper.GetViper())

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.chat-relay")
		viper.AddConfigPath("/etc/chat-relay")

		xdgConfigPath, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(xdgConfigPath + "/chat-relay")
		}
	}

	err := viper.ReadInConfig()
	// if the file does not exist, continue normally
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file not found; ignore error
	} else if err != nil {
		return err
	}

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return err
	}

	if err := initLogger(); err != nil {
		return err
	}
	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("with-caller", false, "Log caller")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "auto", "Log format (json, text, auto)")
	rootCmd.PersistentFlags().String("log-file", "", "Log file (default: stderr)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ./config.yaml or ~/.chat-relay/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Verbose output")

	// parse the flags one time just to catch --config
	configFile := ""
	for idx, arg := range os.Args {
		if arg == "--config" && len(os.Args) > idx+1 {
			configFile = os.Args[idx+1]
		}
	}

	if err := initConfig(configFile); err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newChatCommand())
	rootCmd.AddCommand(newConfigCommand())
}
