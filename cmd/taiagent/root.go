package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// flagKeys maps persistent flags to their config keys.
var flagKeys = map[string]string{
	"config":     "config",
	"config-dir": "config_dir",
	"provider":   "provider",
	"model":      "model",
	"log-level":  "log_level",
	"trace":      "trace",
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "taiagent",
		Short: "Tool-calling chat agent",
		Long: `taiagent answers questions with a chat model that can call tools
(web search, page reading, the current time, arithmetic) before it replies.
It also splits larger requests into steps and runs them with retries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is <config-dir>/config.yaml)")
	flags.String("config-dir", "", "directory for config, database and traces (default ./.taiagent or ~/.config/taiagent)")
	flags.String("provider", "", "chat provider: groq, openai-compat, ollama, openai, deepseek, anthropic")
	flags.String("model", "", "model id (default depends on provider)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("trace", false, "write OpenTelemetry spans to <config-dir>/traces.jsonl")
	for name, key := range flagKeys {
		// Unset flags fall through to env, file and defaults.
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(
		newChatCmd(v),
		newAskCmd(v),
		newTasksCmd(v),
		newToolsCmd(v),
		newHistoryCmd(v),
		newDoctorCmd(v),
		newVersionCmd(),
	)
	return rootCmd
}
