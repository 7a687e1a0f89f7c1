// =============================================================================
// llmchat 主入口
// =============================================================================
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sunflowermm/XRK-Yunzai-sub003/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// globalOptions 所有子命令共享的参数
type globalOptions struct {
	configPath string
	envFile    string
	envPrefix  string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "llmchat",
		Short:         "Chat with OpenAI, Anthropic, Gemini and compatible LLM providers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "llm.yaml", "Path to YAML config file (missing file is ignored)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to .env file (missing file is ignored)")
	root.PersistentFlags().StringVar(&opts.envPrefix, "env-prefix", config.DefaultEnvPrefix, "Environment variable prefix")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	root.AddCommand(newChatCmd(opts))
	root.AddCommand(newProvidersCmd(opts))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "llmchat %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		},
	}
}
