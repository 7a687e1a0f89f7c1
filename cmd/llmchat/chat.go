package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
	llmconfig "github.com/sunflowermm/XRK-Yunzai-sub003/llm/config"
)

// errNoReply 调用以哨兵值结束（重试耗尽或不可重试错误），详情见日志
var errNoReply = errors.New("no reply from provider (see log for details)")

type chatOptions struct {
	provider      string
	apiKey        string
	model         string
	system        string
	images        []string
	stream        bool
	noTools       bool
	temperature   float64
	maxTokens     int
	maxToolRounds int
}

func newChatCmd(global *globalOptions) *cobra.Command {
	opts := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send a prompt and print the reply",
		Long: `Send a prompt to an LLM provider and print the reply.

Use "-" or no argument to read the prompt from standard input.
The built-in current_time tool is available to the model unless --no-tools is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			a, err := newApp(global)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runChat(ctx, a, opts, cmd, prompt)
		},
	}

	cmd.Flags().StringVarP(&opts.provider, "provider", "p", "", "Provider name (default from config)")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "API key for this request only (overrides the configured key)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model override")
	cmd.Flags().StringVarP(&opts.system, "system", "s", "", "System prompt")
	cmd.Flags().StringArrayVar(&opts.images, "image", nil, "Image URL or data URI to attach (repeatable)")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "Stream the reply as it is generated")
	cmd.Flags().BoolVar(&opts.noTools, "no-tools", false, "Disable tool calling")
	cmd.Flags().Float64Var(&opts.temperature, "temperature", -1, "Sampling temperature (negative keeps the configured value)")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 0, "Maximum output tokens (0 keeps the configured value)")
	cmd.Flags().IntVar(&opts.maxToolRounds, "max-tool-rounds", 0, "Maximum request/response rounds (0 keeps the configured value)")

	return cmd
}

func runChat(ctx context.Context, a *app, opts *chatOptions, cmd *cobra.Command, prompt string) error {
	messages := buildMessages(opts, prompt)
	ov := buildOverrides(opts)
	cfg := llmconfig.ProviderConfig{Provider: opts.provider}
	out := cmd.OutOrStdout()

	cred := llm.CredentialOverride{APIKey: opts.apiKey}
	if !cred.IsZero() {
		a.logger.Debug("using per-request credential", zap.Object("credential", cred))
		ctx = llm.WithCredentialOverride(ctx, cred)
	}

	if !opts.stream {
		reply, ok, err := a.gateway.Chat(ctx, cfg, messages, ov)
		if err != nil {
			return err
		}
		if !ok {
			return errNoReply
		}
		fmt.Fprintln(out, reply)
		return nil
	}

	errOut := cmd.ErrOrStderr()
	err := a.gateway.ChatStream(ctx, cfg, messages, func(text string, meta *llm.DeltaMetadata) {
		if meta != nil {
			for _, inv := range meta.ToolInvocations {
				fmt.Fprintf(errOut, "\n[tool] %s %v -> %s\n", inv.Name, inv.Arguments, inv.Result)
			}
		}
		if text != "" {
			fmt.Fprint(out, text)
		}
	}, ov)
	fmt.Fprintln(out)
	return err
}

func buildMessages(opts *chatOptions, prompt string) []llm.Message {
	var messages []llm.Message
	if opts.system != "" {
		messages = append(messages, llm.SystemMessage(opts.system))
	}
	if len(opts.images) > 0 {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: llm.RichContent(prompt, opts.images, nil)})
	} else {
		messages = append(messages, llm.UserMessage(prompt))
	}
	return messages
}

func buildOverrides(opts *chatOptions) llm.Overrides {
	ov := llm.Overrides{Model: opts.model}
	if opts.temperature >= 0 {
		ov.Temperature = llmconfig.Float(opts.temperature)
	}
	if opts.maxTokens > 0 {
		ov.MaxTokens = llmconfig.Int(opts.maxTokens)
	}
	if opts.noTools {
		ov.Tools = []llm.Tool{}
	}
	if opts.maxToolRounds > 0 {
		ov.Config.MaxToolRounds = opts.maxToolRounds
	}
	return ov
}

// readPrompt 从参数读取提示词；无参数或 "-" 时读取标准输入
func readPrompt(in io.Reader, args []string) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" || prompt == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("read prompt: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		return "", errors.New("prompt is empty")
	}
	return prompt, nil
}
