package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lonesomenomore/lsnm/internal/composer"
	"github.com/lonesomenomore/lsnm/internal/proxy"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the companion in the terminal",
	Long: `Start an interactive chat against OpenRouter.

The system prompt is taken from --system-prompt, then --system-prompt-file,
then the synthesized profile of --loved-one. Type "clear" to reset the
conversation or "exit" to quit.

Examples:
  lsnm chat --loved-one loved_789xyz
  lsnm chat --system-prompt-file ./prompts/grandma.md --model openai/gpt-4o`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log)
		if err := cfg.RequireAPIKey(); err != nil {
			return err
		}

		src := composer.Source{
			Inline: cfg.Chat.SystemPrompt,
			File:   cfg.Chat.SystemPromptFile,
		}
		if cmd.Flags().Changed("system-prompt") {
			src.Inline, _ = cmd.Flags().GetString("system-prompt")
		}
		if cmd.Flags().Changed("system-prompt-file") {
			src.File, _ = cmd.Flags().GetString("system-prompt-file")
		}
		src.ProfileID, _ = cmd.Flags().GetString("loved-one")

		model, _ := cmd.Flags().GetString("model")
		if model == "" {
			model = cfg.Proxy.DefaultModel
		}

		var profiles composer.ProfileGetter
		if src.ProfileID != "" {
			store, mgr, err := openBackend(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			profiles = mgr
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		resolver := newResolver(cfg, profiles)
		prompt, err := resolver.Resolve(ctx, src)
		if err != nil {
			return err
		}

		printStatus("Model", "%s", model)
		printStatus("System prompt", "%s", resolver.Describe(src))
		printStep(`Type "clear" to start over, "exit" to quit.`)

		s := newChatSession(newProxyClient(cfg), model, prompt)
		return s.run(ctx, os.Stdin, os.Stdout)
	},
}

func init() {
	chatCmd.Flags().String("model", "", "OpenRouter model (default from config)")
	chatCmd.Flags().String("system-prompt", "", "inline system prompt")
	chatCmd.Flags().String("system-prompt-file", "", "file containing the system prompt")
	chatCmd.Flags().String("loved-one", "", "loved one whose profile builds the system prompt")
}

type completer interface {
	Complete(ctx context.Context, req proxy.ChatRequest) (proxy.ChatResponse, error)
}

// chatSession holds one terminal conversation. History lives in memory only.
type chatSession struct {
	client  completer
	model   string
	prompt  string
	history []proxy.Message
}

func newChatSession(client completer, model, prompt string) *chatSession {
	s := &chatSession{client: client, model: model, prompt: prompt}
	s.reset()
	return s
}

// reset drops every turn except the system prompt.
func (s *chatSession) reset() {
	s.history = s.history[:0]
	if s.prompt != "" {
		s.history = append(s.history, proxy.Message{Role: "system", Content: s.prompt})
	}
}

// send appends the user turn, asks for a reply and stores it. A failed
// request leaves the history as it was before the call.
func (s *chatSession) send(ctx context.Context, text string) (string, error) {
	s.history = append(s.history, proxy.Message{Role: "user", Content: text})

	msgs, err := json.Marshal(s.history)
	if err != nil {
		s.history = s.history[:len(s.history)-1]
		return "", err
	}
	resp, err := s.client.Complete(ctx, proxy.ChatRequest{Model: s.model, Messages: msgs})
	if err != nil {
		s.history = s.history[:len(s.history)-1]
		return "", err
	}

	reply := resp.Choices[0].Message
	if reply.Role == "" {
		reply.Role = "assistant"
	}
	s.history = append(s.history, reply)
	return reply.Content, nil
}

func (s *chatSession) run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, colorize(colorBold, "you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "clear":
			s.reset()
			printSuccess("Conversation cleared")
			continue
		}

		reply, err := s.send(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			printError("%v", err)
			continue
		}
		fmt.Fprintf(out, "%s %s\n", colorize(colorCyan, "companion>"), reply)
	}
}
