package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/namikmesic/sidekick-stream/internal/inference"
	"github.com/namikmesic/sidekick-stream/internal/reasoning"
	"github.com/namikmesic/sidekick-stream/internal/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	completeModel     string
	completeSystem    string
	completeMaxTokens int
)

var completeCmd = &cobra.Command{
	Use:   "complete <subject-id> <prompt>...",
	Short: "Run one non-streamed completion in a thread",
	Long: `Sends the prompt as a single non-streamed completion. Outcomes are
counted by failure category in the Prometheus metrics and, when a database
is configured, recorded in the audit log.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runComplete(cmd.Context(), args[0], strings.Join(args[1:], " "))
	},
}

func init() {
	completeCmd.Flags().StringVar(&completeModel, "model", "", "model name (defaults to SIDEKICK_MODEL)")
	completeCmd.Flags().StringVar(&completeSystem, "system", "", "system prompt")
	completeCmd.Flags().IntVar(&completeMaxTokens, "max-tokens", 1024, "maximum output tokens")
}

func runComplete(ctx context.Context, subjectID, prompt string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	model := completeModel
	if model == "" {
		model = cfg.Model
	}

	client := inference.NewClient(transport.NewHTTP(cfg.APIBaseURL, cfg.APIKey), a.recorder())
	resp, err := client.Complete(ctx, subjectID, transport.CompletionRequest{
		Model:     model,
		System:    completeSystem,
		MaxTokens: completeMaxTokens,
		Messages:  []transport.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		log.Error().Str("category", string(inference.Classify(err))).Msg("completion failed")
		return err
	}

	p := reasoning.NewParser(reasoning.WithTags(cfg.ReasoningOpenTag, cfg.ReasoningCloseTag))
	d := p.Parse(resp.Text())
	for _, b := range resp.Content {
		if b.Type == "thinking" && b.Thinking != "" {
			fmt.Fprintln(os.Stderr, b.Thinking)
		}
	}
	if d.Reasoning != nil {
		fmt.Fprintln(os.Stderr, *d.Reasoning)
	}
	if d.Visible != nil {
		fmt.Fprintln(os.Stdout, *d.Visible)
	}

	log.Info().
		Str("model", resp.Model).
		Int("input_tokens", resp.Usage.InputTokens).
		Int("output_tokens", resp.Usage.OutputTokens).
		Msg("completion finished")
	return nil
}
