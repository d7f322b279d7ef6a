package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/namikmesic/sidekick-stream/internal/consumer"
	"github.com/namikmesic/sidekick-stream/internal/jetstream"
	"github.com/namikmesic/sidekick-stream/internal/processor"
	"github.com/namikmesic/sidekick-stream/internal/stream"
	"github.com/namikmesic/sidekick-stream/internal/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var watchHideReasoning bool

var watchCmd = &cobra.Command{
	Use:   "watch <subject-id>",
	Short: "Follow the event stream of a thread",
	Long: `Connects to the thread's event stream and prints visible content to
stdout and reasoning content to stderr until the server closes the stream
or the process is interrupted. Session and thread updates are announced on
the embedded cache-invalidation bus.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context(), args[0])
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchHideReasoning, "hide-reasoning", false, "do not print reasoning content")
}

func runWatch(ctx context.Context, subjectID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	pcfg := processor.Config{
		SubjectID: subjectID,
		OpenTag:   cfg.ReasoningOpenTag,
		CloseTag:  cfg.ReasoningCloseTag,
		Visible:   os.Stdout,
	}
	if !watchHideReasoning {
		pcfg.Reasoning = os.Stderr
	}
	if a.writer != nil {
		pcfg.Sink = a.writer
	}
	proc := processor.New(pcfg)

	// Other readers of the bus; here it only logs.
	sub, err := jetstream.WatchInvalidations(a.js, func(inv jetstream.Invalidation) {
		log.Debug().Str("subject_id", inv.SubjectID).Str("scope", inv.Scope).Msg("cache invalidation observed")
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	var streamErr error
	handlers := proc.Handlers(consumer.Handlers{
		OnSessionEvent: func(f stream.SessionFrame) {
			log.Info().RawJSON("session", f.Payload()).Msg("session updated")
		},
		OnThreadEvent: func(f stream.ThreadFrame) {
			log.Info().RawJSON("thread", f.Payload()).Msg("thread updated")
		},
		OnError: func(err error) {
			streamErr = err
		},
	})

	c, err := consumer.New(subjectID,
		transport.NewHTTP(cfg.APIBaseURL, cfg.APIKey),
		jetstream.NewInvalidator(a.js),
		handlers,
		consumer.WithReadSize(cfg.ReadBufferSize),
	)
	if err != nil {
		return err
	}

	// Only an interrupt stops the stream, through Disconnect.
	c.Connect(context.WithoutCancel(ctx))
	go func() {
		<-ctx.Done()
		c.Disconnect()
	}()
	c.Wait()

	// Interrupts are not failures.
	if ctx.Err() != nil {
		return nil
	}
	return streamErr
}
