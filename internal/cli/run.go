package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/topicgate/topicgate/internal/bus"
	"github.com/topicgate/topicgate/internal/config"
	"github.com/topicgate/topicgate/internal/correlation"
	"github.com/topicgate/topicgate/internal/mapping"
	"github.com/topicgate/topicgate/internal/relay"
	"github.com/topicgate/topicgate/internal/stream"
	"github.com/topicgate/topicgate/internal/transport"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the relay daemon",
	RunE:  runRelay,
}

var runSignalNotify = signal.Notify
var runSignalStop = signal.Stop

func runRelay(cmd *cobra.Command, args []string) error {
	printHeader("🔁 topicgate Relay")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Transport.BotToken == "" {
		return fmt.Errorf("transport.botToken is required (or set TOPICGATE_TRANSPORT_BOT_TOKEN)")
	}
	if cfg.Destination.ChatID == 0 {
		return fmt.Errorf("destination.chatId is required")
	}
	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		return fmt.Errorf("prepare data dir: %w", err)
	}

	mappings, err := mapping.NewStore(cfg.Paths.MappingFile)
	if err != nil {
		return fmt.Errorf("open mapping store: %w", err)
	}
	correlations, err := correlation.NewStore(cfg.Paths.CorrelateDB)
	if err != nil {
		return fmt.Errorf("open correlation store: %w", err)
	}
	defer correlations.Close()

	registry, err := relay.NewRegistry(cfg.Paths.ChatLog)
	if err != nil {
		return fmt.Errorf("open chat registry: %w", err)
	}

	client := transport.NewBotClient(cfg.Transport.APIBase, cfg.Transport.BotToken, cfg.Destination.ChatID, cfg.Transport.HTTPTimeout)

	// The relay must never mirror its own output or anything posted in
	// the destination itself.
	excluded := []int64{client.BotID(), cfg.Destination.ChatID}
	excluded = append(excluded, cfg.Policy.ExcludedSenders...)
	policy := relay.NewPolicy(excluded, cfg.Policy.AllowedSources, cfg.Policy.OnlyAllowList)

	eventBus := bus.New()
	resolver := relay.NewResolver(client, mappings, relay.NewValidityCache())
	dispatcher := relay.NewDispatcher(client, resolver, correlations, cfg.Relay.MaxMediaBytes)
	edits := relay.NewEditPropagator(client, correlations)

	var publisher *stream.Publisher
	var publish relay.PublishFunc
	if cfg.Stream.Enabled {
		publisher = stream.NewPublisher(cfg.Stream.Brokers, cfg.Stream.Topic)
		if publisher != nil {
			publish = func(ctx context.Context, outcome relay.Outcome, msg *bus.InboundMessage) {
				publisher.Publish(ctx, stream.Event{
					TraceID:         msg.TraceID,
					Outcome:         string(outcome),
					SourceChatID:    msg.ChatID,
					SourceMessageID: msg.ID,
					ThreadID:        msg.ThreadID,
					Edit:            msg.Edit,
				})
			}
			slog.Info("Audit stream enabled", "topic", cfg.Stream.Topic)
		}
	}
	defer publisher.Close()

	engine := relay.NewEngine(eventBus, policy, dispatcher, edits, registry, publish, cfg.Relay.Workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	runSignalNotify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer runSignalStop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("Shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	go correlations.RunPurge(ctx, cfg.Relay.PurgeInterval, cfg.Relay.Retention)

	poller := transport.NewPoller(client, eventBus)
	go func() {
		if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Poller stopped", "error", err)
			cancel()
		}
	}()

	slog.Info("Relay started", "destination", cfg.Destination.ChatID, "workers", cfg.Relay.Workers)

	// Blocks until the context is cancelled, then drains in-flight work
	// before the deferred store shutdowns run.
	engine.Run(ctx)
	return nil
}
