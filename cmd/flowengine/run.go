package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/dukex/flowengine/pkg/cmd"
	"github.com/dukex/flowengine/pkg/engine"
	"github.com/dukex/flowengine/pkg/eventbus"
	"github.com/dukex/flowengine/pkg/log"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/otelhelper"
	"github.com/dukex/flowengine/pkg/persistence"
	"github.com/goccy/go-json"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const progressBuffer = 256

func runAction(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("flowengine")

	flow, err := loadFlow(command.Args().First())
	if err != nil {
		return err
	}

	input, err := parseInput(command.String("input"))
	if err != nil {
		return err
	}

	opts := []engine.Option{engine.WithLogger(logger)}

	if command.Bool("tracing") {
		tracer, err := otelhelper.NewTracer(ctx, "flowengine")
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}

		defer shutdownTracing(ctx, logger)

		opts = append(opts, engine.WithTracer(tracer))
	}

	config := engine.DefaultConfig()
	config.DefaultTimeout = command.Duration("timeout")
	opts = append(opts, engine.WithConfig(config))

	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := store.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	bus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
	if err != nil {
		return err
	}

	if bus != nil {
		defer func() {
			err := bus.Close()
			if err != nil {
				logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
			}
		}()
	}

	runner := &flowRunner{
		engine: engine.New(cmd.NewRegistry(logger), opts...),
		store:  store,
		bus:    bus,
		logger: logger,
	}

	return runner.run(ctx, engine.RunRequest{
		Flow:        flow,
		Input:       input,
		Trigger:     command.String("trigger"),
		StartNodeID: command.String("start-node"),
	}, command.Root().Writer)
}

// flowRunner executes one flow, forwards its progress events, stores the
// summary and prints it.
type flowRunner struct {
	engine *engine.Engine
	store  persistence.Persistence
	bus    eventbus.EventPublisher
	logger *slog.Logger
}

func (r *flowRunner) run(ctx context.Context, req engine.RunRequest, out io.Writer) error {
	var wg sync.WaitGroup

	if r.bus != nil {
		progress := make(chan models.ProgressEvent, progressBuffer)
		req.Progress = progress

		wg.Add(1)

		go func() {
			defer wg.Done()

			published := eventbus.Forward(ctx, r.bus, progress, r.logger)
			r.logger.DebugContext(ctx, "Progress forwarding finished", "published", published)
		}()

		defer func() {
			close(progress)
			wg.Wait()
		}()
	}

	summary, runErr := r.engine.Execute(ctx, req)
	if summary == nil {
		return runErr
	}

	err := r.store.SaveRun(ctx, summary)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to save run", "execution_id", summary.ID, "error", err)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")

	err = encoder.Encode(summary)
	if err != nil {
		return fmt.Errorf("failed to print run summary: %w", err)
	}

	if runErr != nil {
		return fmt.Errorf("run %s %s: %w", summary.ID, summary.Status, runErr)
	}

	return nil
}

func shutdownTracing(ctx context.Context, logger *slog.Logger) {
	provider, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	if !ok {
		return
	}

	err := provider.Shutdown(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to flush traces", "error", err)
	}
}
