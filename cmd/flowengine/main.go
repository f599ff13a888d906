package main

import (
	"context"
	"fmt"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "flowengine",
		EnableShellCompletion: true,
		Usage:                 "Run and validate node based flows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			validateCommand(),
			nodesCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a flow definition and print its run summary",
		ArgsUsage: "<flow.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "JSON object passed as the flow input, or @file to read it from a file",
				Value:   "",
			},
			&cli.StringFlag{
				Name:  "trigger",
				Usage: "Trigger type the run starts from",
				Value: "manual",
			},
			&cli.StringFlag{
				Name:  "start-node",
				Usage: "Node id to start from, overriding trigger detection",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Run store URL (file path, postgres://, redis://)",
				Value:   "./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Progress event bus (none, gochannel, kafka)",
				Value:   "none",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Overall run timeout",
				Value:   5 * time.Minute,
				Sources: cli.EnvVars("FLOW_TIMEOUT"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		},
		Action: runAction,
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a flow definition without running it",
		ArgsUsage: "<flow.json>",
		Action:    validateAction,
	}
}

func nodesCommand() *cli.Command {
	return &cli.Command{
		Name:  "nodes",
		Usage: "List the built-in node types",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "category",
				Usage: "Only list nodes of this category",
			},
			&cli.BoolFlag{
				Name:  "schema",
				Usage: "Print the JSON schema of each node",
			},
		},
		Action: nodesAction,
	}
}
