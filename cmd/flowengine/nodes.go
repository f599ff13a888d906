package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dukex/flowengine/pkg/cmd"
	"github.com/dukex/flowengine/pkg/log"
	"github.com/dukex/flowengine/pkg/registry"
	"github.com/goccy/go-json"
	cli "github.com/urfave/cli/v3"
)

func nodesAction(_ context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	reg := cmd.NewRegistry(log.WithModule("flowengine"))

	return printNodes(command.Root().Writer, reg, command.String("category"), command.Bool("schema"))
}

func printNodes(out io.Writer, reg *registry.Registry, category string, withSchema bool) error {
	if withSchema {
		schemas := map[string]any{}

		for _, meta := range reg.AllMetadata() {
			if category != "" && meta.Category != category {
				continue
			}

			schemas[meta.Type] = registry.BuildSchema(meta)
		}

		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")

		return encoder.Encode(schemas)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tCATEGORY\tDESCRIPTION")

	for _, meta := range reg.AllMetadata() {
		if category != "" && meta.Category != category {
			continue
		}

		fmt.Fprintf(w, "%s\t%s\t%s\n", meta.Type, meta.Category, meta.Description)
	}

	return w.Flush()
}
