package main

import (
	"context"
	"fmt"

	"github.com/dukex/flowengine/pkg/cmd"
	"github.com/dukex/flowengine/pkg/engine"
	"github.com/dukex/flowengine/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func validateAction(_ context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	flow, err := loadFlow(command.Args().First())
	if err != nil {
		return err
	}

	eng := engine.New(cmd.NewRegistry(log.WithModule("flowengine")))

	problems := eng.ValidateFlow(flow)

	out := command.Root().Writer
	for _, problem := range problems {
		fmt.Fprintln(out, problem)
	}

	if len(problems) > 0 {
		return fmt.Errorf("flow %s has %d problem(s)", flow.ID, len(problems))
	}

	fmt.Fprintf(out, "flow %s is valid\n", flow.ID)

	return nil
}
