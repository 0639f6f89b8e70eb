package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/ivrflow/pkg/cmd"
	"github.com/dukex/ivrflow/pkg/log"
	"github.com/dukex/ivrflow/pkg/persistence/memory"
	"github.com/dukex/ivrflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

var errInvalidWorkflows = errors.New("invalid workflows")

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check workflow files without storing them",
		ArgsUsage: "FILE|DIR...",
		Flags:     logFlags(),
		Action: func(_ context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			workflows, err := loadArgs(command)
			if err != nil {
				return err
			}

			store, err := memory.NewPersistence()
			if err != nil {
				return err
			}

			logger := log.WithModule("validate")
			service := services.NewWorkflow(store, cmd.NewRegistry(logger, nil), logger)
			out := command.Root().Writer
			invalid := 0

			for _, workflow := range workflows {
				report, err := service.ValidateDefinition(workflow)
				if err != nil {
					return err
				}

				state := "ok"
				if !report.Valid() {
					state = "invalid"
					invalid++
				}

				fmt.Fprintf(out, "%s (%s): %s\n", workflow.Name, workflow.ID, state)

				for _, problem := range report.Errors {
					fmt.Fprintf(out, "  error: %s\n", problem)
				}

				for _, warning := range report.Warnings {
					fmt.Fprintf(out, "  warning: %s\n", warning)
				}
			}

			if invalid > 0 {
				return fmt.Errorf("%w: %d of %d", errInvalidWorkflows, invalid, len(workflows))
			}

			return nil
		},
	}
}
