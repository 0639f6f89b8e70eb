package main

import (
	"context"
	"fmt"

	"github.com/dukex/ivrflow/pkg/cmd"
	"github.com/dukex/ivrflow/pkg/log"
	"github.com/dukex/ivrflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Create or replace workflows from YAML or JSON files",
		ArgsUsage: "FILE|DIR...",
		Flags:     append(logFlags(), databaseFlag()),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("import")

			workflows, err := loadArgs(command)
			if err != nil {
				return err
			}

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return fmt.Errorf("failed to open persistence: %w", err)
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			service := services.NewWorkflow(store, cmd.NewRegistry(logger, nil), logger)
			out := command.Root().Writer

			for _, workflow := range workflows {
				name := workflow.Name

				imported, created, err := service.Import(ctx, workflow)
				if err != nil {
					return fmt.Errorf("failed to import %s: %w", name, err)
				}

				action := "updated"
				if created {
					action = "created"
				}

				fmt.Fprintf(out, "%s %s (%s) revision %d, %s\n", action, imported.Name, imported.ID, imported.Revision, imported.Status)
			}

			return nil
		},
	}
}
