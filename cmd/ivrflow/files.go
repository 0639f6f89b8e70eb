package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/workflowfile"
	cli "github.com/urfave/cli/v3"
)

var errNoFiles = errors.New("no workflow files given")

// loadArgs reads every file or directory named on the command line.
func loadArgs(command *cli.Command) ([]*models.Workflow, error) {
	paths := command.Args().Slice()
	if len(paths) == 0 {
		return nil, errNoFiles
	}

	var workflows []*models.Workflow

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		if info.IsDir() {
			loaded, err := workflowfile.LoadDir(path)
			if err != nil {
				return nil, err
			}

			workflows = append(workflows, loaded...)

			continue
		}

		workflow, err := workflowfile.Load(path)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}
