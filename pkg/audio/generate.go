package audio

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// GenerateError lists the nodes that ended without fresh audio on the synchronous path.
// Nodes that succeeded are already persisted.
type GenerateError struct {
	WorkflowID string
	Failures   []models.NodeFailure
}

func (e *GenerateError) Error() string {
	return fmt.Sprintf("audio generation failed for %d node(s) of workflow %s: %s",
		len(e.Failures), e.WorkflowID, strings.Join(e.NodeIDs(), ", "))
}

func (e *GenerateError) NodeIDs() []string {
	ids := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		ids = append(ids, failure.NodeID)
	}

	return ids
}

// GenerateReport summarizes a synchronous generation.
type GenerateReport struct {
	WorkflowID string   `json:"workflowId"`
	Generated  []string `json:"generated"`
	Skipped    []string `json:"skipped"`
	Degraded   []string `json:"degraded"`
}

// GenerateNow processes every node with a prompt inline. Successful nodes are persisted even when others fail;
// the failures come back as a *GenerateError alongside the report.
func (p *Pipeline) GenerateNow(ctx context.Context, workflowID string, force bool) (*GenerateReport, error) {
	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "audio.generate_now",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	workflow, err := p.workflows.GetByID(ctx, workflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	report := &GenerateReport{
		WorkflowID: workflowID,
		Generated:  []string{},
		Skipped:    []string{},
		Degraded:   []string{},
	}

	var failures []models.NodeFailure

	nodes, _ := selectNodes(workflow, nil)
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome := p.processNode(ctx, workflow, node, force)

		switch {
		case outcome.err != nil:
			failures = append(failures, models.NodeFailure{NodeID: node.ID, Error: outcome.err.Error()})

			if outcome.degraded {
				report.Degraded = append(report.Degraded, node.ID)
			}
		case outcome.skipped:
			report.Skipped = append(report.Skipped, node.ID)
		default:
			report.Generated = append(report.Generated, node.ID)
		}
	}

	p.logger.InfoContext(ctx, "audio generated",
		"workflow_id", workflowID,
		"generated", len(report.Generated),
		"skipped", len(report.Skipped),
		"failed", len(failures))

	if len(failures) > 0 {
		genErr := &GenerateError{WorkflowID: workflowID, Failures: failures}
		otelhelper.SetError(span, genErr)

		return report, genErr
	}

	return report, nil
}
