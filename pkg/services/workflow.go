package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence"
	"github.com/dukex/ivrflow/pkg/registry"
	"github.com/google/uuid"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
)

// AudioScheduler queues audio generation for nodes that lack it.
type AudioScheduler interface {
	Enqueue(ctx context.Context, workflowID string, nodeIDs []string, force bool) (*models.AudioJob, error)
}

type Workflow struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	audio       AudioScheduler
	logger      *slog.Logger
}

type Option func(*Workflow)

// WithAudioScheduler makes every save enqueue a job for the nodes still missing audio.
func WithAudioScheduler(scheduler AudioScheduler) Option {
	return func(w *Workflow) {
		w.audio = scheduler
	}
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence, registry *registry.Registry, logger *slog.Logger, opts ...Option) *Workflow {
	w := &Workflow{
		persistence: persistence,
		registry:    registry,
		logger:      logger.With("module", "workflow_service"),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest filters the workflow listing. Empty fields match everything.
type ListWorkflowsRequest struct {
	TenantID string
	Status   *models.WorkflowStatus
}

// List returns workflows ordered by most recent update.
func (w *Workflow) List(ctx context.Context, req ListWorkflowsRequest) ([]*models.Workflow, error) {
	if req.Status != nil && !validStatus(*req.Status) {
		return nil, NewValidationError("List", "INVALID_STATUS", fmt.Sprintf("invalid status '%s'", *req.Status), ErrInvalidStatus)
	}

	all, err := w.persistence.WorkflowRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(all))

	for _, workflow := range all {
		if req.TenantID != "" && workflow.TenantID != req.TenantID {
			continue
		}

		if req.Status != nil && workflow.Status != *req.Status {
			continue
		}

		workflows = append(workflows, workflow)
	}

	sort.SliceStable(workflows, func(i, j int) bool {
		return workflows[i].UpdatedAt.After(workflows[j].UpdatedAt)
	})

	return workflows, nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, id)
}

// Create validates and stores a new workflow. Missing node and edge ids are generated.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusDraft
	}

	workflow.Revision = 0
	workflow.CreatedAt = time.Time{}
	assignIDs(workflow)

	if err := w.validate("Create", workflow); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "workflow created", "workflow_id", workflow.ID, "tenant_id", workflow.TenantID)
	w.scheduleAudio(ctx, workflow)

	return workflow, nil
}

// ReplaceGraphRequest carries a full graph edit. Revision must be the revision the editor read.
type ReplaceGraphRequest struct {
	Name        string
	Description string
	Config      *models.WorkflowConfig
	Nodes       []*models.Node
	Edges       []*models.Edge
	Revision    int64
}

// ReplaceGraph swaps the nodes and edges of a workflow. Audio of nodes whose prompt did not change is kept.
func (w *Workflow) ReplaceGraph(ctx context.Context, workflowID string, req ReplaceGraphRequest) (*models.Workflow, error) {
	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if req.Revision != existing.Revision {
		return nil, persistence.NewWorkflowError("ReplaceGraph", workflowID, persistence.ErrRevisionConflict)
	}

	updated := *existing
	updated.Nodes = req.Nodes
	updated.Edges = req.Edges

	if req.Name != "" {
		updated.Name = req.Name
	}

	if req.Description != "" {
		updated.Description = req.Description
	}

	if req.Config != nil {
		updated.Config = *req.Config
	}

	assignIDs(&updated)
	carryAudio(existing, &updated)

	if err := w.validate("ReplaceGraph", &updated); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	w.scheduleAudio(ctx, &updated)

	return &updated, nil
}

// UpdateNodeRequest replaces the payload of one node.
type UpdateNodeRequest struct {
	Type     models.NodeType
	Data     json.RawMessage
	Revision int64
}

// UpdateNode replaces a single node payload. Changing the prompt drops the node's audio.
func (w *Workflow) UpdateNode(ctx context.Context, workflowID, nodeID string, req UpdateNodeRequest) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if req.Revision != workflow.Revision {
		return nil, persistence.NewWorkflowError("UpdateNode", workflowID, persistence.ErrRevisionConflict)
	}

	node, ok := workflow.NodeByID(nodeID)
	if !ok {
		return nil, persistence.NewNodeError("UpdateNode", workflowID, nodeID, persistence.ErrNodeNotFound)
	}

	if req.Type != "" && req.Type != node.Type {
		return nil, &ServiceError{
			Op:      "UpdateNode",
			Code:    "NODE_TYPE_CHANGED",
			Message: fmt.Sprintf("node %s is %s, not %s", nodeID, node.Type, req.Type),
			Err:     ErrNodeTypeChanged,
		}
	}

	data, err := models.NewNodeData(node.Type)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(req.Data, data); err != nil {
		return nil, NewValidationError("UpdateNode", "INVALID_NODE_DATA", err.Error(), ErrInvalidRequest)
	}

	previous := models.PromptText(node)
	audio := models.NodeAudio{URL: node.AudioURL, AssetID: node.AudioAssetID, Status: node.AudioStatus}
	node.Data = data

	if models.PromptText(node) == previous {
		node.SetAudio(audio)
	} else {
		node.SetAudio(models.NodeAudio{})
	}

	if err := w.validate("UpdateNode", workflow); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update node: %w", err)
	}

	w.scheduleAudio(ctx, workflow)

	return workflow, nil
}

// SetStatus moves a workflow through draft, active and inactive. Only callable graphs can be activated.
func (w *Workflow) SetStatus(ctx context.Context, workflowID string, status models.WorkflowStatus) (*models.Workflow, error) {
	if !validStatus(status) {
		return nil, NewValidationError("SetStatus", "INVALID_STATUS", fmt.Sprintf("invalid status '%s'", status), ErrInvalidStatus)
	}

	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status == status {
		return workflow, nil
	}

	if status == models.WorkflowStatusActive {
		if err := w.validateForActivation(workflow); err != nil {
			return nil, err
		}
	}

	workflow.Status = status

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to change workflow status: %w", err)
	}

	w.logger.InfoContext(ctx, "workflow status changed", "workflow_id", workflowID, "status", status)

	return workflow, nil
}

// Validate reports every graph and schema problem without saving.
func (w *Workflow) Validate(ctx context.Context, workflowID string) (models.GraphReport, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return models.GraphReport{}, err
	}

	return w.report(workflow)
}

// Delete removes a workflow by its ID.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	if err := w.persistence.WorkflowRepository().Delete(ctx, workflowID); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

// ValidateDefinition reports the problems of a workflow that is not stored, e.g. one read from a file.
func (w *Workflow) ValidateDefinition(workflow *models.Workflow) (models.GraphReport, error) {
	if workflow == nil {
		return models.GraphReport{}, ErrWorkflowNil
	}

	return w.report(workflow)
}

// Import creates workflow, or replaces the graph of the stored workflow with the same id.
// The imported status is applied last so activation rules still hold. The bool reports a creation.
func (w *Workflow) Import(ctx context.Context, workflow *models.Workflow) (*models.Workflow, bool, error) {
	if workflow == nil {
		return nil, false, ErrWorkflowNil
	}

	status := workflow.Status

	if workflow.ID != "" {
		existing, err := w.persistence.WorkflowRepository().GetByID(ctx, workflow.ID)

		switch {
		case err == nil:
			config := workflow.Config

			updated, err := w.ReplaceGraph(ctx, existing.ID, ReplaceGraphRequest{
				Name:        workflow.Name,
				Description: workflow.Description,
				Config:      &config,
				Nodes:       workflow.Nodes,
				Edges:       workflow.Edges,
				Revision:    existing.Revision,
			})
			if err != nil {
				return nil, false, err
			}

			updated, err = w.applyImportedStatus(ctx, updated, status)

			return updated, false, err
		case !persistence.IsWorkflowNotFound(err):
			return nil, false, err
		}
	}

	workflow.Status = models.WorkflowStatusDraft

	created, err := w.Create(ctx, workflow)
	if err != nil {
		return nil, false, err
	}

	created, err = w.applyImportedStatus(ctx, created, status)

	return created, true, err
}

func (w *Workflow) applyImportedStatus(ctx context.Context, workflow *models.Workflow, status models.WorkflowStatus) (*models.Workflow, error) {
	if status == "" || status == workflow.Status {
		return workflow, nil
	}

	return w.SetStatus(ctx, workflow.ID, status)
}

func (w *Workflow) report(workflow *models.Workflow) (models.GraphReport, error) {
	report := models.ValidateGraph(workflow)

	if w.registry == nil {
		return report, nil
	}

	problems, err := w.registry.ValidateWorkflowSchemas(workflow)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())

		return report, nil
	}

	ids := make([]string, 0, len(problems))
	for id := range problems {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	for _, id := range ids {
		for _, problem := range problems[id] {
			report.Errors = append(report.Errors, fmt.Sprintf("node %s: %s", id, problem))
		}
	}

	return report, nil
}

func (w *Workflow) validate(op string, workflow *models.Workflow) error {
	if strings.TrimSpace(workflow.Name) == "" {
		return NewValidationError(op, "WORKFLOW_NAME_REQUIRED", "workflow name is required", ErrWorkflowNameRequired)
	}

	if strings.TrimSpace(workflow.TenantID) == "" {
		return NewValidationError(op, "TENANT_REQUIRED", "workflow tenant is required", ErrTenantRequired)
	}

	if err := models.Validator().Struct(workflow); err != nil {
		return NewValidationError(op, "INVALID_WORKFLOW", err.Error(), ErrInvalidRequest)
	}

	report, err := w.report(workflow)
	if err != nil {
		return err
	}

	if !report.Valid() {
		return &ServiceError{
			Op:      op,
			Code:    "INVALID_GRAPH",
			Message: fmt.Sprintf("workflow graph has %d problem(s)", len(report.Errors)),
			Details: report.Errors,
			Err:     ErrInvalidGraph,
		}
	}

	return nil
}

func (w *Workflow) validateForActivation(workflow *models.Workflow) error {
	if len(workflow.Nodes) == 0 {
		return ErrNodesRequired
	}

	if workflow.StartNode() == nil {
		return ErrStartNodeRequired
	}

	return w.validate("SetStatus", workflow)
}

func (w *Workflow) scheduleAudio(ctx context.Context, workflow *models.Workflow) {
	if w.audio == nil {
		return
	}

	var missing []string

	for _, node := range workflow.Nodes {
		if !node.HasAudio() && node.AudioStatus != models.AudioStatusDegraded && models.PromptText(node) != "" {
			missing = append(missing, node.ID)
		}
	}

	if len(missing) == 0 {
		return
	}

	job, err := w.audio.Enqueue(context.WithoutCancel(ctx), workflow.ID, missing, false)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to schedule audio generation", "workflow_id", workflow.ID, "error", err)

		return
	}

	w.logger.InfoContext(ctx, "audio generation scheduled", "workflow_id", workflow.ID, "job_id", job.ID, "nodes", len(missing))
}

func validStatus(status models.WorkflowStatus) bool {
	return slices.Contains([]models.WorkflowStatus{
		models.WorkflowStatusDraft,
		models.WorkflowStatusActive,
		models.WorkflowStatusInactive,
	}, status)
}

func assignIDs(workflow *models.Workflow) {
	for _, node := range workflow.Nodes {
		if node != nil && node.ID == "" {
			node.ID = uuid.New().String()
		}
	}

	for _, edge := range workflow.Edges {
		if edge != nil && edge.ID == "" {
			edge.ID = uuid.New().String()
		}
	}
}

// carryAudio keeps the stored audio of nodes that still say the same thing.
func carryAudio(existing, updated *models.Workflow) {
	for _, node := range updated.Nodes {
		if node == nil || node.HasAudio() {
			continue
		}

		previous, ok := existing.NodeByID(node.ID)
		if !ok || previous.Type != node.Type {
			continue
		}

		if models.PromptText(previous) != models.PromptText(node) {
			continue
		}

		node.SetAudio(models.NodeAudio{URL: previous.AudioURL, AssetID: previous.AudioAssetID, Status: previous.AudioStatus})
	}
}
