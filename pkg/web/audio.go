package web

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"

	"github.com/dukex/ivrflow/pkg/audio"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AudioPipeline is the audio generation surface used by the API.
type AudioPipeline interface {
	Enqueue(ctx context.Context, workflowID string, nodeIDs []string, force bool) (*models.AudioJob, error)
	Cancel(ctx context.Context, jobID string) error
	Job(ctx context.Context, jobID string) (*models.AudioJob, error)
	Jobs(ctx context.Context, workflowID string) ([]*models.AudioJob, error)
	GenerateNow(ctx context.Context, workflowID string, force bool) (*audio.GenerateReport, error)
}

// WorkflowLookup confirms a workflow exists before work is queued for it.
type WorkflowLookup interface {
	FetchByID(ctx context.Context, id string) (*models.Workflow, error)
}

type AudioHandlers struct {
	pipeline  AudioPipeline
	workflows WorkflowLookup
	validator *validator.Validate
	assetsDir string
}

func NewAudioHandlers(pipeline AudioPipeline, workflows WorkflowLookup, validator *validator.Validate, assetsDir string) *AudioHandlers {
	return &AudioHandlers{
		pipeline:  pipeline,
		workflows: workflows,
		validator: validator,
		assetsDir: assetsDir,
	}
}

func (h *AudioHandlers) EnqueueJob(c fiber.Ctx) error {
	var req GenerateAudioRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format: "+err.Error())
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflowID := c.Params("id")
	if _, err := h.workflows.FetchByID(c.Context(), workflowID); err != nil {
		return handleServiceError(c, err)
	}

	job, err := h.pipeline.Enqueue(c.Context(), workflowID, req.NodeIDs, req.ForceRegenerate)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(job)
}

// GenerateNow synthesizes inline. Partial failures answer 207 with the nodes that failed.
func (h *AudioHandlers) GenerateNow(c fiber.Ctx) error {
	force, err := strconv.ParseBool(c.Query("force", "false"))
	if err != nil {
		return badRequest(c, "force must be a boolean")
	}

	report, err := h.pipeline.GenerateNow(c.Context(), c.Params("id"), force)

	var genErr *audio.GenerateError
	if errors.As(err, &genErr) {
		return c.Status(fiber.StatusMultiStatus).JSON(GenerateResponse{Report: report, Failures: genErr.Failures})
	}

	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(GenerateResponse{Report: report})
}

func (h *AudioHandlers) ListJobs(c fiber.Ctx) error {
	jobs, err := h.pipeline.Jobs(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(jobs)
}

func (h *AudioHandlers) GetJob(c fiber.Ctx) error {
	job, err := h.pipeline.Job(c.Context(), c.Params("jobId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(job)
}

func (h *AudioHandlers) CancelJob(c fiber.Ctx) error {
	if err := h.pipeline.Cancel(c.Context(), c.Params("jobId")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// Asset serves a stored clip. Only plain file names are accepted.
func (h *AudioHandlers) Asset(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" || name != filepath.Base(name) || name[0] == '.' {
		return notFound(c, "asset_not_found", "asset not found")
	}

	c.Set(fiber.HeaderCacheControl, "public, max-age=86400, immutable")

	return c.SendFile(filepath.Join(h.assetsDir, name))
}
