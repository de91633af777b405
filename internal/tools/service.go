// AngelaMos | 2026
// service.go

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/siliconforge/eda-backend/internal/account"
	"github.com/siliconforge/eda-backend/internal/aichat"
	"github.com/siliconforge/eda-backend/internal/archive"
	"github.com/siliconforge/eda-backend/internal/core"
	"github.com/siliconforge/eda-backend/internal/entitlement"
	"github.com/siliconforge/eda-backend/internal/plan"
	"github.com/siliconforge/eda-backend/internal/project"
	"github.com/siliconforge/eda-backend/internal/storage"
	"github.com/siliconforge/eda-backend/internal/worker"
)

const outputKeyPrefix = "project-outputs"

type LogStore interface {
	Create(ctx context.Context, entry *ToolLogEntry) error
	GetByJobID(ctx context.Context, jobID string) (*ToolLogEntry, error)
	ListByUser(
		ctx context.Context,
		userID string,
		limit int,
	) ([]ToolLogEntry, error)
	MarkCompleted(
		ctx context.Context,
		jobID string,
		details Details,
		cost float64,
		completedAt time.Time,
	) error
	MarkFailed(
		ctx context.Context,
		jobID string,
		details Details,
		completedAt time.Time,
	) error
}

type ProjectStore interface {
	GetByID(ctx context.Context, id string) (*project.Project, error)
	RecordToolOutput(
		ctx context.Context,
		projectID, toolName, jobID string,
		file project.FileMetadata,
		output project.ToolOutput,
	) error
}

// AccountGate is the slice of the account service the lifecycle needs:
// the membership snapshot for resolution, the metering decrement, and
// the cache seed for grants resolved outside the cache.
type AccountGate interface {
	Get(ctx context.Context, id string) (*account.User, error)
	SeedToolGrant(
		ctx context.Context,
		userID, tool string,
		grant plan.ToolGrant,
	) error
	ConsumeToolUse(ctx context.Context, userID, tool string, limit int) error
}

// Submitter dispatches background work. The in-process bounded pool
// satisfies it today; an external queue could replace it without
// touching the lifecycle contract.
type Submitter interface {
	Submit(task worker.Task) error
}

// Service owns the initiate -> completed/failed state machine of a
// simulated tool run, plus its side effects on the project record and
// the audit log.
type Service struct {
	logs          LogStore
	projects      ProjectStore
	accounts      AccountGate
	resolver      *entitlement.Resolver
	blobs         storage.ObjectStore
	generator     aichat.TextGenerator
	jobs          Submitter
	presignExpiry time.Duration
	stepDelay     time.Duration
	validate      *validator.Validate
	now           func() time.Time
}

type ServiceConfig struct {
	Logs          LogStore
	Projects      ProjectStore
	Accounts      AccountGate
	Resolver      *entitlement.Resolver
	Blobs         storage.ObjectStore
	Generator     aichat.TextGenerator
	Jobs          Submitter
	PresignExpiry time.Duration
}

func NewService(cfg ServiceConfig) *Service {
	return &Service{
		logs:          cfg.Logs,
		projects:      cfg.Projects,
		accounts:      cfg.Accounts,
		resolver:      cfg.Resolver,
		blobs:         cfg.Blobs,
		generator:     cfg.Generator,
		jobs:          cfg.Jobs,
		presignExpiry: cfg.PresignExpiry,
		stepDelay:     baseStepDelay,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		now:           time.Now,
	}
}

// WithStepDelay overrides the per-weight simulated delay. Tests only.
func (s *Service) WithStepDelay(d time.Duration) *Service {
	s.stepDelay = d
	return s
}

// WithClock overrides the time source. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Start gates the run behind entitlement resolution and metering,
// writes the initiated log entry, and hands execution to the worker
// pool. It never blocks on the run itself.
func (s *Service) Start(
	ctx context.Context,
	userID, route string,
	req RunRequest,
) (*RunResponse, error) {
	def, ok := ByRoute(route)
	if !ok {
		return nil, core.NotFoundError("tool")
	}

	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	u, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	decision, err := s.resolver.Resolve(ctx, u.Subject(), def.Name)
	if err != nil {
		return nil, err
	}

	if !decision.Granted {
		if decision.Reason == entitlement.ReasonExpiredMembership {
			return nil, core.PaymentRequiredError(decision.Message(def.Name))
		}
		return nil, core.EntitlementError(decision.Message(def.Name))
	}

	// A granted decision with a spent counter is still a refusal; the
	// boolean alone is never sufficient for metered tools.
	if decision.Limit == plan.LimitNone {
		return nil, core.PaymentRequiredError(fmt.Sprintf(
			"usage limit for %s is exhausted", def.Name))
	}

	proj, err := s.projects.GetByID(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if proj.UserID != userID {
		return nil, core.ForbiddenError("project belongs to another user")
	}

	now := s.now().UTC()
	jobID := fmt.Sprintf(
		"%s_job_%s_%d", def.Prefix, proj.ID, now.UnixMilli())

	projectID := proj.ID
	entry := &ToolLogEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		ToolName:  def.Name,
		ProjectID: &projectID,
		JobID:     jobID,
		Status:    StatusInitiated,
		Details:   Details{"parameters": req.Parameters},
		CreatedAt: now,
	}

	if err := s.logs.Create(ctx, entry); err != nil {
		return nil, err
	}

	// Metering happens after the entry commits, so a failed insert never
	// spends a use. A grant that resolved outside the cache (base plan
	// after a deleted product, or an edited product) is seeded into it
	// first; the decrement is keyed on the cache entry.
	if decision.Limit != plan.LimitUnlimited &&
		decision.Source != entitlement.SourceCache {
		err := s.accounts.SeedToolGrant(ctx, userID, def.Name, plan.ToolGrant{
			HasAccess: true,
			Limit:     decision.Limit,
		})
		if err != nil {
			s.markFailed(context.WithoutCancel(ctx), jobID, err, nil)
			return nil, err
		}
	}

	if err := s.accounts.ConsumeToolUse(
		ctx, userID, def.Name, decision.Limit); err != nil {
		s.markFailed(context.WithoutCancel(ctx), jobID, err, nil)
		if errors.Is(err, core.ErrUsageExhausted) {
			return nil, core.PaymentRequiredError(fmt.Sprintf(
				"usage limit for %s is exhausted", def.Name))
		}
		return nil, err
	}

	slog.Info("tool job initiated",
		"job_id", jobID,
		"tool", def.Name,
		"user_id", userID,
		"project_id", proj.ID,
	)

	if err := s.jobs.Submit(func(taskCtx context.Context) {
		s.Execute(taskCtx, jobID)
	}); err != nil {
		s.markFailed(context.WithoutCancel(ctx), jobID,
			fmt.Errorf("dispatch job: %w", err), nil)
		return nil, core.NewAppError(
			http.StatusServiceUnavailable,
			"WORKER_BUSY",
			"too many jobs in flight, try again shortly",
		)
	}

	return &RunResponse{JobID: jobID, Status: StatusInitiated}, nil
}

// Execute runs the simulated design step on a worker goroutine: the AI
// analysis call, a delay proportional to the tool's weight, artifact
// packaging, blob upload, and the project-side writes. Any error marks
// the job failed with the error text; partial writes already committed
// (an uploaded blob in particular) are not rolled back, they are only
// recorded as orphans in the log details.
func (s *Service) Execute(ctx context.Context, jobID string) {
	entry, err := s.logs.GetByJobID(ctx, jobID)
	if err != nil {
		slog.Error("job vanished before execution", "job_id", jobID, "error", err)
		return
	}

	def, ok := ByName(entry.ToolName)
	if !ok {
		s.markFailed(ctx, jobID,
			fmt.Errorf("unknown tool %q", entry.ToolName), nil)
		return
	}

	var uploaded []string
	if err := s.execute(ctx, entry, def, &uploaded); err != nil {
		s.markFailed(ctx, jobID, err, uploaded)
		return
	}
}

func (s *Service) execute(
	ctx context.Context,
	entry *ToolLogEntry,
	def Definition,
	uploaded *[]string,
) error {
	paramsJSON, err := json.MarshalIndent(entry.Details["parameters"], "", "  ")
	if err != nil {
		paramsJSON = []byte("{}")
	}

	analysis, err := s.generator.Generate(ctx, def.Analysis,
		fmt.Sprintf("Tool: %s\nParameters:\n%s", def.Name, paramsJSON))
	if err != nil {
		return fmt.Errorf("ai analysis: %w", err)
	}

	if err := s.simulateWork(ctx, def.Weight); err != nil {
		return err
	}

	completedAt := s.now().UTC()
	archiveBytes, err := archive.BuildZip([]archive.Entry{
		{Name: "report.txt", Data: []byte(analysis)},
		{Name: "parameters.json", Data: paramsJSON},
	}, completedAt)
	if err != nil {
		return fmt.Errorf("package artifacts: %w", err)
	}

	projectID := ""
	if entry.ProjectID != nil {
		projectID = *entry.ProjectID
	}

	key := fmt.Sprintf("%s/%s/%s/%s",
		outputKeyPrefix, projectID, entry.JobID, def.Artifact)

	err = s.blobs.Put(ctx, key,
		bytes.NewReader(archiveBytes),
		int64(len(archiveBytes)),
		"application/zip")
	if err != nil {
		return fmt.Errorf("upload artifact: %w", err)
	}
	*uploaded = append(*uploaded, key)

	file := project.FileMetadata{
		Name:       def.Artifact,
		Path:       key,
		Type:       "application/zip",
		Size:       int64(len(archiveBytes)),
		UploadedAt: completedAt,
	}
	output := project.ToolOutput{
		Artifact:    def.Artifact,
		Path:        key,
		AIStatus:    "ok",
		CompletedAt: completedAt,
	}

	err = s.projects.RecordToolOutput(
		ctx, projectID, def.Name, entry.JobID, file, output)
	if err != nil {
		return fmt.Errorf("record project output: %w", err)
	}

	err = s.logs.MarkCompleted(ctx, entry.JobID, Details{
		"outputPath": key,
		"aiStatus":   "ok",
	}, def.Cost, completedAt)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}

	slog.Info("tool job completed",
		"job_id", entry.JobID,
		"tool", def.Name,
		"cost", def.Cost,
		"output", key,
	)

	return nil
}

func (s *Service) simulateWork(ctx context.Context, weight int) error {
	delay := time.Duration(weight) * s.stepDelay
	if delay <= 0 {
		return nil
	}

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("job interrupted: %w", ctx.Err())
	}
}

func (s *Service) markFailed(
	ctx context.Context,
	jobID string,
	cause error,
	orphaned []string,
) {
	details := Details{"error": cause.Error()}
	if len(orphaned) > 0 {
		details["orphanedArtifacts"] = orphaned
	}

	if err := s.logs.MarkFailed(ctx, jobID, details, s.now().UTC()); err != nil {
		slog.Error("could not mark job failed",
			"job_id", jobID, "error", err, "cause", cause)
		return
	}

	slog.Warn("tool job failed",
		"job_id", jobID,
		"error", cause,
		"orphaned_artifacts", len(orphaned),
	)
}

// Status returns the job's current state, scoped to entries the caller
// owns; someone else's job id reads as not found.
func (s *Service) Status(
	ctx context.Context,
	userID, jobID string,
) (*StatusResponse, error) {
	entry, err := s.ownedEntry(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	return &StatusResponse{
		JobID:       entry.JobID,
		ToolName:    entry.ToolName,
		Status:      entry.Status,
		Details:     entry.Details,
		Cost:        entry.Cost,
		CreatedAt:   entry.CreatedAt,
		CompletedAt: entry.CompletedAt,
	}, nil
}

// DownloadURL signs the artifact of a completed job. A job in any other
// state is an error, not an empty result.
func (s *Service) DownloadURL(
	ctx context.Context,
	userID, jobID string,
) (*DownloadResponse, error) {
	entry, err := s.ownedEntry(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	if entry.Status != StatusCompleted {
		return nil, core.NotFoundError("completed job output")
	}

	key, _ := entry.Details["outputPath"].(string)
	if key == "" {
		return nil, core.NotFoundError("completed job output")
	}

	url, err := s.blobs.PresignGet(ctx, key, s.presignExpiry)
	if err != nil {
		return nil, core.UpstreamError("could not sign download URL").
			WithCause(err)
	}

	return &DownloadResponse{JobID: jobID, DownloadURL: url}, nil
}

func (s *Service) History(
	ctx context.Context,
	userID string,
	limit int,
) ([]ToolLogEntry, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.logs.ListByUser(ctx, userID, limit)
}

func (s *Service) ownedEntry(
	ctx context.Context,
	userID, jobID string,
) (*ToolLogEntry, error) {
	entry, err := s.logs.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if entry.UserID != userID {
		return nil, core.ErrNotFound
	}

	return entry, nil
}
