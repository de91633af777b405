// AngelaMos | 2026
// service.go

package project

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/siliconforge/eda-backend/internal/core"
	"github.com/siliconforge/eda-backend/internal/storage"
)

const uploadKeyPrefix = "project-uploads"

type Service struct {
	repo          *Repository
	blobs         storage.ObjectStore
	presignExpiry time.Duration
	validate      *validator.Validate
}

func NewService(
	repo *Repository,
	blobs storage.ObjectStore,
	presignExpiry time.Duration,
) *Service {
	return &Service{
		repo:          repo,
		blobs:         blobs,
		presignExpiry: presignExpiry,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Service) Create(
	ctx context.Context,
	userID string,
	req CreateProjectRequest,
) (*Project, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &Project{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		Status:      StatusDraft,
		Files:       FileList{},
		ToolOutputs: ToolOutputs{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// GetOwned fetches a project and enforces that the caller owns it.
// Every mutating and file-serving path goes through this check.
func (s *Service) GetOwned(
	ctx context.Context,
	userID, projectID string,
) (*Project, error) {
	p, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if p.UserID != userID {
		return nil, core.ForbiddenError("project belongs to another user")
	}

	return p, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Project, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Update(
	ctx context.Context,
	userID, projectID string,
	req UpdateProjectRequest,
) (*Project, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	p, err := s.GetOwned(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// Delete removes the project row and then best-effort deletes its
// blobs. A blob that survives a failed delete is an orphan, not an
// error surfaced to the caller.
func (s *Service) Delete(ctx context.Context, userID, projectID string) error {
	p, err := s.GetOwned(ctx, userID, projectID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, projectID); err != nil {
		return err
	}

	for _, f := range p.Files {
		if delErr := s.blobs.Delete(ctx, f.Path); delErr != nil {
			slog.Warn("orphaned blob after project delete",
				"project_id", projectID,
				"path", f.Path,
				"error", delErr,
			)
		}
	}

	return nil
}

func (s *Service) UploadFile(
	ctx context.Context,
	userID, projectID, filename, contentType string,
	size int64,
	reader io.Reader,
) (*FileMetadata, error) {
	if _, err := s.GetOwned(ctx, userID, projectID); err != nil {
		return nil, err
	}

	name := sanitizeFilename(filename)
	if name == "" {
		return nil, core.ValidationError("invalid file name")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("%s/%s/%s", uploadKeyPrefix, projectID, name)

	if err := s.blobs.Put(ctx, key, reader, size, contentType); err != nil {
		return nil, core.UpstreamError("file upload failed").WithCause(err)
	}

	meta := FileMetadata{
		Name:       name,
		Path:       key,
		Type:       contentType,
		Size:       size,
		UploadedAt: time.Now().UTC(),
	}

	if err := s.repo.AppendFile(ctx, projectID, meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *Service) DeleteFile(
	ctx context.Context,
	userID, projectID, filename string,
) error {
	p, err := s.GetOwned(ctx, userID, projectID)
	if err != nil {
		return err
	}

	meta, ok := findFile(p.Files, filename)
	if !ok {
		return core.ErrNotFound
	}

	if err := s.repo.RemoveFile(ctx, projectID, meta.Path); err != nil {
		return err
	}

	if delErr := s.blobs.Delete(ctx, meta.Path); delErr != nil {
		slog.Warn("orphaned blob after file delete",
			"project_id", projectID,
			"path", meta.Path,
			"error", delErr,
		)
	}

	return nil
}

func (s *Service) FileDownloadURL(
	ctx context.Context,
	userID, projectID, filename string,
) (*FileDownloadResponse, error) {
	p, err := s.GetOwned(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	meta, ok := findFile(p.Files, filename)
	if !ok {
		return nil, core.ErrNotFound
	}

	url, err := s.blobs.PresignGet(ctx, meta.Path, s.presignExpiry)
	if err != nil {
		return nil, core.UpstreamError("could not sign download URL").
			WithCause(err)
	}

	return &FileDownloadResponse{Name: meta.Name, DownloadURL: url}, nil
}

func findFile(files FileList, name string) (FileMetadata, bool) {
	for _, f := range files {
		if f.Name == name {
			return f, true
		}
	}
	return FileMetadata{}, false
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
