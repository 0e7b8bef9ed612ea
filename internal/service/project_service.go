package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/mapper"
	"github.com/sitebook/sitebook-api/internal/repository"
)

// ProjectService handles business logic for projects
type ProjectService struct {
	projectRepo *repository.ProjectRepository
	boqRepo     *repository.BOQActivityRepository
	logger      *zap.Logger
}

// NewProjectService creates a new ProjectService
func NewProjectService(
	projectRepo *repository.ProjectRepository,
	boqRepo *repository.BOQActivityRepository,
	logger *zap.Logger,
) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		boqRepo:     boqRepo,
		logger:      logger,
	}
}

// Create creates a new project. Codes are unique.
func (s *ProjectService) Create(ctx context.Context, req *domain.CreateProjectRequest) (*domain.ProjectDTO, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, fmt.Errorf("%w: project code is required", ErrInvalidInput)
	}

	exists, err := s.projectRepo.ExistsByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to check project code: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: project %s already exists", ErrConflict, code)
	}

	startDate, endDate, err := parseProjectDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = domain.ProjectStatusPlanning
	}

	project := &domain.Project{
		Code:        code,
		Name:        req.Name,
		Description: req.Description,
		Status:      status,
		StartDate:   startDate,
		EndDate:     endDate,
		CreatedBy:   actorID(ctx),
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.logger.Info("project created",
		zap.String("project_id", project.ID.String()),
		zap.String("code", project.Code))

	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

// GetByCode retrieves a project by its code
func (s *ProjectService) GetByCode(ctx context.Context, code string) (*domain.ProjectDTO, error) {
	project, err := s.projectRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, wrapNotFound(err, "project "+code)
	}
	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

// List returns a paginated list of projects
func (s *ProjectService) List(ctx context.Context, filter repository.ProjectFilter, sort repository.SortConfig, page, pageSize int) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)
	projects, total, err := s.projectRepo.List(ctx, filter, sort, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	dtos := make([]domain.ProjectDTO, len(projects))
	for i := range projects {
		dtos[i] = mapper.ToProjectDTO(&projects[i])
	}
	return paginated(dtos, total, page, pageSize), nil
}

// Update replaces the mutable fields of a project. The code is immutable because
// BOQ activities and KPI records refer to it.
func (s *ProjectService) Update(ctx context.Context, code string, req *domain.UpdateProjectRequest) (*domain.ProjectDTO, error) {
	project, err := s.projectRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, wrapNotFound(err, "project "+code)
	}

	startDate, endDate, err := parseProjectDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	project.Name = req.Name
	project.Description = req.Description
	project.Status = req.Status
	project.StartDate = startDate
	project.EndDate = endDate

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

// Delete removes a project. Projects that still have BOQ activities are kept.
func (s *ProjectService) Delete(ctx context.Context, code string) error {
	project, err := s.projectRepo.GetByCode(ctx, code)
	if err != nil {
		return wrapNotFound(err, "project "+code)
	}

	count, err := s.boqRepo.CountByProject(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to count BOQ activities: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: project %s has %d BOQ activities", ErrConflict, code, count)
	}

	if err := s.projectRepo.Delete(ctx, project.ID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	s.logger.Info("project deleted", zap.String("code", code))
	return nil
}

func parseProjectDates(start, end string) (*time.Time, *time.Time, error) {
	startDate, err := mapper.ParseDate(start)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	endDate, err := mapper.ParseDate(end)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if startDate != nil && endDate != nil && endDate.Before(*startDate) {
		return nil, nil, fmt.Errorf("%w: end date is before start date", ErrInvalidInput)
	}
	return startDate, endDate, nil
}
