package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/idest-edu/assignment-gateway/internal/backend"
	"github.com/idest-edu/assignment-gateway/internal/models"
	"github.com/idest-edu/assignment-gateway/internal/result"
	"github.com/idest-edu/assignment-gateway/internal/session"
	"github.com/idest-edu/assignment-gateway/internal/utils"
)

type ResultService interface {
	GetReview(ctx context.Context, skill models.Skill, assignmentID, submissionID string) (*result.Review, error)
	ExportReview(ctx context.Context, skill models.Skill, assignmentID, submissionID string) ([]byte, error)
	ListAssignments(ctx context.Context, skill models.Skill, page *models.Pagination) (*backend.Page[models.AssignmentOverview], error)
	ListMySubmissions(ctx context.Context, skill models.Skill, page *models.Pagination) (*backend.Page[models.SubmissionOverview], error)
	ConsumeGradingNotice(ctx context.Context, userID string) (bool, error)
}

type resultService struct {
	backend  backend.Client
	sessions session.Store
	viewer   *result.Viewer
	logger   utils.Logger
}

func NewResultService(backendClient backend.Client, sessions session.Store, logger utils.Logger) ResultService {
	return &resultService{
		backend:  backendClient,
		sessions: sessions,
		viewer:   result.NewViewer(backendClient, logger),
		logger:   logger,
	}
}

func (s *resultService) GetReview(ctx context.Context, skill models.Skill, assignmentID, submissionID string) (*result.Review, error) {
	review, err := s.viewer.GetReview(ctx, skill, assignmentID, submissionID)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return review, nil
}

func (s *resultService) ExportReview(ctx context.Context, skill models.Skill, assignmentID, submissionID string) ([]byte, error) {
	review, err := s.GetReview(ctx, skill, assignmentID, submissionID)
	if err != nil {
		return nil, err
	}
	if review.Pending {
		return nil, ErrSubmissionNotGraded
	}
	return result.ExportReviewToExcel(review)
}

func (s *resultService) ListAssignments(ctx context.Context, skill models.Skill, page *models.Pagination) (*backend.Page[models.AssignmentOverview], error) {
	listing, err := s.backend.ListAssignments(ctx, skill, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return listing, nil
}

func (s *resultService) ListMySubmissions(ctx context.Context, skill models.Skill, page *models.Pagination) (*backend.Page[models.SubmissionOverview], error) {
	listing, err := s.backend.ListMySubmissions(ctx, page, skill)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return listing, nil
}

// ConsumeGradingNotice reports and clears the one-shot flag set when a
// writing or speaking submission was queued for grading. The caller shows
// the notice at most once per submission.
func (s *resultService) ConsumeGradingNotice(ctx context.Context, userID string) (bool, error) {
	queued, err := s.sessions.ConsumeGradingQueued(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to read grading notice: %w", err)
	}
	return queued, nil
}
