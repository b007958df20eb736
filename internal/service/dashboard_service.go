package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opencampus-ph/portal-api/internal/models"
	appErrors "github.com/opencampus-ph/portal-api/pkg/errors"
)

type dashboardStudentCounter interface {
	CountActive(ctx context.Context) (int, error)
}

type dashboardSectionCounter interface {
	CountOpen(ctx context.Context, semester models.Semester, academicYear string) (int, error)
}

type dashboardGradeCounter interface {
	CountPending(ctx context.Context) (int, error)
}

type dashboardEnrollmentCounter interface {
	CountByTerm(ctx context.Context, termID string) (int, error)
}

type dashboardTermReader interface {
	FindActive(ctx context.Context) (*models.Term, error)
}

// DashboardSummary aggregates registrar-facing counts for the active term.
type DashboardSummary struct {
	Term           *models.Term `json:"term"`
	ActiveStudents int          `json:"active_students"`
	OpenSections   int          `json:"open_sections"`
	Enrollments    int          `json:"enrollments"`
	PendingGrades  int          `json:"pending_grades"`
	GeneratedAt    time.Time    `json:"generated_at"`
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes the summary payload with a Redis-backed cache.
type DashboardService struct {
	students    dashboardStudentCounter
	sections    dashboardSectionCounter
	grades      dashboardGradeCounter
	enrollments dashboardEnrollmentCounter
	terms       dashboardTermReader
	cache       *CacheService
	logger      *zap.Logger
	now         func() time.Time
	cfg         DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Students    dashboardStudentCounter
	Sections    dashboardSectionCounter
	Grades      dashboardGradeCounter
	Enrollments dashboardEnrollmentCounter
	Terms       dashboardTermReader
	Cache       *CacheService
	Logger      *zap.Logger
	Config      DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		students:    params.Students,
		sections:    params.Sections,
		grades:      params.Grades,
		enrollments: params.Enrollments,
		terms:       params.Terms,
		cache:       params.Cache,
		logger:      logger,
		now:         time.Now,
		cfg:         cfg,
	}
}

// Summary returns the dashboard counts and reports cache utilisation.
func (s *DashboardService) Summary(ctx context.Context) (*DashboardSummary, bool, error) {
	term, err := s.terms.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNoActiveTerm, "no active academic term")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve active term")
	}

	cacheKey := fmt.Sprintf("dash:summary:%s", term.ID)
	if s.cache != nil {
		var cached DashboardSummary
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	summary, err := s.compose(ctx, term)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return summary, false, nil
}

// Invalidate drops cached summaries after enrollment or grade mutations.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "dash:summary:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func (s *DashboardService) compose(ctx context.Context, term *models.Term) (*DashboardSummary, error) {
	activeStudents, err := s.students.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	openSections, err := s.sections.CountOpen(ctx, term.Semester, term.SchoolYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sections")
	}
	enrollments, err := s.enrollments.CountByTerm(ctx, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	pendingGrades, err := s.grades.CountPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending grades")
	}

	return &DashboardSummary{
		Term:           term,
		ActiveStudents: activeStudents,
		OpenSections:   openSections,
		Enrollments:    enrollments,
		PendingGrades:  pendingGrades,
		GeneratedAt:    s.now().UTC(),
	}, nil
}
