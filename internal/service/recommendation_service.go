package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/opencampus-ph/portal-api/internal/models"
	appErrors "github.com/opencampus-ph/portal-api/pkg/errors"
)

type recommendationStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type curriculumReader interface {
	ListSubjects(ctx context.Context, programID string) ([]models.ProgramSubjectDetail, error)
}

type gradeHistoryReader interface {
	HistoryByStudent(ctx context.Context, studentID string) ([]models.SubjectGradeHistory, error)
}

type activeTermReader interface {
	FindActive(ctx context.Context) (*models.Term, error)
}

type openSectionReader interface {
	ListOpenBySubjects(ctx context.Context, subjectIDs []string, semester models.Semester, academicYear string) ([]models.Section, error)
	OccupancyBySection(ctx context.Context, sectionIDs []string, termID string) (map[string]int, error)
}

// SubjectRecommendation pairs a recommended subject with its open sections.
// A subject with no sections that still have room is kept with an empty list
// so clients can surface "recommended but full".
type SubjectRecommendation struct {
	Subject  models.ProgramSubjectDetail  `json:"subject"`
	Sections []models.SectionAvailability `json:"sections"`
}

// RecommendationResult is the full advice for one student.
type RecommendationResult struct {
	Term            *models.Term            `json:"term"`
	Recommendations []SubjectRecommendation `json:"recommendations"`
}

// RecommendationService determines which subjects a student should take in
// the active term, honoring grade history, repeat-eligibility windows,
// prerequisites and section capacity.
type RecommendationService struct {
	students recommendationStudentReader
	programs curriculumReader
	grades   gradeHistoryReader
	terms    activeTermReader
	sections openSectionReader
	logger   *zap.Logger
	now      func() time.Time
}

// NewRecommendationService constructs RecommendationService.
func NewRecommendationService(students recommendationStudentReader, programs curriculumReader, grades gradeHistoryReader, terms activeTermReader, sections openSectionReader, logger *zap.Logger) *RecommendationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecommendationService{
		students: students,
		programs: programs,
		grades:   grades,
		terms:    terms,
		sections: sections,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Recommend produces the subject advice for a student. No active term is not
// an error; it yields an empty result signalling enrollment is closed.
func (s *RecommendationService) Recommend(ctx context.Context, studentID string) (*RecommendationResult, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	term, err := s.terms.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &RecommendationResult{Recommendations: []SubjectRecommendation{}}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve active term")
	}

	history, err := s.grades.HistoryByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade history")
	}
	latest := latestGradeBySubject(history)

	curriculum, err := s.programs.ListSubjects(ctx, student.ProgramID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}

	now := s.now()
	candidates := make([]models.ProgramSubjectDetail, 0, len(curriculum))
	for _, mapping := range curriculum {
		if mapping.RecommendedYear != nil && *mapping.RecommendedYear != student.YearLevel {
			continue
		}
		if !s.eligible(mapping, latest, now) {
			continue
		}
		candidates = append(candidates, mapping)
	}

	result := &RecommendationResult{Term: term, Recommendations: make([]SubjectRecommendation, 0, len(candidates))}
	if len(candidates) == 0 {
		return result, nil
	}

	subjectIDs := make([]string, len(candidates))
	for i, candidate := range candidates {
		subjectIDs[i] = candidate.SubjectID
	}
	sections, err := s.sections.ListOpenBySubjects(ctx, subjectIDs, term.Semester, term.SchoolYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load open sections")
	}

	sectionIDs := make([]string, len(sections))
	for i, section := range sections {
		sectionIDs[i] = section.ID
	}
	occupancy, err := s.sections.OccupancyBySection(ctx, sectionIDs, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute occupancy")
	}

	available := make(map[string][]models.SectionAvailability, len(candidates))
	for _, section := range sections {
		slots := section.MaxSlots - occupancy[section.ID]
		if slots <= 0 {
			continue
		}
		available[section.SubjectID] = append(available[section.SubjectID], models.SectionAvailability{Section: section, AvailableSlots: slots})
	}

	for _, candidate := range candidates {
		sectionsForSubject := available[candidate.SubjectID]
		if sectionsForSubject == nil {
			sectionsForSubject = []models.SectionAvailability{}
		}
		result.Recommendations = append(result.Recommendations, SubjectRecommendation{
			Subject:  candidate,
			Sections: sectionsForSubject,
		})
	}
	return result, nil
}

// eligible applies the per-subject gates: skip passed subjects, hold failed or
// incomplete attempts inside their repeat window, and require a passed
// prerequisite. A DRP history never gates; the subject counts as unattempted.
func (s *RecommendationService) eligible(mapping models.ProgramSubjectDetail, latest map[string]models.SubjectGradeHistory, now time.Time) bool {
	if grade, attempted := latest[mapping.SubjectID]; attempted {
		if grade.Value.IsPassing() {
			return false
		}
		if grade.Value.RequiresRepeatWindow() {
			// A failing grade without a recorded window is never retakeable
			// through this path.
			if grade.RepeatEligibleDate == nil || !grade.RepeatEligibleDate.Before(now) {
				return false
			}
		}
	}
	if mapping.PrerequisiteID != nil {
		prereq, attempted := latest[*mapping.PrerequisiteID]
		if !attempted || !prereq.Value.IsPassing() {
			return false
		}
	}
	return true
}

// latestGradeBySubject folds the chronological history down to the most
// recent attempt per subject; only the latest attempt governs eligibility.
func latestGradeBySubject(history []models.SubjectGradeHistory) map[string]models.SubjectGradeHistory {
	latest := make(map[string]models.SubjectGradeHistory, len(history))
	for _, attempt := range history {
		current, ok := latest[attempt.SubjectID]
		if !ok || !attempt.DateEncoded.Before(current.DateEncoded) {
			latest[attempt.SubjectID] = attempt
		}
	}
	return latest
}
