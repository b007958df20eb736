package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opencampus-ph/portal-api/internal/models"
	appErrors "github.com/opencampus-ph/portal-api/pkg/errors"
	"github.com/opencampus-ph/portal-api/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type exportEnrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ListSubjects(ctx context.Context, enrollmentID string) ([]models.EnrollmentSubjectDetail, error)
}

type exportStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type exportTermReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

// ExportFormat selects the rendered document type.
type ExportFormat string

const (
	ExportFormatPDF ExportFormat = "pdf"
	ExportFormatCSV ExportFormat = "csv"
)

// ExportedFile carries a rendered document and its serving metadata.
type ExportedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders certificates of registration for enrollments.
type ExportService struct {
	enrollments exportEnrollmentReader
	students    exportStudentReader
	terms       exportTermReader
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
	now         func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(enrollments exportEnrollmentReader, students exportStudentReader, terms exportTermReader, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		enrollments: enrollments,
		students:    students,
		terms:       terms,
		csv:         csv,
		pdf:         pdf,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RegistrationCertificate renders the enrollment's subject load as a
// certificate of registration in the requested format.
func (s *ExportService) RegistrationCertificate(ctx context.Context, enrollmentID string, format ExportFormat) (*ExportedFile, error) {
	if format != ExportFormatPDF && format != ExportFormatCSV {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	student, err := s.students.FindByID(ctx, enrollment.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	term, err := s.terms.FindByID(ctx, enrollment.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	subjects, err := s.enrollments.ListSubjects(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollment subjects")
	}

	dataset := export.Dataset{
		Headers: []string{"Subject Code", "Subject Name", "Section", "Units"},
	}
	totalUnits := 0
	for _, subject := range subjects {
		totalUnits += subject.Units
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Subject Code": subject.SubjectCode,
			"Subject Name": subject.SubjectName,
			"Section":      subject.SectionCode,
			"Units":        fmt.Sprintf("%d", subject.Units),
		})
	}
	dataset.Rows = append(dataset.Rows, map[string]string{
		"Subject Code": "",
		"Subject Name": "TOTAL",
		"Section":      "",
		"Units":        fmt.Sprintf("%d", totalUnits),
	})

	stamp := s.now().Format("20060102")
	base := fmt.Sprintf("cor_%s_%s_%s", student.StudentNumber, term.SchoolYear, strings.ToLower(string(term.Semester)))

	switch format {
	case ExportFormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportedFile{
			Filename:    fmt.Sprintf("%s_%s.csv", base, stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	default:
		title := fmt.Sprintf("Certificate of Registration - %s (%s %s)", student.FullName, term.SchoolYear, term.Semester)
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportedFile{
			Filename:    fmt.Sprintf("%s_%s.pdf", base, stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	}
}
