package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/hireloop/resume-pipeline/internal/repository"
)

// Service is a tiny façade over repositories that produces XLSX bytes for
// match-result exports.
type Service struct {
	matches repository.MatchRepository
	logger  *slog.Logger
}

func NewService(matches repository.MatchRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{matches: matches, logger: logger}
}

// ExportMatchesXLSX returns an XLSX workbook (as bytes) with every match
// result of the session, one row per resume/job pair.
func (s *Service) ExportMatchesXLSX(ctx context.Context, sessionID uuid.UUID) ([]byte, error) {
	start := time.Now()

	results, err := s.matches.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query match results: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Matches"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Match ID",
		"Resume Document",
		"Job Document",
		"Status",
		"Score",
		"Error",
		"Improved Resume (preview)",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, m := range results {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, m.ID.String())
		write(2, m.ResumeDocumentID.String())
		write(3, m.JobDocumentID.String())
		write(4, string(m.Status))
		if m.Score != nil {
			write(5, *m.Score)
		}
		if m.ProcessingError != nil {
			write(6, truncate(*m.ProcessingError, 140))
		}
		if m.ImprovedResume != nil {
			write(7, truncate(*m.ImprovedResume, 500))
		}

		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "C", 38)
	_ = f.SetColWidth(sheet, "D", "D", 12)
	_ = f.SetColWidth(sheet, "E", "E", 10)
	_ = f.SetColWidth(sheet, "F", "F", 48)
	_ = f.SetColWidth(sheet, "G", "G", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"session_id", sessionID.String(),
		"rows", len(results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
