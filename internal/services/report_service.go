package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	itemsSheet   = "Curriculum"
	summarySheet = "Summary"
)

// ReportService exports a learner's progress through a loaded course.
type ReportService interface {
	ExportProgress(ctx context.Context, sessionID string, courseID uint) (*ProgressReport, error)
}

type ProgressReport struct {
	Filename string
	Content  []byte
}

type reportService struct {
	learners LearnerService
	player   PlayerService
	logger   *slog.Logger
}

func NewReportService(learners LearnerService, player PlayerService, logger *slog.Logger) ReportService {
	return &reportService{learners: learners, player: player, logger: logger}
}

func (s *reportService) ExportProgress(ctx context.Context, sessionID string, courseID uint) (*ProgressReport, error) {
	ls, err := s.learners.Session(sessionID)
	if err != nil {
		return nil, err
	}
	view, err := s.player.Curriculum(ctx, sessionID, courseID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(itemsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	headers := []interface{}{"Position", "Kind", "Item", "Title", "Completed", "Locked"}
	if err := f.SetSheetRow(itemsSheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}
	for i, item := range view.Curriculum.Items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{i + 1, string(item.Ref.Kind), item.Ref.String(), item.Title, yesNo(item.Completed), yesNo(item.Locked)}
		if err := f.SetSheetRow(itemsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write item row: %w", err)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	completed := 0
	for _, item := range view.Curriculum.Items {
		if item.Completed {
			completed++
		}
	}
	summary := [][]interface{}{
		{"Course", view.Curriculum.Title},
		{"Learner", ls.Learner.Username},
		{"Items", len(view.Curriculum.Items)},
		{"Completed", completed},
		{"Progress (%)", view.Curriculum.ProgressPercent},
		{"Course complete", yesNo(view.CourseComplete)},
		{"Generated at", time.Now().UTC().Format(time.RFC3339)},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Progress report exported",
		"learner_id", ls.Learner.ID,
		"course_id", courseID,
		"size", buf.Len())

	return &ProgressReport{
		Filename: fmt.Sprintf("course-%d-progress.xlsx", courseID),
		Content:  buf.Bytes(),
	}, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
