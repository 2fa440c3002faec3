package result

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportReviewToExcel renders a review as a spreadsheet, one row per
// graded sub-question plus a summary block on top. Pending reviews have
// nothing to export.
func ExportReviewToExcel(review *Review) ([]byte, error) {
	if review.Pending {
		return nil, fmt.Errorf("submission %s is still being graded", review.SubmissionID)
	}

	f := excelize.NewFile()
	sheetName := "Result"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	// Summary block
	f.SetCellValue(sheetName, "A1", "Assignment")
	f.SetCellValue(sheetName, "B1", review.AssignmentTitle)
	f.SetCellValue(sheetName, "A2", "Skill")
	f.SetCellValue(sheetName, "B2", string(review.Skill))
	f.SetCellValue(sheetName, "A3", "Band Score")
	f.SetCellValue(sheetName, "B3", review.BandScore)
	f.SetCellValue(sheetName, "A4", "Correct")
	f.SetCellValue(sheetName, "B4", fmt.Sprintf("%d/%d", review.CorrectAnswers, review.TotalQuestions))

	headers := []string{"Section", "Question", "Your Answer", "Correct Answer", "Result"}
	headerRow := 6
	for i, header := range headers {
		cell := fmt.Sprintf("%c%d", 'A'+i, headerRow)
		f.SetCellValue(sheetName, cell, header)
	}

	rowIndex := headerRow + 1
	for _, sec := range review.Sections {
		for _, row := range sec.Rows {
			verdict := "Incorrect"
			if row.Correct {
				verdict = "Correct"
			}
			questionLabel := row.QuestionID
			if row.SubQuestionID != "" {
				questionLabel = fmt.Sprintf("%s / %s", row.QuestionID, row.SubQuestionID)
			}
			values := []any{sec.SectionTitle, questionLabel, row.SubmittedAnswer, row.CorrectAnswer, verdict}
			for colIndex, value := range values {
				cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex)
				f.SetCellValue(sheetName, cell, value)
			}
			rowIndex++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}
