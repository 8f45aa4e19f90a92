package model

import "time"

// TestExport is the top-level JSON structure for test result export.
type TestExport struct {
	TestID     int64           `json:"test_id"`
	Title      string          `json:"title"`
	SubjectID  int64           `json:"subject_id"`
	TotalMarks int             `json:"total_marks"`
	Exported   time.Time       `json:"exported"`
	Results    []StudentResult `json:"results"`
}

// StudentResult holds one student's submission data for export.
type StudentResult struct {
	StudentID   int64            `json:"student_id"`
	DisplayName string           `json:"display_name"`
	Status      SubmissionStatus `json:"status"`
	TotalMarks  float64          `json:"total_marks"`
	TimeTaken   int              `json:"time_taken"`
	SubmittedAt time.Time        `json:"submitted_at"`
	EvaluatedAt *time.Time       `json:"evaluated_at,omitempty"`
	Answers     []AnswerResult   `json:"answers"`
}

// AnswerResult holds per-answer data for export.
type AnswerResult struct {
	QuestionID int64        `json:"question_id"`
	Text       string       `json:"text"`
	Type       QuestionType `json:"type"`
	Difficulty Difficulty   `json:"difficulty"`
	MaxMarks   int          `json:"max_marks"`
	Marks      *float64     `json:"marks,omitempty"`
	Remarks    string       `json:"remarks,omitempty"`
}
