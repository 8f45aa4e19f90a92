package store

import (
	"fmt"
	"time"

	"github.com/Kavinnandha/smart-assessment-platform/internal/model"
)

// ExportTestResults builds export-ready student results for one test.
func (s *Store) ExportTestResults(testID int64) (*model.TestExport, error) {
	test, err := s.GetTest(testID)
	if err != nil {
		return nil, fmt.Errorf("get test %d: %w", testID, err)
	}

	questionIDs := make([]int64, 0, len(test.Questions))
	marksByQuestion := make(map[int64]int, len(test.Questions))
	for _, tq := range test.Questions {
		questionIDs = append(questionIDs, tq.QuestionID)
		marksByQuestion[tq.QuestionID] = tq.Marks
	}
	questions, err := s.QuestionsByID(questionIDs)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT `+submissionCols+` FROM submissions WHERE test_id = ? ORDER BY id`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []model.StudentResult
	for _, sub := range subs {
		answers, err := s.answersFor(sub.ID)
		if err != nil {
			return nil, fmt.Errorf("load answers for submission %d: %w", sub.ID, err)
		}

		var displayName string
		if user, err := s.GetUserByID(sub.StudentID); err != nil {
			return nil, fmt.Errorf("get user %d: %w", sub.StudentID, err)
		} else if user != nil {
			displayName = user.DisplayName
		}

		var answerResults []model.AnswerResult
		for _, a := range answers {
			q := questions[a.QuestionID]
			answerResults = append(answerResults, model.AnswerResult{
				QuestionID: a.QuestionID,
				Text:       a.Text,
				Type:       q.Type,
				Difficulty: q.Difficulty,
				MaxMarks:   marksByQuestion[a.QuestionID],
				Marks:      a.Marks,
				Remarks:    a.Remarks,
			})
		}

		results = append(results, model.StudentResult{
			StudentID:   sub.StudentID,
			DisplayName: displayName,
			Status:      sub.Status,
			TotalMarks:  sub.TotalMarks,
			TimeTaken:   sub.TimeTaken,
			SubmittedAt: sub.SubmittedAt,
			EvaluatedAt: sub.EvaluatedAt,
			Answers:     answerResults,
		})
	}

	return &model.TestExport{
		TestID:     test.ID,
		Title:      test.Title,
		SubjectID:  test.SubjectID,
		TotalMarks: test.TotalMarks,
		Exported:   time.Now(),
		Results:    results,
	}, nil
}
