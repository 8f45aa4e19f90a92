package store

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/Kavinnandha/smart-assessment-platform/internal/model"
)

func seedTest(t *testing.T, s *Store) (testID int64, questionIDs []int64) {
	t.Helper()
	q1 := mustInsertQuestion(t, s, model.Question{
		SubjectID: 1, Difficulty: model.DifficultyEasy,
		Type: model.TypeTrueFalse, Text: "true or false", Marks: 1, Answer: "true",
	})
	q2 := mustInsertQuestion(t, s, model.Question{
		SubjectID: 1, Difficulty: model.DifficultyMedium,
		Type: model.TypeShortAnswer, Text: "explain", Marks: 5,
	})
	testID, err := s.CreateTest(model.Test{
		SubjectID: 1, Title: "t", TotalMarks: 6,
		Questions: []model.TestQuestion{
			{QuestionID: q1, Marks: 1, Position: 1},
			{QuestionID: q2, Marks: 5, Position: 2},
		},
	})
	if err != nil {
		t.Fatalf("create test: %v", err)
	}
	return testID, []int64{q1, q2}
}

func TestCreateSubmissionWithAnswers(t *testing.T) {
	s := newTestStore(t)
	testID, qIDs := seedTest(t, s)

	marks := 1.0
	id, err := s.CreateSubmission(model.Submission{
		TestID:     testID,
		StudentID:  100,
		Status:     model.StatusSubmitted,
		TotalMarks: 1,
		TimeTaken:  600,
		Answers: []model.Answer{
			{QuestionID: qIDs[0], Text: "true", Marks: &marks, Remarks: model.RemarkAutoCorrect},
			{QuestionID: qIDs[1], Text: "because of gravity", Remarks: model.RemarkPendingManual},
		},
	})
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}

	sub, err := s.GetSubmission(id)
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if sub.Status != model.StatusSubmitted {
		t.Errorf("status = %q", sub.Status)
	}
	if len(sub.Answers) != 2 {
		t.Fatalf("got %d answers, want 2", len(sub.Answers))
	}
	if sub.Answers[0].Marks == nil || *sub.Answers[0].Marks != 1 {
		t.Errorf("first answer marks = %v, want 1", sub.Answers[0].Marks)
	}
	if sub.Answers[1].Marks != nil {
		t.Errorf("ungraded answer has marks %v", *sub.Answers[1].Marks)
	}
}

func TestCreateSubmissionDuplicate(t *testing.T) {
	s := newTestStore(t)
	testID, _ := seedTest(t, s)

	sub := model.Submission{TestID: testID, StudentID: 7, Status: model.StatusSubmitted}
	if _, err := s.CreateSubmission(sub); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	_, err := s.CreateSubmission(sub)
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("second submission err = %v, want ErrDuplicateSubmission", err)
	}

	exists, err := s.SubmissionExists(testID, 7)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Error("submission should exist")
	}
}

func TestApplyEvaluation(t *testing.T) {
	s := newTestStore(t)
	testID, qIDs := seedTest(t, s)

	id, err := s.CreateSubmission(model.Submission{
		TestID: testID, StudentID: 1, Status: model.StatusSubmitted,
		Answers: []model.Answer{
			{QuestionID: qIDs[0], Text: "true"},
			{QuestionID: qIDs[1], Text: "some essay"},
		},
	})
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}
	sub, err := s.GetSubmission(id)
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}

	evaluator := int64(42)
	now := time.Now()
	err = s.ApplyEvaluation(id, []AnswerUpdate{
		{AnswerID: sub.Answers[0].ID, Marks: 1, Remarks: "ok"},
		{AnswerID: sub.Answers[1].ID, Marks: 4, Remarks: "good"},
	}, 5, model.StatusEvaluated, &evaluator, &now)
	if err != nil {
		t.Fatalf("apply evaluation: %v", err)
	}

	got, err := s.GetSubmission(id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != model.StatusEvaluated {
		t.Errorf("status = %q", got.Status)
	}
	if got.TotalMarks != 5 {
		t.Errorf("total = %g, want 5", got.TotalMarks)
	}
	if got.EvaluatedBy == nil || *got.EvaluatedBy != 42 {
		t.Errorf("evaluated_by = %v, want 42", got.EvaluatedBy)
	}
	if got.EvaluatedAt == nil {
		t.Error("evaluated_at not set")
	}
	if got.Answers[1].Marks == nil || *got.Answers[1].Marks != 4 {
		t.Errorf("answer marks = %v, want 4", got.Answers[1].Marks)
	}
}

func TestApplyEvaluationUnknownAnswerRollsBack(t *testing.T) {
	s := newTestStore(t)
	testID, qIDs := seedTest(t, s)

	id, err := s.CreateSubmission(model.Submission{
		TestID: testID, StudentID: 1, Status: model.StatusSubmitted,
		Answers: []model.Answer{{QuestionID: qIDs[0], Text: "true"}},
	})
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}
	sub, _ := s.GetSubmission(id)

	now := time.Now()
	err = s.ApplyEvaluation(id, []AnswerUpdate{
		{AnswerID: sub.Answers[0].ID, Marks: 1},
		{AnswerID: 9999, Marks: 1},
	}, 2, model.StatusEvaluated, nil, &now)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}

	// Nothing from the failed evaluation may have landed.
	got, _ := s.GetSubmission(id)
	if got.Status != model.StatusSubmitted {
		t.Errorf("status = %q after rollback", got.Status)
	}
	if got.Answers[0].Marks != nil {
		t.Errorf("answer marks = %v after rollback, want nil", *got.Answers[0].Marks)
	}
}

func TestListSubmissionsByStatus(t *testing.T) {
	s := newTestStore(t)
	testID, qIDs := seedTest(t, s)

	for i, status := range []model.SubmissionStatus{
		model.StatusEvaluated, model.StatusSubmitted, model.StatusEvaluated,
	} {
		_, err := s.CreateSubmission(model.Submission{
			TestID: testID, StudentID: int64(i + 1), Status: status,
			TotalMarks: float64(i * 10),
			Answers:    []model.Answer{{QuestionID: qIDs[0], Text: "x"}},
		})
		if err != nil {
			t.Fatalf("create submission %d: %v", i, err)
		}
	}

	evaluated, err := s.ListSubmissionsByStatus(testID, model.StatusEvaluated)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(evaluated) != 2 {
		t.Fatalf("got %d evaluated, want 2", len(evaluated))
	}
	// Insertion order.
	if evaluated[0].StudentID != 1 || evaluated[1].StudentID != 3 {
		t.Errorf("order = %d, %d", evaluated[0].StudentID, evaluated[1].StudentID)
	}
	if len(evaluated[0].Answers) != 1 {
		t.Errorf("answers not loaded: %+v", evaluated[0])
	}
}

func TestExportTestResults(t *testing.T) {
	s := newTestStore(t)
	testID, qIDs := seedTest(t, s)

	studentID, err := s.CreateUser(model.User{
		Username: "alice", DisplayName: "Alice", PasswordHash: "h",
		Role: model.UserRoleStudent, Active: true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	marks := 5.0
	_, err = s.CreateSubmission(model.Submission{
		TestID: testID, StudentID: studentID, Status: model.StatusEvaluated, TotalMarks: 5,
		Answers: []model.Answer{
			{QuestionID: qIDs[1], Text: "essay", Marks: &marks, Remarks: "good"},
		},
	})
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}

	export, err := s.ExportTestResults(testID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if export.TestID != testID {
		t.Errorf("test id = %d", export.TestID)
	}
	if len(export.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(export.Results))
	}
	res := export.Results[0]
	if res.DisplayName != "Alice" {
		t.Errorf("display name = %q", res.DisplayName)
	}
	if len(res.Answers) != 1 {
		t.Fatalf("got %d answers", len(res.Answers))
	}
	if res.Answers[0].MaxMarks != 5 {
		t.Errorf("max marks = %d, want 5", res.Answers[0].MaxMarks)
	}
	if res.Answers[0].Type != model.TypeShortAnswer {
		t.Errorf("type = %q", res.Answers[0].Type)
	}
}
