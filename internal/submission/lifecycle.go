// Package submission owns the lifecycle of a student's attempt at a test:
// creation, objective auto-grading at intake, and the resulting status.
package submission

import (
	"fmt"
	"strings"
	"time"

	"github.com/Kavinnandha/smart-assessment-platform/internal/model"
	"github.com/Kavinnandha/smart-assessment-platform/internal/store"
)

// AnswerInput is one submitted answer.
type AnswerInput struct {
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
}

// Input describes a student's submission of a test.
type Input struct {
	TestID    int64
	StudentID int64
	Answers   []AnswerInput
	TimeTaken int
}

// CreateResult carries the stored submission plus what the boundary layer
// needs to decide result visibility. The lifecycle itself never decides
// whether to reveal scores.
type CreateResult struct {
	Submission  model.Submission
	AutoGraded  int
	ShowResults bool
}

// Lifecycle creates submissions and auto-grades objective answers.
type Lifecycle struct {
	store *store.Store
}

func New(s *store.Store) *Lifecycle {
	return &Lifecycle{store: s}
}

// Create stores a new submission for (test, student), grading objective
// answers immediately by case-insensitive trimmed comparison against the
// reference answer. The submission becomes evaluated only when every
// question in the test is objective; one subjective question keeps the
// whole submission in submitted state even if all other answers are already
// graded.
func (l *Lifecycle) Create(in Input) (*CreateResult, error) {
	test, err := l.store.GetTest(in.TestID)
	if err != nil {
		return nil, fmt.Errorf("load test %d: %w", in.TestID, err)
	}

	// Pre-check for a friendly error; the unique index on submissions
	// still catches the check-then-insert race.
	exists, err := l.store.SubmissionExists(in.TestID, in.StudentID)
	if err != nil {
		return nil, fmt.Errorf("check existing submission: %w", err)
	}
	if exists {
		return nil, store.ErrDuplicateSubmission
	}

	testQuestions := make(map[int64]model.TestQuestion, len(test.Questions))
	questionIDs := make([]int64, 0, len(test.Questions))
	for _, tq := range test.Questions {
		testQuestions[tq.QuestionID] = tq
		questionIDs = append(questionIDs, tq.QuestionID)
	}
	questions, err := l.store.QuestionsByID(questionIDs)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	var (
		answers    []model.Answer
		total      float64
		autoGraded int
	)
	for _, ai := range in.Answers {
		tq, ok := testQuestions[ai.QuestionID]
		if !ok {
			return nil, &model.ValidationError{
				Field:  "answers",
				Reason: fmt.Sprintf("question %d is not part of test %d", ai.QuestionID, in.TestID),
			}
		}
		q, ok := questions[ai.QuestionID]
		if !ok {
			return nil, &model.ValidationError{
				Field:  "answers",
				Reason: fmt.Sprintf("question %d no longer exists", ai.QuestionID),
			}
		}

		a := model.Answer{QuestionID: ai.QuestionID, Text: ai.Text}
		if q.Type.Objective() {
			marks := 0.0
			remark := model.RemarkAutoIncorrect
			if answersMatch(ai.Text, q.Answer) {
				marks = float64(tq.Marks)
				remark = model.RemarkAutoCorrect
			}
			a.Marks = &marks
			a.Remarks = remark
			total += marks
			autoGraded++
		} else {
			a.Remarks = model.RemarkPendingManual
		}
		answers = append(answers, a)
	}

	status := model.StatusSubmitted
	sub := model.Submission{
		TestID:     in.TestID,
		StudentID:  in.StudentID,
		Status:     status,
		TotalMarks: total,
		TimeTaken:  in.TimeTaken,
		Answers:    answers,
	}
	// Test-level rule: the submission is evaluated at intake only when the
	// test contains no subjective question at all.
	if allObjective(test, questions) {
		now := time.Now()
		sub.Status = model.StatusEvaluated
		sub.EvaluatedAt = &now
	}

	id, err := l.store.CreateSubmission(sub)
	if err != nil {
		return nil, err
	}
	stored, err := l.store.GetSubmission(id)
	if err != nil {
		return nil, fmt.Errorf("reload submission %d: %w", id, err)
	}

	return &CreateResult{
		Submission:  stored,
		AutoGraded:  autoGraded,
		ShowResults: test.ShowResults,
	}, nil
}

func answersMatch(submitted, reference string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(reference))
}

func allObjective(test model.Test, questions map[int64]model.Question) bool {
	if len(test.Questions) == 0 {
		return false
	}
	for _, tq := range test.Questions {
		q, ok := questions[tq.QuestionID]
		if !ok || !q.Type.Objective() {
			return false
		}
	}
	return true
}
