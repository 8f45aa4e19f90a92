// Package grading scores non-objective answers through two interchangeable
// paths, manual and AI-assisted, converging on the same invariants: marks
// never exceed the test question's cap, totals are recomputed after every
// pass, and evaluation writes are all-or-nothing against the submission.
package grading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kavinnandha/smart-assessment-platform/internal/llm"
	"github.com/Kavinnandha/smart-assessment-platform/internal/model"
	"github.com/Kavinnandha/smart-assessment-platform/internal/store"
)

var (
	// ErrNothingToGrade means every answer already carries a mark.
	ErrNothingToGrade = errors.New("nothing to grade: all answers already carry a mark")
	// ErrNoEligibleAnswers means the submission has no gradable subjective
	// content: unmarked answers exist but lack submitted text.
	ErrNoEligibleAnswers = errors.New("no gradable subjective answers in this submission")
)

// AlreadyEvaluatedError guards against silently overwriting marks on an
// evaluated submission. It is a guard, not a failure: callers may retry
// with force.
type AlreadyEvaluatedError struct {
	Total float64
}

func (e *AlreadyEvaluatedError) Error() string {
	return fmt.Sprintf("submission already evaluated with total %g; use force to re-evaluate", e.Total)
}

// CapExceededError names the question whose mark exceeds its cap.
type CapExceededError struct {
	QuestionID int64
	Marks      float64
	Cap        int
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("marks %g for question %d exceed the maximum of %d", e.Marks, e.QuestionID, e.Cap)
}

// Scorer is the external answer scorer. Implementations never return
// errors; failures degrade to zero-mark fallback results.
type Scorer interface {
	Score(ctx context.Context, req llm.Request) llm.Result
	ScoreBatch(ctx context.Context, reqs []llm.Request) []llm.Result
}

// AnswerMark is one teacher-entered mark in a manual evaluation.
type AnswerMark struct {
	QuestionID int64   `json:"question_id"`
	Marks      float64 `json:"marks"`
	Remarks    string  `json:"remarks"`
}

// AISummary reports what an AI evaluation pass did.
type AISummary struct {
	Graded     int     `json:"graded"`
	Failed     int     `json:"failed"`
	TotalMarks float64 `json:"total_marks"`
}

// SingleResult is the outcome of scoring one answer.
type SingleResult struct {
	Marks    float64 `json:"marks"`
	Feedback string  `json:"feedback"`
}

// Engine performs manual and AI-assisted evaluation of submissions.
type Engine struct {
	store  *store.Store
	scorer Scorer
}

func New(s *store.Store, scorer Scorer) *Engine {
	return &Engine{store: s, scorer: scorer}
}

// questionContext is the per-submission lookup state every evaluation path
// needs: the test's mark caps and the underlying questions.
type questionContext struct {
	caps      map[int64]int
	questions map[int64]model.Question
}

func (e *Engine) loadQuestionContext(testID int64) (*questionContext, error) {
	test, err := e.store.GetTest(testID)
	if err != nil {
		return nil, fmt.Errorf("load test %d: %w", testID, err)
	}
	caps := make(map[int64]int, len(test.Questions))
	ids := make([]int64, 0, len(test.Questions))
	for _, tq := range test.Questions {
		caps[tq.QuestionID] = tq.Marks
		ids = append(ids, tq.QuestionID)
	}
	questions, err := e.store.QuestionsByID(ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return &questionContext{caps: caps, questions: questions}, nil
}

// Manual applies teacher-entered marks to every answer of a submission.
// Any mark exceeding its question's cap rejects the whole request; nothing
// is written until all marks validate.
func (e *Engine) Manual(submissionID int64, marks []AnswerMark, evaluatorID int64) (*model.Submission, error) {
	sub, err := e.store.GetSubmission(submissionID)
	if err != nil {
		return nil, fmt.Errorf("load submission %d: %w", submissionID, err)
	}
	qc, err := e.loadQuestionContext(sub.TestID)
	if err != nil {
		return nil, err
	}

	byQuestion := make(map[int64]AnswerMark, len(marks))
	for _, m := range marks {
		byQuestion[m.QuestionID] = m
	}

	var (
		updates []store.AnswerUpdate
		total   float64
	)
	for _, a := range sub.Answers {
		m, ok := byQuestion[a.QuestionID]
		if !ok {
			return nil, &model.ValidationError{
				Field:  "answers",
				Reason: fmt.Sprintf("no marks provided for question %d", a.QuestionID),
			}
		}
		maxMarks, ok := qc.caps[a.QuestionID]
		if !ok {
			return nil, &model.ValidationError{
				Field:  "answers",
				Reason: fmt.Sprintf("question %d is not part of the test", a.QuestionID),
			}
		}
		if m.Marks < 0 {
			return nil, &model.ValidationError{
				Field:  "marks",
				Reason: fmt.Sprintf("marks for question %d must not be negative", a.QuestionID),
			}
		}
		if m.Marks > float64(maxMarks) {
			return nil, &CapExceededError{QuestionID: a.QuestionID, Marks: m.Marks, Cap: maxMarks}
		}
		updates = append(updates, store.AnswerUpdate{
			AnswerID: a.ID,
			Marks:    m.Marks,
			Remarks:  m.Remarks,
		})
		total += m.Marks
	}

	now := time.Now()
	if err := e.store.ApplyEvaluation(submissionID, updates, total, model.StatusEvaluated, &evaluatorID, &now); err != nil {
		return nil, fmt.Errorf("apply manual evaluation: %w", err)
	}

	updated, err := e.store.GetSubmission(submissionID)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// AIEvaluate scores every gradable subjective answer through the external
// scorer. Already-evaluated submissions are rejected unless force is set,
// so teacher-entered marks are never silently overwritten. Objective and
// already-graded answers are left untouched; blank subjective answers are
// zeroed so the pass leaves no mark unset.
func (e *Engine) AIEvaluate(ctx context.Context, submissionID int64, force bool, evaluatorID int64) (*model.Submission, *AISummary, error) {
	sub, err := e.store.GetSubmission(submissionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load submission %d: %w", submissionID, err)
	}
	if sub.Status == model.StatusEvaluated && !force {
		return nil, nil, &AlreadyEvaluatedError{Total: sub.TotalMarks}
	}
	qc, err := e.loadQuestionContext(sub.TestID)
	if err != nil {
		return nil, nil, err
	}

	var (
		eligible []model.Answer
		blank    []model.Answer
	)
	for _, a := range sub.Answers {
		q, ok := qc.questions[a.QuestionID]
		if !ok || !q.Type.Subjective() {
			continue
		}
		if strings.TrimSpace(a.Text) == "" {
			blank = append(blank, a)
			continue
		}
		eligible = append(eligible, a)
	}

	if len(eligible) == 0 {
		if allMarked(sub.Answers) {
			return nil, nil, ErrNothingToGrade
		}
		return nil, nil, ErrNoEligibleAnswers
	}

	reqs := make([]llm.Request, len(eligible))
	for i, a := range eligible {
		q := qc.questions[a.QuestionID]
		reqs[i] = llm.Request{
			QuestionText:    q.Text,
			ReferenceAnswer: q.Answer,
			SubmittedText:   a.Text,
			MaxMarks:        qc.caps[a.QuestionID],
		}
	}
	results := e.scorer.ScoreBatch(ctx, reqs)

	summary := &AISummary{}
	newMarks := make(map[int64]float64, len(sub.Answers))
	var updates []store.AnswerUpdate
	for i, a := range eligible {
		res := results[i]
		updates = append(updates, store.AnswerUpdate{
			AnswerID: a.ID,
			Marks:    res.Marks,
			Remarks:  model.RemarkAIPrefix + res.Feedback,
		})
		newMarks[a.ID] = res.Marks
		if res.Feedback == llm.FallbackFeedback {
			summary.Failed++
		} else {
			summary.Graded++
		}
	}
	for _, a := range blank {
		updates = append(updates, store.AnswerUpdate{
			AnswerID: a.ID,
			Marks:    0,
			Remarks:  model.RemarkAIPrefix + "No answer provided",
		})
		newMarks[a.ID] = 0
	}

	// Recompute over all answers; by now every previously-unset mark has
	// been written, so the submission is evaluated without re-checking
	// test-level objectivity.
	var total float64
	for _, a := range sub.Answers {
		if m, ok := newMarks[a.ID]; ok {
			total += m
		} else if a.Marks != nil {
			total += *a.Marks
		}
	}
	summary.TotalMarks = total

	now := time.Now()
	if err := e.store.ApplyEvaluation(submissionID, updates, total, model.StatusEvaluated, &evaluatorID, &now); err != nil {
		return nil, nil, fmt.Errorf("apply AI evaluation: %w", err)
	}

	updated, err := e.store.GetSubmission(submissionID)
	if err != nil {
		return nil, nil, err
	}
	return &updated, summary, nil
}

// AISingle scores exactly one answer, identified by question, through the
// same scorer path. The submission is promoted to evaluated only when all
// of its answers now carry a mark; this completeness check is answer-level,
// unlike the test-level rule applied at submission creation.
func (e *Engine) AISingle(ctx context.Context, submissionID, questionID int64) (*SingleResult, *model.Submission, error) {
	sub, err := e.store.GetSubmission(submissionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load submission %d: %w", submissionID, err)
	}
	qc, err := e.loadQuestionContext(sub.TestID)
	if err != nil {
		return nil, nil, err
	}

	var target *model.Answer
	for i := range sub.Answers {
		if sub.Answers[i].QuestionID == questionID {
			target = &sub.Answers[i]
			break
		}
	}
	if target == nil {
		return nil, nil, &model.ValidationError{
			Field:  "question_id",
			Reason: fmt.Sprintf("no answer for question %d in submission %d", questionID, submissionID),
		}
	}
	q, ok := qc.questions[questionID]
	if !ok {
		return nil, nil, &model.ValidationError{
			Field:  "question_id",
			Reason: fmt.Sprintf("question %d is not part of the test", questionID),
		}
	}

	res := e.scorer.Score(ctx, llm.Request{
		QuestionText:    q.Text,
		ReferenceAnswer: q.Answer,
		SubmittedText:   target.Text,
		MaxMarks:        qc.caps[questionID],
	})

	var total float64
	complete := true
	for _, a := range sub.Answers {
		if a.ID == target.ID {
			total += res.Marks
			continue
		}
		if a.Marks == nil {
			complete = false
			continue
		}
		total += *a.Marks
	}

	status := sub.Status
	evaluatedBy := sub.EvaluatedBy
	evaluatedAt := sub.EvaluatedAt
	if complete {
		now := time.Now()
		status = model.StatusEvaluated
		evaluatedAt = &now
	}

	update := []store.AnswerUpdate{{
		AnswerID: target.ID,
		Marks:    res.Marks,
		Remarks:  model.RemarkAIPrefix + res.Feedback,
	}}
	if err := e.store.ApplyEvaluation(submissionID, update, total, status, evaluatedBy, evaluatedAt); err != nil {
		return nil, nil, fmt.Errorf("apply single-answer evaluation: %w", err)
	}

	updated, err := e.store.GetSubmission(submissionID)
	if err != nil {
		return nil, nil, err
	}
	return &SingleResult{Marks: res.Marks, Feedback: res.Feedback}, &updated, nil
}

func allMarked(answers []model.Answer) bool {
	for _, a := range answers {
		if a.Marks == nil {
			return false
		}
	}
	return true
}
