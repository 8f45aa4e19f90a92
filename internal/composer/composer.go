// Package composer assembles tests from the question bank under a
// difficulty-distribution constraint.
package composer

import (
	"errors"
	"fmt"

	"github.com/Kavinnandha/smart-assessment-platform/internal/model"
	"github.com/Kavinnandha/smart-assessment-platform/internal/store"
)

// ErrNoSuitableQuestions means the filtered bank is non-empty but no
// question fits within its band's mark budget.
var ErrNoSuitableQuestions = errors.New("no questions fit within the difficulty budgets")

// NoQuestionsError means the question bank has nothing matching the filter.
type NoQuestionsError struct {
	Filter store.QuestionFilter
}

func (e *NoQuestionsError) Error() string {
	return "no questions found for filter " + e.Filter.String()
}

// QuestionBank is the read-only question source the composer selects from.
type QuestionBank interface {
	ListQuestionsFiltered(f store.QuestionFilter) ([]model.Question, error)
}

// Input describes the test to assemble.
type Input struct {
	SubjectID     int64
	TotalMarks    int
	EasyPercent   float64
	MediumPercent float64
	HardPercent   float64
	Chapter       string
	Topic         string
}

// Selected is one accepted question with its marks-in-test and position.
type Selected struct {
	Question model.Question
	Marks    int
	Position int
}

// BandResult reports a difficulty band's budget and what the greedy pass
// achieved within it.
type BandResult struct {
	Difficulty model.Difficulty
	Budget     int
	Achieved   int
	Count      int
}

// Result is the assembled question list with the achieved distribution.
type Result struct {
	Questions     []Selected
	Bands         []BandResult
	AchievedTotal int
}

// Composer selects questions for tests. Selection is deterministic: the
// bank is scanned in insertion order and no randomness is involved.
type Composer struct {
	bank QuestionBank
}

func New(bank QuestionBank) *Composer {
	return &Composer{bank: bank}
}

// Compose picks questions per difficulty band using first-fit greedy
// selection: a question is accepted if its marks still fit the band's
// remaining budget, skipped otherwise, with no backtracking or reordering.
// The achieved total may fall short of the target since questions are never
// split or substituted.
func (c *Composer) Compose(in Input) (*Result, error) {
	if in.SubjectID == 0 {
		return nil, &model.ValidationError{Field: "subject_id", Reason: "required"}
	}
	if in.TotalMarks <= 0 {
		return nil, &model.ValidationError{Field: "total_marks", Reason: "must be positive"}
	}
	if in.EasyPercent < 0 || in.MediumPercent < 0 || in.HardPercent < 0 {
		return nil, &model.ValidationError{Field: "percentages", Reason: "must not be negative"}
	}

	filter := store.QuestionFilter{
		SubjectID: in.SubjectID,
		Chapter:   in.Chapter,
		Topic:     in.Topic,
	}
	available, err := c.bank.ListQuestionsFiltered(filter)
	if err != nil {
		return nil, fmt.Errorf("query question bank: %w", err)
	}
	if len(available) == 0 {
		return nil, &NoQuestionsError{Filter: filter}
	}

	// Integer budgets per band; the hard band absorbs the rounding
	// remainder so the three always sum to the target.
	easyBudget := int(float64(in.TotalMarks) * in.EasyPercent / 100)
	mediumBudget := int(float64(in.TotalMarks) * in.MediumPercent / 100)
	hardBudget := in.TotalMarks - easyBudget - mediumBudget

	bands := []BandResult{
		{Difficulty: model.DifficultyEasy, Budget: easyBudget},
		{Difficulty: model.DifficultyMedium, Budget: mediumBudget},
		{Difficulty: model.DifficultyHard, Budget: hardBudget},
	}

	result := &Result{}
	for i := range bands {
		band := &bands[i]
		remaining := band.Budget
		for _, q := range available {
			if q.Difficulty != band.Difficulty {
				continue
			}
			if q.Marks > remaining {
				continue
			}
			remaining -= q.Marks
			band.Achieved += q.Marks
			band.Count++
			result.Questions = append(result.Questions, Selected{
				Question: q,
				Marks:    q.Marks,
				Position: len(result.Questions) + 1,
			})
		}
		result.AchievedTotal += band.Achieved
	}
	result.Bands = bands

	if len(result.Questions) == 0 {
		return nil, ErrNoSuitableQuestions
	}
	return result, nil
}

// BuildTest converts a composition result into a test ready for storage.
func BuildTest(in Input, res *Result, title string, duration int) model.Test {
	t := model.Test{
		SubjectID:  in.SubjectID,
		Title:      title,
		Duration:   duration,
		TotalMarks: res.AchievedTotal,
	}
	for _, sel := range res.Questions {
		t.Questions = append(t.Questions, model.TestQuestion{
			QuestionID: sel.Question.ID,
			Marks:      sel.Marks,
			Position:   sel.Position,
		})
	}
	return t
}
