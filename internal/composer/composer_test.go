package composer

import (
	"errors"
	"testing"

	"github.com/Kavinnandha/smart-assessment-platform/internal/model"
	"github.com/Kavinnandha/smart-assessment-platform/internal/store"
)

// fakeBank serves a fixed question list regardless of filter, recording the
// filter it was asked for.
type fakeBank struct {
	questions  []model.Question
	lastFilter store.QuestionFilter
}

func (b *fakeBank) ListQuestionsFiltered(f store.QuestionFilter) ([]model.Question, error) {
	b.lastFilter = f
	return b.questions, nil
}

func q(id int64, diff model.Difficulty, marks int) model.Question {
	return model.Question{ID: id, SubjectID: 1, Difficulty: diff, Marks: marks}
}

func TestComposeValidation(t *testing.T) {
	c := New(&fakeBank{})

	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"missing subject", Input{TotalMarks: 100}, "subject_id"},
		{"zero total", Input{SubjectID: 1}, "total_marks"},
		{"negative total", Input{SubjectID: 1, TotalMarks: -5}, "total_marks"},
		{"negative percent", Input{SubjectID: 1, TotalMarks: 100, EasyPercent: -10}, "percentages"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Compose(tc.in)
			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Field != tc.field {
				t.Errorf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestComposeEmptyBank(t *testing.T) {
	c := New(&fakeBank{})

	_, err := c.Compose(Input{SubjectID: 1, TotalMarks: 100, EasyPercent: 100})
	var bankErr *NoQuestionsError
	if !errors.As(err, &bankErr) {
		t.Fatalf("err = %v, want NoQuestionsError", err)
	}
	if bankErr.Filter.SubjectID != 1 {
		t.Errorf("filter = %+v", bankErr.Filter)
	}
}

func TestComposeNothingFits(t *testing.T) {
	// One hard 10-marker against a 100% easy distribution: the bank is
	// non-empty but no band can accept anything.
	bank := &fakeBank{questions: []model.Question{q(1, model.DifficultyHard, 10)}}
	c := New(bank)

	_, err := c.Compose(Input{SubjectID: 1, TotalMarks: 10, EasyPercent: 100})
	if !errors.Is(err, ErrNoSuitableQuestions) {
		t.Fatalf("err = %v, want ErrNoSuitableQuestions", err)
	}
}

func TestComposeGreedyFirstFit(t *testing.T) {
	// A band short on budget accepts what fits and skips the rest without
	// backtracking: with budget 40 and uniform 3-mark questions, 13 fit.
	var qs []model.Question
	for i := int64(1); i <= 50; i++ {
		qs = append(qs, q(i, model.DifficultyEasy, 3))
	}
	c := New(&fakeBank{questions: qs})

	res, err := c.Compose(Input{
		SubjectID: 1, TotalMarks: 100,
		EasyPercent: 40, MediumPercent: 40, HardPercent: 20,
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	if len(res.Questions) != 13 {
		t.Errorf("got %d questions, want 13", len(res.Questions))
	}
	if res.AchievedTotal != 39 {
		t.Errorf("achieved total = %d, want 39", res.AchievedTotal)
	}

	easy := res.Bands[0]
	if easy.Budget != 40 || easy.Achieved != 39 || easy.Count != 13 {
		t.Errorf("easy band = %+v", easy)
	}
	// No medium or hard questions exist; those bands stay empty without
	// raising an error.
	if res.Bands[1].Achieved != 0 || res.Bands[2].Achieved != 0 {
		t.Errorf("non-easy bands not empty: %+v", res.Bands[1:])
	}
}

func TestComposeHardBandAbsorbsRemainder(t *testing.T) {
	bank := &fakeBank{questions: []model.Question{
		q(1, model.DifficultyEasy, 33),
		q(2, model.DifficultyMedium, 33),
		q(3, model.DifficultyHard, 34),
	}}
	c := New(bank)

	res, err := c.Compose(Input{
		SubjectID: 1, TotalMarks: 100,
		EasyPercent: 33, MediumPercent: 33, HardPercent: 33,
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	// 33+33 leaves 34 for hard; band budgets always sum to the target.
	if res.Bands[2].Budget != 34 {
		t.Errorf("hard budget = %d, want 34", res.Bands[2].Budget)
	}
	if res.AchievedTotal != 100 {
		t.Errorf("achieved total = %d, want 100", res.AchievedTotal)
	}
}

func TestComposeDeterministicOrder(t *testing.T) {
	bank := &fakeBank{questions: []model.Question{
		q(1, model.DifficultyMedium, 4),
		q(2, model.DifficultyEasy, 2),
		q(3, model.DifficultyEasy, 3),
		q(4, model.DifficultyEasy, 2),
		q(5, model.DifficultyHard, 5),
	}}
	c := New(bank)

	in := Input{SubjectID: 1, TotalMarks: 14, EasyPercent: 36, MediumPercent: 29, HardPercent: 35}
	first, err := c.Compose(in)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	second, err := c.Compose(in)
	if err != nil {
		t.Fatalf("compose again: %v", err)
	}

	if len(first.Questions) != len(second.Questions) {
		t.Fatalf("runs differ in length: %d vs %d", len(first.Questions), len(second.Questions))
	}
	for i := range first.Questions {
		if first.Questions[i].Question.ID != second.Questions[i].Question.ID {
			t.Errorf("position %d: %d vs %d", i,
				first.Questions[i].Question.ID, second.Questions[i].Question.ID)
		}
	}

	// Bands run easy, medium, hard; within a band selection follows bank
	// order. Easy budget is 5 here, so questions 2 and 3 fit and 4 is
	// skipped.
	wantOrder := []int64{2, 3, 1, 5}
	if len(first.Questions) != len(wantOrder) {
		t.Fatalf("got %d questions, want %d", len(first.Questions), len(wantOrder))
	}
	for i, want := range wantOrder {
		got := first.Questions[i]
		if got.Question.ID != want {
			t.Errorf("position %d: question %d, want %d", i, got.Question.ID, want)
		}
		if got.Position != i+1 {
			t.Errorf("position field = %d, want %d", got.Position, i+1)
		}
	}
}

func TestComposeFilterPassthrough(t *testing.T) {
	bank := &fakeBank{questions: []model.Question{q(1, model.DifficultyEasy, 1)}}
	c := New(bank)

	_, err := c.Compose(Input{
		SubjectID: 3, TotalMarks: 10, EasyPercent: 100,
		Chapter: "Waves", Topic: "Sound",
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	// Difficulty is never part of the bank query; bands are filtered
	// in memory.
	want := store.QuestionFilter{SubjectID: 3, Chapter: "Waves", Topic: "Sound"}
	if bank.lastFilter != want {
		t.Errorf("filter = %+v, want %+v", bank.lastFilter, want)
	}
}

func TestBuildTest(t *testing.T) {
	bank := &fakeBank{questions: []model.Question{
		q(1, model.DifficultyEasy, 2),
		q(2, model.DifficultyEasy, 3),
	}}
	c := New(bank)

	in := Input{SubjectID: 1, TotalMarks: 5, EasyPercent: 100}
	res, err := c.Compose(in)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	test := BuildTest(in, res, "Midterm", 60)
	if test.Title != "Midterm" || test.Duration != 60 {
		t.Errorf("test = %+v", test)
	}
	if test.TotalMarks != 5 {
		t.Errorf("total marks = %d, want 5", test.TotalMarks)
	}
	if len(test.Questions) != 2 {
		t.Fatalf("got %d questions", len(test.Questions))
	}
	if test.Questions[0].QuestionID != 1 || test.Questions[0].Position != 1 {
		t.Errorf("first question = %+v", test.Questions[0])
	}
}
