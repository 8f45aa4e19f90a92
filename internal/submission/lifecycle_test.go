package submission

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/Kavinnandha/smart-assessment-platform/internal/model"
	"github.com/Kavinnandha/smart-assessment-platform/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertQuestion(t *testing.T, s *store.Store, qtype model.QuestionType, marks int, answer string) int64 {
	t.Helper()
	id, err := s.InsertQuestion(model.Question{
		SubjectID:  1,
		Difficulty: model.DifficultyEasy,
		Type:       qtype,
		Text:       "q",
		Marks:      marks,
		Answer:     answer,
	})
	if err != nil {
		t.Fatalf("insert question: %v", err)
	}
	return id
}

func createTest(t *testing.T, s *store.Store, showResults bool, questions ...model.TestQuestion) int64 {
	t.Helper()
	total := 0
	for i := range questions {
		questions[i].Position = i + 1
		total += questions[i].Marks
	}
	id, err := s.CreateTest(model.Test{
		SubjectID:   1,
		Title:       "t",
		TotalMarks:  total,
		ShowResults: showResults,
		Questions:   questions,
	})
	if err != nil {
		t.Fatalf("create test: %v", err)
	}
	return id
}

func TestCreateAllObjectiveEvaluatedAtIntake(t *testing.T) {
	s := newTestStore(t)
	q1 := insertQuestion(t, s, model.TypeTrueFalse, 1, "true")
	q2 := insertQuestion(t, s, model.TypeMultipleChoice, 2, "Paris")
	testID := createTest(t, s, true,
		model.TestQuestion{QuestionID: q1, Marks: 1},
		model.TestQuestion{QuestionID: q2, Marks: 2},
	)

	l := New(s)
	res, err := l.Create(Input{
		TestID:    testID,
		StudentID: 10,
		Answers: []AnswerInput{
			{QuestionID: q1, Text: "true"},
			{QuestionID: q2, Text: "London"},
		},
		TimeTaken: 300,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sub := res.Submission
	if sub.Status != model.StatusEvaluated {
		t.Errorf("status = %q, want evaluated", sub.Status)
	}
	if sub.EvaluatedAt == nil {
		t.Error("evaluated_at not set")
	}
	if sub.EvaluatedBy != nil {
		t.Errorf("evaluated_by = %v, want nil for auto-grading", *sub.EvaluatedBy)
	}
	if sub.TotalMarks != 1 {
		t.Errorf("total = %g, want 1", sub.TotalMarks)
	}
	if res.AutoGraded != 2 {
		t.Errorf("auto graded = %d, want 2", res.AutoGraded)
	}
	if !res.ShowResults {
		t.Error("show results flag not carried")
	}

	if sub.Answers[0].Remarks != model.RemarkAutoCorrect {
		t.Errorf("remarks = %q", sub.Answers[0].Remarks)
	}
	if sub.Answers[1].Remarks != model.RemarkAutoIncorrect {
		t.Errorf("remarks = %q", sub.Answers[1].Remarks)
	}
	if sub.Answers[1].Marks == nil || *sub.Answers[1].Marks != 0 {
		t.Errorf("wrong answer marks = %v, want 0", sub.Answers[1].Marks)
	}
}

func TestCreateMixedTestStaysSubmitted(t *testing.T) {
	s := newTestStore(t)
	q1 := insertQuestion(t, s, model.TypeTrueFalse, 1, "true")
	q2 := insertQuestion(t, s, model.TypeLongAnswer, 10, "")
	testID := createTest(t, s, false,
		model.TestQuestion{QuestionID: q1, Marks: 1},
		model.TestQuestion{QuestionID: q2, Marks: 10},
	)

	l := New(s)
	res, err := l.Create(Input{
		TestID:    testID,
		StudentID: 10,
		Answers: []AnswerInput{
			{QuestionID: q1, Text: "true"},
			{QuestionID: q2, Text: "an essay"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sub := res.Submission
	// One subjective question keeps the whole submission unevaluated even
	// though the objective answer is already graded.
	if sub.Status != model.StatusSubmitted {
		t.Errorf("status = %q, want submitted", sub.Status)
	}
	if sub.EvaluatedAt != nil {
		t.Error("evaluated_at set on a submitted submission")
	}
	if sub.TotalMarks != 1 {
		t.Errorf("total = %g, want 1 from the objective answer", sub.TotalMarks)
	}
	if sub.Answers[1].Marks != nil {
		t.Errorf("subjective answer pre-graded: %v", *sub.Answers[1].Marks)
	}
	if sub.Answers[1].Remarks != model.RemarkPendingManual {
		t.Errorf("remarks = %q", sub.Answers[1].Remarks)
	}
	if res.AutoGraded != 1 {
		t.Errorf("auto graded = %d, want 1", res.AutoGraded)
	}
}

func TestObjectiveMatchingIsCaseInsensitiveAndTrimmed(t *testing.T) {
	s := newTestStore(t)
	q1 := insertQuestion(t, s, model.TypeMultipleChoice, 2, "Photosynthesis")
	testID := createTest(t, s, true, model.TestQuestion{QuestionID: q1, Marks: 2})
	l := New(s)

	tests := []struct {
		name    string
		text    string
		correct bool
	}{
		{"exact", "Photosynthesis", true},
		{"different case", "PHOTOSYNTHESIS", true},
		{"surrounding space", "  photosynthesis\n", true},
		{"wrong", "respiration", false},
		{"empty", "", false},
	}
	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := l.Create(Input{
				TestID:    testID,
				StudentID: int64(i + 1),
				Answers:   []AnswerInput{{QuestionID: q1, Text: tc.text}},
			})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			want := 0.0
			if tc.correct {
				want = 2
			}
			if res.Submission.TotalMarks != want {
				t.Errorf("total = %g, want %g", res.Submission.TotalMarks, want)
			}
		})
	}
}

func TestCreateDuplicateRejected(t *testing.T) {
	s := newTestStore(t)
	q1 := insertQuestion(t, s, model.TypeTrueFalse, 1, "true")
	testID := createTest(t, s, true, model.TestQuestion{QuestionID: q1, Marks: 1})
	l := New(s)

	in := Input{TestID: testID, StudentID: 5, Answers: []AnswerInput{{QuestionID: q1, Text: "true"}}}
	if _, err := l.Create(in); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := l.Create(in)
	if !errors.Is(err, store.ErrDuplicateSubmission) {
		t.Fatalf("err = %v, want ErrDuplicateSubmission", err)
	}
}

func TestCreateUnknownTest(t *testing.T) {
	s := newTestStore(t)
	l := New(s)

	_, err := l.Create(Input{TestID: 999, StudentID: 1})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestCreateAnswerOutsideTest(t *testing.T) {
	s := newTestStore(t)
	q1 := insertQuestion(t, s, model.TypeTrueFalse, 1, "true")
	stray := insertQuestion(t, s, model.TypeTrueFalse, 1, "false")
	testID := createTest(t, s, true, model.TestQuestion{QuestionID: q1, Marks: 1})
	l := New(s)

	_, err := l.Create(Input{
		TestID:    testID,
		StudentID: 1,
		Answers:   []AnswerInput{{QuestionID: stray, Text: "true"}},
	})
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestMarksComeFromTestQuestionNotBank(t *testing.T) {
	s := newTestStore(t)
	// Bank says 1 mark, the test overrides to 4.
	q1 := insertQuestion(t, s, model.TypeTrueFalse, 1, "true")
	testID := createTest(t, s, true, model.TestQuestion{QuestionID: q1, Marks: 4})
	l := New(s)

	res, err := l.Create(Input{
		TestID:    testID,
		StudentID: 1,
		Answers:   []AnswerInput{{QuestionID: q1, Text: "true"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Submission.TotalMarks != 4 {
		t.Errorf("total = %g, want 4 from the test question marks", res.Submission.TotalMarks)
	}
}
