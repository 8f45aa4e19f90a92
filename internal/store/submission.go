package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Kavinnandha/smart-assessment-platform/internal/model"
)

// ErrDuplicateSubmission is returned when a submission already exists for
// the (test, student) pair. The unique index on submissions closes the
// check-then-insert race that an application-level pre-check alone leaves
// open.
var ErrDuplicateSubmission = errors.New("submission already exists for this test and student")

// CreateSubmission inserts a submission and its answers in one transaction.
func (s *Store) CreateSubmission(sub model.Submission) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO submissions (test_id, student_id, status, total_marks, time_taken, evaluated_by, evaluated_at, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.TestID, sub.StudentID, sub.Status, sub.TotalMarks, sub.TimeTaken, sub.EvaluatedBy, sub.EvaluatedAt, time.Now(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, ErrDuplicateSubmission
		}
		return 0, err
	}
	subID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, a := range sub.Answers {
		_, err := tx.Exec(
			`INSERT INTO answers (submission_id, question_id, answer_text, marks, remarks)
			 VALUES (?, ?, ?, ?, ?)`,
			subID, a.QuestionID, a.Text, a.Marks, a.Remarks,
		)
		if err != nil {
			return 0, err
		}
	}

	return subID, tx.Commit()
}

// SubmissionExists reports whether a submission exists for the pair.
func (s *Store) SubmissionExists(testID, studentID int64) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM submissions WHERE test_id = ? AND student_id = ?`,
		testID, studentID,
	).Scan(&count)
	return count > 0, err
}

const submissionCols = `id, test_id, student_id, status, total_marks, time_taken, evaluated_by, evaluated_at, submitted_at`

func scanSubmission(row interface{ Scan(...any) error }) (model.Submission, error) {
	var sub model.Submission
	err := row.Scan(&sub.ID, &sub.TestID, &sub.StudentID, &sub.Status, &sub.TotalMarks,
		&sub.TimeTaken, &sub.EvaluatedBy, &sub.EvaluatedAt, &sub.SubmittedAt)
	return sub, err
}

// GetSubmission returns a submission with its answers.
func (s *Store) GetSubmission(id int64) (model.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRow(
		`SELECT `+submissionCols+` FROM submissions WHERE id = ?`, id,
	))
	if err != nil {
		return sub, err
	}
	sub.Answers, err = s.answersFor(id)
	return sub, err
}

// GetSubmissionByTestStudent returns the submission for a (test, student)
// pair, or sql.ErrNoRows.
func (s *Store) GetSubmissionByTestStudent(testID, studentID int64) (model.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRow(
		`SELECT `+submissionCols+` FROM submissions WHERE test_id = ? AND student_id = ?`,
		testID, studentID,
	))
	if err != nil {
		return sub, err
	}
	sub.Answers, err = s.answersFor(sub.ID)
	return sub, err
}

func (s *Store) answersFor(submissionID int64) ([]model.Answer, error) {
	rows, err := s.db.Query(
		`SELECT id, submission_id, question_id, answer_text, marks, remarks
		 FROM answers WHERE submission_id = ? ORDER BY id`, submissionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.SubmissionID, &a.QuestionID, &a.Text, &a.Marks, &a.Remarks); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ListSubmissionsByStatus returns submissions for a test in insertion order,
// answers included. Rank computation relies on this order for tie-breaking.
func (s *Store) ListSubmissionsByStatus(testID int64, status model.SubmissionStatus) ([]model.Submission, error) {
	rows, err := s.db.Query(
		`SELECT `+submissionCols+` FROM submissions WHERE test_id = ? AND status = ? ORDER BY id`,
		testID, status,
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
	for i := range subs {
		subs[i].Answers, err = s.answersFor(subs[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return subs, nil
}

// AnswerUpdate is one answer's new mark and remarks inside an evaluation.
type AnswerUpdate struct {
	AnswerID int64
	Marks    float64
	Remarks  string
}

// ApplyEvaluation writes an evaluation result as a single atomic update
// against the submission aggregate: the given answer marks, the recomputed
// total, and the status transition either all land or none do.
func (s *Store) ApplyEvaluation(submissionID int64, updates []AnswerUpdate,
	total float64, status model.SubmissionStatus, evaluatedBy *int64, evaluatedAt *time.Time) error {

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, u := range updates {
		res, err := tx.Exec(
			`UPDATE answers SET marks = ?, remarks = ? WHERE id = ? AND submission_id = ?`,
			u.Marks, u.Remarks, u.AnswerID, submissionID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return sql.ErrNoRows
		}
	}

	_, err = tx.Exec(
		`UPDATE submissions SET total_marks = ?, status = ?, evaluated_by = ?, evaluated_at = ? WHERE id = ?`,
		total, status, evaluatedBy, evaluatedAt, submissionID,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}
