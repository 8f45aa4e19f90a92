package store

import (
	"time"

	"github.com/Kavinnandha/smart-assessment-platform/internal/model"
)

// CreateTest inserts a test and its ordered questions in one transaction.
func (s *Store) CreateTest(t model.Test) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO tests (subject_id, title, duration, total_marks, published, show_results, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.SubjectID, t.Title, t.Duration, t.TotalMarks, t.Published, t.ShowResults, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	testID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, tq := range t.Questions {
		_, err := tx.Exec(
			`INSERT INTO test_questions (test_id, question_id, marks, position, section)
			 VALUES (?, ?, ?, ?, ?)`,
			testID, tq.QuestionID, tq.Marks, tq.Position, tq.Section,
		)
		if err != nil {
			return 0, err
		}
	}

	return testID, tx.Commit()
}

// GetTest returns a test with its questions ordered by position.
func (s *Store) GetTest(id int64) (model.Test, error) {
	var t model.Test
	err := s.db.QueryRow(
		`SELECT id, subject_id, title, duration, total_marks, published, show_results, created_at
		 FROM tests WHERE id = ?`, id,
	).Scan(&t.ID, &t.SubjectID, &t.Title, &t.Duration, &t.TotalMarks, &t.Published, &t.ShowResults, &t.CreatedAt)
	if err != nil {
		return t, err
	}

	rows, err := s.db.Query(
		`SELECT id, test_id, question_id, marks, position, section
		 FROM test_questions WHERE test_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return t, err
	}
	defer rows.Close()
	for rows.Next() {
		var tq model.TestQuestion
		if err := rows.Scan(&tq.ID, &tq.TestID, &tq.QuestionID, &tq.Marks, &tq.Position, &tq.Section); err != nil {
			return t, err
		}
		t.Questions = append(t.Questions, tq)
	}
	return t, rows.Err()
}

// ListTests returns all tests, newest first, without their questions.
func (s *Store) ListTests() ([]model.Test, error) {
	rows, err := s.db.Query(
		`SELECT id, subject_id, title, duration, total_marks, published, show_results, created_at
		 FROM tests ORDER BY id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.SubjectID, &t.Title, &t.Duration, &t.TotalMarks, &t.Published, &t.ShowResults, &t.CreatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}
