package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Kavinnandha/smart-assessment-platform/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject_id INTEGER NOT NULL DEFAULT 1,
		chapter TEXT NOT NULL DEFAULT '',
		topic TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL,
		qtype TEXT NOT NULL,
		text TEXT NOT NULL,
		marks INTEGER NOT NULL DEFAULT 1,
		options TEXT NOT NULL DEFAULT '[]',
		answer TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS tests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject_id INTEGER NOT NULL DEFAULT 1,
		title TEXT NOT NULL,
		duration INTEGER NOT NULL DEFAULT 0,
		total_marks INTEGER NOT NULL DEFAULT 0,
		published INTEGER NOT NULL DEFAULT 0,
		show_results INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS test_questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		test_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		marks INTEGER NOT NULL,
		position INTEGER NOT NULL,
		section TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (test_id) REFERENCES tests(id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		test_id INTEGER NOT NULL,
		student_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		total_marks REAL NOT NULL DEFAULT 0,
		time_taken INTEGER NOT NULL DEFAULT 0,
		evaluated_by INTEGER,
		evaluated_at DATETIME,
		submitted_at DATETIME NOT NULL,
		FOREIGN KEY (test_id) REFERENCES tests(id),
		UNIQUE (test_id, student_id)
	);

	CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		answer_text TEXT NOT NULL DEFAULT '',
		marks REAL,
		remarks TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (submission_id) REFERENCES submissions(id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS app_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// QuestionFilter narrows question bank queries. Zero values mean no
// filtering on that field.
type QuestionFilter struct {
	SubjectID  int64
	Chapter    string
	Topic      string
	Difficulty model.Difficulty
}

func (f QuestionFilter) String() string {
	var parts []string
	if f.SubjectID != 0 {
		parts = append(parts, fmt.Sprintf("subject=%d", f.SubjectID))
	}
	if f.Chapter != "" {
		parts = append(parts, "chapter="+f.Chapter)
	}
	if f.Topic != "" {
		parts = append(parts, "topic="+f.Topic)
	}
	if f.Difficulty != "" {
		parts = append(parts, "difficulty="+string(f.Difficulty))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// InsertQuestion stores a question in the bank.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return 0, fmt.Errorf("marshal options: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO questions (subject_id, chapter, topic, difficulty, qtype, text, marks, options, answer)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.SubjectID, q.Chapter, q.Topic, q.Difficulty, q.Type, q.Text, q.Marks, string(opts), q.Answer,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const questionCols = `id, subject_id, chapter, topic, difficulty, qtype, text, marks, options, answer`

func scanQuestion(row interface{ Scan(...any) error }) (model.Question, error) {
	var q model.Question
	var opts string
	err := row.Scan(&q.ID, &q.SubjectID, &q.Chapter, &q.Topic, &q.Difficulty, &q.Type, &q.Text, &q.Marks, &opts, &q.Answer)
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
		return q, fmt.Errorf("unmarshal options for question %d: %w", q.ID, err)
	}
	return q, nil
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	return scanQuestion(s.db.QueryRow(
		`SELECT `+questionCols+` FROM questions WHERE id = ?`, id,
	))
}

// ListQuestionsFiltered returns bank questions matching the filter in
// insertion order. Selection downstream depends on this order being stable.
func (s *Store) ListQuestionsFiltered(f QuestionFilter) ([]model.Question, error) {
	query := `SELECT ` + questionCols + ` FROM questions WHERE 1=1`
	var args []any
	if f.SubjectID != 0 {
		query += ` AND subject_id = ?`
		args = append(args, f.SubjectID)
	}
	if f.Chapter != "" {
		query += ` AND chapter = ?`
		args = append(args, f.Chapter)
	}
	if f.Topic != "" {
		query += ` AND topic = ?`
		args = append(args, f.Topic)
	}
	if f.Difficulty != "" {
		query += ` AND difficulty = ?`
		args = append(args, f.Difficulty)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// QuestionsByID returns the given questions keyed by ID. Missing IDs are
// simply absent from the map.
func (s *Store) QuestionsByID(ids []int64) (map[int64]model.Question, error) {
	out := make(map[int64]model.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.Query(
		`SELECT `+questionCols+` FROM questions WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out[q.ID] = q
	}
	return out, rows.Err()
}

// QuestionCount returns the number of questions in the bank.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}
