package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// QuestionType represents how a question is answered and graded.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeTrueFalse      QuestionType = "true_false"
	TypeShortAnswer    QuestionType = "short_answer"
	TypeLongAnswer     QuestionType = "long_answer"
)

// Objective reports whether this type is gradable by exact-match comparison
// against the reference answer, without human or AI judgment.
func (t QuestionType) Objective() bool {
	return t == TypeMultipleChoice || t == TypeTrueFalse
}

// Subjective reports whether this type requires manual or AI-assisted
// judgment.
func (t QuestionType) Subjective() bool {
	return t == TypeShortAnswer || t == TypeLongAnswer
}

// SubmissionStatus represents the lifecycle state of a submission.
type SubmissionStatus string

const (
	// StatusPending is the declared default. Normal flows never assign it,
	// but external callers may filter on it, so it stays in the enum.
	StatusPending SubmissionStatus = "pending"
	// StatusSubmitted means at least one answer still lacks a mark.
	StatusSubmitted SubmissionStatus = "submitted"
	// StatusEvaluated means every answer carries a mark and the submission
	// has a computed total, evaluator identity, and timestamp.
	StatusEvaluated SubmissionStatus = "evaluated"
)

// Question is a question bank entry.
type Question struct {
	ID         int64        `json:"id"`
	SubjectID  int64        `json:"subject_id"`
	Chapter    string       `json:"chapter"`
	Topic      string       `json:"topic"`
	Difficulty Difficulty   `json:"difficulty"`
	Type       QuestionType `json:"type"`
	Text       string       `json:"text"`
	Marks      int          `json:"marks"`
	Options    []string     `json:"options,omitempty"`
	Answer     string       `json:"answer,omitempty"`
}

// TestQuestion binds a question into a test. Marks here may differ from the
// question's default marks; it is the value used for grading.
type TestQuestion struct {
	ID         int64  `json:"id"`
	TestID     int64  `json:"test_id"`
	QuestionID int64  `json:"question_id"`
	Marks      int    `json:"marks"`
	Position   int    `json:"position"`
	Section    string `json:"section,omitempty"`
}

// Test is an ordered list of test questions. It is read-only to the grading
// pipeline once created.
type Test struct {
	ID          int64     `json:"id"`
	SubjectID   int64     `json:"subject_id"`
	Title       string    `json:"title"`
	Duration    int       `json:"duration"`
	TotalMarks  int       `json:"total_marks"`
	Published   bool      `json:"published"`
	ShowResults bool      `json:"show_results"`
	CreatedAt   time.Time `json:"created_at"`

	Questions []TestQuestion `json:"questions,omitempty"`
}

// Answer is one student answer inside a submission. Marks stays nil until
// the answer has been graded and must never exceed the test question's marks.
type Answer struct {
	ID           int64    `json:"id"`
	SubmissionID int64    `json:"submission_id"`
	QuestionID   int64    `json:"question_id"`
	Text         string   `json:"text"`
	Marks        *float64 `json:"marks,omitempty"`
	Remarks      string   `json:"remarks,omitempty"`
}

// Submission is a student's attempt at a test. Exactly one submission may
// exist per (test, student) pair.
type Submission struct {
	ID          int64            `json:"id"`
	TestID      int64            `json:"test_id"`
	StudentID   int64            `json:"student_id"`
	Status      SubmissionStatus `json:"status"`
	TotalMarks  float64          `json:"total_marks"`
	TimeTaken   int              `json:"time_taken"`
	EvaluatedBy *int64           `json:"evaluated_by,omitempty"`
	EvaluatedAt *time.Time       `json:"evaluated_at,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`

	Answers []Answer `json:"answers,omitempty"`
}

// QuestionImport is used for loading question banks from JSON.
type QuestionImport struct {
	SubjectID  int64        `json:"subject_id"`
	Chapter    string       `json:"chapter"`
	Topic      string       `json:"topic"`
	Difficulty Difficulty   `json:"difficulty"`
	Type       QuestionType `json:"type"`
	Text       string       `json:"text"`
	Marks      int          `json:"marks"`
	Options    []string     `json:"options"`
	Answer     string       `json:"answer"`
}

// Remark strings persisted on answers. Downstream consumers match on these
// values, so they are fixed rather than localized.
const (
	RemarkAutoCorrect   = "Auto-graded: correct"
	RemarkAutoIncorrect = "Auto-graded: incorrect"
	RemarkPendingManual = "Pending manual evaluation"
	// RemarkAIPrefix marks AI-assigned feedback so teachers can tell it
	// apart from their own remarks.
	RemarkAIPrefix = "[AI] "
)
