// Package handler is the JSON boundary over the assessment engine. It maps
// domain errors onto HTTP codes and decides nothing about grading itself.
package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Kavinnandha/smart-assessment-platform/internal/analytics"
	"github.com/Kavinnandha/smart-assessment-platform/internal/composer"
	"github.com/Kavinnandha/smart-assessment-platform/internal/grading"
	appI18n "github.com/Kavinnandha/smart-assessment-platform/internal/i18n"
	"github.com/Kavinnandha/smart-assessment-platform/internal/model"
	"github.com/Kavinnandha/smart-assessment-platform/internal/store"
	"github.com/Kavinnandha/smart-assessment-platform/internal/submission"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	composer  *composer.Composer
	lifecycle *submission.Lifecycle
	engine    *grading.Engine
	analytics *analytics.Aggregator
}

// New creates a new Handler.
func New(s *store.Store, c *composer.Composer, l *submission.Lifecycle, e *grading.Engine, a *analytics.Aggregator) *Handler {
	return &Handler{store: s, composer: c, lifecycle: l, engine: e, analytics: a}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/api/logout", h.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))
			r.Post("/api/tests/compose", h.handleComposeTest)
			r.Post("/api/tests", h.handleCreateTest)
			r.Post("/api/submissions/{submissionID}/evaluate", h.handleManualEvaluate)
			r.Post("/api/submissions/{submissionID}/ai-evaluate", h.handleAIEvaluate)
			r.Post("/api/submissions/{submissionID}/answers/{questionID}/ai-evaluate", h.handleAISingle)
			r.Get("/api/tests/{testID}/analytics", h.handleTestAnalytics)
		})

		r.Get("/api/tests", h.handleListTests)
		r.Get("/api/tests/{testID}", h.handleGetTest)
		r.Get("/api/submissions/{submissionID}", h.handleGetSubmission)
		r.Get("/api/tests/{testID}/students/{studentID}/report", h.handleStudentReport)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleStudent))
			r.Post("/api/tests/{testID}/submissions", h.handleCreateSubmission)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Total   float64 `json:"total,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeDomainError maps engine errors onto the HTTP taxonomy. Distinct
// domain conditions keep distinct codes so callers can, for example, offer
// a force option on already_evaluated.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var (
		validationErr *model.ValidationError
		capErr        *grading.CapExceededError
		evalErr       *grading.AlreadyEvaluatedError
		bankErr       *composer.NoQuestionsError
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "not_found", appI18n.T(ctx, "NotFound"))
	case errors.Is(err, store.ErrDuplicateSubmission):
		writeError(w, http.StatusConflict, "duplicate_submission", appI18n.T(ctx, "DuplicateSubmission"))
	case errors.As(err, &evalErr):
		writeJSON(w, http.StatusConflict, errorBody{Error: errorDetail{
			Code:    "already_evaluated",
			Message: appI18n.T(ctx, "AlreadyEvaluated"),
			Total:   evalErr.Total,
		}})
	case errors.As(err, &capErr):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", capErr.Error())
	case errors.As(err, &validationErr):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", validationErr.Error())
	case errors.As(err, &bankErr):
		writeError(w, http.StatusUnprocessableEntity, "no_questions",
			appI18n.Td(ctx, "NoQuestionsForFilter", map[string]any{"Filter": bankErr.Filter.String()}))
	case errors.Is(err, composer.ErrNoSuitableQuestions):
		writeError(w, http.StatusUnprocessableEntity, "no_suitable_questions", appI18n.T(ctx, "NoSuitableQuestions"))
	case errors.Is(err, grading.ErrNothingToGrade):
		writeError(w, http.StatusUnprocessableEntity, "nothing_to_grade", appI18n.T(ctx, "NothingToGrade"))
	case errors.Is(err, grading.ErrNoEligibleAnswers):
		writeError(w, http.StatusUnprocessableEntity, "no_eligible_answers", appI18n.T(ctx, "NoEligibleAnswers"))
	case errors.Is(err, analytics.ErrNoSubmissions):
		writeError(w, http.StatusNotFound, "no_submissions", appI18n.T(ctx, "NoSubmissions"))
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", appI18n.T(ctx, "InternalError"))
	}
}

func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

type composeRequest struct {
	SubjectID     int64   `json:"subject_id"`
	TotalMarks    int     `json:"total_marks"`
	EasyPercent   float64 `json:"easy_percent"`
	MediumPercent float64 `json:"medium_percent"`
	HardPercent   float64 `json:"hard_percent"`
	Chapter       string  `json:"chapter"`
	Topic         string  `json:"topic"`
	Save          bool    `json:"save"`
	Title         string  `json:"title"`
	Duration      int     `json:"duration"`
}

type composeResponse struct {
	Questions     []composer.Selected   `json:"questions"`
	Bands         []composer.BandResult `json:"bands"`
	AchievedTotal int                   `json:"achieved_total"`
	TestID        int64                 `json:"test_id,omitempty"`
}

func (h *Handler) handleComposeTest(w http.ResponseWriter, r *http.Request) {
	var req composeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	if req.Save && req.Title == "" {
		h.writeDomainError(w, r, &model.ValidationError{Field: "title", Reason: "required when saving"})
		return
	}

	in := composer.Input{
		SubjectID:     req.SubjectID,
		TotalMarks:    req.TotalMarks,
		EasyPercent:   req.EasyPercent,
		MediumPercent: req.MediumPercent,
		HardPercent:   req.HardPercent,
		Chapter:       req.Chapter,
		Topic:         req.Topic,
	}
	res, err := h.composer.Compose(in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := composeResponse{
		Questions:     res.Questions,
		Bands:         res.Bands,
		AchievedTotal: res.AchievedTotal,
	}
	if req.Save {
		test := composer.BuildTest(in, res, req.Title, req.Duration)
		testID, err := h.store.CreateTest(test)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		resp.TestID = testID
		slog.Info("composed test saved", "test_id", testID, "questions", len(res.Questions), "total", res.AchievedTotal)
	}
	writeJSON(w, http.StatusOK, resp)
}

type createTestRequest struct {
	SubjectID   int64  `json:"subject_id"`
	Title       string `json:"title"`
	Duration    int    `json:"duration"`
	Published   bool   `json:"published"`
	ShowResults bool   `json:"show_results"`
	Questions   []struct {
		QuestionID int64  `json:"question_id"`
		Marks      int    `json:"marks"`
		Section    string `json:"section"`
	} `json:"questions"`
}

func (h *Handler) handleCreateTest(w http.ResponseWriter, r *http.Request) {
	var req createTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Title == "" {
		h.writeDomainError(w, r, &model.ValidationError{Field: "title", Reason: "required"})
		return
	}
	if len(req.Questions) == 0 {
		h.writeDomainError(w, r, &model.ValidationError{Field: "questions", Reason: "required"})
		return
	}

	test := model.Test{
		SubjectID:   req.SubjectID,
		Title:       req.Title,
		Duration:    req.Duration,
		Published:   req.Published,
		ShowResults: req.ShowResults,
	}
	for i, q := range req.Questions {
		if q.Marks <= 0 {
			h.writeDomainError(w, r, &model.ValidationError{Field: "questions", Reason: "marks must be positive"})
			return
		}
		test.TotalMarks += q.Marks
		test.Questions = append(test.Questions, model.TestQuestion{
			QuestionID: q.QuestionID,
			Marks:      q.Marks,
			Position:   i + 1,
			Section:    q.Section,
		})
	}

	testID, err := h.store.CreateTest(test)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	created, err := h.store.GetTest(testID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListTests(w http.ResponseWriter, r *http.Request) {
	tests, err := h.store.ListTests()
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tests)
}

func (h *Handler) handleGetTest(w http.ResponseWriter, r *http.Request) {
	testID, ok := urlID(r, "testID")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid test ID")
		return
	}
	test, err := h.store.GetTest(testID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, test)
}

type createSubmissionRequest struct {
	Answers   []submission.AnswerInput `json:"answers"`
	TimeTaken int                      `json:"time_taken"`
}

type createSubmissionResponse struct {
	Submission  model.Submission `json:"submission"`
	AutoGraded  int              `json:"auto_graded"`
	ShowResults bool             `json:"show_results"`
}

func (h *Handler) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	testID, ok := urlID(r, "testID")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid test ID")
		return
	}
	var req createSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	user := model.UserFromContext(r.Context())
	res, err := h.lifecycle.Create(submission.Input{
		TestID:    testID,
		StudentID: user.ID,
		Answers:   req.Answers,
		TimeTaken: req.TimeTaken,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := createSubmissionResponse{
		Submission:  res.Submission,
		AutoGraded:  res.AutoGraded,
		ShowResults: res.ShowResults,
	}
	// Result visibility is decided here, not in the lifecycle: hide marks
	// from the student when the test withholds results.
	if !res.ShowResults {
		resp.Submission.TotalMarks = 0
		for i := range resp.Submission.Answers {
			resp.Submission.Answers[i].Marks = nil
			resp.Submission.Answers[i].Remarks = ""
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID, ok := urlID(r, "submissionID")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid submission ID")
		return
	}
	sub, err := h.store.GetSubmission(submissionID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type manualEvaluateRequest struct {
	Marks []grading.AnswerMark `json:"marks"`
}

func (h *Handler) handleManualEvaluate(w http.ResponseWriter, r *http.Request) {
	submissionID, ok := urlID(r, "submissionID")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid submission ID")
		return
	}
	var req manualEvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	user := model.UserFromContext(r.Context())
	sub, err := h.engine.Manual(submissionID, req.Marks, user.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type aiEvaluateResponse struct {
	Submission model.Submission  `json:"submission"`
	Summary    grading.AISummary `json:"summary"`
}

func (h *Handler) handleAIEvaluate(w http.ResponseWriter, r *http.Request) {
	submissionID, ok := urlID(r, "submissionID")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid submission ID")
		return
	}
	force := r.URL.Query().Get("force") == "1" || r.URL.Query().Get("force") == "true"

	user := model.UserFromContext(r.Context())
	sub, summary, err := h.engine.AIEvaluate(r.Context(), submissionID, force, user.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, aiEvaluateResponse{Submission: *sub, Summary: *summary})
}

type aiSingleResponse struct {
	Marks      float64          `json:"marks"`
	Feedback   string           `json:"feedback"`
	Submission model.Submission `json:"submission"`
}

func (h *Handler) handleAISingle(w http.ResponseWriter, r *http.Request) {
	submissionID, ok := urlID(r, "submissionID")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid submission ID")
		return
	}
	questionID, ok := urlID(r, "questionID")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid question ID")
		return
	}

	res, sub, err := h.engine.AISingle(r.Context(), submissionID, questionID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, aiSingleResponse{Marks: res.Marks, Feedback: res.Feedback, Submission: *sub})
}

func (h *Handler) handleStudentReport(w http.ResponseWriter, r *http.Request) {
	testID, ok := urlID(r, "testID")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid test ID")
		return
	}
	studentID, ok := urlID(r, "studentID")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid student ID")
		return
	}

	// Students may only read their own report.
	user := model.UserFromContext(r.Context())
	if user.Role == model.UserRoleStudent && user.ID != studentID {
		writeError(w, http.StatusForbidden, "forbidden", appI18n.T(r.Context(), "Forbidden"))
		return
	}

	report, err := h.analytics.StudentReport(testID, studentID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleTestAnalytics(w http.ResponseWriter, r *http.Request) {
	testID, ok := urlID(r, "testID")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid test ID")
		return
	}
	res, err := h.analytics.TestAnalytics(testID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
