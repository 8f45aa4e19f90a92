// Package analytics derives class rank, averages, and distribution
// breakdowns from the evaluated submissions of a test.
package analytics

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Kavinnandha/smart-assessment-platform/internal/model"
	"github.com/Kavinnandha/smart-assessment-platform/internal/store"
)

// ErrNoSubmissions means the test exists but has no evaluated submissions
// to aggregate.
var ErrNoSubmissions = errors.New("no evaluated submissions for this test")

// Bucket accumulates obtained vs. maximum marks for one slice of a report.
type Bucket struct {
	Obtained float64 `json:"obtained"`
	Maximum  int     `json:"maximum"`
}

// StudentReport is one student's performance on a test in class context.
type StudentReport struct {
	TestID       int64                       `json:"test_id"`
	StudentID    int64                       `json:"student_id"`
	TotalMarks   float64                     `json:"total_marks"`
	TestTotal    int                         `json:"test_total"`
	Status       model.SubmissionStatus      `json:"status"`
	Rank         int                         `json:"rank,omitempty"`
	ClassSize    int                         `json:"class_size"`
	ClassAverage float64                     `json:"class_average"`
	ByDifficulty map[model.Difficulty]Bucket `json:"by_difficulty"`
	ByTopic      map[string]Bucket           `json:"by_topic"`
	ByChapter    map[string]Bucket           `json:"by_chapter"`
}

// DifficultyStat is the mean obtained and maximum marks in one difficulty
// band, normalized by submission count.
type DifficultyStat struct {
	MeanObtained float64 `json:"mean_obtained"`
	MeanMaximum  float64 `json:"mean_maximum"`
}

// QuestionStat is per-question performance across the class.
type QuestionStat struct {
	QuestionID   int64   `json:"question_id"`
	AverageMarks float64 `json:"average_marks"`
	Attempts     int     `json:"attempts"`
}

// TestAnalytics aggregates all evaluated submissions of a test.
type TestAnalytics struct {
	TestID       int64                               `json:"test_id"`
	Submissions  int                                 `json:"submissions"`
	Mean         float64                             `json:"mean"`
	Max          float64                             `json:"max"`
	Min          float64                             `json:"min"`
	Histogram    map[string]int                      `json:"histogram"`
	ByDifficulty map[model.Difficulty]DifficultyStat `json:"by_difficulty"`
	Questions    []QuestionStat                      `json:"questions"`
}

// Histogram bucket labels: score percentage ranges with inclusive upper
// bounds.
var histogramLabels = []string{"0-25", "26-50", "51-75", "76-100"}

// Aggregator computes reports from stored submissions.
type Aggregator struct {
	store *store.Store
}

func New(s *store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// StudentReport builds a per-student report for a test: marks partitioned
// by the questions' difficulty, topic, and chapter, plus class average and
// rank among evaluated submissions. Rank is 0 when the student's own
// submission is not yet evaluated.
func (a *Aggregator) StudentReport(testID, studentID int64) (*StudentReport, error) {
	sub, err := a.store.GetSubmissionByTestStudent(testID, studentID)
	if err != nil {
		return nil, fmt.Errorf("load submission for test %d student %d: %w", testID, studentID, err)
	}
	test, err := a.store.GetTest(testID)
	if err != nil {
		return nil, fmt.Errorf("load test %d: %w", testID, err)
	}

	caps := make(map[int64]int, len(test.Questions))
	ids := make([]int64, 0, len(test.Questions))
	for _, tq := range test.Questions {
		caps[tq.QuestionID] = tq.Marks
		ids = append(ids, tq.QuestionID)
	}
	questions, err := a.store.QuestionsByID(ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	report := &StudentReport{
		TestID:       testID,
		StudentID:    studentID,
		TotalMarks:   sub.TotalMarks,
		TestTotal:    test.TotalMarks,
		Status:       sub.Status,
		ByDifficulty: make(map[model.Difficulty]Bucket),
		ByTopic:      make(map[string]Bucket),
		ByChapter:    make(map[string]Bucket),
	}

	for _, ans := range sub.Answers {
		q, ok := questions[ans.QuestionID]
		if !ok {
			continue
		}
		obtained := 0.0
		if ans.Marks != nil {
			obtained = *ans.Marks
		}
		maxMarks := caps[ans.QuestionID]

		addBucket(report.ByDifficulty, q.Difficulty, obtained, maxMarks)
		if q.Topic != "" {
			addBucket(report.ByTopic, q.Topic, obtained, maxMarks)
		}
		if q.Chapter != "" {
			addBucket(report.ByChapter, q.Chapter, obtained, maxMarks)
		}
	}

	evaluated, err := a.store.ListSubmissionsByStatus(testID, model.StatusEvaluated)
	if err != nil {
		return nil, fmt.Errorf("list evaluated submissions: %w", err)
	}
	report.ClassSize = len(evaluated)
	if len(evaluated) > 0 {
		var sum float64
		for _, s := range evaluated {
			sum += s.TotalMarks
		}
		report.ClassAverage = sum / float64(len(evaluated))
		report.Rank = rankOf(evaluated, sub.ID)
	}

	return report, nil
}

// TestAnalytics aggregates evaluated submissions: mean/max/min totals, a
// four-bucket score-percentage histogram, per-difficulty means, and
// per-question averages with attempt counts.
func (a *Aggregator) TestAnalytics(testID int64) (*TestAnalytics, error) {
	test, err := a.store.GetTest(testID)
	if err != nil {
		return nil, fmt.Errorf("load test %d: %w", testID, err)
	}
	evaluated, err := a.store.ListSubmissionsByStatus(testID, model.StatusEvaluated)
	if err != nil {
		return nil, fmt.Errorf("list evaluated submissions: %w", err)
	}
	if len(evaluated) == 0 {
		return nil, ErrNoSubmissions
	}

	caps := make(map[int64]int, len(test.Questions))
	ids := make([]int64, 0, len(test.Questions))
	for _, tq := range test.Questions {
		caps[tq.QuestionID] = tq.Marks
		ids = append(ids, tq.QuestionID)
	}
	questions, err := a.store.QuestionsByID(ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	out := &TestAnalytics{
		TestID:       testID,
		Submissions:  len(evaluated),
		Min:          evaluated[0].TotalMarks,
		Histogram:    make(map[string]int, len(histogramLabels)),
		ByDifficulty: make(map[model.Difficulty]DifficultyStat),
	}
	for _, label := range histogramLabels {
		out.Histogram[label] = 0
	}

	diffObtained := make(map[model.Difficulty]float64)
	diffMaximum := make(map[model.Difficulty]float64)
	qObtained := make(map[int64]float64)
	qAttempts := make(map[int64]int)

	var sum float64
	for _, s := range evaluated {
		sum += s.TotalMarks
		if s.TotalMarks > out.Max {
			out.Max = s.TotalMarks
		}
		if s.TotalMarks < out.Min {
			out.Min = s.TotalMarks
		}
		out.Histogram[histogramBucket(s.TotalMarks, test.TotalMarks)]++

		for _, ans := range s.Answers {
			q, ok := questions[ans.QuestionID]
			if !ok {
				continue
			}
			// An answer counts as attempted only once it carries a mark.
			if ans.Marks != nil {
				qObtained[ans.QuestionID] += *ans.Marks
				qAttempts[ans.QuestionID]++
				diffObtained[q.Difficulty] += *ans.Marks
			}
			diffMaximum[q.Difficulty] += float64(caps[ans.QuestionID])
		}
	}
	out.Mean = sum / float64(len(evaluated))

	n := float64(len(evaluated))
	for d, maximum := range diffMaximum {
		out.ByDifficulty[d] = DifficultyStat{
			MeanObtained: diffObtained[d] / n,
			MeanMaximum:  maximum / n,
		}
	}

	for _, tq := range test.Questions {
		stat := QuestionStat{QuestionID: tq.QuestionID, Attempts: qAttempts[tq.QuestionID]}
		if stat.Attempts > 0 {
			stat.AverageMarks = qObtained[tq.QuestionID] / float64(stat.Attempts)
		}
		out.Questions = append(out.Questions, stat)
	}

	return out, nil
}

func addBucket[K comparable](m map[K]Bucket, key K, obtained float64, maximum int) {
	b := m[key]
	b.Obtained += obtained
	b.Maximum += maximum
	m[key] = b
}

// histogramBucket places a total into one of four score-percentage ranges
// with inclusive upper bounds.
func histogramBucket(total float64, testTotal int) string {
	if testTotal <= 0 {
		return histogramLabels[0]
	}
	pct := total / float64(testTotal) * 100
	switch {
	case pct <= 25:
		return histogramLabels[0]
	case pct <= 50:
		return histogramLabels[1]
	case pct <= 75:
		return histogramLabels[2]
	default:
		return histogramLabels[3]
	}
}

// rankOf returns the 1-based rank of the submission in a stable descending
// sort by total marks. Ties keep the input (insertion) order.
func rankOf(evaluated []model.Submission, submissionID int64) int {
	sorted := make([]model.Submission, len(evaluated))
	copy(sorted, evaluated)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalMarks > sorted[j].TotalMarks
	})
	for i, s := range sorted {
		if s.ID == submissionID {
			return i + 1
		}
	}
	return 0
}
