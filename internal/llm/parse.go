package llm

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// parseMode tags which of the three parse tiers produced a result.
type parseMode int

const (
	// modeJSON: an embedded JSON object carried the mark.
	modeJSON parseMode = iota
	// modeHeuristic: a "marks: <number>" fragment was pattern-matched out
	// of free text.
	modeHeuristic
	// modeRaw: nothing parsable; zero marks with the raw text as feedback.
	modeRaw
)

func (m parseMode) String() string {
	switch m {
	case modeJSON:
		return "json"
	case modeHeuristic:
		return "heuristic"
	default:
		return "raw"
	}
}

var marksFragmentRegex = regexp.MustCompile(`(?i)\bmarks?\s*[:=]?\s*(-?\d+(?:\.\d+)?)`)

const maxFeedbackLen = 500

// parseReply extracts a scoring result from a scorer reply, trying each
// tier in order and taking the first that succeeds. The numeric mark is
// clamped into [0, maxMarks] in every tier; an out-of-range value from the
// scorer never propagates.
func parseReply(raw string, maxMarks float64) (Result, parseMode) {
	if obj, ok := firstJSONObject(raw); ok {
		var payload struct {
			Marks     *float64 `json:"marks"`
			Score     *float64 `json:"score"`
			Feedback  string   `json:"feedback"`
			Rationale string   `json:"rationale"`
		}
		if err := json.Unmarshal([]byte(obj), &payload); err == nil {
			marks := payload.Marks
			if marks == nil {
				marks = payload.Score
			}
			if marks != nil {
				return Result{
					Marks:     clampMarks(*marks, maxMarks),
					Feedback:  payload.Feedback,
					Rationale: payload.Rationale,
				}, modeJSON
			}
		}
	}

	if m := marksFragmentRegex.FindStringSubmatch(raw); m != nil {
		marks, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			feedback := strings.TrimSpace(strings.Replace(raw, m[0], "", 1))
			return Result{
				Marks:     clampMarks(marks, maxMarks),
				Feedback:  truncate(feedback, maxFeedbackLen),
				Rationale: raw,
			}, modeHeuristic
		}
	}

	return Result{
		Marks:     0,
		Feedback:  truncate(strings.TrimSpace(raw), maxFeedbackLen),
		Rationale: raw,
	}, modeRaw
}

// firstJSONObject returns the first balanced top-level {...} in s,
// respecting string literals and escapes.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func clampMarks(marks, maxMarks float64) float64 {
	if marks < 0 {
		return 0
	}
	if marks > maxMarks {
		return maxMarks
	}
	return marks
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
