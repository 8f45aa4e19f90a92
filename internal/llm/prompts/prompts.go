// Package prompts builds scoring prompts from embedded templates.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// Variant represents a scoring prompt variant.
type Variant string

const (
	// VariantStrict is a strict scoring variant for majors.
	VariantStrict Variant = "strict"
	// VariantStandard is the default scoring variant.
	VariantStandard Variant = "standard"
	// VariantLenient is a lenient scoring variant for electives.
	VariantLenient Variant = "lenient"
)

var validVariants = map[Variant]bool{
	VariantStrict:   true,
	VariantStandard: true,
	VariantLenient:  true,
}

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[Variant(v)]
}

var (
	loadOnce       sync.Once
	loadErr        error
	scoreTemplates map[Variant]*template.Template
)

// ScoreData holds template data for scoring prompts.
type ScoreData struct {
	QuestionText    string
	ReferenceAnswer string
	SubmittedText   string
	MaxMarks        int
}

// Load parses the embedded prompt templates. It uses sync.Once so templates
// are loaded only once.
func Load() error {
	loadOnce.Do(func() {
		scoreTemplates = make(map[Variant]*template.Template)
		for v := range validVariants {
			name := "templates/score_" + string(v) + ".txt"
			content, err := templateFS.ReadFile(name)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + name + ": " + err.Error())
				return
			}
			tmpl, err := template.New("score").Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + name + ": " + err.Error())
				return
			}
			scoreTemplates[v] = tmpl
		}
	})
	return loadErr
}

// BuildScorePrompt builds a scoring prompt using the specified variant.
// A missing reference answer is replaced by a placeholder so the template
// never renders an empty section.
func BuildScorePrompt(variant Variant, data ScoreData) (string, error) {
	if scoreTemplates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := scoreTemplates[variant]
	if !ok {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	if strings.TrimSpace(data.ReferenceAnswer) == "" {
		data.ReferenceAnswer = "[No reference answer provided; judge on correctness and completeness alone]"
	}
	data.SubmittedText = sanitizeAnswer(data.SubmittedText)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > 10000 {
		runes := []rune(answer)
		runes = runes[:10000]
		answer = string(runes) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
