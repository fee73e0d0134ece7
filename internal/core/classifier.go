package core

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"mindmate.io/companion/internal/apperr"
	"mindmate.io/companion/internal/store"
)

// Classification is the concern label attached to a user message. Score is
// only set by the model-assisted strategy.
type Classification struct {
	Label  string   `json:"label"`
	Score  *float64 `json:"score,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

type Classifier interface {
	Classify(ctx context.Context, message string) (*Classification, error)
}

const DefaultCategory = "General Stress"

type category struct {
	label    string
	triggers []string
}

// Checked top to bottom; the first category with a matching trigger wins.
var keywordCategories = []category{
	{"Anxiety", []string{"nervous", "worried", "overwhelmed", "stressed", "panic"}},
	{"Depression", []string{"depression", "sad", "hopeless", "tired", "worthless", "lost"}},
	{"Relationship Issues", []string{"breakup", "partner", "trust", "cheated", "argument"}},
	{"Self-Esteem Issues", []string{"ugly", "unworthy", "not good enough", "hate myself"}},
	{"Burnout", []string{"exhausted", "too much work", "drained", "no motivation"}},
	{"Loneliness", []string{"alone", "no one understands", "isolated", "ignored"}},
}

type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

func (KeywordClassifier) Classify(_ context.Context, message string) (*Classification, error) {
	return &Classification{Label: ClassifyKeywords(message)}, nil
}

// ClassifyKeywords is a pure function of the text and the category table.
func ClassifyKeywords(message string) string {
	normalized := strings.ToLower(message)
	for _, c := range keywordCategories {
		for _, trigger := range c.triggers {
			if strings.Contains(normalized, trigger) {
				return c.label
			}
		}
	}
	return DefaultCategory
}

const emotionAnalysisPrompt = "Analyze the emotion in this message on a scale of 1-10 " +
	"(1 = very negative, 10 = very positive). " +
	"Reply with exactly one line in the format score|emotion|reason and nothing else. Message: %s"

// ModelClassifier asks the completion service for a scored emotion label.
type ModelClassifier struct {
	llm *LLMService
}

func NewModelClassifier(llm *LLMService) *ModelClassifier {
	return &ModelClassifier{llm: llm}
}

func (c *ModelClassifier) Classify(ctx context.Context, message string) (*Classification, error) {
	raw, err := c.llm.Respond(ctx, fmt.Sprintf(emotionAnalysisPrompt, message))
	if err != nil {
		return nil, err
	}
	return ParseEmotionAnalysis(raw)
}

// ParseEmotionAnalysis reads "score|emotion|reason". Anything other than three
// fields with an in-range numeric score and a non-empty emotion is ErrParse.
func ParseEmotionAnalysis(raw string) (*Classification, error) {
	fields := strings.Split(strings.TrimSpace(raw), "|")
	if len(fields) != 3 {
		return nil, fmt.Errorf("%w: expected 3 fields, got %d in %q", apperr.ErrParse, len(fields), raw)
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: score %q is not a number", apperr.ErrParse, fields[0])
	}
	if math.IsNaN(score) || score < store.MinSentiment || score > store.MaxSentiment {
		return nil, fmt.Errorf("%w: score %v outside [%v, %v]", apperr.ErrParse, score, store.MinSentiment, store.MaxSentiment)
	}
	label := strings.TrimSpace(fields[1])
	if label == "" {
		return nil, fmt.Errorf("%w: empty emotion label", apperr.ErrParse)
	}
	return &Classification{Label: label, Score: &score, Reason: strings.TrimSpace(fields[2])}, nil
}
