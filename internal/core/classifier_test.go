package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mindmate.io/companion/internal/apperr"
)

func TestClassifyKeywords(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"I am having a panic attack", "Anxiety"},
		{"I feel OVERWHELMED", "Anxiety"},
		{"everything feels hopeless", "Depression"},
		{"my partner cheated on me", "Relationship Issues"},
		{"I'm just not good enough", "Self-Esteem Issues"},
		{"I'm exhausted from too much work", "Burnout"},
		{"I feel so isolated", "Loneliness"},
		{"the weather is nice today", DefaultCategory},
		{"", DefaultCategory},
		// Anxiety is checked before Depression
		{"stressed and sad", "Anxiety"},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyKeywords(tc.message))
		})
	}
}

func TestKeywordClassifierHasNoScore(t *testing.T) {
	c, err := NewKeywordClassifier().Classify(context.Background(), "I'm worried")
	require.NoError(t, err)
	assert.Equal(t, "Anxiety", c.Label)
	assert.Nil(t, c.Score)
}

func TestParseEmotionAnalysis(t *testing.T) {
	c, err := ParseEmotionAnalysis(" 3 | sad | lost a friend \n")
	require.NoError(t, err)
	require.NotNil(t, c.Score)
	assert.Equal(t, 3.0, *c.Score)
	assert.Equal(t, "sad", c.Label)
	assert.Equal(t, "lost a friend", c.Reason)

	for _, raw := range []string{
		"",
		"3|sad",
		"3|sad|reason|extra",
		"three|sad|reason",
		"0|sad|reason",
		"11|happy|reason",
		"NaN|sad|reason",
		"5| |reason",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseEmotionAnalysis(raw)
			assert.ErrorIs(t, err, apperr.ErrParse)
		})
	}
}

type scriptedCompleter struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (s *scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "ok", nil
}

func (s *scriptedCompleter) Close() error { return nil }

func TestModelClassifier(t *testing.T) {
	ctx := context.Background()

	completer := &scriptedCompleter{replies: []string{"8|hopeful|good news"}}
	c, err := NewModelClassifier(NewLLMService(completer)).Classify(ctx, "I got the job!")
	require.NoError(t, err)
	assert.Equal(t, "hopeful", c.Label)
	assert.Equal(t, 8.0, *c.Score)
	assert.Contains(t, completer.prompts[0], "I got the job!")
	assert.Contains(t, completer.prompts[0], "score|emotion|reason")

	garbled := &scriptedCompleter{replies: []string{"feeling great"}}
	_, err = NewModelClassifier(NewLLMService(garbled)).Classify(ctx, "hi")
	assert.ErrorIs(t, err, apperr.ErrParse)

	down := &scriptedCompleter{errs: []error{errors.New("timeout")}}
	_, err = NewModelClassifier(NewLLMService(down)).Classify(ctx, "hi")
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}
