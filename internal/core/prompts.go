package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"mindmate.io/companion/internal/apperr"
	"mindmate.io/companion/internal/store"
)

const (
	diagnosisTemplate = "As a mental health diagnosis assistant, analyze these symptoms: {message}\n" +
		"Consider possible conditions and their severity (mild/moderate/severe), and recommend next steps. " +
		"Be compassionate but factual."

	topicTemplate = "You're a specialist counselor for {topic}. Respond to: {message}\n" +
		"Use evidence-based techniques (CBT, DBT). Keep responses conversational and supportive."

	generalTemplate = "You're a compassionate mental health companion. Respond to: {message}\n" +
		"Use active listening and positive reinforcement. Keep responses under 100 words."

	concernTemplate = "The user appears to be dealing with {concern}; acknowledge it gently.\n"
)

var promptTable = map[store.SessionType]prompt.ChatTemplate{
	store.SessionDiagnosis: prompt.FromMessages(schema.FString, schema.UserMessage(diagnosisTemplate)),
	store.SessionTopic:     prompt.FromMessages(schema.FString, schema.UserMessage(topicTemplate)),
	store.SessionGeneral:   prompt.FromMessages(schema.FString, schema.UserMessage(generalTemplate)),
}

var concernPrompt = prompt.FromMessages(schema.FString, schema.UserMessage(concernTemplate))

// Compose picks the template for sessionType and fills it in. It performs no I/O.
// classification only affects general sessions.
func Compose(ctx context.Context, sessionType store.SessionType, topic, message string, classification *Classification) (string, error) {
	tmpl, ok := promptTable[sessionType]
	if !ok {
		return "", fmt.Errorf("%w: no prompt for session type %q", apperr.ErrInvalidArgument, sessionType)
	}
	topic = strings.TrimSpace(topic)
	if sessionType == store.SessionTopic && topic == "" {
		return "", fmt.Errorf("%w: topic sessions need a topic", apperr.ErrInvalidArgument)
	}

	vars := map[string]any{"message": message, "topic": topic}
	body, err := render(ctx, tmpl, vars)
	if err != nil {
		return "", err
	}

	if sessionType != store.SessionGeneral || classification == nil || classification.Label == "" {
		return body, nil
	}
	concern, err := render(ctx, concernPrompt, map[string]any{"concern": classification.Label})
	if err != nil {
		return "", err
	}
	return concern + body, nil
}

func render(ctx context.Context, tmpl prompt.ChatTemplate, vars map[string]any) (string, error) {
	msgs, err := tmpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("failed to render prompt: template produced no messages")
	}
	return msgs[0].Content, nil
}
