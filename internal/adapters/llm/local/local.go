package local

import (
	"context"
	"fmt"
	"strings"

	"github.com/nlpodyssey/cybertron/pkg/tasks"
	"github.com/nlpodyssey/cybertron/pkg/tasks/zeroshotclassifier"
	"github.com/rs/zerolog"
	log "github.com/sirupsen/logrus"

	"github.com/guardbot/guardbot/internal/adapters"
	"github.com/guardbot/guardbot/internal/adapters/llm"
)

// API answers the SPAM/OK chat protocol with an offline zero-shot
// classifier, so the moderation pipeline works without a remote LLM.
type API struct {
	classifier zeroshotclassifier.Interface
	logger     *log.Entry
}

const DefaultModel = "MoritzLaurer/mDeBERTa-v3-base-mnli-xnli"

const (
	labelSpam = "spam or unsolicited advertising"
	labelHam  = "ordinary conversation"
)

func NewLocal(modelsDir, modelName string, logger *log.Entry) (adapters.LLM, error) {
	// cybertron logs through zerolog; keep it quiet below warnings.
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if modelName == "" {
		modelName = DefaultModel
	}
	m, err := tasks.Load[zeroshotclassifier.Interface](&tasks.Config{
		ModelsDir:           modelsDir,
		ModelName:           modelName,
		DownloadPolicy:      tasks.DownloadMissing,
		ConversionPolicy:    tasks.ConvertMissing,
		ConversionPrecision: tasks.F32,
	})
	if err != nil {
		return nil, fmt.Errorf("load zero-shot model: %w", err)
	}
	return &API{classifier: m, logger: logger}, nil
}

func (a *API) ChatCompletion(ctx context.Context, messages []llm.ChatCompletionMessage) (llm.ChatCompletionResponse, error) {
	var text string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			text = messages[i].Content
			break
		}
	}
	if strings.TrimSpace(text) == "" {
		return llm.ChatCompletionResponse{}, fmt.Errorf("no user message to classify")
	}

	result, err := a.classifier.Classify(ctx, text, zeroshotclassifier.Parameters{
		CandidateLabels:    []string{labelSpam, labelHam},
		HypothesisTemplate: "This message is {}.",
		MultiLabel:         false,
	})
	if err != nil {
		return llm.ChatCompletionResponse{}, err
	}

	reply := "OK"
	if len(result.Labels) > 0 && result.Labels[0] == labelSpam {
		reply = "SPAM"
	}
	a.logger.WithField("labels", result.Labels).WithField("scores", result.Scores).Trace("zero-shot classification")

	return llm.ChatCompletionResponse{
		Choices: []llm.ChatCompletionChoice{{Message: llm.ChatCompletionMessage{
			Role:    llm.RoleAssistant,
			Content: reply,
		}}},
	}, nil
}
