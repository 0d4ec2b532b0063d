package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/guardbot/guardbot/internal/adapters"
	"github.com/guardbot/guardbot/internal/adapters/llm"
)

const spamClassifierPrompt = `You are a spam filter for group chats. ` +
	`Decide whether the user message is unsolicited advertising, a scam, a crypto or gambling promotion, or recruitment into "easy money" schemes. ` +
	`Messages may hide Latin words behind Cyrillic lookalike letters. ` +
	`Reply with exactly one word: SPAM or OK.`

var classifierExamples = []llm.ChatCompletionMessage{
	{Role: llm.RoleUser, Content: "Эксклюзивный заработок! Пиши в личку, гарантированный доход от 500$ в день"},
	{Role: llm.RoleAssistant, Content: "SPAM"},
	{Role: llm.RoleUser, Content: "Привет всем, подскажите хорошую книгу по системному дизайну"},
	{Role: llm.RoleAssistant, Content: "OK"},
	{Role: llm.RoleUser, Content: "Limited slots! Our trading bot earns passive income, DM me now"},
	{Role: llm.RoleAssistant, Content: "SPAM"},
	{Role: llm.RoleUser, Content: "thanks everyone, see you at the meetup tomorrow"},
	{Role: llm.RoleAssistant, Content: "OK"},
}

// Detector asks a language model whether a message is spam. It owns the
// prompt, the reply protocol and the per-call timeout, so callers only see a
// boolean.
type Detector struct {
	client  adapters.LLM
	timeout time.Duration
	logger  *log.Entry
}

func NewDetector(client adapters.LLM, timeout time.Duration, logger *log.Entry) *Detector {
	return &Detector{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// Classify returns whether the model considers the text spam. An unparseable
// reply counts as not-spam.
func (d *Detector) Classify(ctx context.Context, content string) (bool, error) {
	if d.client == nil {
		return false, fmt.Errorf("no classifier client configured")
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	messages := make([]llm.ChatCompletionMessage, 0, len(classifierExamples)+2)
	messages = append(messages, llm.ChatCompletionMessage{Role: llm.RoleSystem, Content: spamClassifierPrompt})
	messages = append(messages, classifierExamples...)
	messages = append(messages, llm.ChatCompletionMessage{Role: llm.RoleUser, Content: content})

	resp, err := d.client.ChatCompletion(ctx, messages)
	if err != nil {
		return false, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return false, fmt.Errorf("empty choices in classifier response")
	}

	reply := strings.ToUpper(strings.TrimSpace(resp.Choices[0].Message.Content))
	switch {
	case strings.HasPrefix(reply, "SPAM"):
		return true, nil
	case strings.HasPrefix(reply, "OK"):
		return false, nil
	default:
		d.logger.WithField("reply", reply).Debug("unexpected classifier reply, treating as clean")
		return false, nil
	}
}
