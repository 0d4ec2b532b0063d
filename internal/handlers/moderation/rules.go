package handlers

import (
	"context"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/guardbot/guardbot/internal/utils/text"
)

// Rule names as they appear on incidents and metrics.
const (
	RuleLinks      = "links"
	RuleMentions   = "mentions"
	RuleForwards   = "forwards"
	RuleBlacklist  = "blacklist"
	RuleClassifier = "classifier"
	RuleFlood      = "flood"
)

// Reason texts are the English source strings shown to offenders. They are
// translated at send time, so every entry needs a counterpart in each locale
// file.
const (
	ReasonLinks      = "Links are not allowed."
	ReasonMentions   = "Mentions are not allowed."
	ReasonForwards   = "Forwarded messages are not allowed."
	ReasonBlacklist  = "A forbidden word was used."
	ReasonClassifier = "This looks like a promotional message."
)

// Message is the platform-neutral view of a chat message the rule pipeline
// operates on.
type Message struct {
	ChatID     int64
	UserID     int64
	MessageID  int
	Text       string
	HasLink    bool
	HasMention bool
	IsForward  bool
}

// Verdict marks a message as spam with the rule that caught it.
type Verdict struct {
	Rule   string
	Reason string
}

// RuleFunc returns a verdict when the message violates the rule, nil
// otherwise. Rules must not mutate the message.
type RuleFunc func(ctx context.Context, msg *Message) *Verdict

// Pipeline evaluates rules in order, first match wins.
type Pipeline struct {
	rules []RuleFunc
}

func NewPipeline(rules ...RuleFunc) *Pipeline {
	return &Pipeline{rules: rules}
}

func (p *Pipeline) Evaluate(ctx context.Context, msg *Message) *Verdict {
	if msg == nil {
		return nil
	}
	for _, rule := range p.rules {
		if rule == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		default:
			if verdict := rule(ctx, msg); verdict != nil {
				return verdict
			}
		}
	}
	return nil
}

func LinkRule() RuleFunc {
	return func(_ context.Context, msg *Message) *Verdict {
		if !msg.HasLink {
			return nil
		}
		return &Verdict{Rule: RuleLinks, Reason: ReasonLinks}
	}
}

func MentionRule() RuleFunc {
	return func(_ context.Context, msg *Message) *Verdict {
		if !msg.HasMention {
			return nil
		}
		return &Verdict{Rule: RuleMentions, Reason: ReasonMentions}
	}
}

func ForwardRule() RuleFunc {
	return func(_ context.Context, msg *Message) *Verdict {
		if !msg.IsForward {
			return nil
		}
		return &Verdict{Rule: RuleForwards, Reason: ReasonForwards}
	}
}

func BlacklistRule(blacklist *Blacklist) RuleFunc {
	return func(_ context.Context, msg *Message) *Verdict {
		word := blacklist.Match(msg.Text)
		if word == "" {
			return nil
		}
		log.WithFields(log.Fields{
			"chat_id": msg.ChatID,
			"word":    word,
		}).Debug("blacklist hit")
		return &Verdict{Rule: RuleBlacklist, Reason: ReasonBlacklist}
	}
}

// ClassifierRule consults the detector for messages long enough to carry
// meaning. Detector failures are treated as not-spam: an unreachable model
// must never freeze or punish the chat.
func ClassifierRule(detector *Detector, minLength int) RuleFunc {
	return func(ctx context.Context, msg *Message) *Verdict {
		if detector == nil {
			return nil
		}
		trimmed := strings.TrimSpace(msg.Text)
		if utf8.RuneCountInString(trimmed) <= minLength {
			return nil
		}
		spam, err := detector.Classify(ctx, text.FoldHomoglyphs(trimmed))
		if err != nil {
			log.WithError(err).WithField("chat_id", msg.ChatID).Warn("cant classify message, passing it through")
			return nil
		}
		if !spam {
			return nil
		}
		return &Verdict{Rule: RuleClassifier, Reason: ReasonClassifier}
	}
}

// DefaultRules is the production rule order: structural checks first, then
// the blacklist, with the paid classifier last.
func DefaultRules(blacklist *Blacklist, detector *Detector, minClassifyLength int) []RuleFunc {
	return []RuleFunc{
		LinkRule(),
		MentionRule(),
		ForwardRule(),
		BlacklistRule(blacklist),
		ClassifierRule(detector, minClassifyLength),
	}
}
