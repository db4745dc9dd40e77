package assistant

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"paiwantalk/internal/llm"
)

type Intent string

const (
	IntentTranslation    Intent = "translation"
	IntentRecommendation Intent = "recommendation"
	IntentChat           Intent = "chat"
	// IntentSearch is recognised but answered by chat.
	IntentSearch Intent = "search"
)

const classifierWindow = 5

func (a *Assistant) classify(ctx context.Context, t turn) Intent {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: classifierPrompt}}
	recent := t.messages
	if len(recent) > classifierWindow {
		recent = recent[len(recent)-classifierWindow:]
	}
	for _, m := range recent {
		if m.Role != llm.RoleSystem {
			msgs = append(msgs, m)
		}
	}

	raw, err := t.complete(ctx, msgs, 0.1, 50, 0)
	if err != nil {
		a.log.Warn("intent classification failed", "err", err)
		return IntentChat
	}
	return parseIntent(raw)
}

// parseIntent reads {"intent": ...}; when the output isn't JSON it falls back
// to scanning for category names.
func parseIntent(raw string) Intent {
	if gjson.Valid(raw) {
		v := gjson.Parse(raw)
		if !v.IsObject() {
			return IntentChat
		}
		return knownIntent(v.Get("intent").String())
	}
	switch {
	case strings.Contains(raw, string(IntentSearch)):
		return IntentSearch
	case strings.Contains(raw, string(IntentTranslation)):
		return IntentTranslation
	case strings.Contains(raw, string(IntentRecommendation)):
		return IntentRecommendation
	default:
		return IntentChat
	}
}

func knownIntent(s string) Intent {
	switch i := Intent(strings.TrimSpace(s)); i {
	case IntentTranslation, IntentRecommendation, IntentSearch:
		return i
	default:
		return IntentChat
	}
}
