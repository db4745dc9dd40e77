package assistant

import (
	"context"
	"fmt"
	"strings"

	"paiwantalk/internal/cache"
	"paiwantalk/internal/gaps"
	"paiwantalk/internal/lexicon"
	"paiwantalk/internal/llm"
	"paiwantalk/internal/tokenize"
)

// Mapping is one token and the glosses found for it.
type Mapping struct {
	Token   string   `json:"token"`
	Source  string   `json:"source"`
	Glosses []string `json:"glosses"`
}

// Translation is the token's glosses joined for display, or the token itself.
func (m Mapping) Translation() string {
	if len(m.Glosses) == 0 {
		return m.Token
	}
	return strings.Join(m.Glosses, ", ")
}

// Lookup resolves text against selector and reports misses as lexicon gaps.
// sample is the surrounding text stored with a gap.
func (a *Assistant) Lookup(ctx context.Context, text, selector, sample string) (Mapping, error) {
	label, glosses, err := a.resolver.Resolve(text, selector)
	if err != nil {
		return Mapping{}, err
	}
	m := Mapping{Token: text, Source: label, Glosses: glosses}

	result := "hit"
	switch {
	case len(glosses) == 0:
		result = "miss"
		a.reportGap(ctx, text, selector, sample)
	case label == lexicon.LabelAllExact:
		result = "exact"
	case label == lexicon.LabelAllFuzzy:
		result = "fuzzy"
	}
	a.metrics.ObserveLookup(selector, result)
	return m, nil
}

// Glossary resolves every distinct token of text against selector.
func (a *Assistant) Glossary(ctx context.Context, text, selector string) ([]Mapping, error) {
	tokens := tokenize.Unique(tokenize.Split(text))
	out := make([]Mapping, 0, len(tokens))
	for _, tok := range tokens {
		m, err := a.Lookup(ctx, tok, selector, "")
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (a *Assistant) reportGap(ctx context.Context, token, selector, sample string) {
	if strings.TrimSpace(lexicon.Normalize(token)) == "" {
		return
	}
	err := a.gaps.Report(ctx, gaps.Gap{
		Token:      token,
		Normalized: lexicon.Normalize(token),
		Selector:   selector,
		Context:    sample,
	})
	if err != nil {
		a.log.Warn("failed to report lexicon gap", "token", token, "err", err)
	}
}

func (a *Assistant) translate(ctx context.Context, t turn) (string, string) {
	input := latestUserMessage(t.messages)
	if input == "" {
		return replyNoTranslateInput, thinkingNoInput
	}

	paiwan := input
	if tokenize.ContainsHan(input) {
		paiwan = a.extractPaiwan(ctx, t, input)
	}

	key := cache.Key("translation", string(t.mode), t.model, paiwan)
	if hit, err := a.cache.GetReply(ctx, key); err != nil {
		a.log.Warn("cache lookup failed", "err", err)
	} else if hit != nil {
		a.log.Debug("translation served from cache", "model", t.model)
		return hit.Reply, hit.Thinking
	}

	tokens := tokenize.Split(paiwan)
	lines := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		m, err := a.Lookup(ctx, tok, lexicon.SelectorAll, paiwan)
		if err != nil {
			// unreachable with the "all" selector; keep the token visible anyway
			a.log.Error("lookup failed", "token", tok, "err", err)
			m = Mapping{Token: tok}
		}
		lines = append(lines, fmt.Sprintf(mappingLineFormat, m.Token, m.Translation()))
	}
	mapping := strings.Join(lines, "\n")

	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(translationPrompt, mapping)},
		{Role: llm.RoleUser, Content: fmt.Sprintf(translationUserTemplate, paiwan)},
	}
	raw, err := t.complete(ctx, msgs, 0.7, 1024, 0)
	if err != nil {
		a.log.Error("translation completion failed", "err", err)
		return replyTranslateFailed, err.Error()
	}

	reply, thinking := ExtractStructured(raw)
	if thinking == "" {
		thinking = thinkingLookupHeader + mapping
	}
	if err := a.cache.SetReply(ctx, key, &cache.Reply{Reply: reply, Thinking: thinking, Model: t.model}, a.cacheTTL); err != nil {
		a.log.Warn("cache store failed", "err", err)
	}
	return reply, thinking
}

// extractPaiwan asks the model to isolate the Paiwan part of mixed input and
// falls back to the input itself.
func (a *Assistant) extractPaiwan(ctx context.Context, t turn, input string) string {
	raw, err := t.complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: extractionPrompt},
		{Role: llm.RoleUser, Content: input},
	}, 0.1, 256, 0)
	if err != nil {
		a.log.Warn("paiwan extraction failed", "err", err)
		return input
	}
	extracted := strings.Trim(strings.Trim(strings.TrimSpace(raw), `"`), "'")
	if extracted == "" {
		return input
	}
	return extracted
}

func latestUserMessage(msgs []llm.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}
