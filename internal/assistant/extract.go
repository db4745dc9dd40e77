package assistant

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	replyField    = regexp.MustCompile(`"reply"\s*:\s*"([^"]+)"`)
	thinkingField = regexp.MustCompile(`"thinking"\s*:\s*"([^"]+)"`)
)

// ExtractStructured pulls reply and thinking out of model output that was asked
// to be strict JSON but often isn't. It tries, in order: the whole text minus
// code fences, the last {...} block, a field regex, and finally the raw text.
// An empty thinking means none was found.
func ExtractStructured(text string) (reply, thinking string) {
	clean := stripFences(strings.TrimSpace(text))

	if r, th, ok := parseReplyObject(clean); ok {
		return orDefault(r, text), th
	}

	open, end := strings.LastIndex(clean, "{"), strings.LastIndex(clean, "}")
	if open >= 0 && end > open {
		if r, th, ok := parseReplyObject(clean[open : end+1]); ok {
			return orDefault(r, text), th
		}
	}

	if m := replyField.FindStringSubmatch(clean); m != nil {
		if tm := thinkingField.FindStringSubmatch(clean); tm != nil {
			thinking = tm[1]
		}
		return m[1], thinking
	}
	return text, ""
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	nl := strings.IndexByte(s, '\n')
	if nl == -1 {
		return s
	}
	body := s[nl+1:]
	if strings.HasSuffix(s, "```") && len(s)-3 >= nl+1 {
		body = s[nl+1 : len(s)-3]
	}
	return strings.TrimSpace(body)
}

func parseReplyObject(candidate string) (reply, thinking string, ok bool) {
	if !gjson.Valid(candidate) {
		return "", "", false
	}
	obj := gjson.Parse(candidate)
	if !obj.IsObject() {
		return "", "", false
	}
	return fieldText(obj.Get("reply")), fieldText(obj.Get("thinking")), true
}

// fieldText renders a JSON value as text; absent and empty values become "".
func fieldText(v gjson.Result) string {
	switch v.Type {
	case gjson.Null, gjson.False:
		return ""
	case gjson.String:
		return strings.TrimSpace(v.Str)
	case gjson.Number:
		if v.Num == 0 {
			return ""
		}
		return v.Raw
	case gjson.JSON:
		if (v.IsArray() && len(v.Array()) == 0) || (v.IsObject() && len(v.Map()) == 0) {
			return ""
		}
		return strings.TrimSpace(v.Raw)
	default:
		return strings.TrimSpace(v.String())
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// asStructuredTurn wraps a plain-text assistant turn in the reply/thinking
// shape the model is asked to produce, so history stays consistent.
func asStructuredTurn(content string) string {
	if gjson.Valid(content) {
		return content
	}
	out, err := sjson.Set(`{}`, "reply", content)
	if err != nil {
		return content
	}
	out, err = sjson.Set(out, "thinking", thinkingPriorTurn)
	if err != nil {
		return content
	}
	return out
}
