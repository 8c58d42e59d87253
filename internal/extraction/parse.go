package extraction

import (
	"encoding/json"
	"strings"
)

// parseJSONArray tolerates three shapes of LLM output: a direct JSON
// array, an array inside a fenced code block, and an array embedded
// anywhere in surrounding prose (taken as the first "[" through the
// last "]"). Returns nil if none parse.
func parseJSONArray(text string) []any {
	text = strings.TrimSpace(text)

	if arr, ok := tryParseArray(text); ok {
		return arr
	}

	if strings.Contains(text, "```") {
		for _, block := range strings.Split(text, "```") {
			block = strings.TrimSpace(block)
			block = strings.TrimPrefix(block, "json")
			block = strings.TrimSpace(block)
			if arr, ok := tryParseArray(block); ok {
				return arr
			}
		}
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start != -1 && end != -1 && end > start {
		if arr, ok := tryParseArray(text[start : end+1]); ok {
			return arr
		}
	}

	return nil
}

func tryParseArray(s string) ([]any, bool) {
	var out []any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, false
	}
	return out, true
}

// clipText collapses whitespace and truncates to maxChars, appending
// "..." when truncated.
func clipText(text string, maxChars int) string {
	compact := strings.Join(strings.Fields(text), " ")
	if len(compact) <= maxChars {
		return compact
	}
	cut := maxChars - 3
	if cut < 0 {
		cut = 0
	}
	return strings.TrimRight(compact[:cut], " ") + "..."
}

// parseFacts converts a provider's raw JSON array into normalized
// Facts: each item is either {"category","text"} or a bare string
// (backward-compatible -> category "detail"). Empty/invalid items are
// dropped; the result is capped to maxFacts.
func parseFacts(raw []any, maxFactChars, maxFacts int) []Fact {
	var facts []Fact
	for _, item := range raw {
		switch v := item.(type) {
		case map[string]any:
			textVal, ok := v["text"]
			if !ok {
				continue
			}
			text := clipText(toString(textVal), maxFactChars)
			if text == "" {
				continue
			}
			cat := CategoryDetail
			if c, ok := v["category"].(string); ok {
				cat = NormalizeCategory(strings.ToLower(c))
			}
			facts = append(facts, Fact{Category: cat, Text: text})
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}
			text := clipText(v, maxFactChars)
			if text == "" {
				continue
			}
			facts = append(facts, Fact{Category: CategoryDetail, Text: text})
		}
	}
	if len(facts) > maxFacts {
		facts = facts[:maxFacts]
	}
	return facts
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// parseDecisions converts a provider's raw AUDN JSON array into
// Decisions. Items without an "action" field are dropped; actions are
// upper-cased for tolerance.
func parseDecisions(raw []any) []Decision {
	var decisions []Decision
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		actionStr, ok := m["action"].(string)
		if !ok {
			continue
		}
		d := Decision{Action: ActionKind(strings.ToUpper(actionStr))}
		if fi, ok := numberField(m, "fact_index"); ok {
			d.FactIndex = int(fi)
		} else {
			d.FactIndex = -1
		}
		if v, ok := numberField(m, "old_id"); ok {
			id := int64(v)
			d.OldID = &id
		}
		if v, ok := numberField(m, "existing_id"); ok {
			id := int64(v)
			d.ExistingID = &id
		}
		if v, ok := m["new_text"].(string); ok {
			d.NewText = v
		}
		decisions = append(decisions, d)
	}
	return decisions
}

func numberField(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}
