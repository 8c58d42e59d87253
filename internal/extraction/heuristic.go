package extraction

import (
	"context"
	"regexp"
	"strings"
)

const (
	FallbackMaxFacts         = 1
	FallbackMinFactChars     = 24
	FallbackMaxFactChars     = 280
	FallbackNoveltyThreshold = 0.88
)

var (
	fallbackDecisionPattern = regexp.MustCompile(`(?i)\b(decide(?:d|s|ing)?|decision|prefer|standard|policy|we\s+should|we\s+will|let'?s|going\s+with|use\s+[a-z0-9_.-]+|remember\s+)\b`)
	fallbackSpeakerPrefix   = regexp.MustCompile(`(?i)^(User|Assistant)\s*:\s*`)
	fallbackWhitespace      = regexp.MustCompile(`\s+`)
)

// fallbackCandidates pulls a small, conservative set of decision-ish
// lines out of raw transcript text when the LLM provider is unavailable
// or just failed. It never invents facts: when in doubt, it emits none.
func fallbackCandidates(messages string) []string {
	var candidates []string
	seen := make(map[string]bool)

	for _, raw := range strings.Split(messages, "\n") {
		line := normalizeCandidateLine(raw)
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, "?") {
			continue
		}
		if len(line) < FallbackMinFactChars || len(line) > FallbackMaxFactChars {
			continue
		}
		if len(strings.Fields(line)) < 4 {
			continue
		}
		if !fallbackDecisionPattern.MatchString(line) {
			continue
		}
		lowered := strings.ToLower(line)
		if strings.HasPrefix(lowered, "ok ") || strings.HasPrefix(lowered, "okay ") ||
			strings.HasPrefix(lowered, "sure ") || strings.HasPrefix(lowered, "thanks") ||
			strings.HasPrefix(lowered, "thank you") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		candidates = append(candidates, line)
		if len(candidates) >= FallbackMaxFacts {
			break
		}
	}

	return candidates
}

func normalizeCandidateLine(line string) string {
	compact := fallbackWhitespace.ReplaceAllString(strings.TrimSpace(line), " ")
	compact = fallbackSpeakerPrefix.ReplaceAllString(compact, "")
	return strings.TrimSpace(compact)
}

// RunFallbackExtraction is the add-only path used when the provider is
// disabled or just failed at the fact-extraction stage. It is more
// conservative than the LLM path: it relies on isNovel rather than AUDN,
// so it never updates or deletes, only adds or no-ops.
func RunFallbackExtraction(ctx context.Context, engine EngineClient, req Request) Result {
	facts := fallbackCandidates(req.Messages)
	source := req.Source
	if source == "" {
		source = "extract/fallback"
	}

	var (
		actions []AppliedAction
		stored  int
	)

	for _, fact := range facts {
		novel, err := engine.IsNovel(ctx, fact, FallbackNoveltyThreshold)
		if err != nil {
			actions = append(actions, AppliedAction{Action: "error", Text: fact, Error: err.Error()})
			continue
		}
		if !novel {
			actions = append(actions, AppliedAction{Action: "noop", Text: fact})
			continue
		}
		meta := map[string]any{"extraction_mode": "fallback_add", "context": req.Context}
		id, err := engine.AddMemory(ctx, fact, source, meta, false)
		if err != nil {
			actions = append(actions, AppliedAction{Action: "error", Text: fact, Error: err.Error()})
			continue
		}
		newID := id
		stored++
		actions = append(actions, AppliedAction{Action: "add", Text: fact, ID: &newID})
	}

	return Result{
		Actions:           actions,
		ExtractedCount:    len(facts),
		StoredCount:       stored,
		FallbackTriggered: true,
	}
}
