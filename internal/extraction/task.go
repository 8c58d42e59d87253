package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/divyekant/memoryd/internal/llm"
)

// RunExtraction runs the full pipeline: extract facts, decide AUDN per
// fact, apply decisions against engine. provider == nil means extraction
// is disabled.
func RunExtraction(ctx context.Context, provider llm.Provider, engine EngineClient, req Request) Result {
	if provider == nil {
		return Result{Error: "extraction_disabled"}
	}

	facts, extractTokens, extractErr := extractFacts(ctx, provider, req)
	if extractErr != nil {
		return Result{
			Error:         "provider_runtime_failure",
			ErrorStage:    "extract_facts",
			ErrorMessage:  extractErr.Error(),
			ExtractTokens: extractTokens,
		}
	}
	if len(facts) == 0 {
		return Result{ExtractTokens: extractTokens}
	}

	decisions, audnTokens := decideAUDN(ctx, provider, engine, facts)
	applied, stored, updated, deleted := applyDecisions(ctx, engine, decisions, facts, req.Source)

	return Result{
		Actions:        applied,
		ExtractedCount: len(facts),
		StoredCount:    stored,
		UpdatedCount:   updated,
		DeletedCount:   deleted,
		ExtractTokens:  extractTokens,
		AUDNTokens:     audnTokens,
	}
}

func extractFacts(ctx context.Context, provider llm.Provider, req Request) ([]Fact, TokenUsage, error) {
	system := factExtractionSystemPrompt(req.Context, req.Source)

	completion, err := provider.Complete(ctx, system, req.Messages)
	if err != nil {
		return nil, TokenUsage{}, err
	}
	tokens := TokenUsage{Input: completion.InputTokens, Output: completion.OutputTokens}

	raw := parseJSONArray(completion.Text)
	facts := parseFacts(raw, DefaultMaxFactChars, DefaultMaxFacts)
	return facts, tokens, nil
}

func decideAUDN(ctx context.Context, provider llm.Provider, engine EngineClient, facts []Fact) ([]Decision, TokenUsage) {
	if !provider.SupportsAUDN() {
		return noveltyFallback(ctx, engine, facts), TokenUsage{}
	}

	similarPerFact := make(map[int][]SimilarMemory, len(facts))
	for i, fact := range facts {
		hits, err := engine.HybridSearch(ctx, fact.Text, DefaultSimilarPerFact)
		if err != nil {
			hits = nil
		}
		similarPerFact[i] = hits
	}

	prompt := fmt.Sprintf(audnPrompt, factsJSON(facts), similarJSON(similarPerFact))

	completion, err := provider.Complete(ctx, "You are a memory manager. Output only valid JSON.", prompt)
	if err != nil {
		return addAllFallback(facts), TokenUsage{}
	}

	raw := parseJSONArray(completion.Text)
	decisions := parseDecisions(raw)
	if decisions == nil {
		return addAllFallback(facts), TokenUsage{Input: completion.InputTokens, Output: completion.OutputTokens}
	}
	return decisions, TokenUsage{Input: completion.InputTokens, Output: completion.OutputTokens}
}

func noveltyFallback(ctx context.Context, engine EngineClient, facts []Fact) []Decision {
	decisions := make([]Decision, 0, len(facts))
	for i, fact := range facts {
		novel, err := engine.IsNovel(ctx, fact.Text, NoveltyThreshold)
		if err != nil || novel {
			decisions = append(decisions, Decision{Action: ActionAdd, FactIndex: i})
			continue
		}
		decisions = append(decisions, Decision{Action: ActionNoop, FactIndex: i})
	}
	return decisions
}

func addAllFallback(facts []Fact) []Decision {
	decisions := make([]Decision, len(facts))
	for i := range facts {
		decisions[i] = Decision{Action: ActionAdd, FactIndex: i}
	}
	return decisions
}

func applyDecisions(ctx context.Context, engine EngineClient, decisions []Decision, facts []Fact, source string) ([]AppliedAction, int, int, int) {
	var (
		applied                  []AppliedAction
		stored, updated, deleted int
	)

	for _, d := range decisions {
		fact := Fact{Category: CategoryDetail}
		if d.FactIndex >= 0 && d.FactIndex < len(facts) {
			fact = facts[d.FactIndex]
		}

		switch d.Action {
		case ActionAdd:
			meta := map[string]any{"category": string(fact.Category)}
			id, err := engine.AddMemory(ctx, fact.Text, source, meta, true)
			if err != nil {
				applied = append(applied, AppliedAction{Action: "error", Text: fact.Text, Error: err.Error()})
				continue
			}
			newID := id
			applied = append(applied, AppliedAction{Action: "add", Text: fact.Text, ID: &newID})
			stored++

		case ActionUpdate:
			newText := d.NewText
			if newText == "" {
				newText = fact.Text
			}
			if d.OldID != nil {
				if err := engine.DeleteMemory(ctx, *d.OldID); err != nil {
					applied = append(applied, AppliedAction{Action: "error", Text: newText, Error: err.Error()})
					continue
				}
			}
			meta := map[string]any{"category": string(fact.Category)}
			if d.OldID != nil {
				meta["supersedes"] = *d.OldID
			}
			id, err := engine.AddMemory(ctx, newText, source, meta, false)
			if err != nil {
				applied = append(applied, AppliedAction{Action: "error", Text: newText, Error: err.Error()})
				continue
			}
			newID := id
			applied = append(applied, AppliedAction{Action: "update", OldID: d.OldID, Text: newText, NewID: &newID})
			updated++

		case ActionDelete:
			if d.OldID == nil {
				continue
			}
			if err := engine.DeleteMemory(ctx, *d.OldID); err != nil {
				applied = append(applied, AppliedAction{Action: "error", OldID: d.OldID, Error: err.Error()})
				continue
			}
			applied = append(applied, AppliedAction{Action: "delete", OldID: d.OldID})
			deleted++

		case ActionNoop:
			applied = append(applied, AppliedAction{Action: "noop", Text: fact.Text, Existing: d.ExistingID})
		}
	}

	return applied, stored, updated, deleted
}

func factsJSON(facts []Fact) string {
	type factDTO struct {
		Index    int    `json:"index"`
		Text     string `json:"text"`
		Category string `json:"category"`
	}
	dtos := make([]factDTO, len(facts))
	for i, f := range facts {
		dtos[i] = factDTO{Index: i, Text: clipText(f.Text, DefaultMaxFactChars), Category: string(f.Category)}
	}
	b, _ := json.Marshal(dtos)
	return string(b)
}

func similarJSON(similarPerFact map[int][]SimilarMemory) string {
	type simDTO struct {
		ID         int64   `json:"id"`
		Text       string  `json:"text"`
		Similarity float64 `json:"similarity"`
	}
	out := make(map[string][]simDTO, len(similarPerFact))
	for i, mems := range similarPerFact {
		limit := mems
		if len(limit) > DefaultSimilarPerFact {
			limit = limit[:DefaultSimilarPerFact]
		}
		dtos := make([]simDTO, len(limit))
		for j, m := range limit {
			dtos[j] = simDTO{
				ID:         m.ID,
				Text:       clipText(m.Text, DefaultSimilarTextChars),
				Similarity: math.Round(m.Similarity*1000) / 1000,
			}
		}
		out[strconv.Itoa(i)] = dtos
	}
	b, _ := json.Marshal(out)
	return string(b)
}
