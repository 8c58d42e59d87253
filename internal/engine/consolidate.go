package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/divyekant/memoryd/internal/apperr"
	"github.com/divyekant/memoryd/internal/llm"
	"github.com/divyekant/memoryd/internal/memory"
)

const consolidationPromptTemplate = `These %d memories are about the same topic in the %s project.
Consolidate them into 1-2 concise memories that capture ALL unique information.
Drop redundant or overlapping details. Preserve: decisions and reasoning, bug fixes, conventions.

Memories to consolidate:
%s

Output a JSON array of consolidated text strings. Each must be self-contained.`

const (
	defaultClusterThreshold  = 0.75
	defaultMinClusterSize    = 3
	defaultDetailPruneDays   = 60
	defaultDecisionPruneDays = 120
)

// FindClusters groups records under sourcePrefix by semantic similarity:
// each record not already claimed by a cluster seeds one, hybridSearch
// supplies its nearest neighbours, and any neighbour whose dense score
// meets threshold joins (the cosine leg, not the RRF leg, is the
// similarity proxy here since RRF scores don't live on a 0-1 scale).
// Clusters smaller than minSize are dropped entirely, including their
// seed, so a future call can re-seed from them against a different
// neighbourhood.
func (e *Engine) FindClusters(ctx context.Context, sourcePrefix string, threshold float64, minSize int) ([][]*memory.Record, error) {
	if threshold <= 0 {
		threshold = defaultClusterThreshold
	}
	if minSize <= 0 {
		minSize = defaultMinClusterSize
	}

	var candidates []*memory.Record
	for _, r := range e.store.All() {
		if sourcePrefix != "" && !strings.HasPrefix(r.Source, sourcePrefix) {
			continue
		}
		candidates = append(candidates, r)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	claimed := make(map[int64]struct{})
	var clusters [][]*memory.Record

	for _, seed := range candidates {
		if _, done := claimed[seed.ID]; done {
			continue
		}

		hits, err := e.HybridSearch(ctx, seed.Text, 10, nil, 0, sourcePrefix)
		if err != nil {
			return nil, err
		}

		cluster := []*memory.Record{seed}
		members := map[int64]struct{}{seed.ID: {}}
		for _, h := range hits {
			if _, ok := members[h.Record.ID]; ok {
				continue
			}
			if _, done := claimed[h.Record.ID]; done {
				continue
			}
			if h.DenseScore >= threshold {
				cluster = append(cluster, h.Record)
				members[h.Record.ID] = struct{}{}
			}
		}

		if len(cluster) < minSize {
			continue
		}
		clusters = append(clusters, cluster)
		for id := range members {
			claimed[id] = struct{}{}
		}
	}

	return clusters, nil
}

// dominantCategory returns the most common category in cluster, treating
// an unset category the same way Add does: as detail.
func dominantCategory(cluster []*memory.Record) memory.Category {
	counts := make(map[memory.Category]int, 3)
	for _, r := range cluster {
		cat := r.Category
		if cat == "" {
			cat = memory.CategoryDetail
		}
		counts[cat]++
	}
	best, bestCount := memory.CategoryDetail, -1
	for cat, n := range counts {
		if n > bestCount {
			best, bestCount = cat, n
		}
	}
	return best
}

// inferProject makes a best-effort project label out of a cluster's
// source paths, for the consolidation prompt only.
func inferProject(cluster []*memory.Record) string {
	for _, r := range cluster {
		parts := strings.Split(r.Source, "/")
		if len(parts) > 1 && parts[len(parts)-1] != "" {
			return parts[len(parts)-1]
		}
		if len(parts) > 0 && parts[0] != "" {
			return parts[0]
		}
	}
	return "unknown"
}

// ConsolidateResult is the outcome of a ConsolidateCluster call.
type ConsolidateResult struct {
	MergedCount int
	NewCount    int
	OldIDs      []int64
	NewTexts    []string
	DryRun      bool
}

type consolidationPromptMemory struct {
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

// ConsolidateCluster asks provider to merge cluster into one or two
// concise memories. In dry-run mode it reports what would happen without
// mutating anything; otherwise it deletes the cluster's members and adds
// the replacement texts tagged with consolidated_from, so the new
// records' Record.ConsolidatedFrom carries the provenance the way
// Supersedes does for Supersede.
func (e *Engine) ConsolidateCluster(ctx context.Context, provider llm.Provider, cluster []*memory.Record, dryRun bool) (ConsolidateResult, error) {
	if len(cluster) == 0 {
		return ConsolidateResult{DryRun: dryRun}, nil
	}

	oldIDs := make([]int64, len(cluster))
	for i, r := range cluster {
		oldIDs[i] = r.ID
	}

	project := inferProject(cluster)
	category := dominantCategory(cluster)

	promptMemories := make([]consolidationPromptMemory, len(cluster))
	for i, r := range cluster {
		cat := string(r.Category)
		if cat == "" {
			cat = string(memory.CategoryDetail)
		}
		promptMemories[i] = consolidationPromptMemory{ID: r.ID, Text: r.Text, Category: cat}
	}
	memoriesJSON, err := json.MarshalIndent(promptMemories, "", "  ")
	if err != nil {
		return ConsolidateResult{}, apperr.NewInternal("marshal consolidation prompt", err)
	}

	userPrompt := fmt.Sprintf(consolidationPromptTemplate, len(cluster), project, memoriesJSON)
	completion, err := provider.Complete(ctx, "You are a memory consolidation assistant. Output only valid JSON.", userPrompt)
	if err != nil {
		return ConsolidateResult{}, apperr.NewUnavailable("consolidation provider call failed", err)
	}

	newTexts := parseConsolidationResponse(completion.Text)

	if !dryRun {
		if _, _, err := e.DeleteBatch(ctx, oldIDs); err != nil {
			return ConsolidateResult{}, err
		}

		source := "consolidated"
		if cluster[0].Source != "" {
			source = cluster[0].Source
		}
		sources := make([]string, len(newTexts))
		metas := make([]map[string]any, len(newTexts))
		for i := range newTexts {
			sources[i] = source
			metas[i] = map[string]any{
				"category":          string(category),
				"consolidated_from": append([]int64(nil), oldIDs...),
			}
		}
		if _, err := e.Add(ctx, newTexts, sources, metas, false, 0); err != nil {
			return ConsolidateResult{}, err
		}
	}

	return ConsolidateResult{
		MergedCount: len(cluster),
		NewCount:    len(newTexts),
		OldIDs:      oldIDs,
		NewTexts:    newTexts,
		DryRun:      dryRun,
	}, nil
}

// parseConsolidationResponse accepts the provider's response as a JSON
// array of strings; anything else (a bare string, malformed JSON) falls
// back to treating the whole response as one consolidated memory.
func parseConsolidationResponse(text string) []string {
	var texts []string
	if err := json.Unmarshal([]byte(text), &texts); err == nil && len(texts) > 0 {
		return texts
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	return []string{trimmed}
}

// FindPruneCandidates returns the records among unretrievedIDs whose age
// exceeds their category's staleness threshold: detailDays for detail
// memories, decisionDays for decision/learning ones (those are expected
// to stay useful longer). memoryd doesn't track per-record retrieval
// counts, so unretrievedIDs is the caller's call: pass every id to prune
// purely on age, or a narrower set from whatever access log is
// available.
func (e *Engine) FindPruneCandidates(unretrievedIDs []int64, detailDays, decisionDays int) []*memory.Record {
	if detailDays <= 0 {
		detailDays = defaultDetailPruneDays
	}
	if decisionDays <= 0 {
		decisionDays = defaultDecisionPruneDays
	}

	unretrieved := make(map[int64]struct{}, len(unretrievedIDs))
	for _, id := range unretrievedIDs {
		unretrieved[id] = struct{}{}
	}

	now := time.Now().UTC()
	var candidates []*memory.Record
	for _, r := range e.store.All() {
		if _, ok := unretrieved[r.ID]; !ok {
			continue
		}
		ageDays := int(now.Sub(r.CreatedAt).Hours() / 24)
		threshold := detailDays
		if r.Category == memory.CategoryDecision || r.Category == memory.CategoryLearning {
			threshold = decisionDays
		}
		if ageDays > threshold {
			candidates = append(candidates, r)
		}
	}
	return candidates
}
