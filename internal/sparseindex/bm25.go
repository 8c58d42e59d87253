// Package sparseindex implements a BM25 scorer over a tokenized corpus
// that mirrors the memory engine's metadata log position for position,
// rebuilt wholesale on every text-mutating write.
package sparseindex

import (
	"math"
	"strings"
	"sync"
)

// Standard Robertson/Spärck Jones BM25 constants.
const (
	k1 = 1.2
	b  = 0.75
)

// Index is an immutable-once-built BM25 index over a fixed set of
// documents. Callers rebuild it (via New) rather than mutate it in
// place, matching the engine's "rebuild sparse on any text change"
// write discipline.
type Index struct {
	mu sync.RWMutex

	// docTokens[i] is the tokenized text of the document at corpus
	// position i; positionToID[i] is that position's owning memory id.
	docTokens    [][]string
	positionToID []int64

	avgDocLen float64
	df        map[string]int // document frequency per term
	n         int
}

// Document is one record's text paired with its owning memory id.
type Document struct {
	ID   int64
	Text string
}

// Tokenize lowercases and splits on whitespace, the same normalization
// used to build the index, so callers can tokenize a query consistently.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// New builds a fresh index from scratch. An empty corpus yields a nil
// index, matching the "no sparse contribution" behavior the engine
// expects when there is no metadata yet.
func New(docs []Document) *Index {
	if len(docs) == 0 {
		return nil
	}

	idx := &Index{
		docTokens:    make([][]string, len(docs)),
		positionToID: make([]int64, len(docs)),
		df:           make(map[string]int),
		n:            len(docs),
	}

	var totalLen int
	for i, d := range docs {
		tokens := Tokenize(d.Text)
		idx.docTokens[i] = tokens
		idx.positionToID[i] = d.ID
		totalLen += len(tokens)

		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			idx.df[tok]++
		}
	}
	if idx.n > 0 {
		idx.avgDocLen = float64(totalLen) / float64(idx.n)
	}

	return idx
}

// PositionToID returns the memory id owning corpus position i, or
// (0, false) if i is out of range.
func (idx *Index) PositionToID(i int) (int64, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx == nil || i < 0 || i >= len(idx.positionToID) {
		return 0, false
	}
	return idx.positionToID[i], true
}

// Len returns the number of documents in the corpus.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.n
}

// idf computes the Robertson/Spärck Jones inverse document frequency
// for a term, floored at a small positive value so a term present in
// every document still contributes rather than going negative.
func (idx *Index) idf(term string) float64 {
	df := idx.df[term]
	v := math.Log(1 + (float64(idx.n)-float64(df)+0.5)/(float64(df)+0.5))
	if v < 0 {
		return 1e-9
	}
	return v
}

// Scores returns one BM25 score per corpus position for the given
// (already-tokenized) query.
func (idx *Index) Scores(queryTokens []string) []float64 {
	if idx == nil {
		return nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]float64, idx.n)
	if len(queryTokens) == 0 {
		return out
	}

	// Dedupe query terms; repeated terms don't change BM25's per-term
	// weighting since it iterates unique query terms against each doc.
	seen := make(map[string]struct{}, len(queryTokens))
	terms := make([]string, 0, len(queryTokens))
	for _, t := range queryTokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}

	for pos, tokens := range idx.docTokens {
		if len(tokens) == 0 {
			continue
		}
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		docLen := float64(len(tokens))

		var score float64
		for _, term := range terms {
			f, ok := tf[term]
			if !ok {
				continue
			}
			idfVal := idx.idf(term)
			numer := float64(f) * (k1 + 1)
			denom := float64(f) + k1*(1-b+b*docLen/idx.avgDocLen)
			score += idfVal * numer / denom
		}
		out[pos] = score
	}

	return out
}
