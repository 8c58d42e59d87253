// Package fusion combines sparse (lexical) and dense (vector) retrieval
// results into a single ranked list using Reciprocal Rank Fusion.
package fusion

import "sort"

// DefaultK is the RRF smoothing constant. k=60 is the empirically
// validated default used by Azure AI Search, OpenSearch, and most hybrid
// retrieval systems.
const DefaultK = 60

// DefaultVectorWeight is the share of the combined score attributed to
// the vector leg when the caller doesn't specify one.
const DefaultVectorWeight = 0.7

// SparseHit is one row from the lexical leg, already sorted by
// descending score. A hit with a non-positive score contributes nothing
// to the fused score but may still surface via the dense leg.
type SparseHit struct {
	ID    int64
	Score float64
}

// DenseHit is one row from the vector leg, ordered by descending similarity.
type DenseHit struct {
	ID    int64
	Score float32
}

// Result is one fused row.
type Result struct {
	ID          int64
	RRFScore    float64
	SparseScore float64
	SparseRank  int // 1-indexed, 0 if absent from the lexical leg
	DenseScore  float32
	DenseRank   int // 1-indexed, 0 if absent from the vector leg
	InBothLegs  bool
}

// Fuser runs RRF over a dense leg and a sparse leg.
type Fuser struct {
	K int
}

// New returns a Fuser with the default smoothing constant.
func New() *Fuser {
	return &Fuser{K: DefaultK}
}

// NewWithK returns a Fuser with a custom smoothing constant. k<=0 falls
// back to DefaultK.
func NewWithK(k int) *Fuser {
	if k <= 0 {
		k = DefaultK
	}
	return &Fuser{K: k}
}

// Fuse merges dense and sparse hit lists into a single ranked slice.
//
//	rrf[id] += vectorWeight   / (rank + K)   for each dense hit, by rank
//	rrf[id] += (1-vectorWeight)/ (rank + K)   for each sparse hit with a
//	                                           positive score, by rank
//
// Unlike a textbook RRF, a document absent from one leg gets no
// placeholder contribution for that leg — its score comes entirely from
// whichever leg(s) actually returned it.
//
// Ties break, in order: higher RRF score, present in both legs, higher
// dense similarity, then ascending id.
func (f *Fuser) Fuse(dense []DenseHit, sparse []SparseHit, vectorWeight float64) []Result {
	if len(dense) == 0 && len(sparse) == 0 {
		return []Result{}
	}

	byID := make(map[int64]*Result, len(dense)+len(sparse))

	get := func(id int64) *Result {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &Result{ID: id}
		byID[id] = r
		return r
	}

	for rank, h := range dense {
		r := get(h.ID)
		r.DenseScore = h.Score
		r.DenseRank = rank + 1
		r.RRFScore += vectorWeight / float64(f.K+rank+1)
	}

	sparseWeight := 1 - vectorWeight
	for rank, h := range sparse {
		if h.Score <= 0 {
			continue
		}
		r := get(h.ID)
		r.SparseScore = h.Score
		r.SparseRank = rank + 1
		r.RRFScore += sparseWeight / float64(f.K+rank+1)
		if r.DenseRank > 0 {
			r.InBothLegs = true
		}
	}

	out := make([]Result, 0, len(byID))
	for _, r := range byID {
		out = append(out, *r)
	}

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })

	return out
}

func less(a, b Result) bool {
	if a.RRFScore != b.RRFScore {
		return a.RRFScore > b.RRFScore
	}
	if a.InBothLegs != b.InBothLegs {
		return a.InBothLegs
	}
	if a.DenseScore != b.DenseScore {
		return a.DenseScore > b.DenseScore
	}
	return a.ID < b.ID
}
