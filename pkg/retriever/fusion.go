package retriever

import (
	"sort"

	"github.com/mentora-ai/mentora/pkg/databases"
)

// RRFConstant is the standard Reciprocal Rank Fusion smoothing constant
// (Cormack et al., 2009).
const RRFConstant = 60

// Weights splits the fused score between the two backends. They must sum
// to 1; config.Validate enforces that.
type Weights struct {
	BM25   float64
	Vector float64
}

type fusedPoint struct {
	PointID    string
	BM25Rank   int // 1-indexed, 0 when absent
	VectorRank int
	Score      float64
}

// fuse combines the two ranked lists with weighted RRF:
//
//	score(p) = w_b/(rank_b+60) + w_v/(rank_v+60)
//
// with a missing backend contributing 0. Ordering is deterministic: score
// descending, then smaller best rank, then point id.
func fuse(bm25 []databases.LexicalHit, vec []databases.VectorHit, weights Weights) []fusedPoint {
	scores := make(map[string]*fusedPoint, len(bm25)+len(vec))

	for i, hit := range bm25 {
		rank := i + 1
		scores[hit.PointID] = &fusedPoint{
			PointID:  hit.PointID,
			BM25Rank: rank,
			Score:    weights.BM25 / float64(rank+RRFConstant),
		}
	}

	for i, hit := range vec {
		rank := i + 1
		point, ok := scores[hit.PointID]
		if !ok {
			point = &fusedPoint{PointID: hit.PointID}
			scores[hit.PointID] = point
		}
		point.VectorRank = rank
		point.Score += weights.Vector / float64(rank+RRFConstant)
	}

	fused := make([]fusedPoint, 0, len(scores))
	for _, point := range scores {
		fused = append(fused, *point)
	}

	sort.Slice(fused, func(i, j int) bool {
		a, b := fused[i], fused[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if ra, rb := a.bestRank(), b.bestRank(); ra != rb {
			return ra < rb
		}
		return a.PointID < b.PointID
	})

	return fused
}

func (p fusedPoint) bestRank() int {
	switch {
	case p.BM25Rank == 0:
		return p.VectorRank
	case p.VectorRank == 0:
		return p.BM25Rank
	case p.BM25Rank < p.VectorRank:
		return p.BM25Rank
	default:
		return p.VectorRank
	}
}
