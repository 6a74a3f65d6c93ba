package stats

import (
	"fmt"
	"math"
)

// DTWNormalization selects how the accumulated cost is reported
type DTWNormalization string

const (
	// NormalizeNone reports the raw accumulated cost at the final cell
	NormalizeNone DTWNormalization = "none"
	// NormalizePathLength divides the accumulated cost by the warping path length
	NormalizePathLength DTWNormalization = "path_length"
)

// ParseDTWNormalization validates a normalization name; "" means none
func ParseDTWNormalization(name string) (DTWNormalization, error) {
	switch DTWNormalization(name) {
	case "", NormalizeNone:
		return NormalizeNone, nil
	case NormalizePathLength:
		return NormalizePathLength, nil
	default:
		return "", fmt.Errorf("unknown DTW normalization %q", name)
	}
}

// DTWAlignment performs Dynamic Time Warping on one-dimensional sequences
// with the symmetric step set (i-1,j-1), (i-1,j), (i,j-1), unweighted, and
// absolute difference as local cost.
//
// Among predecessors of equal cost the one on the shorter path wins, then
// the diagonal, so both the raw and the path-normalized distance are
// symmetric in their arguments.
type DTWAlignment struct {
	normalization DTWNormalization
}

// DTWResult contains DTW alignment results
type DTWResult struct {
	Cost        float64          `json:"cost"`        // Accumulated cost at the final cell
	Distance    float64          `json:"distance"`    // Cost after normalization
	PathLength  int              `json:"path_length"` // Number of cells on the warping path
	Path        []AlignPoint     `json:"path,omitempty"`
	QueryLength int              `json:"query_length"`
	RefLength   int              `json:"ref_length"`
	Normalized  DTWNormalization `json:"normalized"`
}

// AlignPoint represents a point in the alignment path
type AlignPoint struct {
	QueryIndex int     `json:"query_index"` // Index in query sequence
	RefIndex   int     `json:"ref_index"`   // Index in reference sequence
	Cost       float64 `json:"cost"`        // Local cost at this point
}

// NewDTWAlignment creates a DTW instance reporting raw cost
func NewDTWAlignment() *DTWAlignment {
	return &DTWAlignment{normalization: NormalizeNone}
}

// NewDTWAlignmentWithNormalization creates a DTW instance with the given normalization
func NewDTWAlignmentWithNormalization(normalization DTWNormalization) *DTWAlignment {
	if normalization == "" {
		normalization = NormalizeNone
	}
	return &DTWAlignment{normalization: normalization}
}

// cell is one accumulated DP entry
type cell struct {
	cost   float64
	length int
}

// better reports whether candidate a beats b under the tie-break order
func better(a, b cell) bool {
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	return a.length < b.length
}

// Distance computes the DTW distance between query and reference using two
// rolling rows, without materializing the path.
//
// An empty sequence is aligned against a single zero-valued (unvoiced)
// frame: empty vs empty costs 0, empty vs x costs sum(|x|).
func (dtw *DTWAlignment) Distance(query, reference []float64) *DTWResult {
	result := &DTWResult{
		QueryLength: len(query),
		RefLength:   len(reference),
		Normalized:  dtw.normalization,
	}

	if len(query) == 0 || len(reference) == 0 {
		for _, v := range query {
			result.Cost += math.Abs(v)
		}
		for _, v := range reference {
			result.Cost += math.Abs(v)
		}
		result.PathLength = max(len(query), len(reference))
		result.Distance = dtw.normalize(result.Cost, result.PathLength)
		return result
	}

	// rows run over the shorter sequence
	outer, inner := query, reference
	if len(inner) > len(outer) {
		outer, inner = inner, outer
	}

	prev := make([]cell, len(inner))
	curr := make([]cell, len(inner))

	for i, a := range outer {
		for j, b := range inner {
			local := math.Abs(a - b)

			if i == 0 && j == 0 {
				curr[j] = cell{cost: local, length: 1}
				continue
			}

			best := cell{cost: math.Inf(1), length: math.MaxInt}
			if i > 0 && j > 0 {
				best = prev[j-1]
			}
			if i > 0 && better(prev[j], best) {
				best = prev[j]
			}
			if j > 0 && better(curr[j-1], best) {
				best = curr[j-1]
			}

			curr[j] = cell{cost: best.cost + local, length: best.length + 1}
		}
		prev, curr = curr, prev
	}

	final := prev[len(inner)-1]
	result.Cost = final.cost
	result.PathLength = final.length
	result.Distance = dtw.normalize(final.cost, final.length)
	return result
}

// Align computes the full accumulated cost matrix and backtracks the
// optimal warping path. Memory grows with len(query)*len(reference).
func (dtw *DTWAlignment) Align(query, reference []float64) (*DTWResult, error) {
	if len(query) == 0 || len(reference) == 0 {
		return nil, fmt.Errorf("empty sequences provided")
	}

	queryLen := len(query)
	refLen := len(reference)

	acc := make([][]cell, queryLen)
	for i := range acc {
		acc[i] = make([]cell, refLen)
	}

	for i := 0; i < queryLen; i++ {
		for j := 0; j < refLen; j++ {
			local := math.Abs(query[i] - reference[j])
			if i == 0 && j == 0 {
				acc[i][j] = cell{cost: local, length: 1}
				continue
			}

			_, _, best := predecessor(acc, i, j)
			acc[i][j] = cell{cost: best.cost + local, length: best.length + 1}
		}
	}

	path := dtw.backtrack(acc, query, reference)
	final := acc[queryLen-1][refLen-1]

	return &DTWResult{
		Cost:        final.cost,
		Distance:    dtw.normalize(final.cost, final.length),
		PathLength:  final.length,
		Path:        path,
		QueryLength: queryLen,
		RefLength:   refLen,
		Normalized:  dtw.normalization,
	}, nil
}

// predecessor picks the best of diagonal, vertical and horizontal neighbours
func predecessor(acc [][]cell, i, j int) (int, int, cell) {
	bi, bj := -1, -1
	best := cell{cost: math.Inf(1), length: math.MaxInt}

	if i > 0 && j > 0 {
		bi, bj, best = i-1, j-1, acc[i-1][j-1]
	}
	if i > 0 && better(acc[i-1][j], best) {
		bi, bj, best = i-1, j, acc[i-1][j]
	}
	if j > 0 && better(acc[i][j-1], best) {
		bi, bj, best = i, j-1, acc[i][j-1]
	}
	return bi, bj, best
}

// backtrack follows predecessors from the final cell back to the origin
func (dtw *DTWAlignment) backtrack(acc [][]cell, query, reference []float64) []AlignPoint {
	i, j := len(query)-1, len(reference)-1
	path := make([]AlignPoint, acc[i][j].length)

	for k := len(path) - 1; k >= 0; k-- {
		path[k] = AlignPoint{
			QueryIndex: i,
			RefIndex:   j,
			Cost:       math.Abs(query[i] - reference[j]),
		}
		if i == 0 && j == 0 {
			break
		}
		i, j, _ = predecessor(acc, i, j)
	}

	return path
}

func (dtw *DTWAlignment) normalize(cost float64, pathLength int) float64 {
	if dtw.normalization == NormalizePathLength && pathLength > 0 {
		return cost / float64(pathLength)
	}
	return cost
}
